package domain

import "time"

// Window is a fixed wall-clock week together with the ledger block range
// that covers it. Bounds are inclusive on both ends.
type Window struct {
	StartTime  time.Time
	EndTime    time.Time
	StartBlock int64
	EndBlock   int64
}

// Label returns the week_end label of the window.
func (w Window) Label() WindowLabel {
	return WindowLabel(w.EndTime.Unix())
}

// ContainsBlock reports whether block lies in [StartBlock, EndBlock].
func (w Window) ContainsBlock(block int64) bool {
	return w.StartBlock <= block && block <= w.EndBlock
}

// ContainsUnix reports whether sec lies in [StartTime, EndTime] in unix seconds.
func (w Window) ContainsUnix(sec int64) bool {
	return w.StartTime.Unix() <= sec && sec <= w.EndTime.Unix()
}

// WindowLabel identifies a window by its end time in unix seconds.
// The fallback label for values outside every window is the run time.
type WindowLabel int64

// Time returns the label as a UTC time.
func (l WindowLabel) Time() time.Time {
	return time.Unix(int64(l), 0).UTC()
}

// Date formats the label as YYYY-MM-DD.
func (l WindowLabel) Date() string {
	return l.Time().Format("2006-01-02")
}
