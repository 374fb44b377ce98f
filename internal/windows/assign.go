package windows

import (
	"time"

	"network-kpi/internal/domain"
)

// Assigner maps block numbers and timestamps to window labels. Values outside
// every window get the label of the run time.
type Assigner struct {
	windows []domain.Window
	now     domain.WindowLabel
}

// NewAssigner creates an Assigner over windows with now as the fallback label.
func NewAssigner(windows []domain.Window, now time.Time) *Assigner {
	return &Assigner{windows: windows, now: domain.WindowLabel(now.Unix())}
}

// Now returns the fallback label.
func (a *Assigner) Now() domain.WindowLabel {
	return a.now
}

// Windows returns the windows in ascending order.
func (a *Assigner) Windows() []domain.Window {
	return a.windows
}

// AssignBlock labels a ledger block. A block on a shared boundary belongs
// to the earlier window.
func (a *Assigner) AssignBlock(block int64) domain.WindowLabel {
	for _, w := range a.windows {
		if w.ContainsBlock(block) {
			return w.Label()
		}
	}
	return a.now
}

// AssignUnix labels a unix timestamp in seconds.
func (a *Assigner) AssignUnix(sec int64) domain.WindowLabel {
	for _, w := range a.windows {
		if w.ContainsUnix(sec) {
			return w.Label()
		}
	}
	return a.now
}

// Window returns the window with label l.
func (a *Assigner) Window(l domain.WindowLabel) (domain.Window, bool) {
	for _, w := range a.windows {
		if w.Label() == l {
			return w, true
		}
	}
	return domain.Window{}, false
}

// IsFallback reports whether l is the run-time label rather than a window.
func (a *Assigner) IsFallback(l domain.WindowLabel) bool {
	_, ok := a.Window(l)
	return !ok
}
