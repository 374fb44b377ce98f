package reporting

import (
	"sort"
	"time"

	"network-kpi/internal/domain"
)

// Report is the summary view of one run rendered to Markdown.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	Complete    bool

	Windows []WindowSummary
	Pivot   *domain.PivotTable

	// Segments with their total entity-weeks, most populated first.
	Segments []SegmentSummary

	Warnings []string
}

// WindowSummary describes one column of the pivot.
type WindowSummary struct {
	Label      domain.WindowLabel
	Start      time.Time // zero for the run-time fallback column
	StartBlock int64
	EndBlock   int64
	Entities   int
	Scored     int
	Profitable int
}

// SegmentSummary is the total of one pivot row across all windows.
type SegmentSummary struct {
	Segment      domain.Segment
	EntityWeeks  int
	LatestWindow int
}

// NewReport builds the summary of run.
func NewReport(run *domain.Run) *Report {
	r := &Report{
		RunID:       run.ID,
		GeneratedAt: run.GeneratedAt,
		Complete:    run.Complete,
		Pivot:       run.Pivot,
		Warnings:    run.Warnings,
	}
	if r.Pivot == nil {
		r.Pivot = &domain.PivotTable{}
	}

	byLabel := make(map[domain.WindowLabel]domain.Window, len(run.Windows))
	for _, w := range run.Windows {
		byLabel[w.Label()] = w
	}
	for i, label := range r.Pivot.Windows {
		ws := WindowSummary{Label: label, Entities: r.Pivot.Total(i)}
		if w, ok := byLabel[label]; ok {
			ws.Start = w.StartTime
			ws.StartBlock = w.StartBlock
			ws.EndBlock = w.EndBlock
		}
		for _, row := range run.Detail {
			if row.Window != label {
				continue
			}
			if row.RegionalHighScore != nil {
				ws.Scored++
			}
			if row.ProfitableLPTCalls != nil && *row.ProfitableLPTCalls {
				ws.Profitable++
			}
		}
		r.Windows = append(r.Windows, ws)
	}

	last := len(r.Pivot.Windows) - 1
	for _, row := range r.Pivot.Rows {
		s := SegmentSummary{Segment: row.Segment}
		for _, n := range row.Counts {
			s.EntityWeeks += n
		}
		if last >= 0 {
			s.LatestWindow = row.Counts[last]
		}
		r.Segments = append(r.Segments, s)
	}
	sortSegments(r.Segments)
	return r
}

func sortSegments(s []SegmentSummary) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].EntityWeeks != s[j].EntityWeeks {
			return s[i].EntityWeeks > s[j].EntityWeeks
		}
		return s[i].Segment < s[j].Segment
	})
}
