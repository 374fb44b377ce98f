package orchestrator

import (
	"fmt"
	"sort"

	"network-kpi/internal/domain"
)

// Pivot counts distinct entities per segment and window. Windows are
// ascending; segments are sorted by label; missing cells are 0.
func Pivot(rows []domain.DetailRow) *domain.PivotTable {
	windowSet := make(map[domain.WindowLabel]struct{})
	segmentSet := make(map[domain.Segment]struct{})
	members := make(map[domain.WindowLabel]map[domain.Segment]map[string]struct{})

	for _, r := range rows {
		windowSet[r.Window] = struct{}{}
		segmentSet[r.Segment] = struct{}{}
		bySeg, ok := members[r.Window]
		if !ok {
			bySeg = make(map[domain.Segment]map[string]struct{})
			members[r.Window] = bySeg
		}
		ids, ok := bySeg[r.Segment]
		if !ok {
			ids = make(map[string]struct{})
			bySeg[r.Segment] = ids
		}
		ids[r.EntityID] = struct{}{}
	}

	table := &domain.PivotTable{}
	for w := range windowSet {
		table.Windows = append(table.Windows, w)
	}
	sort.Slice(table.Windows, func(i, j int) bool { return table.Windows[i] < table.Windows[j] })

	segments := make([]domain.Segment, 0, len(segmentSet))
	for s := range segmentSet {
		segments = append(segments, s)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i] < segments[j] })

	for _, s := range segments {
		row := domain.PivotRow{Segment: s, Counts: make([]int, len(table.Windows))}
		for i, w := range table.Windows {
			row.Counts[i] = len(members[w][s])
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// CheckConsistency verifies that every pivot column sums to the number of
// distinct entities of that window in the detail rows.
func CheckConsistency(p *domain.PivotTable, rows []domain.DetailRow) error {
	distinct := make(map[domain.WindowLabel]map[string]struct{})
	for _, r := range rows {
		if distinct[r.Window] == nil {
			distinct[r.Window] = make(map[string]struct{})
		}
		distinct[r.Window][r.EntityID] = struct{}{}
	}
	if len(distinct) != len(p.Windows) {
		return fmt.Errorf("pivot has %d windows, detail has %d", len(p.Windows), len(distinct))
	}
	for i, w := range p.Windows {
		if got, want := p.Total(i), len(distinct[w]); got != want {
			return fmt.Errorf("window %s: pivot total %d != %d distinct entities", w.Date(), got, want)
		}
	}
	return nil
}
