package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Orchestrator Segments\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Windows: %d | Segments: %d\n\n", r.RunID, len(r.Windows), len(r.Segments)))
	if r.Complete {
		sb.WriteString("**Complete.** Every query was exhaustive and every enrichment succeeded.\n\n")
	} else {
		sb.WriteString("**Incomplete.** See warnings below.\n\n")
	}

	// Windows
	sb.WriteString("## Windows\n\n")
	if len(r.Windows) > 0 {
		sb.WriteString("| Week End | Week Start | Blocks | Entities | Scored | Profitable |\n")
		sb.WriteString("|----------|------------|--------|----------|--------|------------|\n")
		var fallback string
		for _, w := range r.Windows {
			start, blocks := "-", "-"
			if !w.Start.IsZero() {
				start = w.Start.Format("2006-01-02")
				blocks = fmt.Sprintf("%d-%d", w.StartBlock, w.EndBlock)
			} else {
				fallback = w.Label.Date()
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %d |\n",
				w.Label.Date(), start, blocks, w.Entities, w.Scored, w.Profitable))
		}
		if fallback != "" {
			sb.WriteString(fmt.Sprintf("\nThe %s column is the run date. It collects every round and fee day outside the weekly windows, "+
				"so its metrics span several weeks and its segments are not a weekly classification.\n", fallback))
		}
	} else {
		sb.WriteString("No windows with observations.\n")
	}
	sb.WriteString("\n")

	// Pivot
	sb.WriteString("## Segments by Week\n\n")
	if len(r.Pivot.Rows) > 0 {
		sb.WriteString("| Segment |")
		sep := "|---------|"
		for _, w := range r.Pivot.Windows {
			sb.WriteString(" " + w.Date() + " |")
			sep += "-----|"
		}
		sb.WriteString("\n" + sep + "\n")
		for _, row := range r.Pivot.Rows {
			sb.WriteString("| " + string(row.Segment) + " |")
			for _, n := range row.Counts {
				sb.WriteString(fmt.Sprintf(" %d |", n))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("| **Total** |")
		for i := range r.Pivot.Windows {
			sb.WriteString(fmt.Sprintf(" **%d** |", r.Pivot.Total(i)))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No segments.\n")
	}
	sb.WriteString("\n")

	// Totals
	if len(r.Segments) > 0 {
		sb.WriteString("## Segment Totals\n\n")
		sb.WriteString("| Segment | Entity-Weeks | Latest Week |\n")
		sb.WriteString("|---------|--------------|-------------|\n")
		for _, s := range r.Segments {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d |\n", s.Segment, s.EntityWeeks, s.LatestWindow))
		}
		sb.WriteString("\n")
	}

	// Warnings
	if len(r.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
