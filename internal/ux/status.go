package ux

import (
	"fmt"
	"io"

	"github.com/jorge-barreto/ok/internal/staging"
)

// RenderHistory prints build records, newest first, as a table.
func RenderHistory(w io.Writer, records []*staging.Record) {
	if len(records) == 0 {
		fmt.Fprintf(w, "%s(no builds recorded)%s\n", Dim, Reset)
		return
	}
	fmt.Fprintf(w, "%s%-19s  %-16s %-10s %-11s %8s %6s  %s%s\n",
		Bold, "STARTED", "SPEC", "MODE", "STATUS", "COST", "TURNS", "DURATION", Reset)
	for _, r := range records {
		fmt.Fprintf(w, "%-19s  %-16s %-10s %s%-11s%s %8s %6d  %s\n",
			r.Started.Local().Format("2006-01-02 15:04:05"),
			r.Spec, r.Mode,
			statusColor(r.Status), r.Status, Reset,
			fmt.Sprintf("$%.2f", r.CostUSD), r.Turns, r.Duration)
		if r.Error != "" {
			fmt.Fprintf(w, "  %s%s%s\n", Red, r.Error, Reset)
		}
	}
}

func statusColor(status string) string {
	switch status {
	case staging.StatusCompleted:
		return Green
	case staging.StatusFailed:
		return Red
	case staging.StatusInterrupted:
		return Yellow
	default:
		return Dim
	}
}
