package render

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/BuzzLyutic/todo-sync/internal/model"
	"github.com/BuzzLyutic/todo-sync/internal/syncer"
)

// FormatDate renders a day the way the list header shows it, e.g. 2024年3月9日.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
}

// Row renders a single line: "[x] #3 Buy milk - High (due 2024-03-09)".
func Row(r syncer.Row) string {
	box := "[ ]"
	if r.Checked {
		box = "[x]"
	}
	line := fmt.Sprintf("%s #%d %s - %s", box, r.ID, r.Title, r.Priority)
	if r.DueDate != nil {
		line += fmt.Sprintf(" (due %s)", r.DueDate)
	}
	return line
}

// View writes the date header followed by one line per row, in view order.
func View(w io.Writer, v syncer.View, today time.Time) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, FormatDate(today))
	if len(v.Rows) == 0 {
		fmt.Fprintln(bw, "(no todos)")
	}
	for _, r := range v.Rows {
		fmt.Fprintln(bw, Row(r))
	}
	return bw.Flush()
}

func Stats(w io.Writer, s model.Stats) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "total: %d, completed: %d\n", s.Total, s.Completed)
	for _, p := range []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow} {
		fmt.Fprintf(bw, "  %-6s %d\n", p, s.ByPriority[p])
	}
	return bw.Flush()
}
