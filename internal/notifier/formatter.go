package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"EconSync/internal/recorder"
	"EconSync/internal/syncer"
)

var statusIcon = map[string]string{
	recorder.StatusOK:      "✅",
	recorder.StatusSkipped: "⏭",
	recorder.StatusNoData:  "➖",
	recorder.StatusFailed:  "❌",
}

// FormatRunSummary formats a sync pass into a Telegram message.
func FormatRunSummary(sum *syncer.Summary) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>EconSync</b> | %s\n\n", sum.StartedAt.Format("2006-01-02 15:04")))

	for _, r := range sum.Runs {
		b.WriteString(fmt.Sprintf("%s <b>%s</b>: ", statusIcon[r.Status], html.EscapeString(r.Series)))
		switch r.Status {
		case recorder.StatusOK:
			b.WriteString(fmt.Sprintf("+%d", r.Added))
			if r.Updated > 0 {
				b.WriteString(fmt.Sprintf(", %d revised", r.Updated))
			}
			b.WriteString(fmt.Sprintf(" (total %d)", r.Kept))
		case recorder.StatusFailed:
			b.WriteString(html.EscapeString(r.Error))
		default:
			b.WriteString(html.EscapeString(r.Reason))
		}
		if n := len(r.Outliers); n > 0 {
			b.WriteString(fmt.Sprintf(" ⚠️ %d outliers", n))
		}
		b.WriteString("\n")
	}

	repaired := 0
	for _, r := range sum.Integrity {
		if r.Repaired {
			repaired++
		}
	}
	if repaired > 0 {
		b.WriteString(fmt.Sprintf("\n🔧 repaired %d file(s)\n", repaired))
	}
	if len(sum.YoY) > 0 {
		b.WriteString(fmt.Sprintf("📈 YoY derived for %d series\n", len(sum.YoY)))
	}

	if n := len(sum.Errors); n > 0 {
		b.WriteString(fmt.Sprintf("\n<b>%d error(s)</b>\n", n))
	}
	if !sum.FinishedAt.IsZero() {
		b.WriteString(fmt.Sprintf("\n⏱ %s\n", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Second)))
	}
	return b.String()
}
