package report

import (
	"strings"

	"slabot/internal/tracker"
)

const (
	// NothingMatched answers a check that found no issues.
	NothingMatched = "No matching issues."
	// NothingUrgent is the broadcast notice when no issue needs attention.
	NothingUrgent = "No tracks to pay attention!"
	// BroadcastTitle heads every reminder that lists urgent issues.
	BroadcastTitle = "🔔 Reminder: tracks need attention"
)

// Renderer formats issues as Telegram Markdown. Output depends only on the input.
type Renderer struct {
	browse func(key string) string
}

// NewRenderer takes the function that turns an issue key into a link.
func NewRenderer(browse func(key string) string) *Renderer {
	return &Renderer{browse: browse}
}

// RenderSummary renders issues in the given order, one block per issue.
func (r *Renderer) RenderSummary(issues []tracker.Issue) string {
	var b strings.Builder
	for i, iss := range issues {
		if i > 0 {
			b.WriteString("\n")
		}
		r.writeIssue(&b, iss)
	}
	return b.String()
}

// RenderBroadcast prefixes the summary with the reminder title.
func (r *Renderer) RenderBroadcast(issues []tracker.Issue) string {
	return BroadcastTitle + "\n\n" + r.RenderSummary(issues)
}

func (r *Renderer) writeIssue(b *strings.Builder, iss tracker.Issue) {
	link := iss.Key
	if r.browse != nil {
		link = r.browse(iss.Key)
	}
	b.WriteString("[" + escape(iss.Key) + "](" + link + ")\n")
	b.WriteString("Summary: " + escape(iss.Summary) + "\n")
	assignee := iss.Assignee
	if assignee == "" {
		assignee = "Unassigned"
	}
	b.WriteString("Assignee: " + escape(assignee) + "\n")
	b.WriteString("Status: " + escape(iss.Status) + "\n")

	cur := iss.SLA.Current()
	if cur == nil {
		name := "SLA"
		if iss.SLA != nil && iss.SLA.Name != "" {
			name = iss.SLA.Name
		}
		b.WriteString(escape(name) + ": no SLA set for this issue\n")
		return
	}
	b.WriteString("Time remaining: " + escape(cur.Remaining.Friendly))
	switch {
	case cur.Breached:
		b.WriteString(" (breached)")
	case cur.Paused:
		b.WriteString(" (paused)")
	}
	b.WriteString("\n")
}

var mdEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// escape protects free text from Telegram's legacy Markdown parser.
func escape(s string) string { return mdEscaper.Replace(s) }
