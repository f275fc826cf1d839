package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/selfboot/mpdraft/internal/publish"
)

// MarkdownFormatter formats a report as Markdown.
type MarkdownFormatter struct{}

// NewMarkdown creates a Markdown formatter.
func NewMarkdown() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format writes the report as Markdown to w.
func (f *MarkdownFormatter) Format(w io.Writer, r publish.Report) error {
	published, failed, skipped := groupByStatus(r.Items)

	fmt.Fprintf(w, "# mpdraft run %s\n\n", r.RunID)
	fmt.Fprintf(w, "%d articles, started %s, took %s", len(r.Items), r.StartedAt.Format("2006-01-02 15:04"), formatDuration(r.Duration))
	if r.DryRun {
		fmt.Fprint(w, " (dry run)")
	}
	fmt.Fprint(w, "\n\n")

	if len(r.Items) == 0 {
		fmt.Fprintln(w, "Nothing published.")
		return nil
	}

	if len(published) > 0 {
		fmt.Fprintf(w, "## Drafts (%d)\n\n", len(published))
		fmt.Fprintln(w, "| Media ID | Title | Images |")
		fmt.Fprintln(w, "|----------|-------|--------|")
		for _, it := range published {
			fmt.Fprintf(w, "| `%s` | [%s](%s) | %d/%d |\n",
				it.MediaID, escapeCell(it.Title), it.SourceURL, it.RehostedImages(), len(it.Images))
		}
		fmt.Fprintln(w)
	}

	if len(failed) > 0 {
		fmt.Fprintf(w, "## Failed (%d)\n\n", len(failed))
		for _, it := range failed {
			fmt.Fprintf(w, "- **%s** at `%s`: %s\n", it.Identifier, it.Stage, it.Error)
		}
		fmt.Fprintln(w)
	}

	if len(skipped) > 0 {
		fmt.Fprintf(w, "## Skipped (%d)\n\n", len(skipped))
		for _, it := range skipped {
			fmt.Fprintf(w, "- %s _(%s)_\n", it.Identifier, it.Reason)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
