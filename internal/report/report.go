// Package report renders a batch report for the terminal, as JSON, or as Markdown.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/selfboot/mpdraft/internal/publish"
)

// Formatter writes a formatted batch report to w.
type Formatter interface {
	Format(w io.Writer, r publish.Report) error
}

// New returns the formatter for name: terminal, json or markdown.
func New(name string, color bool) (Formatter, error) {
	switch name {
	case "", "terminal":
		return NewTerminal(color), nil
	case "json":
		return NewJSON(), nil
	case "markdown", "md":
		return NewMarkdown(), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want terminal, json or markdown)", name)
	}
}

func groupByStatus(items []publish.ItemResult) (published, failed, skipped []publish.ItemResult) {
	for _, it := range items {
		switch it.Status {
		case publish.StatusSuccess:
			published = append(published, it)
		case publish.StatusFailed:
			failed = append(failed, it)
		default:
			skipped = append(skipped, it)
		}
	}
	return
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
