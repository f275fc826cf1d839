package report

import (
	"fmt"
	"io"

	"github.com/selfboot/mpdraft/internal/publish"
)

// TerminalFormatter formats a report for terminal output.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

// Format writes the report to w grouped by outcome.
func (f *TerminalFormatter) Format(w io.Writer, r publish.Report) error {
	published, failed, skipped := groupByStatus(r.Items)

	header := fmt.Sprintf("mpdraft run %s — %d articles in %s", shortRunID(r.RunID), len(r.Items), formatDuration(r.Duration))
	if r.DryRun {
		header += " (dry run)"
	}
	fmt.Fprintln(w, f.bold(header))
	fmt.Fprintln(w)

	if len(r.Items) == 0 {
		fmt.Fprintln(w, "Nothing published.")
		return nil
	}

	if len(published) > 0 {
		fmt.Fprintln(w, f.green(f.bold(fmt.Sprintf("--- Drafts (%d) ---", len(published)))))
		fmt.Fprintln(w)
		for _, it := range published {
			fmt.Fprintf(w, "  %s %s\n", f.bold(it.MediaID), it.Title)
			fmt.Fprintf(w, "      %s\n", f.dim(it.SourceURL))
			if len(it.Images) > 0 {
				fmt.Fprintf(w, "      %s\n", f.dim(fmt.Sprintf("images: %d/%d rehosted", it.RehostedImages(), len(it.Images))))
			}
		}
		fmt.Fprintln(w)
	}

	if len(failed) > 0 {
		fmt.Fprintln(w, f.red(f.bold(fmt.Sprintf("--- Failed (%d) ---", len(failed)))))
		fmt.Fprintln(w)
		for _, it := range failed {
			fmt.Fprintf(w, "  %s [%s] %s\n", it.Identifier, it.Stage, it.Error)
		}
		fmt.Fprintln(w)
	}

	if len(skipped) > 0 {
		fmt.Fprintln(w, f.yellow(f.bold(fmt.Sprintf("--- Skipped (%d) ---", len(skipped)))))
		fmt.Fprintln(w)
		for _, it := range skipped {
			fmt.Fprintf(w, "  %s %s\n", it.Identifier, f.dim(it.Reason))
		}
		fmt.Fprintln(w)
	}

	s := r.Summary()
	fmt.Fprintln(w, f.dim(fmt.Sprintf("%d published, %d failed, %d skipped", s.Succeeded, s.Failed, s.Skipped)))
	return nil
}

// ANSI helpers, no-op when color=false.

func (f *TerminalFormatter) wrap(code, s string) string {
	if !f.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (f *TerminalFormatter) bold(s string) string   { return f.wrap("1", s) }
func (f *TerminalFormatter) red(s string) string    { return f.wrap("31", s) }
func (f *TerminalFormatter) green(s string) string  { return f.wrap("32", s) }
func (f *TerminalFormatter) yellow(s string) string { return f.wrap("33", s) }
func (f *TerminalFormatter) dim(s string) string    { return f.wrap("2", s) }
