package report

import (
	"encoding/json"
	"io"

	"github.com/selfboot/mpdraft/internal/publish"
)

type jsonReport struct {
	Meta     jsonMeta             `json:"meta"`
	MediaIDs []string             `json:"media_ids"`
	Items    []publish.ItemResult `json:"items"`
}

type jsonMeta struct {
	RunID     string          `json:"run_id"`
	StartedAt string          `json:"started_at"`
	Duration  string          `json:"duration"`
	DryRun    bool            `json:"dry_run"`
	Summary   publish.Summary `json:"summary"`
}

// JSONFormatter formats a report as JSON.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes the report as JSON to w.
func (f *JSONFormatter) Format(w io.Writer, r publish.Report) error {
	items := r.Items
	if items == nil {
		items = []publish.ItemResult{}
	}
	out := jsonReport{
		Meta: jsonMeta{
			RunID:     r.RunID,
			StartedAt: r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Duration:  formatDuration(r.Duration),
			DryRun:    r.DryRun,
			Summary:   r.Summary(),
		},
		MediaIDs: r.MediaIDs(),
		Items:    items,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
