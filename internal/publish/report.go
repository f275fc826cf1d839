package publish

import (
	"time"

	"github.com/selfboot/mpdraft/internal/rehost"
)

// Status is the outcome of one batch item.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Stage names the pipeline step an item failed or stopped at.
type Stage string

const (
	StageLocate Stage = "locate"
	StageAdapt  Stage = "adapt"
	StageAuth   Stage = "auth"
	StageRehost Stage = "rehost"
	StageSubmit Stage = "submit"
	StageCancel Stage = "cancel"
)

// ItemResult is the outcome for one identifier.
type ItemResult struct {
	Identifier   string               `json:"identifier"`
	Status       Status               `json:"status"`
	MediaID      string               `json:"media_id,omitempty"`
	Title        string               `json:"title,omitempty"`
	SourceURL    string               `json:"source_url,omitempty"`
	ThumbMediaID string               `json:"thumb_media_id,omitempty"`
	Stage        Stage                `json:"stage,omitempty"`
	Error        string               `json:"error,omitempty"`
	Reason       string               `json:"reason,omitempty"`
	Images       []rehost.ImageResult `json:"images,omitempty"`
	Duration     time.Duration        `json:"duration_ns"`

	Err     error  `json:"-"`
	Content string `json:"-"` // adapted HTML before image rehosting
}

// RehostedImages counts images moved to the platform.
func (r ItemResult) RehostedImages() int {
	n := 0
	for _, img := range r.Images {
		if img.Status == rehost.StatusRehosted {
			n++
		}
	}
	return n
}

// Report summarizes one batch run.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	DryRun    bool          `json:"dry_run,omitempty"`
	Items     []ItemResult  `json:"items"`
}

// Summary holds per-status counts.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// MediaIDs returns the draft ids of successful items in input order.
func (r Report) MediaIDs() []string {
	ids := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		if it.Status == StatusSuccess {
			ids = append(ids, it.MediaID)
		}
	}
	return ids
}

func (r Report) Summary() Summary {
	s := Summary{Total: len(r.Items)}
	for _, it := range r.Items {
		switch it.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// HasFailures reports whether any item failed.
func (r Report) HasFailures() bool {
	return r.Summary().Failed > 0
}
