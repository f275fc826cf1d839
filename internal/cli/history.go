package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/selfboot/mpdraft/internal/config"
	"github.com/selfboot/mpdraft/internal/site"
	"github.com/selfboot/mpdraft/internal/store"
)

var (
	historySince  string
	historyFormat string
	historyLimit  int
	historyStatus string
)

var historyCmd = &cobra.Command{
	Use:   "history [identifier]",
	Short: "Show recorded publish runs and draft outcomes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  historyAction,
}

func init() {
	historyCmd.Flags().StringVar(&historySince, "since", "30d", "time window (e.g. 7d, 48h)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "terminal", "output format: terminal, json")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of articles to list")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "only articles with this status: success, failed, skipped")
	rootCmd.AddCommand(historyCmd)
}

func historyAction(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Storage.Enabled {
		fmt.Println("History is disabled. Set storage.enabled: true in config.yaml.")
		return nil
	}

	sinceDur, err := parseDuration(historySince)
	if err != nil {
		return fmt.Errorf("parse --since: %w", err)
	}
	sinceTime := time.Now().Add(-sinceDur)

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx := cmd.Context()

	filter := store.HistoryFilter{Status: historyStatus, Limit: historyLimit}
	if len(args) == 1 {
		filter.Identifier = site.Normalize(args[0])
	}

	runs, err := db.GetRunStats(ctx, sinceTime, 0)
	if err != nil {
		return fmt.Errorf("get runs: %w", err)
	}
	records, err := db.History(ctx, filter)
	if err != nil {
		return err
	}
	records = recordedSince(records, sinceTime)

	switch historyFormat {
	case "json":
		return printHistoryJSON(os.Stdout, runs, records)
	case "terminal", "":
		if len(runs) == 0 && len(records) == 0 {
			fmt.Println("No history yet. Run 'mpdraft publish' first.")
			return nil
		}
		printHistory(os.Stdout, runs, records, sinceDur)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", historyFormat)
	}
}

func recordedSince(records []store.DraftRecord, since time.Time) []store.DraftRecord {
	out := records[:0]
	for _, rec := range records {
		if !rec.RecordedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out
}

type jsonHistoryOutput struct {
	Runs     []jsonRun   `json:"runs"`
	Articles []jsonDraft `json:"articles"`
}

type jsonRun struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
}

type jsonDraft struct {
	RunID          string    `json:"run_id"`
	Identifier     string    `json:"identifier"`
	Title          string    `json:"title,omitempty"`
	Status         string    `json:"status"`
	MediaID        string    `json:"media_id,omitempty"`
	Stage          string    `json:"stage,omitempty"`
	Error          string    `json:"error,omitempty"`
	ImagesTotal    int       `json:"images_total"`
	ImagesRehosted int       `json:"images_rehosted"`
	RecordedAt     time.Time `json:"recorded_at"`
}

func printHistoryJSON(w io.Writer, runs []store.RunStats, records []store.DraftRecord) error {
	out := jsonHistoryOutput{
		Runs:     make([]jsonRun, 0, len(runs)),
		Articles: make([]jsonDraft, 0, len(records)),
	}
	for _, rs := range runs {
		jr := jsonRun{
			ID:        rs.ID,
			StartedAt: rs.StartedAt,
			Total:     rs.Total,
			Succeeded: rs.Succeeded,
			Failed:    rs.Failed,
			Skipped:   rs.Skipped,
		}
		if !rs.FinishedAt.IsZero() {
			finished := rs.FinishedAt
			jr.FinishedAt = &finished
		}
		out.Runs = append(out.Runs, jr)
	}
	for _, rec := range records {
		out.Articles = append(out.Articles, jsonDraft{
			RunID:          rec.RunID,
			Identifier:     rec.Identifier,
			Title:          rec.Title,
			Status:         rec.Status,
			MediaID:        rec.MediaID,
			Stage:          rec.Stage,
			Error:          rec.Error,
			ImagesTotal:    rec.ImagesTotal,
			ImagesRehosted: rec.ImagesRehosted,
			RecordedAt:     rec.RecordedAt,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printHistory(w io.Writer, runs []store.RunStats, records []store.DraftRecord, since time.Duration) {
	total, succeeded := 0, 0
	for _, rs := range runs {
		total += rs.Total
		succeeded += rs.Succeeded
	}
	fmt.Fprintf(w, "mpdraft history — %s, %d runs, %d drafts created\n\n", formatHistoryDuration(since), len(runs), succeeded)

	if len(runs) > 0 {
		fmt.Fprintln(w, "--- Runs ---")
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %-8s  %-16s  %8s  %7s  %6s  %7s  %s\n", "Run", "Started", "Articles", "Drafts", "Failed", "Skipped", "Took")
		for _, rs := range runs {
			took := "-"
			if !rs.FinishedAt.IsZero() {
				took = rs.FinishedAt.Sub(rs.StartedAt).Round(time.Second).String()
			}
			fmt.Fprintf(w, "  %-8s  %-16s  %8d  %7d  %6d  %7d  %s\n",
				shortID(rs.ID), humanize.Time(rs.StartedAt), rs.Total, rs.Succeeded, rs.Failed, rs.Skipped, took)
		}
		fmt.Fprintln(w)
	}

	if len(records) > 0 {
		fmt.Fprintln(w, "--- Articles ---")
		fmt.Fprintln(w)

		maxID := 10
		for _, rec := range records {
			if len(rec.Identifier) > maxID {
				maxID = len(rec.Identifier)
			}
		}
		if maxID > 48 {
			maxID = 48
		}

		for _, rec := range records {
			id := rec.Identifier
			if len(id) > maxID {
				id = id[:maxID-1] + "…"
			}
			detail := rec.MediaID
			switch rec.Status {
			case store.StatusFailed:
				detail = fmt.Sprintf("[%s] %s", rec.Stage, rec.Error)
			case store.StatusSkipped:
				detail = "-"
			}
			fmt.Fprintf(w, "  %-*s  %-7s  %-14s  %s\n", maxID, id, rec.Status, humanize.Time(rec.RecordedAt), detail)
		}
		fmt.Fprintln(w)
	}

	if total > 0 {
		fmt.Fprintf(w, "  Success rate: %.1f%% of %d articles\n", pct(succeeded, total), total)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// parseDuration handles both Go durations and "Nd" day notation.
func parseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func formatHistoryDuration(d time.Duration) string {
	hours := int(d.Hours())
	if hours >= 24 && hours%24 == 0 {
		return fmt.Sprintf("%d days", hours/24)
	}
	return fmt.Sprintf("%dh", hours)
}
