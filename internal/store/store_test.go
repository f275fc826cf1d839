package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "mpdraft.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

func beginTestRun(t *testing.T, st *Store, id string, at time.Time) {
	t.Helper()
	if err := st.BeginRun(context.Background(), id, at); err != nil {
		t.Fatalf("begin run: %v", err)
	}
}

func TestOpenAndMigrate(t *testing.T) {
	st, path := openTestStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	var version string
	if err := st.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("unexpected schema version: %s", version)
	}
}

func TestOpen_Reopen(t *testing.T) {
	st, path := openTestStore(t)
	beginTestRun(t, st, "run-1", time.Now())
	_ = st.Close()

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = again.Close() }()

	stats, err := again.GetRunStats(context.Background(), time.Time{}, 0)
	if err != nil {
		t.Fatalf("run stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("runs after reopen = %d, want 1", len(stats))
	}
}

func TestOpen_NewerSchemaRejected(t *testing.T) {
	st, path := openTestStore(t)
	if _, err := st.db.Exec("UPDATE metadata SET value = '99' WHERE key = 'schema_version'"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = st.Close()

	if _, err := Open(path); err == nil || !strings.Contains(err.Error(), "newer") {
		t.Fatalf("error = %v, want newer schema error", err)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestNilStore(t *testing.T) {
	var st *Store
	ctx := context.Background()
	if err := st.Close(); err != nil {
		t.Errorf("close nil store: %v", err)
	}
	if err := st.BeginRun(ctx, "r", time.Now()); err == nil {
		t.Error("expected error from nil store")
	}
	if _, _, err := st.LastPublished(ctx, "x"); err == nil {
		t.Error("expected error from nil store")
	}
}

func TestRecordDraftAndLastPublished(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	beginTestRun(t, st, "run-1", base)
	rec, err := st.RecordDraft(ctx, DraftInput{
		RunID:          "run-1",
		Identifier:     "2024-01-01-post-a",
		Title:          "Post A",
		SourceURL:      "https://selfboot.cn/2024/01/01/post-a/",
		MediaID:        "media-1",
		Status:         StatusSuccess,
		Content:        "<p>a</p>",
		ImagesTotal:    3,
		ImagesRehosted: 2,
		RecordedAt:     base.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("record draft: %v", err)
	}
	if rec.ID == 0 || rec.MediaID != "media-1" || rec.ImagesRehosted != 2 {
		t.Errorf("record = %+v", rec)
	}
	if rec.ContentHash != ContentHash("<p>a</p>") {
		t.Errorf("content hash = %q", rec.ContentHash)
	}
	if !rec.RecordedAt.Equal(base.Add(time.Second)) {
		t.Errorf("recorded_at = %v", rec.RecordedAt)
	}

	beginTestRun(t, st, "run-2", base.Add(time.Hour))
	if _, err := st.RecordDraft(ctx, DraftInput{
		RunID:      "run-2",
		Identifier: "2024-01-01-post-a",
		Status:     StatusFailed,
		Stage:      "submit",
		Error:      "create draft: errcode 40007: invalid media_id",
		RecordedAt: base.Add(time.Hour),
	}); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	got, ok, err := st.LastPublished(ctx, "2024-01-01-post-a")
	if err != nil || !ok {
		t.Fatalf("last published = %v, %v", ok, err)
	}
	if got.MediaID != "media-1" || got.RunID != "run-1" {
		t.Errorf("last published = %+v, want the earlier success", got)
	}

	_, ok, err = st.LastPublished(ctx, "2024-01-02-never")
	if err != nil || ok {
		t.Errorf("never published = %v, %v", ok, err)
	}
}

func TestRecordDraft_Validation(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	beginTestRun(t, st, "run-1", now)

	tests := []struct {
		name string
		in   DraftInput
	}{
		{"missing run", DraftInput{Identifier: "a", Status: StatusFailed, RecordedAt: now}},
		{"missing identifier", DraftInput{RunID: "run-1", Status: StatusFailed, RecordedAt: now}},
		{"bad status", DraftInput{RunID: "run-1", Identifier: "a", Status: "done", RecordedAt: now}},
		{"success without media id", DraftInput{RunID: "run-1", Identifier: "a", Status: StatusSuccess, RecordedAt: now}},
		{"missing time", DraftInput{RunID: "run-1", Identifier: "a", Status: StatusFailed}},
		{"unknown run", DraftInput{RunID: "nope", Identifier: "a", Status: StatusFailed, RecordedAt: now}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := st.RecordDraft(ctx, tt.in); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHistory(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	beginTestRun(t, st, "run-1", base)

	inputs := []DraftInput{
		{Identifier: "2024-01-01-a", Status: StatusSuccess, MediaID: "m-a"},
		{Identifier: "2024-01-02-b", Status: StatusFailed, Stage: "locate"},
		{Identifier: "2024-01-03-c", Status: StatusSkipped},
	}
	for i, in := range inputs {
		in.RunID = "run-1"
		in.RecordedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := st.RecordDraft(ctx, in); err != nil {
			t.Fatalf("record %s: %v", in.Identifier, err)
		}
	}

	all, err := st.History(ctx, HistoryFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(all) != 3 || all[0].Identifier != "2024-01-03-c" {
		t.Fatalf("history = %+v, want newest first", all)
	}

	limited, _ := st.History(ctx, HistoryFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}

	failed, _ := st.History(ctx, HistoryFilter{Status: StatusFailed})
	if len(failed) != 1 || failed[0].Stage != "locate" {
		t.Errorf("failed = %+v", failed)
	}

	one, _ := st.History(ctx, HistoryFilter{Identifier: "2024-01-01-a"})
	if len(one) != 1 || one[0].MediaID != "m-a" {
		t.Errorf("by identifier = %+v", one)
	}
}

func TestGetRunStats(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	beginTestRun(t, st, "old", base.Add(-48*time.Hour))
	beginTestRun(t, st, "new", base)
	for _, in := range []DraftInput{
		{Identifier: "a", Status: StatusSuccess, MediaID: "m"},
		{Identifier: "b", Status: StatusFailed},
		{Identifier: "c", Status: StatusFailed},
		{Identifier: "d", Status: StatusSkipped},
	} {
		in.RunID = "new"
		in.RecordedAt = base
		if _, err := st.RecordDraft(ctx, in); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := st.FinishRun(ctx, "new", base.Add(time.Minute)); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	if err := st.FinishRun(ctx, "missing", base); err == nil {
		t.Error("expected error finishing an unknown run")
	}

	stats, err := st.GetRunStats(ctx, base.Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("run stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("stats = %+v, want only the recent run", stats)
	}
	rs := stats[0]
	if rs.ID != "new" || rs.Total != 4 || rs.Succeeded != 1 || rs.Failed != 2 || rs.Skipped != 1 {
		t.Errorf("stats = %+v", rs)
	}
	if !rs.FinishedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("finished_at = %v", rs.FinishedAt)
	}

	all, _ := st.GetRunStats(ctx, time.Time{}, 0)
	if len(all) != 2 || all[1].Total != 0 || !all[1].FinishedAt.IsZero() {
		t.Errorf("all runs = %+v", all)
	}
}

func TestPruneOld(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	beginTestRun(t, st, "ancient", now.AddDate(0, 0, -400))
	beginTestRun(t, st, "recent", now.AddDate(0, 0, -1))
	for _, run := range []string{"ancient", "recent"} {
		if _, err := st.RecordDraft(ctx, DraftInput{RunID: run, Identifier: "x-" + run, Status: StatusSkipped, RecordedAt: now}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if n, err := st.PruneOld(ctx, 0); err != nil || n != 0 {
		t.Errorf("prune disabled = %d, %v", n, err)
	}

	n, err := st.PruneOld(ctx, 180)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	records, _ := st.History(ctx, HistoryFilter{})
	if len(records) != 1 || records[0].RunID != "recent" {
		t.Errorf("records after prune = %+v, want cascade delete", records)
	}
}
