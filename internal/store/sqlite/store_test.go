package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	"github.com/cineshelfapp/cineshelf/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	// Verify WAL mode is set.
	var journalMode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s2.Close()
}

func TestUpsertTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	title := &domain.Title{
		ExternalID: "tt0113277",
		Name:       "Heat",
		Year:       1995,
		Rating:     8.3,
		Director:   "Michael Mann",
	}
	created, err := s.UpsertTitle(ctx, title, now)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !created {
		t.Error("expected first upsert to create")
	}

	title.Plot = "A group of professional bank robbers."
	created, err = s.UpsertTitle(ctx, title, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Error("expected second upsert to update")
	}

	got, err := s.GetTitle(ctx, "tt0113277")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Plot != title.Plot || got.Director != "Michael Mann" || got.Year != 1995 {
		t.Errorf("unexpected title: %+v", got)
	}
	if got.PosterURL != "" {
		t.Errorf("expected empty poster url, got %q", got.PosterURL)
	}

	n, err := s.CountTitles(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 title, got %d", n)
	}
}

func TestGetTitle_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetTitle(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindTitleByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.UpsertTitle(ctx, &domain.Title{ExternalID: "a", Name: "Solaris", Year: 1972}, now); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertTitle(ctx, &domain.Title{ExternalID: "b", Name: "SOLARIS", Year: 2002}, now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindTitleByName(ctx, "  solaris ")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ExternalID != "b" {
		t.Errorf("expected most recent match b, got %s", got.ExternalID)
	}

	if _, err := s.FindTitleByName(ctx, "Stalker"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	titles, err := s.ListTitles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(titles) != 2 || titles[0].ExternalID != "a" {
		t.Errorf("unexpected list: %+v", titles)
	}
}

func TestSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rows := []SnapshotRow{
		{Filename: "cineshelf_backup_a.json", UserPart: "a", Body: []byte(`{"a":1}`), Modified: base},
		{Filename: "cineshelf_backup_b.json", UserPart: "b", Body: []byte(`{"b":2}`), Modified: base.Add(time.Hour)},
	}
	for i := range rows {
		if err := s.PutSnapshot(ctx, &rows[i]); err != nil {
			t.Fatalf("put %s: %v", rows[i].Filename, err)
		}
	}

	// Overwrite a with a newer body.
	rows[0].Body = []byte(`{"a":2,"more":true}`)
	rows[0].Modified = base.Add(2 * time.Hour)
	if err := s.PutSnapshot(ctx, &rows[0]); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.GetSnapshot(ctx, "cineshelf_backup_a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Body) != `{"a":2,"more":true}` {
		t.Errorf("unexpected body %s", got.Body)
	}
	if got.Size != int64(len(rows[0].Body)) {
		t.Errorf("expected size %d, got %d", len(rows[0].Body), got.Size)
	}
	if !got.Modified.Equal(rows[0].Modified) {
		t.Errorf("expected modified %v, got %v", rows[0].Modified, got.Modified)
	}

	list, err := s.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(list))
	}
	if list[0].UserPart != "a" || list[1].UserPart != "b" {
		t.Errorf("expected newest first, got %s then %s", list[0].UserPart, list[1].UserPart)
	}
	if list[0].Body != nil {
		t.Error("listing should not load bodies")
	}

	if _, err := s.GetSnapshot(ctx, "cineshelf_backup_zzz.json"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
