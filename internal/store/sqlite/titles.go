package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	"github.com/cineshelfapp/cineshelf/internal/normalize"
	"github.com/cineshelfapp/cineshelf/internal/store"
)

// titleColumns is the ordered list of columns selected in title queries.
// Must match the scan order in scanTitle.
const titleColumns = `external_id, name, year, rating, poster_url, plot, director, genre, runtime`

func scanTitle(scanner interface{ Scan(dest ...any) error }) (*domain.Title, error) {
	var t domain.Title
	var posterURL, plot, director, genre, runtime sql.NullString

	err := scanner.Scan(
		&t.ExternalID,
		&t.Name,
		&t.Year,
		&t.Rating,
		&posterURL,
		&plot,
		&director,
		&genre,
		&runtime,
	)
	if err != nil {
		return nil, err
	}

	t.PosterURL = posterURL.String
	t.Plot = plot.String
	t.Director = director.String
	t.Genre = genre.String
	t.Runtime = runtime.String
	return &t, nil
}

// UpsertTitle inserts t or replaces the stored title with the same external id.
// It reports whether the title was new.
func (s *Store) UpsertTitle(ctx context.Context, t *domain.Title, now time.Time) (created bool, err error) {
	var existing int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM titles WHERE external_id = ?`, t.ExternalID).Scan(&existing)
	if err != nil {
		return false, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO titles (
			external_id, name, name_folded, year, rating, poster_url, plot, director, genre, runtime,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			name = excluded.name,
			name_folded = excluded.name_folded,
			year = excluded.year,
			rating = excluded.rating,
			poster_url = excluded.poster_url,
			plot = excluded.plot,
			director = excluded.director,
			genre = excluded.genre,
			runtime = excluded.runtime,
			updated_at = excluded.updated_at`,
		t.ExternalID,
		t.Name,
		normalize.Fold(t.Name),
		t.Year,
		t.Rating,
		nullString(t.PosterURL),
		nullString(t.Plot),
		nullString(t.Director),
		nullString(t.Genre),
		nullString(t.Runtime),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return false, err
	}
	return existing == 0, nil
}

// GetTitle retrieves a title by external id.
// Returns store.ErrNotFound if the title does not exist.
func (s *Store) GetTitle(ctx context.Context, externalID string) (*domain.Title, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE external_id = ?`, externalID)

	t, err := scanTitle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FindTitleByName returns the most recently updated title whose name equals name
// case-insensitively. Returns store.ErrNotFound when there is none.
func (s *Store) FindTitleByName(ctx context.Context, name string) (*domain.Title, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE name_folded = ? ORDER BY updated_at DESC LIMIT 1`,
		normalize.Fold(name))

	t, err := scanTitle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTitles returns every title ordered by external id.
func (s *Store) ListTitles(ctx context.Context) ([]domain.Title, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+titleColumns+` FROM titles ORDER BY external_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []domain.Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, err
		}
		titles = append(titles, *t)
	}
	return titles, rows.Err()
}

// CountTitles returns the number of stored titles.
func (s *Store) CountTitles(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM titles`).Scan(&n)
	return n, err
}
