package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cineshelfapp/cineshelf/internal/store"
)

// SnapshotRow is one stored snapshot blob. Body is empty in listings.
type SnapshotRow struct {
	Filename string
	UserPart string
	Body     []byte
	Size     int64
	Modified time.Time
}

// PutSnapshot stores row, replacing any blob with the same filename.
func (s *Store) PutSnapshot(ctx context.Context, row *SnapshotRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (filename, user_part, body, size, modified_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			user_part = excluded.user_part,
			body = excluded.body,
			size = excluded.size,
			modified_at = excluded.modified_at`,
		row.Filename,
		row.UserPart,
		row.Body,
		len(row.Body),
		formatTime(row.Modified),
	)
	return err
}

// GetSnapshot retrieves a blob by filename.
// Returns store.ErrNotFound if there is none.
func (s *Store) GetSnapshot(ctx context.Context, filename string) (*SnapshotRow, error) {
	var row SnapshotRow
	var modified string

	err := s.db.QueryRowContext(ctx,
		`SELECT filename, user_part, body, size, modified_at FROM snapshots WHERE filename = ?`, filename,
	).Scan(&row.Filename, &row.UserPart, &row.Body, &row.Size, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	row.Modified, err = parseTime(modified)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListSnapshots returns every blob without its body, newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]SnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, user_part, size, modified_at FROM snapshots ORDER BY modified_at DESC, filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var row SnapshotRow
		var modified string
		if err := rows.Scan(&row.Filename, &row.UserPart, &row.Size, &modified); err != nil {
			return nil, err
		}
		if row.Modified, err = parseTime(modified); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
