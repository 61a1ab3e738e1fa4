package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/store/sqlite"
)

// BlobStore is the blob table used by SQLiteRepository. *sqlite.Store implements it.
type BlobStore interface {
	PutSnapshot(ctx context.Context, row *sqlite.SnapshotRow) error
	GetSnapshot(ctx context.Context, filename string) (*sqlite.SnapshotRow, error)
	ListSnapshots(ctx context.Context) ([]sqlite.SnapshotRow, error)
}

// SQLiteRepository stores snapshots as rows of the server database.
// Blob names and lookup rules are the same as FSRepository's.
type SQLiteRepository struct {
	blobs  BlobStore
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteRepository creates a repository over blobs.
func NewSQLiteRepository(blobs BlobStore, logger *slog.Logger) *SQLiteRepository {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("snapshot repository opened", "backend", "sqlite")
	return &SQLiteRepository{blobs: blobs, logger: logger, now: time.Now}
}

// Put implements Repository.
func (r *SQLiteRepository) Put(ctx context.Context, identifier string, doc *Document) (*PutResult, error) {
	id, err := Sanitize(identifier)
	if err != nil {
		return nil, err
	}

	now := r.now()
	annotate(doc, id, now)

	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		return nil, err
	}

	name := Filename(id)
	row := &sqlite.SnapshotRow{
		Filename: name,
		UserPart: id,
		Body:     buf.Bytes(),
		Modified: now,
	}
	if err := r.blobs.PutSnapshot(ctx, row); err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}

	r.logger.Info("snapshot stored", "user", id, "file", name, "bytes", buf.Len())
	return &PutResult{Filename: name, User: id, Timestamp: now}, nil
}

// Get implements Repository.
func (r *SQLiteRepository) Get(ctx context.Context, identifier, exactKey string) (*Lookup, error) {
	id, err := Sanitize(identifier)
	if err != nil {
		return nil, err
	}

	if exactKey != "" {
		name, err := exactBlobName(exactKey)
		if err != nil {
			return nil, err
		}
		doc, err := r.read(ctx, name)
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFoundf("backup file %q not found", exactKey).
				WithDetails(map[string]string{"file": exactKey})
		}
		if err != nil {
			return nil, err
		}
		doc.RestoreMetadata = restoreMetadata(name, id, true, r.now())
		return &Lookup{Document: doc, Filename: name}, nil
	}

	infos, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := selectBlob(infos, id)
	if !ok {
		return &Lookup{Available: infos}, nil
	}

	doc, err := r.read(ctx, info.Filename)
	if err != nil {
		return nil, err
	}
	doc.RestoreMetadata = restoreMetadata(info.Filename, id, false, r.now())
	return &Lookup{Document: doc, Filename: info.Filename}, nil
}

// List implements Repository.
func (r *SQLiteRepository) List(ctx context.Context) ([]BackupInfo, error) {
	rows, err := r.blobs.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	infos := make([]BackupInfo, len(rows))
	for i, row := range rows {
		infos[i] = BackupInfo{
			Filename: row.Filename,
			UserPart: row.UserPart,
			Modified: row.Modified,
			Size:     row.Size,
		}
	}
	sortNewestFirst(infos)
	return infos, nil
}

func (r *SQLiteRepository) read(ctx context.Context, name string) (*Document, error) {
	row, err := r.blobs.GetSnapshot(ctx, name)
	if err != nil {
		return nil, err
	}
	doc, err := DecodeBytes(row.Body)
	if err != nil {
		return nil, corrupt(name, err)
	}
	return doc, nil
}
