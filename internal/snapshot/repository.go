package snapshot

import (
	"cmp"
	"context"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
)

// Repository stores snapshots keyed by sanitized identifier.
type Repository interface {
	// Put stores doc as the snapshot of identifier, replacing any previous one.
	Put(ctx context.Context, identifier string, doc *Document) (*PutResult, error)

	// Get finds the snapshot for identifier. With exactKey set only that blob is
	// considered. Otherwise the exact identifier wins, then the newest blob whose
	// identifier contains it. When nothing matches, the result has no Document and
	// lists every stored blob.
	Get(ctx context.Context, identifier, exactKey string) (*Lookup, error)

	// List returns every stored blob, newest first.
	List(ctx context.Context) ([]BackupInfo, error)
}

// BackupInfo describes one stored blob.
type BackupInfo struct {
	Filename string    `json:"filename"`
	UserPart string    `json:"userPart"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
}

// PutResult reports where a snapshot was stored.
type PutResult struct {
	Filename  string    `json:"filename"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// Lookup is the result of Get. Document is nil when nothing matched.
type Lookup struct {
	Document  *Document
	Filename  string
	Available []BackupInfo
}

// Found reports whether a document was retrieved.
func (l *Lookup) Found() bool {
	return l.Document != nil
}

// annotate sets the fields the server owns on a stored document.
func annotate(doc *Document, identifier string, now time.Time) {
	if doc.User == "" {
		doc.User = identifier
	}
	if doc.FormatVersion == "" {
		doc.FormatVersion = FormatVersion
	}
	doc.BackupLabel = "Backup for " + identifier
	doc.BackupTime = now
	doc.ServerVersion = ServerVersion
	doc.FilenameCreated = Filename(identifier)
	doc.RestoreMetadata = nil
}

// exactBlobName reduces a client supplied file name to a blob name in the repository.
// Directory components are dropped.
func exactBlobName(exactKey string) (string, error) {
	name := path.Base(filepath.ToSlash(strings.TrimSpace(exactKey)))
	if UserPart(name) == "" {
		return "", domainerrors.NotFoundf("backup file %q not found", exactKey).
			WithDetails(map[string]string{"file": exactKey})
	}
	return name, nil
}

// selectBlob picks the blob to restore for identifier among infos.
func selectBlob(infos []BackupInfo, identifier string) (BackupInfo, bool) {
	exact := Filename(identifier)
	for _, info := range infos {
		if info.Filename == exact {
			return info, true
		}
	}

	var matches []BackupInfo
	for _, info := range infos {
		if strings.Contains(info.UserPart, identifier) {
			matches = append(matches, info)
		}
	}
	if len(matches) == 0 {
		return BackupInfo{}, false
	}
	sortNewestFirst(matches)
	return matches[0], true
}

func sortNewestFirst(infos []BackupInfo) {
	slices.SortStableFunc(infos, func(a, b BackupInfo) int {
		if c := b.Modified.Compare(a.Modified); c != 0 {
			return c
		}
		return cmp.Compare(a.Filename, b.Filename)
	})
}

func restoreMetadata(filename, identifier string, forced bool, now time.Time) *RestoreMetadata {
	return &RestoreMetadata{
		FilenameUsed:  filename,
		RestoredAt:    now,
		UserRequested: identifier,
		FileForced:    forced,
	}
}

// corrupt reports a stored blob that no longer decodes.
func corrupt(filename string, err error) error {
	return domainerrors.Wrapf(err, domainerrors.CodeInternal, "backup file %s contains invalid JSON", filename)
}
