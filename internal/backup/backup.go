// Package backup moves a profile's catalog to and from a CineShelf server.
//
// Every operation runs against the active profile session and holds it for its whole
// duration, so a profile switch can never interleave with a backup or a restore. Once a
// restore has a valid document in hand it finishes even if the caller's context is
// cancelled: the safety snapshot and the data swap are never left half done.
package backup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/id"
	"github.com/cineshelfapp/cineshelf/internal/profile"
	"github.com/cineshelfapp/cineshelf/internal/snapshot"
)

// Sessions gives exclusive access to the active profile session. *profile.Manager implements it.
type Sessions interface {
	Do(ctx context.Context, fn func(ctx context.Context, s *profile.Session) error) error
}

// Coordinator runs backups, restores, and imports for the active profile.
type Coordinator struct {
	sessions  Sessions
	transport Transport
	cfg       Config
	logger    *slog.Logger

	now       func() time.Time
	newID     func() string
	newCopyID func() (string, error)
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(sessions Sessions, transport Transport, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	return &Coordinator{
		sessions:  sessions,
		transport: transport,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:     uuid.NewString,
		newCopyID: id.NewCopyID,
	}
}

// Backup uploads the active profile to the first backup endpoint that accepts it.
func (c *Coordinator) Backup(ctx context.Context) (*BackupResult, error) {
	var result *BackupResult
	err := c.sessions.Do(ctx, func(ctx context.Context, s *profile.Session) error {
		user, err := snapshot.Sanitize(s.Profile.Name)
		if err != nil {
			return err
		}

		data := s.Catalog.Data()
		backupID := c.newID()
		doc := snapshot.NewDocument(user, data, backupID, c.now())

		var attempts []Attempt
		for _, endpoint := range c.cfg.BackupEndpoints {
			if err := ctx.Err(); err != nil {
				return err
			}

			actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
			resp, err := c.transport.Push(actx, endpoint, user, doc)
			cancel()
			if err != nil {
				c.logger.Warn("backup endpoint failed", "endpoint", endpoint, "error", err)
				attempts = append(attempts, Attempt{Endpoint: endpoint, Error: err.Error()})
				continue
			}

			result = &BackupResult{
				BackupID:       backupID,
				Endpoint:       endpoint,
				Filename:       resp.Filename,
				User:           user,
				Timestamp:      doc.Timestamp,
				Copies:         len(data.Copies),
				Titles:         len(data.Titles),
				CustomEditions: len(data.CustomEditions),
				Attempts:       attempts,
			}

			rec := domain.BackupRecord{
				BackupID:           backupID,
				Timestamp:          doc.Timestamp,
				ItemCount:          result.Copies,
				TitleCount:         result.Titles,
				CustomEditionCount: result.CustomEditions,
				Endpoint:           endpoint,
				Filename:           resp.Filename,
			}
			if err := s.Catalog.RecordBackup(context.WithoutCancel(ctx), rec); err != nil {
				// The snapshot is on the server; only the local bookkeeping is missing.
				c.logger.Warn("failed to record backup", "backup_id", backupID, "error", err)
			}

			c.logger.Info("backup complete",
				"endpoint", endpoint,
				"file", resp.Filename,
				"copies", result.Copies,
				"titles", result.Titles,
			)
			return nil
		}

		return domainerrors.BackupUnavailable("no backup endpoint accepted the snapshot", attempts)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Restore replaces the active profile with the snapshot the server holds for it.
func (c *Coordinator) Restore(ctx context.Context, opts RestoreOptions) (*RestoreResult, error) {
	var result *RestoreResult
	err := c.sessions.Do(ctx, func(ctx context.Context, s *profile.Session) error {
		user, err := snapshot.Sanitize(s.Profile.Name)
		if err != nil {
			return err
		}

		doc, endpoint, err := c.fetch(ctx, user, opts.File)
		if err != nil {
			return err
		}

		result, err = c.apply(context.WithoutCancel(ctx), s, doc, endpoint)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ImportDocument replaces the active profile with doc, taking the same precautions as Restore.
func (c *Coordinator) ImportDocument(ctx context.Context, doc *snapshot.Document, source string) (*RestoreResult, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	var result *RestoreResult
	err := c.sessions.Do(ctx, func(ctx context.Context, s *profile.Session) error {
		var err error
		result, err = c.apply(context.WithoutCancel(ctx), s, doc, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RestoreSafety puts back the safety snapshot taken before the last restore.
func (c *Coordinator) RestoreSafety(ctx context.Context) (*RestoreResult, error) {
	var result *RestoreResult
	err := c.sessions.Do(ctx, func(ctx context.Context, s *profile.Session) error {
		snap, err := s.Catalog.SafetySnapshot(ctx)
		if err != nil {
			return err
		}

		if err := s.Catalog.Replace(context.WithoutCancel(ctx), snap.Data); err != nil {
			return err
		}
		s.Resolver.Reset()

		c.logger.Info("safety snapshot restored", "snapshot_id", snap.ID, "taken", snap.Timestamp)
		result = &RestoreResult{
			Source:           "safety snapshot",
			SafetySnapshotID: snap.ID,
			Copies:           len(snap.Data.Copies),
			Titles:           len(snap.Data.Titles),
			CustomEditions:   len(snap.Data.CustomEditions),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fetch tries the restore endpoints in order. A not-found answer or an invalid payload
// ends the search; transport failures move on to the next candidate.
func (c *Coordinator) fetch(ctx context.Context, user, file string) (*snapshot.Document, string, error) {
	var attempts []Attempt
	for _, endpoint := range c.cfg.RestoreEndpoints {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		doc, err := c.transport.Pull(actx, endpoint, user, file)
		cancel()
		if err == nil {
			return doc, endpoint, nil
		}

		if isAuthoritative(err) {
			return nil, "", c.missing(err, user, file)
		}

		c.logger.Warn("restore endpoint failed", "endpoint", endpoint, "error", err)
		attempts = append(attempts, Attempt{Endpoint: endpoint, Error: err.Error()})
	}

	return nil, "", domainerrors.BackupUnavailable("no restore endpoint returned a snapshot", attempts)
}

func (c *Coordinator) missing(err error, user, file string) error {
	var m *MissingError
	if !errors.As(err, &m) {
		return err
	}

	switch {
	case file != "":
		return domainerrors.NotFoundf("backup file %q not found", file).
			WithDetails(map[string]string{"file": file})
	case len(m.AvailableBackups) > 0:
		return domainerrors.RestoreConflict("no backup matches this profile; choose one of the available files",
			m.AvailableBackups)
	default:
		return domainerrors.NotFoundf("no backup found for %q", user)
	}
}

// apply swaps doc in for the session's data. The current data is saved as a safety
// snapshot first; if that fails nothing is replaced.
func (c *Coordinator) apply(ctx context.Context, s *profile.Session, doc *snapshot.Document, source string) (*RestoreResult, error) {
	snapID := c.newID()
	if _, err := s.Catalog.SaveSafetySnapshot(ctx, snapID, domain.SafetyReasonBeforeRestore); err != nil {
		return nil, err
	}

	data, repaired, err := Repair(doc, c.now(), c.newCopyID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "repair snapshot")
	}

	if err := s.Catalog.Replace(ctx, data); err != nil {
		return nil, err
	}
	s.Resolver.Reset()

	result := &RestoreResult{
		Source:           source,
		SafetySnapshotID: snapID,
		Repaired:         repaired,
		Copies:           len(data.Copies),
		Titles:           len(data.Titles),
		CustomEditions:   len(data.CustomEditions),
		Metadata:         doc.RestoreMetadata,
	}
	if doc.RestoreMetadata != nil {
		result.Filename = doc.RestoreMetadata.FilenameUsed
	}

	c.logger.Info("profile restored",
		"profile", s.Profile.Name,
		"source", source,
		"copies", result.Copies,
		"titles", result.Titles,
		"repaired", repaired,
	)
	return result, nil
}
