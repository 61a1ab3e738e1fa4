package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/cineshelfapp/cineshelf/internal/domain"
)

// LoadProfile reads the catalog content of namespace ns.
// A namespace that was never written yields empty data.
func (s *Store) LoadProfile(ctx context.Context, ns string) (*domain.ProfileData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := &domain.ProfileData{
		Copies:         []domain.Copy{},
		Titles:         []domain.Title{},
		CustomEditions: []string{},
	}

	err := s.db.View(func(txn *badger.Txn) error {
		parts := []struct {
			suffix string
			dest   any
		}{
			{suffixCopies, &data.Copies},
			{suffixTitles, &data.Titles},
			{suffixEditions, &data.CustomEditions},
		}
		for _, p := range parts {
			key := profileKey(ns, p.suffix)
			err := getJSON(txn, key, p.dest)
			releaseKey(key)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", ns, err)
	}

	return data, nil
}

// SaveProfile writes copies, titles, and custom editions of ns in one transaction.
func (s *Store) SaveProfile(ctx context.Context, ns string, data *domain.ProfileData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, profileKey(ns, suffixCopies), data.Copies); err != nil {
			return err
		}
		if err := setJSON(txn, profileKey(ns, suffixTitles), data.Titles); err != nil {
			return err
		}
		return setJSON(txn, profileKey(ns, suffixEditions), data.CustomEditions)
	})
	if err != nil {
		return fmt.Errorf("save profile %q: %w", ns, err)
	}

	s.logger.Debug("profile saved",
		"profile", ns,
		"copies", len(data.Copies),
		"titles", len(data.Titles),
		"custom_editions", len(data.CustomEditions),
	)
	return nil
}

// PurgeProfile deletes every key of namespace ns.
func (s *Store) PurgeProfile(ctx context.Context, ns string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := profileScope(ns)
	var keys [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan profile %q: %w", ns, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("purge profile %q: %w", ns, err)
	}

	s.logger.Info("profile purged", "profile", ns, "keys", len(keys))
	return nil
}

// SaveSafetySnapshot stores the single safety snapshot of ns, replacing the previous one.
func (s *Store) SaveSafetySnapshot(ctx context.Context, ns string, snap *domain.SafetySnapshot) error {
	return NewDocument[domain.SafetySnapshot](s, profilePrefix+ns+suffixSafetyBackup).Put(ctx, snap)
}

// SafetySnapshot returns the safety snapshot of ns, or ErrNotFound.
func (s *Store) SafetySnapshot(ctx context.Context, ns string) (*domain.SafetySnapshot, error) {
	return NewDocument[domain.SafetySnapshot](s, profilePrefix+ns+suffixSafetyBackup).Get(ctx)
}

// SaveLastBackup records the last successful backup of ns.
func (s *Store) SaveLastBackup(ctx context.Context, ns string, rec *domain.BackupRecord) error {
	return NewDocument[domain.BackupRecord](s, profilePrefix+ns+suffixLastBackup).Put(ctx, rec)
}

// LastBackup returns the last successful backup of ns, or ErrNotFound.
func (s *Store) LastBackup(ctx context.Context, ns string) (*domain.BackupRecord, error) {
	return NewDocument[domain.BackupRecord](s, profilePrefix+ns+suffixLastBackup).Get(ctx)
}

// Profiles returns the registered profiles in creation order.
func (s *Store) Profiles(ctx context.Context) ([]domain.Profile, error) {
	return NewDocument[[]domain.Profile](s, keyProfiles).GetOr(ctx, nil)
}

// SaveProfiles replaces the profile registry.
func (s *Store) SaveProfiles(ctx context.Context, profiles []domain.Profile) error {
	return NewDocument[[]domain.Profile](s, keyProfiles).Put(ctx, &profiles)
}

// ActiveProfile returns the name of the active profile, or "" when none was recorded.
func (s *Store) ActiveProfile(ctx context.Context) (string, error) {
	return NewDocument[string](s, keyActiveProfile).GetOr(ctx, "")
}

// SetActiveProfile records the active profile name.
func (s *Store) SetActiveProfile(ctx context.Context, name string) error {
	return NewDocument[string](s, keyActiveProfile).Put(ctx, &name)
}
