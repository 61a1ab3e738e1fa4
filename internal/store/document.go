package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Document provides typed access to a single JSON value stored under one key.
type Document[T any] struct {
	store *Store
	key   string
}

// NewDocument creates a Document of type T bound to key.
func NewDocument[T any](s *Store, key string) *Document[T] {
	return &Document[T]{store: s, key: key}
}

// Get returns the stored value. Returns ErrNotFound if nothing is stored.
func (d *Document[T]) Get(ctx context.Context) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var v T
	if err := d.store.get(buildKey(d.key), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetOr returns the stored value, or def when nothing is stored.
func (d *Document[T]) GetOr(ctx context.Context, def T) (T, error) {
	v, err := d.Get(ctx)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return *v, nil
}

// Put replaces the stored value.
func (d *Document[T]) Put(ctx context.Context, v *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.store.set(buildKey(d.key), v)
}

// Delete removes the value. Deleting an absent value is not an error.
func (d *Document[T]) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := d.store.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(d.key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", d.key, err)
	}
	return nil
}
