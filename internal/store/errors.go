package store

import (
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
)

// ErrNotFound is returned when a key is absent. It matches errors.ErrNotFound.
var ErrNotFound = domainerrors.NotFound("record not found")
