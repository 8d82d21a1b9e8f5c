package store

import (
	"errors"

	domainerrors "github.com/shelfsync/shelfsync-server/internal/errors"
)

// Sentinel errors.
var (
	// ErrNotFound matches domainerrors.ErrNotFound under errors.Is.
	ErrNotFound = domainerrors.NotFound("record not found")

	ErrClosed = errors.New("store is closed")
)
