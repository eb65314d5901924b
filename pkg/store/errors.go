package store

import (
	"errors"

	"gstore/pkg/columnar"
)

var (
	ErrTooManyChunks   = errors.New("gstore: too many chunks required")
	ErrNotEmpty        = errors.New("gstore: table is not empty")
	ErrNotMVCCSnapshot = errors.New("gstore: cannot scan without an mvcc snapshot")
	ErrUnsupported     = errors.New("gstore: operation not supported")
)

// ErrNotNullViolation surfaces from the column builder on a NULL into a
// NOT NULL column.
var ErrNotNullViolation = columnar.ErrNotNull
