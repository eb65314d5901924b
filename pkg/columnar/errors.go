package columnar

import "errors"

var (
	ErrTypeMismatch = errors.New("gstore: datum type does not match column type")
	ErrNotNull      = errors.New("gstore: null value in not-null column")
	ErrBadRowWidth  = errors.New("gstore: row arity does not match schema")
	ErrRowTooLarge  = errors.New("gstore: single row exceeds chunk budget")
	ErrShortBuffer  = errors.New("gstore: buffer too small for columnar image")
)
