package types

import "errors"

// Structural errors abort a single pipeline stage.
var (
	ErrMissingField   = errors.New("missing field")
	ErrNoRecords      = errors.New("no records")
	ErrNoTable        = errors.New("no table found")
	ErrShapeMismatch  = errors.New("shape mismatch")
	ErrMissingJoinKey = errors.New("missing join key")
)

// ErrMalformedInterval is per record, the record is kept with a null interval.
var ErrMalformedInterval = errors.New("malformed interval")
