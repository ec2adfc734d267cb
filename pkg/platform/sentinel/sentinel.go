package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: organization, invoice or annotation does not exist
//   - ErrConflict: a write raced another write on the same row
//   - ErrAlreadyUsed: an idempotency key (annotation dedupe key, run lock) is taken
//   - ErrInvalidState: record is in the wrong lifecycle state (e.g. approved invoice)
//   - ErrUnavailable: backing service temporarily unavailable
//
// Validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
