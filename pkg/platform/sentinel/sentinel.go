package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors:
//   - ErrNotFound: the row does not exist, or the store's row-level policy
//     hides it from the caller; callers must not try to tell the two apart
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrRejected: the store refused the write (permission, policy, check constraint)
//   - ErrUnavailable: the store could not be reached
//   - ErrInvalidState: the caller passed arguments the store cannot act on
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRejected     = errors.New("rejected by store")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
