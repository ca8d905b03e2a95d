// Package errtypes contains definitions for the error kinds the rest of the
// codebase returns. It would have been nice to call this package errors,
// err, or error, but errors clashes with github.com/pkg/errors, err is
// reserved for error values, and error is a reserved word.
package errtypes

// NotFound is returned when a resource does not exist.
type NotFound string

func (e NotFound) Error() string { return "not found: " + string(e) }

// IsNotFound implements the IsNotFound interface.
func (e NotFound) IsNotFound() {}

// AlreadyExists is returned when a resource that must be unique already
// exists.
type AlreadyExists string

func (e AlreadyExists) Error() string { return "already exists: " + string(e) }

// IsAlreadyExists implements the IsAlreadyExists interface.
func (e AlreadyExists) IsAlreadyExists() {}

// InvalidCredentials is returned when client-supplied credentials fail to
// verify.
type InvalidCredentials string

func (e InvalidCredentials) Error() string { return "invalid credentials: " + string(e) }

// IsInvalidCredentials implements the IsInvalidCredentials interface.
func (e InvalidCredentials) IsInvalidCredentials() {}

// NotSupported is returned when a requested action is not implemented by
// the current configuration.
type NotSupported string

func (e NotSupported) Error() string { return "not supported: " + string(e) }

// IsNotSupported implements the IsNotSupported interface.
func (e NotSupported) IsNotSupported() {}

// Validation is returned when caller-supplied input fails shape or value
// checks. Surfaced as HTTP 400.
type Validation string

func (e Validation) Error() string { return "validation error: " + string(e) }

// IsValidation implements the IsValidation interface.
func (e Validation) IsValidation() {}

// Unauthorized is returned when no principal could be established for a
// request that requires one. Surfaced as HTTP 401.
type Unauthorized string

func (e Unauthorized) Error() string { return "unauthorized: " + string(e) }

// IsUnauthorized implements the IsUnauthorized interface.
func (e Unauthorized) IsUnauthorized() {}

// Forbidden is returned when a known principal lacks the role or scope
// required for an operation. Surfaced as HTTP 403.
type Forbidden string

func (e Forbidden) Error() string { return "forbidden: " + string(e) }

// IsForbidden implements the IsForbidden interface.
func (e Forbidden) IsForbidden() {}

// Conflict is returned when a state-machine transition loses a race or a
// uniqueness invariant (e.g. version numbering) would be violated.
// Surfaced as HTTP 409.
type Conflict string

func (e Conflict) Error() string { return "conflict: " + string(e) }

// IsConflict implements the IsConflict interface.
func (e Conflict) IsConflict() {}

// QuotaExceeded is returned when committing a file would push workspace
// usage past its configured quota. Surfaced as HTTP 403.
type QuotaExceeded string

func (e QuotaExceeded) Error() string { return "quota exceeded: " + string(e) }

// IsQuotaExceeded implements the IsQuotaExceeded interface.
func (e QuotaExceeded) IsQuotaExceeded() {}

// StorageInconsistency is returned when a registry row references bytes
// the storage provider can no longer produce. Surfaced as HTTP 500 and
// should be logged as alertable.
type StorageInconsistency string

func (e StorageInconsistency) Error() string { return "storage inconsistency: " + string(e) }

// IsStorageInconsistency implements the IsStorageInconsistency interface.
func (e StorageInconsistency) IsStorageInconsistency() {}

// NotReady is returned when a resource exists but the artifact being
// requested has not been produced yet. Surfaced as HTTP 404, distinct from
// NotFound only in the message it carries.
type NotReady string

func (e NotReady) Error() string { return "not ready: " + string(e) }

// IsNotReady implements the IsNotReady interface.
func (e NotReady) IsNotReady() {}

// IsNotFound is implemented by errors representing a missing resource.
type IsNotFound interface{ IsNotFound() }

// IsAlreadyExists is implemented by errors representing a uniqueness
// violation.
type IsAlreadyExists interface{ IsAlreadyExists() }

// IsInvalidCredentials is implemented by errors representing failed
// credential verification.
type IsInvalidCredentials interface{ IsInvalidCredentials() }

// IsNotSupported is implemented by errors representing an unimplemented
// action.
type IsNotSupported interface{ IsNotSupported() }

// IsValidation is implemented by errors representing bad caller input.
type IsValidation interface{ IsValidation() }

// IsUnauthorized is implemented by errors representing a missing
// principal.
type IsUnauthorized interface{ IsUnauthorized() }

// IsForbidden is implemented by errors representing an authorization
// denial for a known principal.
type IsForbidden interface{ IsForbidden() }

// IsConflict is implemented by errors representing a lost race or
// uniqueness violation on a state machine.
type IsConflict interface{ IsConflict() }

// IsQuotaExceeded is implemented by errors representing a quota breach.
type IsQuotaExceeded interface{ IsQuotaExceeded() }

// IsStorageInconsistency is implemented by errors representing a row/bytes
// mismatch.
type IsStorageInconsistency interface{ IsStorageInconsistency() }

// IsNotReady is implemented by errors representing an artifact that has
// not been produced yet.
type IsNotReady interface{ IsNotReady() }
