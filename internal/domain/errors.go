package domain

import "errors"

// Engine errors. Callers test with errors.Is.
var (
	ErrUnknownAsset            = errors.New("unknown asset")
	ErrMalformedImport         = errors.New("malformed import")
	ErrQuoteUnavailable        = errors.New("quote unavailable")
	ErrPersistenceUnavailable  = errors.New("persistence unavailable")
	ErrReconciliationAmbiguous = errors.New("reconciliation ambiguous")
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidOrder   = errors.New("invalid order parameters")
	ErrUnknownAccount = errors.New("unknown account")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrLockHeld       = errors.New("lock already held")
)
