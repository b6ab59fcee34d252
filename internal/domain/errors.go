package domain

import "errors"

// Sentinel errors for account management flows. Transport layers map the
// authentication denials onto a single generic message; services keep the
// distinction for audit logging.
var (
	// ErrDuplicateIdentifier is returned when provisioning collides with an
	// existing email or username.
	ErrDuplicateIdentifier = errors.New("identifier already in use")

	// ErrAccountNotFound is returned when no account matches an identifier.
	// Authentication flows translate it to ErrBadCredentials before it
	// leaves the service.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountInactive is returned for deactivated accounts.
	ErrAccountInactive = errors.New("account is deactivated")

	// ErrAccountLocked is returned while a lockout is in effect.
	ErrAccountLocked = errors.New("account is temporarily locked")

	// ErrBadCredentials is returned on password mismatch.
	ErrBadCredentials = errors.New("invalid credentials")

	// ErrPersistenceUnavailable wraps storage failures. Not retried here;
	// the request fails as a whole.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrInvalidProfile is returned when profile fields fail validation.
	ErrInvalidProfile = errors.New("invalid profile data")
)
