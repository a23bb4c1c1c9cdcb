package domain

import "errors"

var (
	// ErrNetwork covers transport failures and server errors. Retry-eligible.
	ErrNetwork = errors.New("network failure")
	// ErrUnauthorized means the remote authority rejected the session token.
	// Any component seeing this must route through the forced-logout path.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by login when identifier/secret do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation means user-correctable input (e.g. duplicate username at signup).
	ErrValidation = errors.New("validation failed")
	// ErrConflict means remote state already matches the desired state.
	// Benign for toggles: no rollback, no error surfaced to the user.
	ErrConflict = errors.New("state conflict")
	// ErrNotFound means the referenced entity does not exist, remotely or
	// in local storage.
	ErrNotFound = errors.New("not found")
)

// Transient reports whether a failure is retry-eligible, as opposed to a
// rejection that retrying cannot fix.
func Transient(err error) bool {
	return errors.Is(err, ErrNetwork)
}
