package domain

import "context"

// SessionStatus is the authenticated-identity state of the process.
type SessionStatus int

const (
	// SessionInitializing is the state before Resume has settled.
	// The access gate treats it as "deny pending".
	SessionInitializing SessionStatus = iota
	// SessionUnauthenticated means no valid session exists.
	SessionUnauthenticated
	// SessionAuthenticated means token and identity are present and the
	// token was validated at the most recent resume or login.
	SessionAuthenticated
)

// String returns the status name for logging.
func (s SessionStatus) String() string {
	switch s {
	case SessionInitializing:
		return "initializing"
	case SessionUnauthenticated:
		return "unauthenticated"
	case SessionAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is a point-in-time snapshot of the session state. Token and
// Identity are set only when Status is SessionAuthenticated.
type Session struct {
	Status   SessionStatus
	Token    string
	Identity *UserIdentity
}

// Credential store keys. The token and the identity snapshot are the only
// durable projection of the session.
const (
	CredentialKeyToken    = "auth_token"
	CredentialKeyIdentity = "auth_identity"
)

// CredentialStore is durable key/value storage surviving process restarts,
// scoped to the local device. Exclusive to the session controller.
type CredentialStore interface {
	// Get returns the stored value, or ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
