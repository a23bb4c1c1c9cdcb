package domain

import (
	"context"
	"time"
)

// AuthResult is what the remote authority returns on successful
// authentication or registration.
type AuthResult struct {
	Token    string
	Identity UserIdentity
}

// CommentReceipt is the authoritative record returned for a posted
// comment: the server-assigned ID and possibly corrected timestamp.
type CommentReceipt struct {
	CommentID string
	CreatedAt time.Time
}

// ProfileView is the result of fetching a user's profile page.
type ProfileView struct {
	Identity    UserIdentity
	Posts       []*Post
	IsFollowing bool
}

// RemoteAuthority is the consumed contract with the backend that owns
// canonical data. Implementations classify every rejection into the
// sentinel taxonomy in errors.go; in particular any authorized call may
// report ErrUnauthorized, which callers route into forced logout.
type RemoteAuthority interface {
	// VerifyIdentity validates a stored token and returns its identity.
	VerifyIdentity(ctx context.Context, token string) (*UserIdentity, error)
	// Authenticate exchanges identifier/secret for a session.
	// Rejection reason: ErrInvalidCredentials.
	Authenticate(ctx context.Context, identifier, secret string) (*AuthResult, error)
	// Register creates an account. Rejection reasons: ErrConflict (taken
	// username/email), ErrValidation.
	Register(ctx context.Context, fields SignupFields) (*AuthResult, error)

	// SetLike sets the acting user's like on a post to the desired state.
	SetLike(ctx context.Context, token, postID string, desired bool) error
	// PostComment appends a comment and returns the authoritative record.
	PostComment(ctx context.Context, token, postID, text string) (*CommentReceipt, error)
	// SetFollow sets the acting user's follow edge to the desired state.
	SetFollow(ctx context.Context, token, targetUserID string, desired bool) error

	// FetchFeed returns the ordered feed for the session.
	FetchFeed(ctx context.Context, token string) ([]*Post, error)
	// FetchProfile returns a user's profile, posts and follow state.
	FetchProfile(ctx context.Context, token, username string) (*ProfileView, error)
}
