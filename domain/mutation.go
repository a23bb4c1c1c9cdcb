package domain

import "time"

// MutationKind identifies an optimistic user action.
type MutationKind int

const (
	MutationLike MutationKind = iota
	MutationUnlike
	MutationComment
	MutationFollow
	MutationUnfollow
)

// String returns the kind name for logging.
func (k MutationKind) String() string {
	switch k {
	case MutationLike:
		return "like"
	case MutationUnlike:
		return "unlike"
	case MutationComment:
		return "comment"
	case MutationFollow:
		return "follow"
	case MutationUnfollow:
		return "unfollow"
	default:
		return "unknown"
	}
}

// MutationIntent is the ephemeral record of one in-flight optimistic
// action. It exists only between Apply and reconciliation and is never
// persisted: an intent interrupted by a restart is simply lost, and the
// action counts as failed.
type MutationIntent struct {
	ID       string
	Kind     MutationKind
	TargetID string

	// BeforePost holds the pre-Apply deep copy of the target post for
	// post mutations; BeforeFollowing holds the pre-Apply edge state for
	// follow mutations. Rollback restores exactly one of these.
	BeforePost      *Post
	BeforeFollowing bool

	// ProvisionalID is the locally-generated comment ID awaiting
	// replacement by the authoritative one; CommentText is the submitted
	// text. Comment mutations only.
	ProvisionalID string
	CommentText   string

	SubmittedAt time.Time
}
