package domain

// UserIdentity is a user as the remote authority describes one.
// Immutable once fetched except through profile editing, which this
// core does not perform. The unique key is ID.
type UserIdentity struct {
	ID          string
	Username    string
	DisplayName string
	AvatarRef   string
	Bio         string
}

// SignupFields carries the profile fields required to register an account.
type SignupFields struct {
	Email       string
	Username    string
	DisplayName string
	Secret      string
}
