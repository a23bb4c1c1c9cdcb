package domain

import "time"

// Post is a feed aggregate. The client consumes it but does not own it:
// the remote authority holds the canonical copy, and the mutation engine
// only ever edits the local copy optimistically.
type Post struct {
	ID        string
	Author    UserIdentity
	ImageRef  string
	Caption   string
	LikerIDs  map[string]struct{} // set: at most one entry per identity
	Comments  []Comment           // insertion order, append-only on the client
	CreatedAt time.Time
}

// Comment is a single comment on a post. Provisional is true while the
// record carries a locally-generated ID awaiting the authoritative one.
type Comment struct {
	ID          string
	Author      UserIdentity
	Text        string
	CreatedAt   time.Time
	Provisional bool
}

// LikedBy reports whether the given identity is in the liker set.
func (p *Post) LikedBy(userID string) bool {
	_, ok := p.LikerIDs[userID]
	return ok
}

// LikeCount returns the size of the liker set.
func (p *Post) LikeCount() int {
	return len(p.LikerIDs)
}

// Clone returns a deep copy of the post. Rollback restores from a clone,
// so the copy must share no mutable state with the original.
func (p *Post) Clone() *Post {
	cp := *p
	cp.LikerIDs = make(map[string]struct{}, len(p.LikerIDs))
	for id := range p.LikerIDs {
		cp.LikerIDs[id] = struct{}{}
	}
	cp.Comments = make([]Comment, len(p.Comments))
	copy(cp.Comments, p.Comments)
	return &cp
}

// FollowSet holds the followee IDs of the acting user: one directed edge
// per ordered pair, existence is boolean.
type FollowSet map[string]struct{}

// Contains reports whether the acting user follows the given user.
func (f FollowSet) Contains(userID string) bool {
	_, ok := f[userID]
	return ok
}

// Add inserts an edge. Inserting an existing edge is a no-op.
func (f FollowSet) Add(userID string) {
	f[userID] = struct{}{}
}

// Remove deletes an edge. Deleting a missing edge is a no-op.
func (f FollowSet) Remove(userID string) {
	delete(f, userID)
}

// Clone returns an independent copy of the set.
func (f FollowSet) Clone() FollowSet {
	cp := make(FollowSet, len(f))
	for id := range f {
		cp[id] = struct{}{}
	}
	return cp
}
