package service

import (
	"sync"

	"github.com/lumeo-app/lumeo/domain"
)

// Store holds the shared aggregates: feed posts and the acting user's
// follow set. Loaders replace its contents on reload, the mutation
// engine read-modify-writes it, views read copies and observe changes
// through Subscribe. Reconciliation updates the store, never a view
// directly, so a mutation resolving after navigation still lands safely.
type Store struct {
	mu        sync.Mutex
	posts     map[string]*domain.Post
	order     []string // feed order
	following domain.FollowSet
	subs      []func()
}

// NewStore creates an empty aggregate store.
func NewStore() *Store {
	return &Store{
		posts:     make(map[string]*domain.Post),
		following: make(domain.FollowSet),
	}
}

// Subscribe registers a callback invoked after every content change.
// Callbacks run synchronously on the mutating goroutine, outside the
// store lock.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// ReplaceFeed swaps the feed contents and order. The store takes
// ownership of the given posts.
func (s *Store) ReplaceFeed(posts []*domain.Post) {
	s.mu.Lock()
	s.posts = make(map[string]*domain.Post, len(posts))
	s.order = make([]string, 0, len(posts))
	for _, p := range posts {
		s.posts[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	s.notifyLocked()
}

// MergePosts adds or refreshes posts without touching the feed order.
// Used by the profile loader to seed aggregates for posts the feed does
// not carry.
func (s *Store) MergePosts(posts []*domain.Post) {
	s.mu.Lock()
	for _, p := range posts {
		s.posts[p.ID] = p
	}
	s.notifyLocked()
}

// Clear drops every aggregate. Invoked on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	s.posts = make(map[string]*domain.Post)
	s.order = nil
	s.following = make(domain.FollowSet)
	s.notifyLocked()
}

// Feed returns deep copies of the feed posts in order.
func (s *Store) Feed() []*domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed := make([]*domain.Post, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.posts[id]; ok {
			feed = append(feed, p.Clone())
		}
	}
	return feed
}

// Post returns a deep copy of one post.
func (s *Store) Post(id string) (*domain.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// UpdatePost atomically applies fn to the live post and returns a deep
// copy of its pre-update state for rollback. Returns ok=false without
// calling fn when the post is not held in memory.
func (s *Store) UpdatePost(id string, fn func(*domain.Post)) (before *domain.Post, ok bool) {
	s.mu.Lock()
	p, ok := s.posts[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	before = p.Clone()
	fn(p)
	s.notifyLocked()
	return before, true
}

// RestorePost puts a post back to a previously captured state. A no-op
// when the post has since left memory (e.g. cleared by logout): there is
// nothing left to reconcile.
func (s *Store) RestorePost(before *domain.Post) {
	s.mu.Lock()
	if _, ok := s.posts[before.ID]; !ok {
		s.mu.Unlock()
		return
	}
	s.posts[before.ID] = before.Clone()
	s.notifyLocked()
}

// ReplaceComment swaps the provisional comment for the authoritative
// record, matched by provisional ID. Reports false (no-op) when the post
// or the provisional record is gone, which happens when a rollback from
// a different failure path already removed it.
func (s *Store) ReplaceComment(postID, provisionalID string, authoritative domain.Comment) bool {
	s.mu.Lock()
	p, ok := s.posts[postID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	for i := range p.Comments {
		if p.Comments[i].ID == provisionalID {
			p.Comments[i] = authoritative
			s.notifyLocked()
			return true
		}
	}
	s.mu.Unlock()
	return false
}

// Following reports the local follow-edge state for the given user.
func (s *Store) Following(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.following.Contains(userID)
}

// SetFollow sets the follow edge to the desired state and returns the
// previous state for rollback. Setting an edge to its current state is a
// no-op, keeping at most one edge per pair.
func (s *Store) SetFollow(userID string, desired bool) (before bool) {
	s.mu.Lock()
	before = s.following.Contains(userID)
	if desired {
		s.following.Add(userID)
	} else {
		s.following.Remove(userID)
	}
	s.notifyLocked()
	return before
}

// notifyLocked snapshots the subscriber list, releases the lock and runs
// the callbacks. Callers must hold s.mu and must not use it afterwards.
func (s *Store) notifyLocked() {
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
