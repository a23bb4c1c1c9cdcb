package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumeo-app/lumeo/domain"
)

// Outcome is the settled result of an optimistic mutation.
type Outcome int

const (
	// OutcomePending means reconciliation has not settled yet.
	OutcomePending Outcome = iota
	// OutcomeCommitted means the remote authority confirmed the applied
	// state (or reported a benign conflict).
	OutcomeCommitted
	// OutcomeRolledBack means the remote call failed and the aggregate
	// was restored to its pre-apply state.
	OutcomeRolledBack
	// OutcomeCancelled means a second toggle reverted the mutation
	// before it reached the wire; no remote call was made.
	OutcomeCancelled
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeCommitted:
		return "committed"
	case OutcomeRolledBack:
		return "rolled_back"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Pending is the handle to one in-flight mutation. The UI has already
// rendered the applied state when it receives one; Done lets callers
// (and tests) observe reconciliation without blocking on it.
type Pending struct {
	intent  domain.MutationIntent
	done    chan struct{}
	outcome Outcome
	err     error
}

func newPending(intent domain.MutationIntent) *Pending {
	return &Pending{intent: intent, done: make(chan struct{})}
}

// Intent returns the mutation's intent record.
func (p *Pending) Intent() domain.MutationIntent { return p.intent }

// Done is closed once reconciliation settles.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Outcome is valid after Done is closed.
func (p *Pending) Outcome() Outcome {
	select {
	case <-p.done:
		return p.outcome
	default:
		return OutcomePending
	}
}

// Err returns the classified failure after a rollback, nil otherwise.
// Check domain.Transient to distinguish "retry available" from
// "action invalid".
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// finish is called exactly once, by whichever goroutine settles the
// mutation.
func (p *Pending) finish(outcome Outcome, err error) {
	p.outcome = outcome
	p.err = err
	close(p.done)
}

// slotClass collapses mutation kinds into in-flight guard slots:
// Like/Unlike contend for one slot per post, Follow/Unfollow for one
// slot per user, comments for one slot per post.
type slotClass int

const (
	slotLike slotClass = iota
	slotComment
	slotFollow
)

type slotKey struct {
	class  slotClass
	target string
}

// flight tracks one occupied slot. cancelled and submitted are written
// under the engine lock; the submit goroutine checks cancelled before
// touching the wire.
type flight struct {
	pending   *Pending
	submitted bool
	cancelled bool
}

// Engine applies user actions to the shared aggregates immediately,
// confirms them against the remote authority asynchronously, and
// reconciles on completion: commit on success, exact rollback on
// failure. One outstanding remote call per (kind, target) pair.
type Engine struct {
	store   *Store
	remote  domain.RemoteAuthority
	session *Controller
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[slotKey]*flight

	// preSubmit, when set, runs at the start of each submit goroutine,
	// before the point of no return. Tests use it to hold a mutation in
	// its cancellable window. Nil in production.
	preSubmit func()
}

// NewEngine creates a mutation engine over the given aggregate store.
func NewEngine(store *Store, remote domain.RemoteAuthority, session *Controller, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		remote:   remote,
		session:  session,
		logger:   logger,
		inflight: make(map[slotKey]*flight),
	}
}

// ToggleLike flips the acting user's like on a post. The liker set
// changes synchronously; the confirming call runs in the background.
//
// A second toggle before the first submission reaches the wire cancels
// back to the original state with zero remote calls and the first
// handle settles as Cancelled. A second toggle after submission is
// dropped as a no-op (nil handle); the single outstanding response
// governs the final state.
func (e *Engine) ToggleLike(ctx context.Context, postID string) (*Pending, error) {
	snap, err := e.authorized()
	if err != nil {
		return nil, err
	}
	key := slotKey{class: slotLike, target: postID}

	if pending, settled := e.cancelOrDrop(key); settled {
		return pending, nil
	}

	userID := snap.Identity.ID
	var desired bool
	before, ok := e.store.UpdatePost(postID, func(p *domain.Post) {
		if p.LikedBy(userID) {
			delete(p.LikerIDs, userID)
			desired = false
		} else {
			p.LikerIDs[userID] = struct{}{}
			desired = true
		}
	})
	if !ok {
		return nil, fmt.Errorf("%w: post %s not loaded", domain.ErrNotFound, postID)
	}

	kind := domain.MutationLike
	if !desired {
		kind = domain.MutationUnlike
	}
	fl := e.launch(key, domain.MutationIntent{
		ID:          uuid.NewString(),
		Kind:        kind,
		TargetID:    postID,
		BeforePost:  before,
		SubmittedAt: time.Now(),
	})

	go e.submitToggle(ctx, key, fl, func(sctx context.Context) error {
		return e.remote.SetLike(sctx, snap.Token, postID, desired)
	}, func() {
		e.store.RestorePost(before)
	})
	return fl.pending, nil
}

// AddComment appends a comment with a locally-generated provisional ID,
// then swaps in the authoritative record when the remote call resolves.
// While one comment on a post is in flight, further comments on that
// post are dropped as no-ops (nil handle).
func (e *Engine) AddComment(ctx context.Context, postID, text string) (*Pending, error) {
	snap, err := e.authorized()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: comment text is empty", domain.ErrValidation)
	}
	key := slotKey{class: slotComment, target: postID}
	if e.occupied(key) {
		return nil, nil
	}

	provisionalID := "local-" + uuid.NewString()
	author := *snap.Identity
	now := time.Now()
	before, ok := e.store.UpdatePost(postID, func(p *domain.Post) {
		p.Comments = append(p.Comments, domain.Comment{
			ID:          provisionalID,
			Author:      author,
			Text:        text,
			CreatedAt:   now,
			Provisional: true,
		})
	})
	if !ok {
		return nil, fmt.Errorf("%w: post %s not loaded", domain.ErrNotFound, postID)
	}

	fl := e.launch(key, domain.MutationIntent{
		ID:            uuid.NewString(),
		Kind:          domain.MutationComment,
		TargetID:      postID,
		BeforePost:    before,
		ProvisionalID: provisionalID,
		CommentText:   text,
		SubmittedAt:   now,
	})

	go e.submitComment(ctx, key, fl, snap.Token, author)
	return fl.pending, nil
}

// ToggleFollow flips the acting user's follow edge to another user, with
// the same cancellation and guard behavior as ToggleLike.
func (e *Engine) ToggleFollow(ctx context.Context, targetUserID string) (*Pending, error) {
	snap, err := e.authorized()
	if err != nil {
		return nil, err
	}
	if targetUserID == snap.Identity.ID {
		return nil, fmt.Errorf("%w: cannot follow yourself", domain.ErrValidation)
	}
	key := slotKey{class: slotFollow, target: targetUserID}

	if pending, settled := e.cancelOrDrop(key); settled {
		return pending, nil
	}

	before := e.store.Following(targetUserID)
	desired := !before
	e.store.SetFollow(targetUserID, desired)

	kind := domain.MutationFollow
	if !desired {
		kind = domain.MutationUnfollow
	}
	fl := e.launch(key, domain.MutationIntent{
		ID:              uuid.NewString(),
		Kind:            kind,
		TargetID:        targetUserID,
		BeforeFollowing: before,
		SubmittedAt:     time.Now(),
	})

	go e.submitToggle(ctx, key, fl, func(sctx context.Context) error {
		return e.remote.SetFollow(sctx, snap.Token, targetUserID, desired)
	}, func() {
		e.store.SetFollow(targetUserID, before)
	})
	return fl.pending, nil
}

// authorized snapshots the session and rejects mutations without one.
func (e *Engine) authorized() (domain.Session, error) {
	snap := e.session.Snapshot()
	if snap.Status != domain.SessionAuthenticated || snap.Identity == nil {
		return domain.Session{}, fmt.Errorf("%w: not signed in", domain.ErrUnauthorized)
	}
	return snap, nil
}

// occupied reports whether the slot already holds an in-flight mutation.
func (e *Engine) occupied(key slotKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[key]
	return ok
}

// cancelOrDrop resolves a toggle arriving while its slot is occupied.
// Before submission: revert the aggregate, mark the flight cancelled and
// hand back its (soon to settle) handle. After submission: drop the new
// toggle as a no-op. settled=false means the slot is free.
func (e *Engine) cancelOrDrop(key slotKey) (*Pending, bool) {
	e.mu.Lock()
	fl, ok := e.inflight[key]
	if !ok {
		e.mu.Unlock()
		return nil, false
	}
	if fl.submitted || fl.cancelled {
		e.mu.Unlock()
		e.logger.Debug("mutation dropped, already in flight",
			"kind", fl.pending.intent.Kind.String(),
			"target", key.target,
		)
		return nil, true
	}
	fl.cancelled = true
	delete(e.inflight, key)
	intent := fl.pending.intent
	e.mu.Unlock()

	if intent.BeforePost != nil {
		e.store.RestorePost(intent.BeforePost)
	} else {
		e.store.SetFollow(intent.TargetID, intent.BeforeFollowing)
	}
	e.logger.Debug("mutation cancelled before submission",
		"kind", intent.Kind.String(),
		"target", key.target,
	)
	return fl.pending, true
}

// launch occupies the slot for a freshly applied mutation.
func (e *Engine) launch(key slotKey, intent domain.MutationIntent) *flight {
	fl := &flight{pending: newPending(intent)}
	e.mu.Lock()
	e.inflight[key] = fl
	e.mu.Unlock()
	return fl
}

// release frees the slot, unless a cancellation already did.
func (e *Engine) release(key slotKey, fl *flight) {
	e.mu.Lock()
	if e.inflight[key] == fl {
		delete(e.inflight, key)
	}
	e.mu.Unlock()
}

// markSubmitted is the point of no return for cancellation. Reports
// false when the flight was cancelled first.
func (e *Engine) markSubmitted(fl *flight) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fl.cancelled {
		return false
	}
	fl.submitted = true
	return true
}

// submitToggle runs the confirming call for a like/follow toggle and
// reconciles. Success and benign conflict need no further change: the
// applied state already matches the canonical one.
func (e *Engine) submitToggle(ctx context.Context, key slotKey, fl *flight, call func(context.Context) error, rollback func()) {
	if e.preSubmit != nil {
		e.preSubmit()
	}
	if !e.markSubmitted(fl) {
		fl.pending.finish(OutcomeCancelled, nil)
		return
	}

	err := call(ctx)
	e.release(key, fl)
	intent := fl.pending.intent

	if err == nil || errors.Is(err, domain.ErrConflict) {
		fl.pending.finish(OutcomeCommitted, nil)
		return
	}

	rollback()
	e.logger.Info("mutation rolled back",
		"kind", intent.Kind.String(),
		"target", intent.TargetID,
		"transient", domain.Transient(err),
		"error", err,
	)
	e.handleUnauthorized(ctx, err)
	fl.pending.finish(OutcomeRolledBack, err)
}

// submitComment runs the confirming call for a comment and reconciles by
// replacing the provisional record with the authoritative one.
func (e *Engine) submitComment(ctx context.Context, key slotKey, fl *flight, token string, author domain.UserIdentity) {
	if e.preSubmit != nil {
		e.preSubmit()
	}
	if !e.markSubmitted(fl) {
		fl.pending.finish(OutcomeCancelled, nil)
		return
	}

	intent := fl.pending.intent
	receipt, err := e.remote.PostComment(ctx, token, intent.TargetID, intent.CommentText)
	e.release(key, fl)

	if err != nil {
		e.store.RestorePost(intent.BeforePost)
		e.logger.Info("comment rolled back",
			"target", intent.TargetID,
			"transient", domain.Transient(err),
			"error", err,
		)
		e.handleUnauthorized(ctx, err)
		fl.pending.finish(OutcomeRolledBack, err)
		return
	}

	// No-op when a rollback from another failure path already removed
	// the provisional record.
	e.store.ReplaceComment(intent.TargetID, intent.ProvisionalID, domain.Comment{
		ID:        receipt.CommentID,
		Author:    author,
		Text:      intent.CommentText,
		CreatedAt: receipt.CreatedAt,
	})
	fl.pending.finish(OutcomeCommitted, nil)
}

// handleUnauthorized routes a revoked/expired token into forced logout.
func (e *Engine) handleUnauthorized(ctx context.Context, err error) {
	if errors.Is(err, domain.ErrUnauthorized) {
		e.session.Invalidate(ctx)
	}
}
