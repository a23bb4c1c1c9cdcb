package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lumeo-app/lumeo/domain"
)

// FeedLoader keeps the aggregate store's feed in sync with the remote
// authority across session transitions: a reload on sign-in, a wipe on
// sign-out.
type FeedLoader struct {
	store   *Store
	remote  domain.RemoteAuthority
	session *Controller
	logger  *slog.Logger
}

// NewFeedLoader creates a loader. Call Bind to hook it to the session
// lifecycle.
func NewFeedLoader(store *Store, remote domain.RemoteAuthority, session *Controller, logger *slog.Logger) *FeedLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedLoader{store: store, remote: remote, session: session, logger: logger}
}

// Bind subscribes to session transitions. Entering Authenticated reloads
// the feed; leaving it clears every aggregate so no stale content
// survives into the next session.
func (l *FeedLoader) Bind(ctx context.Context) {
	l.session.Subscribe(func(status domain.SessionStatus) {
		switch status {
		case domain.SessionAuthenticated:
			if err := l.Reload(ctx); err != nil {
				l.logger.Warn("feed reload failed", "error", err)
			}
		case domain.SessionUnauthenticated:
			l.store.Clear()
		}
	})
}

// Reload fetches the feed and replaces the store contents. On failure
// the previous contents stay; an Unauthorized rejection forces logout.
func (l *FeedLoader) Reload(ctx context.Context) error {
	snap := l.session.Snapshot()
	if snap.Status != domain.SessionAuthenticated {
		return fmt.Errorf("%w: not signed in", domain.ErrUnauthorized)
	}

	posts, err := l.remote.FetchFeed(ctx, snap.Token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			l.session.Invalidate(ctx)
		}
		return fmt.Errorf("fetch feed: %w", err)
	}

	l.store.ReplaceFeed(posts)
	l.logger.Info("feed loaded", "posts", len(posts))
	return nil
}
