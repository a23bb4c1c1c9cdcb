package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lumeo-app/lumeo/domain"
)

// ProfileLoader fetches user profiles and merges their posts into the
// shared aggregates, so likes and comments made from a profile view
// reconcile through the same store as the feed.
type ProfileLoader struct {
	store   *Store
	remote  domain.RemoteAuthority
	session *Controller
	logger  *slog.Logger
}

// NewProfileLoader creates a loader.
func NewProfileLoader(store *Store, remote domain.RemoteAuthority, session *Controller, logger *slog.Logger) *ProfileLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileLoader{store: store, remote: remote, session: session, logger: logger}
}

// Load fetches the named user's profile. The profile's posts are merged
// into the store and its follow edge seeds the local follow state; the
// returned view is the caller's to render.
func (l *ProfileLoader) Load(ctx context.Context, username string) (*domain.ProfileView, error) {
	snap := l.session.Snapshot()
	if snap.Status != domain.SessionAuthenticated {
		return nil, fmt.Errorf("%w: not signed in", domain.ErrUnauthorized)
	}

	profile, err := l.remote.FetchProfile(ctx, snap.Token, username)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			l.session.Invalidate(ctx)
		}
		return nil, fmt.Errorf("fetch profile %s: %w", username, err)
	}

	l.store.MergePosts(profile.Posts)
	if profile.Identity.ID != "" && profile.Identity.ID != snap.Identity.ID {
		l.store.SetFollow(profile.Identity.ID, profile.IsFollowing)
	}

	l.logger.Info("profile loaded", "username", username, "posts", len(profile.Posts))
	return profile, nil
}
