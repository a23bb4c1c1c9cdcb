package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lumeo-app/lumeo/domain"
)

func TestFeedLoader_LoadsOnLoginClearsOnLogout(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.login(t)

	feed := h.store.Feed()
	if len(feed) != 2 || feed[0].ID != "p1" || feed[1].ID != "p2" {
		t.Fatalf("feed not loaded in order: %+v", feed)
	}

	h.session.Logout(ctx)
	if got := len(h.store.Feed()); got != 0 {
		t.Fatalf("expected empty feed after logout, got %d", got)
	}
}

func TestFeedLoader_ReloadRequiresSession(t *testing.T) {
	h := newTestHarness(t)
	h.session.Resume(context.Background())

	err := h.feed.Reload(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestFeedLoader_FailedReloadKeepsContents(t *testing.T) {
	h := newTestHarness(t)
	h.login(t)

	h.remote.fetchFeed = func() ([]*domain.Post, error) {
		return nil, domain.ErrNetwork
	}
	err := h.feed.Reload(context.Background())
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if got := len(h.store.Feed()); got != 2 {
		t.Fatalf("failed reload must keep previous contents, got %d posts", got)
	}
}

func TestFeedLoader_UnauthorizedForcesLogout(t *testing.T) {
	h := newTestHarness(t)
	h.login(t)

	h.remote.fetchFeed = func() ([]*domain.Post, error) {
		return nil, domain.ErrUnauthorized
	}
	err := h.feed.Reload(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if got := h.session.Status(); got != domain.SessionUnauthenticated {
		t.Fatalf("expected forced logout, got %v", got)
	}
}

func TestProfileLoader_MergesPostsAndFollowEdge(t *testing.T) {
	h := newTestHarness(t)
	h.login(t)

	h.remote.fetchProfile = func(username string) (*domain.ProfileView, error) {
		return &domain.ProfileView{
			Identity: domain.UserIdentity{ID: "u2", Username: username},
			Posts: []*domain.Post{
				{ID: "p9", Author: domain.UserIdentity{ID: "u2"}, Caption: "archive shot"},
			},
			IsFollowing: true,
		}, nil
	}

	profile, err := h.profiles.Load(context.Background(), "another_user")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if profile.Identity.ID != "u2" {
		t.Fatalf("unexpected profile: %+v", profile.Identity)
	}

	// The profile's posts join the shared aggregates.
	if _, ok := h.store.Post("p9"); !ok {
		t.Fatal("profile post not merged into the store")
	}
	if !h.store.Following("u2") {
		t.Fatal("follow edge not seeded from the profile")
	}
	// The feed order is untouched.
	feed := h.store.Feed()
	if len(feed) != 2 {
		t.Fatalf("merge must not alter the feed, got %d posts", len(feed))
	}
}

func TestProfileLoader_OwnProfileSeedsNoEdge(t *testing.T) {
	h := newTestHarness(t)
	h.login(t)

	h.remote.fetchProfile = func(username string) (*domain.ProfileView, error) {
		return &domain.ProfileView{Identity: testIdentity}, nil
	}

	if _, err := h.profiles.Load(context.Background(), "sample_user"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.store.Following("u1") {
		t.Fatal("no follow edge may exist toward the acting user")
	}
}

func TestProfileLoader_RequiresSession(t *testing.T) {
	h := newTestHarness(t)
	h.session.Resume(context.Background())

	_, err := h.profiles.Load(context.Background(), "another_user")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
