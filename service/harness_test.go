package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lumeo-app/lumeo/domain"
	"github.com/lumeo-app/lumeo/service"
)

var testIdentity = domain.UserIdentity{ID: "u1", Username: "sample_user", DisplayName: "Sample User"}

var seedTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// seedPosts returns a fresh feed for each call so tests cannot leak
// state through shared pointers.
func seedPosts() []*domain.Post {
	return []*domain.Post{
		{
			ID:       "p1",
			Author:   domain.UserIdentity{ID: "u2", Username: "another_user"},
			Caption:  "Beautiful scenery!",
			LikerIDs: map[string]struct{}{"u3": {}},
			Comments: []domain.Comment{
				{ID: "c1", Author: domain.UserIdentity{ID: "u3", Username: "third_user"}, Text: "Nice shot!", CreatedAt: seedTime},
			},
			CreatedAt: seedTime,
		},
		{
			ID:        "p2",
			Author:    domain.UserIdentity{ID: "u3", Username: "third_user"},
			Caption:   "Morning coffee",
			LikerIDs:  map[string]struct{}{},
			CreatedAt: seedTime.Add(time.Hour),
		},
	}
}

// fakeRemote implements domain.RemoteAuthority with overridable behavior
// per method and a call counter.
type fakeRemote struct {
	mu    sync.Mutex
	calls map[string]int

	verify       func(token string) (*domain.UserIdentity, error)
	authenticate func(identifier, secret string) (*domain.AuthResult, error)
	register     func(fields domain.SignupFields) (*domain.AuthResult, error)
	setLike      func(postID string, desired bool) error
	postComment  func(postID, text string) (*domain.CommentReceipt, error)
	setFollow    func(targetUserID string, desired bool) error
	fetchFeed    func() ([]*domain.Post, error)
	fetchProfile func(username string) (*domain.ProfileView, error)
}

var _ domain.RemoteAuthority = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{calls: make(map[string]int)}
}

func (f *fakeRemote) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
}

func (f *fakeRemote) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRemote) VerifyIdentity(ctx context.Context, token string) (*domain.UserIdentity, error) {
	f.record("VerifyIdentity")
	if f.verify != nil {
		return f.verify(token)
	}
	identity := testIdentity
	return &identity, nil
}

func (f *fakeRemote) Authenticate(ctx context.Context, identifier, secret string) (*domain.AuthResult, error) {
	f.record("Authenticate")
	if f.authenticate != nil {
		return f.authenticate(identifier, secret)
	}
	return &domain.AuthResult{Token: "tok-1", Identity: testIdentity}, nil
}

func (f *fakeRemote) Register(ctx context.Context, fields domain.SignupFields) (*domain.AuthResult, error) {
	f.record("Register")
	if f.register != nil {
		return f.register(fields)
	}
	return &domain.AuthResult{Token: "tok-1", Identity: testIdentity}, nil
}

func (f *fakeRemote) SetLike(ctx context.Context, token, postID string, desired bool) error {
	f.record("SetLike")
	if f.setLike != nil {
		return f.setLike(postID, desired)
	}
	return nil
}

func (f *fakeRemote) PostComment(ctx context.Context, token, postID, text string) (*domain.CommentReceipt, error) {
	f.record("PostComment")
	if f.postComment != nil {
		return f.postComment(postID, text)
	}
	return &domain.CommentReceipt{CommentID: "c99", CreatedAt: seedTime.Add(2 * time.Hour)}, nil
}

func (f *fakeRemote) SetFollow(ctx context.Context, token, targetUserID string, desired bool) error {
	f.record("SetFollow")
	if f.setFollow != nil {
		return f.setFollow(targetUserID, desired)
	}
	return nil
}

func (f *fakeRemote) FetchFeed(ctx context.Context, token string) ([]*domain.Post, error) {
	f.record("FetchFeed")
	if f.fetchFeed != nil {
		return f.fetchFeed()
	}
	return seedPosts(), nil
}

func (f *fakeRemote) FetchProfile(ctx context.Context, token, username string) (*domain.ProfileView, error) {
	f.record("FetchProfile")
	if f.fetchProfile != nil {
		return f.fetchProfile(username)
	}
	return &domain.ProfileView{Identity: domain.UserIdentity{ID: "u2", Username: username}}, nil
}

// memCreds is an in-memory credential store for tests.
type memCreds struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
}

var _ domain.CredentialStore = (*memCreds)(nil)

func newMemCreds() *memCreds {
	return &memCreds{data: make(map[string][]byte)}
}

func (m *memCreds) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	return v, nil
}

func (m *memCreds) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memCreds) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// harness wires the full service layer over fakes, the way a host
// application would wire it over real implementations.
type harness struct {
	remote   *fakeRemote
	creds    *memCreds
	session  *service.Controller
	store    *service.Store
	engine   *service.Engine
	feed     *service.FeedLoader
	profiles *service.ProfileLoader
}

func newTestHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	remote := newFakeRemote()
	creds := newMemCreds()
	session := service.NewController(creds, remote, logger)
	store := service.NewStore()

	h := &harness{
		remote:   remote,
		creds:    creds,
		session:  session,
		store:    store,
		engine:   service.NewEngine(store, remote, session, logger),
		feed:     service.NewFeedLoader(store, remote, session, logger),
		profiles: service.NewProfileLoader(store, remote, session, logger),
	}
	h.feed.Bind(context.Background())
	return h
}

// login settles the session and signs in, loading the seeded feed.
func (h *harness) login(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := h.session.Resume(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := h.session.Login(ctx, "sample_user", "hunter22"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if h.session.Status() != domain.SessionAuthenticated {
		t.Fatalf("expected authenticated session, got %v", h.session.Status())
	}
}

// waitSettled blocks until the mutation reconciles and returns its
// outcome.
func waitSettled(t *testing.T, p *service.Pending) service.Outcome {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("mutation never settled")
	}
	return p.Outcome()
}
