// Package service holds the client-side state-synchronization core: the
// session controller, the access gate, the shared aggregate store, the
// optimistic mutation engine and the data loaders feeding it.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lumeo-app/lumeo/domain"
)

// Controller owns the authenticated-identity state machine. It is the
// only component that writes session state or touches the credential
// store; everything else reads snapshots and subscribes to transitions.
type Controller struct {
	store  domain.CredentialStore
	remote domain.RemoteAuthority
	logger *slog.Logger

	mu       sync.Mutex
	status   domain.SessionStatus
	token    string
	identity *domain.UserIdentity
	subs     []func(domain.SessionStatus)
}

// NewController creates a Controller in the Initializing state. Call
// Resume once at startup to settle it.
func NewController(store domain.CredentialStore, remote domain.RemoteAuthority, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:  store,
		remote: remote,
		logger: logger,
		status: domain.SessionInitializing,
	}
}

// Status returns the current session status.
func (c *Controller) Status() domain.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Token returns the current session token, empty when unauthenticated.
func (c *Controller) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Identity returns a copy of the authenticated identity, nil otherwise.
func (c *Controller) Identity() *domain.UserIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	identity := *c.identity
	return &identity
}

// Snapshot returns a point-in-time copy of the session state.
func (c *Controller) Snapshot() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := domain.Session{Status: c.status, Token: c.token}
	if c.identity != nil {
		identity := *c.identity
		snap.Identity = &identity
	}
	return snap
}

// Subscribe registers a callback invoked after every status transition.
// Callbacks run synchronously on the transitioning goroutine, after the
// transition has committed and outside the controller lock, so they may
// call back into the controller.
func (c *Controller) Subscribe(fn func(domain.SessionStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Resume settles the session at startup. With no stored token it goes
// straight to Unauthenticated. With one, it verifies the token against
// the remote authority; any failure clears the stored credentials and
// collapses to Unauthenticated rather than keeping a half-valid token.
// A token whose JWT exp claim has already passed is cleared locally
// without a network round-trip.
func (c *Controller) Resume(ctx context.Context) error {
	token, err := c.store.Get(ctx, domain.CredentialKeyToken)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			// Unreadable store entry (e.g. device secret changed) is
			// treated like an absent credential.
			c.logger.Warn("stored token unreadable, discarding", "error", err)
			c.clearCredentials(ctx)
		}
		c.transition(domain.SessionUnauthenticated, "", nil)
		return nil
	}

	if tokenExpiredLocally(string(token)) {
		c.logger.Info("stored token expired locally, skipping verification")
		c.clearCredentials(ctx)
		c.transition(domain.SessionUnauthenticated, "", nil)
		return nil
	}

	identity, err := c.remote.VerifyIdentity(ctx, string(token))
	if err != nil {
		c.logger.Info("stored token rejected on resume", "error", err)
		c.clearCredentials(ctx)
		c.transition(domain.SessionUnauthenticated, "", nil)
		return fmt.Errorf("verify stored token: %w", err)
	}

	// Refresh the durable identity snapshot alongside the live state.
	if err := c.persistIdentity(ctx, identity); err != nil {
		c.logger.Warn("failed to refresh stored identity", "error", err)
	}

	c.transition(domain.SessionAuthenticated, string(token), identity)
	c.logger.Info("session resumed", "user_id", identity.ID)
	return nil
}

// Login exchanges identifier/secret for a session. On failure the state
// stays Unauthenticated and the classified reason is returned for
// display. On success the credentials are persisted before the in-memory
// transition, so no observable state lacks a durable counterpart.
func (c *Controller) Login(ctx context.Context, identifier, secret string) error {
	if identifier == "" || secret == "" {
		return fmt.Errorf("%w: identifier and secret are required", domain.ErrValidation)
	}

	result, err := c.remote.Authenticate(ctx, identifier, secret)
	if err != nil {
		c.logger.Info("login rejected", "error", err)
		return err
	}
	return c.establish(ctx, result, "login")
}

// Signup registers an account and logs the new user straight in, exactly
// like Login on success.
func (c *Controller) Signup(ctx context.Context, fields domain.SignupFields) error {
	if fields.Email == "" || fields.Username == "" || fields.Secret == "" {
		return fmt.Errorf("%w: email, username and secret are required", domain.ErrValidation)
	}

	result, err := c.remote.Register(ctx, fields)
	if err != nil {
		c.logger.Info("signup rejected", "error", err)
		return err
	}
	return c.establish(ctx, result, "signup")
}

// Logout unconditionally tears the session down. It never fails: store
// errors are logged and the in-memory state resets regardless.
func (c *Controller) Logout(ctx context.Context) {
	c.reset(ctx, "logout")
}

// Invalidate is the forced-logout path for an Unauthorized rejection on
// any authorized call. A revoked token is indistinguishable from an
// expired one, so both collapse to the same full reset.
func (c *Controller) Invalidate(ctx context.Context) {
	c.reset(ctx, "session invalidated by remote")
}

func (c *Controller) establish(ctx context.Context, result *domain.AuthResult, op string) error {
	if err := c.persistCredentials(ctx, result); err != nil {
		// The session is unusable if it cannot survive a restart;
		// surface as transient so the user retries.
		return fmt.Errorf("%w: persist credentials: %v", domain.ErrNetwork, err)
	}
	identity := result.Identity
	c.transition(domain.SessionAuthenticated, result.Token, &identity)
	c.logger.Info("session established", "op", op, "user_id", identity.ID)
	return nil
}

func (c *Controller) reset(ctx context.Context, reason string) {
	c.clearCredentials(ctx)
	c.transition(domain.SessionUnauthenticated, "", nil)
	c.logger.Info("session reset", "reason", reason)
}

// transition commits the new state and notifies subscribers outside the
// lock. Notifications fire only when the status actually changes.
func (c *Controller) transition(status domain.SessionStatus, token string, identity *domain.UserIdentity) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	c.token = token
	c.identity = identity
	subs := make([]func(domain.SessionStatus), len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(status)
	}
}

func (c *Controller) persistCredentials(ctx context.Context, result *domain.AuthResult) error {
	if err := c.store.Set(ctx, domain.CredentialKeyToken, []byte(result.Token)); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := c.persistIdentity(ctx, &result.Identity); err != nil {
		// Keep the store consistent: a token without its identity
		// snapshot is an intermediate state we never persist.
		if delErr := c.store.Delete(ctx, domain.CredentialKeyToken); delErr != nil {
			c.logger.Warn("failed to undo token persist", "error", delErr)
		}
		return err
	}
	return nil
}

func (c *Controller) persistIdentity(ctx context.Context, identity *domain.UserIdentity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := c.store.Set(ctx, domain.CredentialKeyIdentity, payload); err != nil {
		return fmt.Errorf("store identity: %w", err)
	}
	return nil
}

func (c *Controller) clearCredentials(ctx context.Context) {
	if err := c.store.Delete(ctx, domain.CredentialKeyToken); err != nil {
		c.logger.Warn("failed to clear stored token", "error", err)
	}
	if err := c.store.Delete(ctx, domain.CredentialKeyIdentity); err != nil {
		c.logger.Warn("failed to clear stored identity", "error", err)
	}
}

// tokenExpiredLocally reports whether the token is a JWT whose exp claim
// has already passed. Opaque tokens and JWTs without exp report false and
// go through remote verification as usual. No signature check happens
// here; the remote authority remains the arbiter of validity.
func tokenExpiredLocally(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
