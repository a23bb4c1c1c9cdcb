// Package lumeo is the embeddable state-synchronization core for the
// Lumeo client: session lifecycle, access gating and optimistic
// mutations over a shared aggregate store. A host UI constructs one App,
// starts it, and drives it through the service layer it exposes.
package lumeo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lumeo-app/lumeo/remote"
	"github.com/lumeo-app/lumeo/repository/sqlite"
	"github.com/lumeo-app/lumeo/service"
)

// Config carries everything an App needs from its host.
type Config struct {
	// StorePath is the SQLite file holding sealed credentials.
	StorePath string
	// DeviceSecret keys the credential sealing. Losing it invalidates
	// stored credentials but nothing else.
	DeviceSecret []byte
	// BaseURL points at the remote authority.
	BaseURL string
	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client
	// Logger receives structured logs. Defaults to slog.Default.
	Logger *slog.Logger
}

// App wires the core together: credential store, remote client, session
// controller, aggregate store, loaders and mutation engine.
type App struct {
	db *sqlite.DB

	Session  *service.Controller
	Store    *service.Store
	Engine   *service.Engine
	Feed     *service.FeedLoader
	Profiles *service.ProfileLoader

	logger *slog.Logger
}

// New assembles an App. Call Start before using it.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlite.New(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	creds, err := db.Credentials(cfg.DeviceSecret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init credential store: %w", err)
	}

	client := remote.NewClient(cfg.BaseURL, cfg.HTTPClient, logger)
	session := service.NewController(creds, client, logger)
	store := service.NewStore()

	app := &App{
		db:       db,
		Session:  session,
		Store:    store,
		Engine:   service.NewEngine(store, client, session, logger),
		Feed:     service.NewFeedLoader(store, client, session, logger),
		Profiles: service.NewProfileLoader(store, client, session, logger),
		logger:   logger,
	}
	return app, nil
}

// Start runs migrations, binds the feed to the session lifecycle and
// resumes any stored session. After Start returns, the session status is
// settled: Authenticated or Unauthenticated, never Initializing.
func (a *App) Start(ctx context.Context) error {
	if err := a.db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate credential store: %w", err)
	}

	a.Feed.Bind(ctx)

	if err := a.Session.Resume(ctx); err != nil {
		// A failed resume still settles to Unauthenticated; the host can
		// proceed to the login view.
		a.logger.Warn("session resume failed", "error", err)
	}
	return nil
}

// Gate evaluates access for a navigation against the live session
// status.
func (a *App) Gate(route service.Route) service.GateDecision {
	return service.Decide(route, a.Session.Status())
}

// Close releases the credential store.
func (a *App) Close() error {
	return a.db.Close()
}
