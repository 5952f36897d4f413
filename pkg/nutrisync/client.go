// Package nutrisync is the entry point for view layers: one long-lived
// Client built at application start owns every store, the dashboard event
// bus and the assistant.
package nutrisync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperengineering/nutrisync/internal/assistant"
	"github.com/hyperengineering/nutrisync/internal/backend"
	"github.com/hyperengineering/nutrisync/internal/config"
	"github.com/hyperengineering/nutrisync/internal/events"
	"github.com/hyperengineering/nutrisync/internal/goals"
	"github.com/hyperengineering/nutrisync/internal/meals"
	"github.com/hyperengineering/nutrisync/internal/profile"
	"github.com/hyperengineering/nutrisync/internal/snapshot"
	"github.com/hyperengineering/nutrisync/internal/store"
	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/internal/water"
	"github.com/hyperengineering/nutrisync/internal/worker"
)

// ErrClosed is returned by operations on a client after Shutdown.
var ErrClosed = errors.New("client is closed")

// Client owns the local store and every domain store built on it.
type Client struct {
	cfg      *config.Config
	db       *store.SQLiteStore
	backend  *backend.Client
	bus      *events.Bus
	goals    *goals.Store
	meals    *meals.Stream
	water    *water.Stream
	profile  *profile.Store
	agent    *assistant.Agent
	provider assistant.Provider
	uploader snapshot.Uploader

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// New opens the local database and wires the stores. Nothing touches the
// network until Initialize.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Database.Path == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	uploader, err := snapshot.NewUploader(cfg.Backup)
	if err != nil {
		db.Close()
		return nil, err
	}

	baseURL := ""
	if cfg.Online() {
		baseURL = cfg.Backend.BaseURL
	}
	be := backend.New(backend.Config{
		BaseURL:           baseURL,
		Token:             cfg.Backend.Token,
		UserID:            cfg.Backend.UserID,
		Timeout:           time.Duration(cfg.Backend.Timeout),
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Burst:             cfg.Backend.Burst,
	})

	provider := newProvider(cfg)
	bus := events.NewBus()

	c := &Client{
		cfg:      cfg,
		db:       db,
		backend:  be,
		bus:      bus,
		provider: provider,
		uploader: uploader,
	}
	c.goals = goals.NewStore(db, be.Profile(), provider)
	c.meals = meals.New(be.Meals(), db, meals.Options{Bus: bus})
	c.water = water.New(be.Water(), db, water.Options{
		Bus:         bus,
		MaxPerEntry: cfg.Tracking.MaxWaterPerEntry,
	})
	c.profile = profile.NewStore(profile.Options{
		Blobs:  db,
		Goals:  c.goals,
		Bus:    bus,
		Remote: be.Profile(),
	})
	c.agent = assistant.NewAgent(assistant.Options{
		Provider: provider,
		Meals:    c.meals,
		Water:    c.water,
		Goals:    c.goals,
		Profile:  c.profile,
		Bus:      bus,
		Preview:  cfg.Assistant.MealPreview,
	})
	return c, nil
}

// newProvider selects the assistant provider for the configured mode. The
// HTTP provider needs a reachable AI backend; without one it degrades to
// local heuristics.
func newProvider(cfg *config.Config) assistant.Provider {
	switch cfg.Assistant.Mode {
	case config.AssistantOpenAI:
		return assistant.NewOpenAIProvider(cfg.Assistant.OpenAIAPIKey, cfg.Assistant.Model)
	case config.AssistantLocal:
		return assistant.NewLocal()
	}
	if cfg.Backend.Offline || cfg.AssistantURL() == "" {
		return assistant.NewLocal()
	}
	return assistant.NewHTTPProvider(backend.New(backend.Config{
		BaseURL: cfg.AssistantURL(),
		Token:   cfg.Backend.Token,
		UserID:  cfg.Backend.UserID,
		Timeout: time.Duration(cfg.Backend.Timeout),
	}))
}

// Initialize loads persisted state, refreshes today's entries from the
// backend and starts the background sync worker. Backend failures are
// logged and never fail initialization.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}

	if err := c.goals.LoadFromStorage(ctx); err != nil {
		return err
	}
	if err := c.profile.LoadFromStorage(ctx); err != nil {
		return err
	}

	if c.cfg.Online() {
		c.refresh(ctx)
	} else {
		// Republish the local queue so pending entries are visible.
		_ = c.meals.RefreshToday(ctx)
		_ = c.water.RefreshToday(ctx)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	if c.cfg.Sync.AutoSync && c.cfg.Online() {
		c.startWorker(runCtx, worker.NewSyncWorker(time.Duration(c.cfg.Sync.Interval), c.meals, c.water).Run)
	}
	if c.cfg.Backup.Interval > 0 {
		dir := filepath.Join(filepath.Dir(c.cfg.Database.Path), "backups")
		c.startWorker(runCtx, worker.NewBackupWorker(c.db, c.uploader, c.cfg.Backend.UserID, dir, time.Duration(c.cfg.Backup.Interval)).Run)
	}

	c.started = true
	slog.Info("client initialized",
		"component", "client",
		"online", c.cfg.Online(),
		"assistant", c.provider.Name(),
		"auto_sync", c.cfg.Sync.AutoSync,
	)
	return nil
}

func (c *Client) startWorker(ctx context.Context, run func(context.Context)) {
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		run(ctx)
	}()
}

// refresh pulls today's entries bounded by the refresh timeout.
func (c *Client) refresh(ctx context.Context) {
	timeout := time.Duration(c.cfg.Sync.RefreshTimeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for name, fn := range map[string]func(context.Context) error{
		"meals": c.meals.RefreshToday,
		"water": c.water.RefreshToday,
	} {
		if err := fn(rctx); err != nil {
			slog.Warn("initial refresh failed",
				"component", "client",
				"stream", name,
				"error", err,
			)
		}
	}
}

// Shutdown stops the workers, pushes what is still queued, waits for
// background refreshes and closes the local store.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.cancel != nil {
		c.cancel()
	}
	c.workers.Wait()

	if c.cfg.Online() {
		if _, err := c.Sync(ctx); err != nil {
			slog.Warn("final sync incomplete",
				"component", "client",
				"error", err,
			)
		}
	}

	c.meals.Wait()
	c.water.Wait()
	c.meals.Close()
	c.water.Close()
	return c.db.Close()
}

// Sync pushes every locally queued entry to the backend.
func (c *Client) Sync(ctx context.Context) ([]types.SyncResult, error) {
	var (
		results []types.SyncResult
		errs    []error
	)
	for _, s := range []worker.Syncer{c.meals, c.water} {
		res, err := s.Sync(ctx)
		results = append(results, res)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// Backup writes a copy of the local database into dir and uploads it when
// backup storage is configured.
func (c *Client) Backup(ctx context.Context, dir string) (*snapshot.Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return snapshot.Run(ctx, c.db, c.uploader, c.cfg.Backend.UserID, dir)
}

// HealthCheck reports local store counters and, when online, whether the
// backend answers.
func (c *Client) HealthCheck(ctx context.Context) (*Health, error) {
	stats, err := c.db.Stats(ctx)
	if err != nil {
		return nil, err
	}
	h := &Health{
		Online:    c.cfg.Online(),
		Assistant: c.provider.Name(),
		Stats:     *stats,
	}
	if h.Online {
		if err := c.backend.Ping(ctx, "/meals/today"); err != nil {
			h.BackendError = err.Error()
		} else {
			h.BackendReachable = true
		}
	}
	return h, nil
}

// Health is the result of HealthCheck.
type Health struct {
	Online           bool             `json:"online"`
	Assistant        string           `json:"assistant"`
	BackendReachable bool             `json:"backend_reachable"`
	BackendError     string           `json:"backend_error,omitempty"`
	Stats            types.StoreStats `json:"stats"`
}

// Config returns the client configuration.
func (c *Client) Config() *config.Config { return c.cfg }

// Goals returns the goals store.
func (c *Client) Goals() *goals.Store { return c.goals }

// Meals returns today's meal stream.
func (c *Client) Meals() *meals.Stream { return c.meals }

// Water returns today's water stream.
func (c *Client) Water() *water.Stream { return c.water }

// Profile returns the profile store.
func (c *Client) Profile() *profile.Store { return c.profile }

// Agent returns the conversational assistant.
func (c *Client) Agent() *assistant.Agent { return c.agent }

// Bus returns the dashboard event bus.
func (c *Client) Bus() *events.Bus { return c.bus }

// Store returns the local database.
func (c *Client) Store() *store.SQLiteStore { return c.db }
