// Package bootstrap assembles the quote-sync object graph from configuration.
// Both the service and quotectl start from it so they share one storage
// layout and one sync pipeline.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// Components is the assembled application. Close releases storage.
type Components struct {
	Storage ports.KeyValueStore
	Store   *app.QuoteStore
	Remote  *acl.PostsClient
	Quotes  *app.QuoteService
	Sync    *app.SyncService
	Health  *ports.DefaultHealthRegistry
	Metrics *app.Metrics

	closers []func() error
}

// New opens storage, loads the quote list and builds the services. reg
// receives the application metrics; pass prometheus.NewRegistry() to keep
// them private.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := domain.ParsePolicy(cfg.Sync.Policy)
	if err != nil {
		return nil, fmt.Errorf("sync policy: %w", err)
	}

	c := &Components{}

	c.Storage, err = c.openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Services.Quote.BaseURL,
		ServiceName: cfg.Services.Quote.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		UserAgent:   cfg.App.Name + "/" + cfg.App.Version,
		Logger:      logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating quote source client: %w", err), c.Close())
	}

	c.Remote = acl.NewPostsClient(acl.PostsClientConfig{
		Client:    httpClient,
		Path:      cfg.Services.Quote.Path,
		BatchSize: cfg.Sync.BatchSize,
		Category:  cfg.Sync.ProvenanceCategory,
		Name:      cfg.Services.Quote.Name,
		Logger:    logger,
	})

	c.Metrics = app.NewMetrics(reg)
	executor := app.NewExecutor(logger)

	c.Store = app.NewQuoteStore(app.QuoteStoreConfig{Storage: c.Storage, Logger: logger})
	loaded := c.Store.Load(ctx)
	logger.InfoContext(ctx, "quote list loaded", slog.Int("count", len(loaded)))

	c.Quotes = app.NewQuoteService(app.QuoteServiceConfig{
		Store:    c.Store,
		Filter:   app.NewFilterSelection(c.Storage, logger),
		Executor: executor,
		Metrics:  c.Metrics,
		Logger:   logger,
	})

	c.Sync = app.NewSyncService(app.SyncServiceConfig{
		Remote:   c.Remote,
		Store:    c.Store,
		Storage:  c.Storage,
		Policy:   policy,
		Executor: executor,
		Metrics:  c.Metrics,
		Logger:   logger,
	})

	c.Health = ports.NewHealthRegistry(cfg.Client.Timeout)

	if checker, ok := c.Storage.(ports.HealthChecker); ok {
		if err := c.Health.Register(checker); err != nil {
			return nil, errors.Join(fmt.Errorf("registering storage health check: %w", err), c.Close())
		}
	}

	if err := c.Health.RegisterOptional(c.Remote); err != nil {
		return nil, errors.Join(fmt.Errorf("registering quote source health check: %w", err), c.Close())
	}

	return c, nil
}

func (c *Components) openStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ports.KeyValueStore, error) {
	switch cfg.Driver {
	case config.StorageDriverMemory:
		logger.WarnContext(ctx, "using in-memory storage, quotes will not survive a restart")
		return memory.New(), nil

	case config.StorageDriverSQLite, "":
		store, err := sqlite.Open(ctx, sqlite.Config{
			Path:        cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("opening sqlite storage: %w", err)
		}

		c.closers = append(c.closers, store.Close)

		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Close releases storage. It is safe to call more than once.
func (c *Components) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}

	c.closers = nil

	return errors.Join(errs...)
}
