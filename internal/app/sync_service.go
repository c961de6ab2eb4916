package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

const tracerName = "github.com/jsamuelsen/quote-sync/internal/app"

// Status strings reported while and after a sync runs.
const (
	StatusIdle     = "Idle."
	StatusSyncing  = "Syncing…"
	StatusComplete = "Sync complete."
	StatusFailed   = "Sync failed."
)

// MessageConflictsResolved is reported when a sync changed the quote list.
const MessageConflictsResolved = "Server updates applied. Conflicts resolved."

// SyncReport describes one completed sync pass.
type SyncReport struct {
	Policy     domain.Policy `json:"policy"`
	Fetched    int           `json:"fetched"`
	Added      int           `json:"added"`
	Updated    int           `json:"updated"`
	Replaced   bool          `json:"replaced"`
	Changed    bool          `json:"changed"`
	Message    string        `json:"message,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// SyncState is a snapshot of the sync status.
type SyncState struct {
	Status       string      `json:"status"`
	LastError    string      `json:"lastError,omitempty"`
	LastSyncTime *time.Time  `json:"lastSyncTime,omitempty"`
	LastReport   *SyncReport `json:"lastReport,omitempty"`
}

// SyncService fetches the remote batch and reconciles it into the store.
// Passes are serialized: a manual sync waits for a scheduled one to finish.
type SyncService struct {
	runMu sync.Mutex

	stateMu sync.RWMutex
	state   SyncState

	remote   ports.RemoteQuoteSource
	store    *QuoteStore
	kv       ports.KeyValueStore
	policy   domain.Policy
	executor *Executor
	metrics  *Metrics
	tracer   trace.Tracer
	now      func() time.Time
	logger   *slog.Logger
}

// SyncServiceConfig contains the dependencies of a SyncService.
type SyncServiceConfig struct {
	// Remote is the quote source. Required.
	Remote ports.RemoteQuoteSource

	// Store holds the quote list. Required.
	Store *QuoteStore

	// Storage persists the last sync time. Required.
	Storage ports.KeyValueStore

	// Policy is the reconciliation policy. Defaults to domain.DefaultPolicy.
	Policy domain.Policy

	Executor *Executor
	Metrics  *Metrics
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewSyncService creates a sync service. Panics if a required dependency is nil.
func NewSyncService(cfg SyncServiceConfig) *SyncService {
	if cfg.Remote == nil {
		panic("app.NewSyncService: Remote is required")
	}

	if cfg.Store == nil {
		panic("app.NewSyncService: Store is required")
	}

	if cfg.Storage == nil {
		panic("app.NewSyncService: Storage is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Policy == "" {
		cfg.Policy = domain.DefaultPolicy
	}

	if cfg.Executor == nil {
		cfg.Executor = NewExecutor(logger)
	}

	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(prometheus.NewRegistry())
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &SyncService{
		state:    SyncState{Status: StatusIdle},
		remote:   cfg.Remote,
		store:    cfg.Store,
		kv:       cfg.Storage,
		policy:   cfg.Policy,
		executor: cfg.Executor,
		metrics:  cfg.Metrics,
		tracer:   otel.Tracer(tracerName),
		now:      cfg.Now,
		logger:   logger.With(slog.String("component", "sync_service")),
	}
}

// Policy returns the reconciliation policy in force.
func (s *SyncService) Policy() domain.Policy {
	return s.policy
}

// Sync runs one pass: fetch, reconcile, persist. When the remote source is
// unavailable the store is untouched and the error wraps
// domain.ErrUnavailable.
func (s *SyncService) Sync(ctx context.Context) (*SyncReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "SyncService.Sync",
		trace.WithAttributes(attribute.String("sync.policy", string(s.policy))),
	)
	defer span.End()

	start := s.now()
	s.setStatus(StatusSyncing, nil, nil)

	report := &SyncReport{Policy: s.policy, StartedAt: start}

	op := Operation[struct{}, []domain.Quote, []domain.Quote, *SyncReport]{
		Name: "sync-quotes",
		Perform: func(ctx context.Context, _ struct{}) ([]domain.Quote, error) {
			return s.remote.FetchRemoteQuotes(ctx)
		},
		Verify: func(ctx context.Context, _ struct{}, fetched []domain.Quote) ([]domain.Quote, error) {
			return s.verifyBatch(ctx, fetched), nil
		},
		Archive: func(ctx context.Context, _ struct{}, batch []domain.Quote) error {
			report.Fetched = len(batch)

			res, err := s.store.Reconcile(ctx, batch, s.policy)
			if err != nil {
				return err
			}

			report.Added = res.Added
			report.Updated = res.Updated
			report.Replaced = res.Replaced
			report.Changed = res.Changed()

			if !report.Changed {
				return nil
			}

			report.Message = MessageConflictsResolved

			// The list is already persisted; a lost timestamp is not a failed sync.
			if err := s.kv.Set(ctx, ports.KeyLastSyncTime, s.now().UTC().Format(time.RFC3339)); err != nil {
				s.logger.WarnContext(ctx, "persisting last sync time failed", slog.Any("error", err))
			}

			return nil
		},
		Respond: func(_ context.Context, _ struct{}, _ []domain.Quote) (*SyncReport, error) {
			report.FinishedAt = s.now()
			return report, nil
		},
	}

	result, err := Execute(ctx, s.executor, op, struct{}{})
	elapsed := s.now().Sub(start).Seconds()

	if err != nil {
		s.metrics.observeSync("failed", elapsed, 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
		s.setStatus(StatusFailed, err, nil)

		s.logger.WarnContext(ctx, "sync failed", slog.Any("error", err))

		return nil, fmt.Errorf("syncing quotes: %w", err)
	}

	outcome := "unchanged"
	if result.Changed {
		outcome = "changed"
	}

	s.metrics.observeSync(outcome, elapsed, result.Added, result.Updated)
	span.SetAttributes(
		attribute.Int("sync.fetched", result.Fetched),
		attribute.Int("sync.added", result.Added),
		attribute.Int("sync.updated", result.Updated),
		attribute.Bool("sync.changed", result.Changed),
	)
	s.setStatus(StatusComplete, nil, result)

	s.logger.InfoContext(ctx, "sync complete",
		slog.Int("fetched", result.Fetched),
		slog.Int("added", result.Added),
		slog.Int("updated", result.Updated),
		slog.Bool("changed", result.Changed),
	)

	return result, nil
}

// verifyBatch drops records that could never be admitted locally.
func (s *SyncService) verifyBatch(ctx context.Context, fetched []domain.Quote) []domain.Quote {
	batch := make([]domain.Quote, 0, len(fetched))
	for _, q := range fetched {
		if err := q.Validate(); err != nil {
			s.logger.WarnContext(ctx, "dropping remote quote",
				slog.Int64("quote_id", q.ID),
				slog.Any("error", err),
			)

			continue
		}

		batch = append(batch, q)
	}

	return batch
}

// Run adapts Sync to the scheduler job signature.
func (s *SyncService) Run(ctx context.Context) error {
	_, err := s.Sync(ctx)
	return err
}

// Status returns the current sync state including the persisted last sync
// time.
func (s *SyncService) Status(ctx context.Context) SyncState {
	s.stateMu.RLock()
	state := s.state
	s.stateMu.RUnlock()

	raw, found, err := s.kv.Get(ctx, ports.KeyLastSyncTime)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "reading last sync time failed", slog.Any("error", err))
	case found:
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			state.LastSyncTime = &t
		} else {
			s.logger.WarnContext(ctx, "last sync time is malformed",
				slog.Any("error", domain.NewStorageDecodeError(ports.KeyLastSyncTime, perr)),
			)
		}
	}

	return state
}

func (s *SyncService) setStatus(status string, err error, report *SyncReport) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	s.state.Status = status
	s.state.LastError = ""

	if err != nil {
		s.state.LastError = err.Error()
	}

	if report != nil {
		s.state.LastReport = report
	}
}
