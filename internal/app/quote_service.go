// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
//
// What does NOT belong here:
//   - HTTP specifics (that's adapters)
//   - SQL or wire formats (that's adapters)
//   - Reconciliation rules (that's the domain layer)
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// QuoteService implements the user-facing quote use cases.
type QuoteService struct {
	store    *QuoteStore
	filter   *FilterSelection
	executor *Executor
	metrics  *Metrics
	randIntN func(n int) int
	logger   *slog.Logger
}

// QuoteServiceConfig contains the dependencies of a QuoteService.
type QuoteServiceConfig struct {
	// Store holds the quote list. Required.
	Store *QuoteStore

	// Filter holds the persisted category selection. Required.
	Filter *FilterSelection

	// Executor runs mutations. Defaults to one using Logger.
	Executor *Executor

	// Metrics records submissions. Defaults to an unregistered set.
	Metrics *Metrics

	// RandIntN picks a random index in [0, n). Defaults to rand.IntN.
	RandIntN func(n int) int

	// Logger defaults to slog.Default() if nil.
	Logger *slog.Logger
}

// NewQuoteService creates a quote service. Panics if Store or Filter is nil.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Store == nil {
		panic("app.NewQuoteService: Store is required")
	}

	if cfg.Filter == nil {
		panic("app.NewQuoteService: Filter is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Executor == nil {
		cfg.Executor = NewExecutor(logger)
	}

	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(prometheus.NewRegistry())
	}

	if cfg.RandIntN == nil {
		cfg.RandIntN = rand.IntN
	}

	return &QuoteService{
		store:    cfg.Store,
		filter:   cfg.Filter,
		executor: cfg.Executor,
		metrics:  cfg.Metrics,
		randIntN: cfg.RandIntN,
		logger:   logger.With(slog.String("component", "quote_service")),
	}
}

type addQuoteInput struct {
	text     string
	category string
}

// AddQuote validates and stores a user-submitted quote. Blank text or
// category is a domain.ValidationError and leaves the store unchanged.
func (s *QuoteService) AddQuote(ctx context.Context, text, category string) (domain.Quote, error) {
	op := Operation[addQuoteInput, domain.Quote, domain.Quote, domain.Quote]{
		Name: "add-quote",
		Validate: func(_ context.Context, in addQuoteInput) error {
			_, err := domain.NewQuote(in.text, in.category)
			return err
		},
		Perform: func(_ context.Context, in addQuoteInput) (domain.Quote, error) {
			return domain.NewQuote(in.text, in.category)
		},
		Verify: func(_ context.Context, _ addQuoteInput, q domain.Quote) (domain.Quote, error) {
			return q, q.Validate()
		},
	}

	// The ID is assigned by the store when the quote is written.
	var stored domain.Quote

	op.Archive = func(ctx context.Context, _ addQuoteInput, q domain.Quote) error {
		var err error
		stored, err = s.store.AppendNew(ctx, q)

		return err
	}
	op.Respond = func(_ context.Context, _ addQuoteInput, _ domain.Quote) (domain.Quote, error) {
		return stored, nil
	}

	q, err := Execute(ctx, s.executor, op, addQuoteInput{text: text, category: category})
	if err != nil {
		return domain.Quote{}, err
	}

	s.metrics.quotesAdded.Inc()
	s.logger.InfoContext(ctx, "quote added",
		slog.Int64("quote_id", q.ID),
		slog.String("category", q.Category),
	)

	return q, nil
}

// VisibleQuotes returns the quotes shown under category. An empty category
// means the persisted filter selection.
func (s *QuoteService) VisibleQuotes(ctx context.Context, category string) []domain.Quote {
	if category == "" {
		category = s.filter.Get(ctx)
	}

	return domain.FilterByCategory(s.store.Load(ctx), category)
}

// RandomQuote returns one random quote visible under category.
func (s *QuoteService) RandomQuote(ctx context.Context, category string) (domain.Quote, error) {
	visible := s.VisibleQuotes(ctx, category)
	if len(visible) == 0 {
		return domain.Quote{}, domain.NewNoQuotesFoundError(category)
	}

	return visible[s.randIntN(len(visible))], nil
}

// Categories returns the category index: "all" then each distinct category.
func (s *QuoteService) Categories(ctx context.Context) []string {
	return slices.Collect(domain.DistinctCategories(s.store.Load(ctx)))
}

// Filter returns the persisted category selection.
func (s *QuoteService) Filter(ctx context.Context) string {
	return s.filter.Get(ctx)
}

// SetFilter persists a new category selection and returns it normalized.
func (s *QuoteService) SetFilter(ctx context.Context, category string) (string, error) {
	return s.filter.Set(ctx, category)
}

// Export returns the full quote list.
func (s *QuoteService) Export(ctx context.Context) []domain.Quote {
	return s.store.Load(ctx)
}

// ImportResult summarizes an import.
type ImportResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// Import validates every record and then identity-merges them into the
// store. Any invalid record rejects the whole import.
func (s *QuoteService) Import(ctx context.Context, quotes []domain.Quote) (ImportResult, error) {
	op := Operation[[]domain.Quote, []domain.Quote, []domain.Quote, ImportResult]{
		Name: "import-quotes",
		Validate: func(_ context.Context, in []domain.Quote) error {
			var errs []error
			for i, q := range in {
				if _, err := domain.NewQuote(q.Text, q.Category); err != nil {
					errs = append(errs, fmt.Errorf("record %d: %w", i, err))
				}
			}

			return errors.Join(errs...)
		},
		Perform: func(_ context.Context, in []domain.Quote) ([]domain.Quote, error) {
			out := make([]domain.Quote, 0, len(in))
			for _, q := range in {
				trimmed, err := domain.NewQuote(q.Text, q.Category)
				if err != nil {
					return nil, err
				}

				trimmed.ID = q.ID
				out = append(out, trimmed)
			}

			return out, nil
		},
		Verify: func(_ context.Context, _ []domain.Quote, performed []domain.Quote) ([]domain.Quote, error) {
			return performed, nil
		},
	}

	var result ImportResult

	op.Archive = func(ctx context.Context, _ []domain.Quote, verified []domain.Quote) error {
		res, err := s.store.Merge(ctx, verified)
		if err != nil {
			return err
		}

		result = ImportResult{Added: res.Added, Updated: res.Updated, Total: len(res.Quotes)}

		return nil
	}
	op.Respond = func(_ context.Context, _ []domain.Quote, _ []domain.Quote) (ImportResult, error) {
		return result, nil
	}

	result, err := Execute(ctx, s.executor, op, quotes)
	if err != nil {
		return ImportResult{}, err
	}

	s.metrics.quotesImported.Add(float64(result.Added + result.Updated))
	s.logger.InfoContext(ctx, "quotes imported",
		slog.Int("added", result.Added),
		slog.Int("updated", result.Updated),
	)

	return result, nil
}
