package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// QuoteStore owns the ordered quote list and mirrors every change to durable
// storage under ports.KeyQuotes. All methods are safe for concurrent use.
//
// Each mutation reads the persisted list, changes it and writes it back in
// one ports.KeyValueStore.Update, so processes sharing the storage never
// overwrite each other's changes. When the write fails the in-memory list
// is left as it was and the error is returned.
type QuoteStore struct {
	mu     sync.Mutex
	kv     ports.KeyValueStore
	quotes []domain.Quote
	loaded bool
	now    func() time.Time
	logger *slog.Logger
}

// QuoteStoreConfig contains the dependencies of a QuoteStore.
type QuoteStoreConfig struct {
	// Storage is the durable backend. Required.
	Storage ports.KeyValueStore

	// Now supplies the clock used for new IDs. Defaults to time.Now.
	Now func() time.Time

	// Logger for store events. Defaults to slog.Default() if nil.
	Logger *slog.Logger
}

// NewQuoteStore creates a store. Call Load before reading it.
// Panics if Storage is nil.
func NewQuoteStore(cfg QuoteStoreConfig) *QuoteStore {
	if cfg.Storage == nil {
		panic("app.NewQuoteStore: Storage is required")
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &QuoteStore{
		kv:     cfg.Storage,
		now:    cfg.Now,
		logger: cfg.Logger.With(slog.String("component", "quote_store")),
	}
}

// Load reads the persisted list and makes it the current one, falling back
// to the seed quotes when nothing usable is stored. It never fails: a read
// error keeps the list loaded before, or the seed quotes on the first load.
func (s *QuoteStore) Load(ctx context.Context) []domain.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, found, err := s.kv.Get(ctx, ports.KeyQuotes)
	switch {
	case err == nil:
		s.quotes = s.decode(ctx, raw, found)
	case !s.loaded:
		s.logger.WarnContext(ctx, "reading persisted quotes failed, using seed",
			slog.Any("error", err),
		)

		s.quotes = domain.SeedQuotes()
	default:
		s.logger.WarnContext(ctx, "reading persisted quotes failed, keeping last list",
			slog.Any("error", err),
		)
	}

	s.loaded = true

	return slices.Clone(s.quotes)
}

// decode turns a stored value into a quote list. Missing, malformed and
// empty values all mean the seed quotes.
func (s *QuoteStore) decode(ctx context.Context, raw string, found bool) []domain.Quote {
	if !found {
		return domain.SeedQuotes()
	}

	var quotes []domain.Quote
	if err := json.Unmarshal([]byte(raw), &quotes); err != nil {
		s.logger.WarnContext(ctx, "persisted quotes are malformed, using seed",
			slog.Any("error", domain.NewStorageDecodeError(ports.KeyQuotes, err)),
		)

		return domain.SeedQuotes()
	}

	if len(quotes) == 0 {
		return domain.SeedQuotes()
	}

	return quotes
}

// All returns a copy of the list as of the last Load or mutation.
func (s *QuoteStore) All() []domain.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.quotes)
}

// ReplaceAll replaces the whole list and persists it. Records repeating an
// identity are collapsed as domain.UniqueByIdentity does.
func (s *QuoteStore) ReplaceAll(ctx context.Context, quotes []domain.Quote) error {
	return s.mutate(ctx, func([]domain.Quote) ([]domain.Quote, bool, error) {
		return domain.UniqueByIdentity(quotes), true, nil
	})
}

// Append adds q to the end of the list and persists it. A quote whose
// identity is already present is rejected with a ConflictError.
func (s *QuoteStore) Append(ctx context.Context, q domain.Quote) error {
	return s.mutate(ctx, func(current []domain.Quote) ([]domain.Quote, bool, error) {
		key := q.Key()
		for _, existing := range current {
			if existing.Key() == key {
				return nil, false, domain.NewConflictErrorWithDetails("quote", "identity already present", key)
			}
		}

		return append(current, q), true, nil
	})
}

// AppendNew gives q an ID greater than every persisted one, appends it and
// persists the list. The ID is chosen inside the same storage update, so
// concurrent submissions never collide.
func (s *QuoteStore) AppendNew(ctx context.Context, q domain.Quote) (domain.Quote, error) {
	err := s.mutate(ctx, func(current []domain.Quote) ([]domain.Quote, bool, error) {
		q.ID = domain.NextID(s.now().UnixMilli(), current)
		return append(current, q), true, nil
	})
	if err != nil {
		return domain.Quote{}, err
	}

	return q, nil
}

// Reconcile combines the persisted list with remote under policy and
// persists the result when it changed.
func (s *QuoteStore) Reconcile(ctx context.Context, remote []domain.Quote, policy domain.Policy) (domain.ReconcileResult, error) {
	var res domain.ReconcileResult

	err := s.mutate(ctx, func(current []domain.Quote) ([]domain.Quote, bool, error) {
		res = domain.Reconcile(current, remote, policy)
		return res.Quotes, res.Changed(), nil
	})
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	return res, nil
}

// Merge identity-merges quotes into the list, first giving an ID to each
// quote that has none. It backs JSON import.
func (s *QuoteStore) Merge(ctx context.Context, quotes []domain.Quote) (domain.ReconcileResult, error) {
	var res domain.ReconcileResult

	err := s.mutate(ctx, func(current []domain.Quote) ([]domain.Quote, bool, error) {
		incoming := slices.Clone(quotes)
		taken := slices.Clone(current)

		for i := range incoming {
			if incoming[i].ID != 0 {
				taken = append(taken, incoming[i])
			}
		}

		for i := range incoming {
			if incoming[i].ID == 0 {
				incoming[i].ID = domain.NextID(s.now().UnixMilli(), taken)
				taken = append(taken, incoming[i])
			}
		}

		res = domain.Reconcile(current, incoming, domain.PolicyIdentityMerge)

		return res.Quotes, res.Changed(), nil
	})
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	return res, nil
}

// mutate runs change on the persisted list inside one storage update and
// installs the list it returns. change reports whether the list must be
// written; when it does not, the freshly read list is installed as is.
func (s *QuoteStore) mutate(ctx context.Context, change func(current []domain.Quote) ([]domain.Quote, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		next      []domain.Quote
		written   bool
		changeErr error
	)

	err := s.kv.Update(ctx, ports.KeyQuotes, func(raw string, found bool) (string, bool, error) {
		current := s.decode(ctx, raw, found)

		list, write, err := change(current)
		if err != nil {
			changeErr = err
			return "", false, err
		}

		if !write {
			next = current
			return "", false, nil
		}

		if list == nil {
			list = []domain.Quote{}
		}

		data, err := json.Marshal(list)
		if err != nil {
			return "", false, fmt.Errorf("encoding quotes: %w", err)
		}

		next = list
		written = true

		return string(data), true, nil
	})
	if changeErr != nil {
		return changeErr
	}

	if err != nil {
		return fmt.Errorf("persisting quotes: %w", err)
	}

	s.quotes = next
	s.loaded = true

	if written {
		s.logger.DebugContext(ctx, "quotes persisted", slog.Int("count", len(next)))
	}

	return nil
}
