package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, c.Write(&m))

	return m.GetCounter().GetValue()
}

type quoteServiceFixture struct {
	kv      *memory.Store
	store   *QuoteStore
	metrics *Metrics
	svc     *QuoteService
}

func newQuoteServiceFixture(t *testing.T, data map[string]string) *quoteServiceFixture {
	t.Helper()

	kv := memory.NewWithData(data)
	store := newTestStore(t, kv)
	metrics := NewMetrics(prometheus.NewRegistry())

	svc := NewQuoteService(QuoteServiceConfig{
		Store:    store,
		Filter:   NewFilterSelection(kv, discardLogger()),
		Metrics:  metrics,
		RandIntN: func(n int) int { return n - 1 },
		Logger:   discardLogger(),
	})

	return &quoteServiceFixture{kv: kv, store: store, metrics: metrics, svc: svc}
}

func TestNewQuoteService_PanicsWithoutDependencies(t *testing.T) {
	kv := memory.New()

	assert.PanicsWithValue(t, "app.NewQuoteService: Store is required", func() {
		NewQuoteService(QuoteServiceConfig{Filter: NewFilterSelection(kv, nil)})
	})
	assert.PanicsWithValue(t, "app.NewQuoteService: Filter is required", func() {
		NewQuoteService(QuoteServiceConfig{Store: NewQuoteStore(QuoteStoreConfig{Storage: kv})})
	})
}

func TestQuoteService_AddQuote(t *testing.T) {
	f := newQuoteServiceFixture(t, nil)

	q, err := f.svc.AddQuote(context.Background(), "  Simplicity is prerequisite for reliability. ", " Programming ")

	require.NoError(t, err)
	assert.Equal(t, "Simplicity is prerequisite for reliability.", q.Text)
	assert.Equal(t, "Programming", q.Category)
	assert.Equal(t, int64(1_700_000_000_000), q.ID)

	all := f.store.All()
	require.Len(t, all, 4)
	assert.Equal(t, q, all[3])
	assert.InDelta(t, 1.0, counterValue(t, f.metrics.quotesAdded), 0)
}

func TestQuoteService_AddQuoteConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	store := NewQuoteStore(QuoteStoreConfig{Storage: kv, Logger: discardLogger()})
	store.Load(ctx)

	svc := NewQuoteService(QuoteServiceConfig{
		Store:  store,
		Filter: NewFilterSelection(kv, discardLogger()),
		Logger: discardLogger(),
	})

	const submitters = 200

	start := make(chan struct{})
	ids := make(chan int64, submitters)

	var wg sync.WaitGroup
	for i := range submitters {
		wg.Go(func() {
			<-start

			q, err := svc.AddQuote(ctx, fmt.Sprintf("Submitted %d.", i), "Burst")
			if assert.NoError(t, err) {
				ids <- q.ID
			}
		})
	}

	close(start)
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, submitters)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}

	assert.Len(t, seen, submitters)
	assert.Len(t, svc.VisibleQuotes(ctx, "Burst"), submitters)
}

func TestQuoteService_AddQuoteRejectsBlankInput(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category string
		field    string
	}{
		{"whitespace text", "   ", "X", "text"},
		{"empty category", "Quote", "", "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newQuoteServiceFixture(t, nil)

			_, err := f.svc.AddQuote(context.Background(), tt.text, tt.category)

			require.ErrorIs(t, err, domain.ErrValidation)

			var validation *domain.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)

			step, ok := GetExecutionStep(err)
			assert.True(t, ok)
			assert.Equal(t, StepValidate, step)

			assert.Len(t, f.store.All(), 3)
			assert.Zero(t, f.kv.Writes())
		})
	}
}

func TestQuoteService_VisibleQuotesUsesPersistedFilter(t *testing.T) {
	f := newQuoteServiceFixture(t, map[string]string{ports.KeySelectedCategory: "Life"})
	ctx := context.Background()

	visible := f.svc.VisibleQuotes(ctx, "")
	require.Len(t, visible, 1)
	assert.Equal(t, "Life", visible[0].Category)

	assert.Len(t, f.svc.VisibleQuotes(ctx, "all"), 3)
}

func TestQuoteService_RandomQuote(t *testing.T) {
	f := newQuoteServiceFixture(t, nil)
	ctx := context.Background()

	q, err := f.svc.RandomQuote(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, domain.SeedQuotes()[2], q)

	q, err = f.svc.RandomQuote(ctx, "Programming")
	require.NoError(t, err)
	assert.Equal(t, int64(2), q.ID)
}

func TestQuoteService_RandomQuoteNoneVisible(t *testing.T) {
	f := newQuoteServiceFixture(t, nil)

	_, err := f.svc.RandomQuote(context.Background(), "Philosophy")

	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "No quotes found.", err.Error())
}

func TestQuoteService_CategoriesTrackStore(t *testing.T) {
	f := newQuoteServiceFixture(t, nil)
	ctx := context.Background()

	assert.Equal(t, []string{"all", "Mindset", "Programming", "Life"}, f.svc.Categories(ctx))

	_, err := f.svc.AddQuote(ctx, "New", "Stoicism")
	require.NoError(t, err)

	assert.Equal(t, []string{"all", "Mindset", "Programming", "Life", "Stoicism"}, f.svc.Categories(ctx))
}

func TestQuoteService_SetFilter(t *testing.T) {
	f := newQuoteServiceFixture(t, nil)
	ctx := context.Background()

	assert.Equal(t, "all", f.svc.Filter(ctx))

	got, err := f.svc.SetFilter(ctx, "  Life ")
	require.NoError(t, err)
	assert.Equal(t, "Life", got)
	assert.Equal(t, "Life", f.svc.Filter(ctx))

	got, err = f.svc.SetFilter(ctx, "ALL")
	require.NoError(t, err)
	assert.Equal(t, "all", got)

	_, err = f.svc.SetFilter(ctx, "   ")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "all", f.kv.Snapshot()[ports.KeySelectedCategory])
}

func TestQuoteService_ExportImport(t *testing.T) {
	f := newQuoteServiceFixture(t, nil)
	ctx := context.Background()

	exported := f.svc.Export(ctx)
	assert.Equal(t, domain.SeedQuotes(), exported)

	res, err := f.svc.Import(ctx, []domain.Quote{
		{ID: 1, Text: "Believe harder.", Category: "Mindset"},
		{Text: " Imported ", Category: " Batch "},
	})

	require.NoError(t, err)
	assert.Equal(t, ImportResult{Added: 1, Updated: 1, Total: 4}, res)

	all := f.store.All()
	assert.Equal(t, "Believe harder.", all[0].Text)
	assert.Equal(t, "Imported", all[3].Text)
	assert.Equal(t, "Batch", all[3].Category)
	assert.NotZero(t, all[3].ID)
	assert.InDelta(t, 2.0, counterValue(t, f.metrics.quotesImported), 0)
}

func TestQuoteService_ImportRejectsInvalidRecords(t *testing.T) {
	f := newQuoteServiceFixture(t, nil)

	_, err := f.svc.Import(context.Background(), []domain.Quote{
		{Text: "fine", Category: "ok"},
		{Text: "", Category: "broken"},
	})

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "record 1")
	assert.Len(t, f.store.All(), 3)
	assert.Zero(t, f.kv.Writes())
}
