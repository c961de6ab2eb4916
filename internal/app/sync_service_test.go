package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/mocks"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

type syncFixture struct {
	kv      *memory.Store
	store   *QuoteStore
	remote  *mocks.MockRemoteQuoteSource
	metrics *Metrics
	svc     *SyncService
}

func newSyncFixture(t *testing.T, data map[string]string, policy domain.Policy) *syncFixture {
	t.Helper()

	kv := memory.NewWithData(data)
	store := newTestStore(t, kv)
	remote := mocks.NewMockRemoteQuoteSource(t)
	metrics := NewMetrics(prometheus.NewRegistry())

	svc := NewSyncService(SyncServiceConfig{
		Remote:  remote,
		Store:   store,
		Storage: kv,
		Policy:  policy,
		Metrics: metrics,
		Now:     func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) },
		Logger:  discardLogger(),
	})

	return &syncFixture{kv: kv, store: store, remote: remote, metrics: metrics, svc: svc}
}

func TestNewSyncService_PanicsWithoutDependencies(t *testing.T) {
	kv := memory.New()
	store := NewQuoteStore(QuoteStoreConfig{Storage: kv})
	remote := mocks.NewMockRemoteQuoteSource(t)

	assert.PanicsWithValue(t, "app.NewSyncService: Remote is required", func() {
		NewSyncService(SyncServiceConfig{Store: store, Storage: kv})
	})
	assert.PanicsWithValue(t, "app.NewSyncService: Store is required", func() {
		NewSyncService(SyncServiceConfig{Remote: remote, Storage: kv})
	})
	assert.PanicsWithValue(t, "app.NewSyncService: Storage is required", func() {
		NewSyncService(SyncServiceConfig{Remote: remote, Store: store})
	})
}

func TestNewSyncService_DefaultPolicy(t *testing.T) {
	f := newSyncFixture(t, nil, "")

	assert.Equal(t, domain.PolicyIdentityMerge, f.svc.Policy())
}

func TestSyncService_SyncAppliesServerUpdates(t *testing.T) {
	f := newSyncFixture(t, map[string]string{
		ports.KeyQuotes: mustJSON(t, []domain.Quote{{ID: 1, Text: "A", Category: "X"}}),
	}, domain.PolicyIdentityMerge)

	f.remote.EXPECT().FetchRemoteQuotes(mock.Anything).Return([]domain.Quote{
		{ID: 1, Text: "B", Category: "Server"},
		{ID: 2, Text: "C", Category: "Server"},
	}, nil).Once()

	report, err := f.svc.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Updated)
	assert.True(t, report.Changed)
	assert.Equal(t, MessageConflictsResolved, report.Message)

	assert.Equal(t, []domain.Quote{
		{ID: 1, Text: "B", Category: "Server"},
		{ID: 2, Text: "C", Category: "Server"},
	}, f.store.All())
	assert.Equal(t, "2026-10-17T12:00:00Z", f.kv.Snapshot()[ports.KeyLastSyncTime])

	state := f.svc.Status(context.Background())
	assert.Equal(t, StatusComplete, state.Status)
	assert.Empty(t, state.LastError)
	require.NotNil(t, state.LastSyncTime)
	assert.Equal(t, 2026, state.LastSyncTime.Year())
	assert.Same(t, report, state.LastReport)

	assert.InDelta(t, 1.0, counterValue(t, f.metrics.syncRuns.WithLabelValues("changed")), 0)
	assert.InDelta(t, 1.0, counterValue(t, f.metrics.syncQuotes.WithLabelValues("added")), 0)
	assert.InDelta(t, 1.0, counterValue(t, f.metrics.syncQuotes.WithLabelValues("updated")), 0)
}

func TestSyncService_SyncIsIdempotent(t *testing.T) {
	f := newSyncFixture(t, nil, domain.PolicyIdentityMerge)
	batch := []domain.Quote{{ID: 101, Text: "remote", Category: "Server"}}

	f.remote.EXPECT().FetchRemoteQuotes(mock.Anything).Return(batch, nil).Twice()

	first, err := f.svc.Sync(context.Background())
	require.NoError(t, err)
	writes := f.kv.Writes()

	second, err := f.svc.Sync(context.Background())
	require.NoError(t, err)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Empty(t, second.Message)
	assert.Equal(t, writes, f.kv.Writes())
	assert.InDelta(t, 1.0, counterValue(t, f.metrics.syncRuns.WithLabelValues("unchanged")), 0)
}

func TestSyncService_RemoteUnavailable(t *testing.T) {
	raw := mustJSON(t, domain.SeedQuotes())
	f := newSyncFixture(t, map[string]string{ports.KeyQuotes: raw}, domain.PolicyServerReplace)

	f.remote.EXPECT().FetchRemoteQuotes(mock.Anything).
		Return(nil, domain.NewUnavailableError("quote-source", "status 503")).Once()

	report, err := f.svc.Sync(context.Background())

	require.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Nil(t, report)
	assert.Equal(t, raw, f.kv.Snapshot()[ports.KeyQuotes])
	assert.Zero(t, f.kv.Writes())

	state := f.svc.Status(context.Background())
	assert.Equal(t, StatusFailed, state.Status)
	assert.Contains(t, state.LastError, "status 503")
	assert.Nil(t, state.LastSyncTime)
	assert.InDelta(t, 1.0, counterValue(t, f.metrics.syncRuns.WithLabelValues("failed")), 0)
}

func TestSyncService_EmptyBatchIsNoop(t *testing.T) {
	f := newSyncFixture(t, nil, domain.PolicyServerReplace)

	f.remote.EXPECT().FetchRemoteQuotes(mock.Anything).Return([]domain.Quote{}, nil).Once()

	report, err := f.svc.Sync(context.Background())

	require.NoError(t, err)
	assert.False(t, report.Changed)
	assert.Len(t, f.store.All(), 3)
	assert.Zero(t, f.kv.Writes())
}

func TestSyncService_DropsInvalidRemoteRecords(t *testing.T) {
	f := newSyncFixture(t, nil, domain.PolicyIdentityMerge)

	f.remote.EXPECT().FetchRemoteQuotes(mock.Anything).Return([]domain.Quote{
		{ID: 50, Text: "  ", Category: "Server"},
		{ID: 51, Text: "kept", Category: "Server"},
	}, nil).Once()

	report, err := f.svc.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 1, report.Added)
	assert.Len(t, f.store.All(), 4)
}

func TestSyncService_SyncsAreSerialized(t *testing.T) {
	f := newSyncFixture(t, nil, domain.PolicyIdentityMerge)

	var inFlight, maxInFlight atomic.Int32

	f.remote.EXPECT().FetchRemoteQuotes(mock.Anything).RunAndReturn(func(context.Context) ([]domain.Quote, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}

		time.Sleep(5 * time.Millisecond)

		return []domain.Quote{{ID: 7, Text: "remote", Category: "Server"}}, nil
	}).Times(5)

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			_, err := f.svc.Sync(context.Background())
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Len(t, f.store.All(), 4)
}

func TestSyncService_StatusBeforeFirstSync(t *testing.T) {
	f := newSyncFixture(t, map[string]string{ports.KeyLastSyncTime: "garbage"}, domain.PolicyIdentityMerge)

	state := f.svc.Status(context.Background())

	assert.Equal(t, StatusIdle, state.Status)
	assert.Nil(t, state.LastSyncTime)
	assert.Nil(t, state.LastReport)
}
