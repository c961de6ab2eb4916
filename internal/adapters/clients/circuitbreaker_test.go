package clients

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newTestBreaker(maxFailures, halfOpenLimit int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   maxFailures,
		Timeout:       30 * time.Second,
		HalfOpenLimit: halfOpenLimit,
	})
	cb.now = clock.Now

	return cb, clock
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, 1)

	assert.True(t, cb.Allow())

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State(), "a success resets the failure streak")

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_ProbesAfterTimeout(t *testing.T) {
	cb, clock := newTestBreaker(1, 2)

	cb.RecordFailure()
	clock.Advance(29 * time.Second)
	assert.False(t, cb.Allow())

	clock.Advance(time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.True(t, cb.Allow(), "second probe fits the limit")
	assert.False(t, cb.Allow(), "third probe exceeds the limit")
}

func TestCircuitBreaker_HalfOpenOutcomes(t *testing.T) {
	t.Run("successes close", func(t *testing.T) {
		cb, clock := newTestBreaker(1, 2)
		cb.RecordFailure()
		clock.Advance(time.Minute)

		require.True(t, cb.Allow())
		cb.RecordSuccess()
		assert.Equal(t, StateHalfOpen, cb.State())

		require.True(t, cb.Allow())
		cb.RecordSuccess()
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("failure reopens", func(t *testing.T) {
		cb, clock := newTestBreaker(1, 2)
		cb.RecordFailure()
		clock.Advance(time.Minute)

		require.True(t, cb.Allow())
		cb.RecordFailure()

		assert.Equal(t, StateOpen, cb.State())
		assert.False(t, cb.Allow())
	})
}

func TestCircuitBreaker_NonPositiveLimits(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb, clock := newTestBreaker(1, 1)

	changes := make(chan [2]State, 3)
	cb.OnStateChange(func(from, to State) { changes <- [2]State{from, to} })

	cb.RecordFailure()
	clock.Advance(time.Minute)
	require.True(t, cb.Allow())
	cb.RecordSuccess()

	got := map[[2]State]bool{}
	for range 3 {
		select {
		case c := <-changes:
			got[c] = true
		case <-time.After(time.Second):
			t.Fatal("missing state change notification")
		}
	}

	assert.True(t, got[[2]State{StateClosed, StateOpen}])
	assert.True(t, got[[2]State{StateOpen, StateHalfOpen}])
	assert.True(t, got[[2]State{StateHalfOpen, StateClosed}])
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1000, Timeout: time.Second, HalfOpenLimit: 5})

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Go(func() {
			if cb.Allow() {
				if i%2 == 0 {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure()
				}
			}
			_ = cb.State()
		})
	}
	wg.Wait()

	assert.Equal(t, StateClosed, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
