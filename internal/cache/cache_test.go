// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/journal-checker/internal/kv"
	"github.com/pdiddy/journal-checker/pkg/types"
)

var sampleJournals = []types.Journal{
	{Name: "Nature", SJR: 15.2, Category: "Multidisciplinary", BestQuartile: "Q1"},
	{Name: "Cell", SJR: 24.3, Category: "Biochemistry", BestQuartile: "Q1"},
	{Name: "Journal of Obscure Results", SJR: 0},
}

// fakeFetcher serves a fixed table and counts full-table fetches.
type fakeFetcher struct {
	mu       sync.Mutex
	journals []types.Journal
	err      error
	gate     chan struct{} // when non-nil, Fetch blocks until closed
	entered  chan struct{}
	calls    atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, query string) ([]types.Journal, error) {
	f.calls.Add(1)
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.Journal(nil), f.journals...), nil
}

func (f *fakeFetcher) set(journals []types.Journal, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.journals, f.err = journals, err
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// failingStore rejects writes.
type failingStore struct{ kv.Store }

func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("kv unavailable")
}

// ctxFetcher and ctxStore fail once their context is done, the way a real
// HTTP fetch or Redis write would.
type ctxFetcher struct{ Fetcher }

func (f ctxFetcher) Fetch(ctx context.Context, query string) ([]types.Journal, error) {
	rows, err := f.Fetcher.Fetch(ctx, query)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return rows, err
}

type ctxStore struct{ kv.Store }

func (s ctxStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.Set(ctx, key, value)
}

func newTestCache(f Fetcher, store kv.Store, clock *fakeClock) *Cache {
	return New(f, store, time.Hour, WithClock(clock.Now))
}

// --- Resolve ---

func TestResolve_CaseInsensitive(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals}
	c := newTestCache(f, kv.NewMemoryStore(), newFakeClock())

	for _, name := range []string{"nature", "NATURE", "  Nature  "} {
		got, err := c.Resolve(context.Background(), name)
		require.NoError(t, err, name)
		assert.Equal(t, sampleJournals[0], got)
	}
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestResolve_NotFound(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals}
	c := newTestCache(f, kv.NewMemoryStore(), newFakeClock())

	_, err := c.Resolve(context.Background(), "zzz-nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_StableWithinTTL(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals}
	clock := newFakeClock()
	c := newTestCache(f, kv.NewMemoryStore(), clock)

	first, err := c.Resolve(context.Background(), "cell")
	require.NoError(t, err)

	// Upstream changes are not visible until the TTL passes.
	f.set([]types.Journal{{Name: "Cell", SJR: 1}}, nil)
	clock.Advance(59 * time.Minute)

	second, err := c.Resolve(context.Background(), "cell")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestResolve_RefetchesOnceAfterTTL(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals}
	clock := newFakeClock()
	c := newTestCache(f, kv.NewMemoryStore(), clock)

	_, err := c.Resolve(context.Background(), "cell")
	require.NoError(t, err)

	f.set([]types.Journal{{Name: "Cell", SJR: 1}}, nil)
	clock.Advance(time.Hour)

	got, err := c.Resolve(context.Background(), "cell")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.SJR)

	_, err = c.Resolve(context.Background(), "cell")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestResolve_ConcurrentCallersShareOneFetch(t *testing.T) {
	f := &fakeFetcher{
		journals: sampleJournals,
		gate:     make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	c := newTestCache(f, kv.NewMemoryStore(), newFakeClock())

	const callers = 32
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Resolve(context.Background(), "nature")
			errs <- err
		}()
	}

	<-f.entered
	time.Sleep(20 * time.Millisecond) // let the other callers reach the flight
	close(f.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestResolve_RefreshFailureIsAnError(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals}
	clock := newFakeClock()
	c := newTestCache(f, kv.NewMemoryStore(), clock)

	_, err := c.Resolve(context.Background(), "nature")
	require.NoError(t, err)

	upstream := errors.New("connection refused")
	f.set(nil, upstream)
	clock.Advance(2 * time.Hour)

	_, err = c.Resolve(context.Background(), "nature")
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestResolve_EmptyTableIsAnError(t *testing.T) {
	f := &fakeFetcher{journals: nil}
	c := newTestCache(f, kv.NewMemoryStore(), newFakeClock())

	_, err := c.Resolve(context.Background(), "nature")
	assert.ErrorIs(t, err, ErrEmptyTable)
	assert.Zero(t, c.Stats().Journals)
}

func TestResolve_CallerCancellationDoesNotAbortFetch(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals}
	c := newTestCache(f, kv.NewMemoryStore(), newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := c.Resolve(ctx, "nature")
	require.NoError(t, err)
	assert.Equal(t, "Nature", got.Name)
}

// --- ForceRefresh ---

func TestForceRefresh_PersistsAndPublishes(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals}
	store := kv.NewMemoryStore()
	clock := newFakeClock()
	c := newTestCache(f, store, clock)

	require.NoError(t, c.ForceRefresh(context.Background()))

	data, err := store.Get(context.Background(), SnapshotKey)
	require.NoError(t, err)
	var rec types.SnapshotRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Len(t, rec.Journals, 3)
	assert.Equal(t, sampleJournals[0], rec.Journals["nature"])
	assert.True(t, rec.FetchedAt.Equal(clock.Now()))

	st := c.Stats()
	assert.Equal(t, 3, st.Journals)
	assert.True(t, st.Fresh)

	// Published snapshot serves lookups without another fetch.
	_, err = c.Resolve(context.Background(), "cell")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestForceRefresh_AlwaysFetches(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals}
	c := newTestCache(f, kv.NewMemoryStore(), newFakeClock())

	_, err := c.Resolve(context.Background(), "nature")
	require.NoError(t, err)
	require.NoError(t, c.ForceRefresh(context.Background()))
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestForceRefresh_PersistFailureLeavesSnapshot(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals}
	clock := newFakeClock()
	c := newTestCache(f, failingStore{kv.NewMemoryStore()}, clock)

	_, err := c.Resolve(context.Background(), "nature")
	require.NoError(t, err)
	before := c.Stats()

	f.set([]types.Journal{{Name: "Nature", SJR: 99}}, nil)
	clock.Advance(time.Minute)

	err = c.ForceRefresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persisting journal snapshot")

	after := c.Stats()
	assert.Equal(t, before.FetchedAt, after.FetchedAt)
	got, err := c.Resolve(context.Background(), "nature")
	require.NoError(t, err)
	assert.Equal(t, 15.2, got.SJR)
}

func TestForceRefresh_FetchFailureLeavesStore(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	store := kv.NewMemoryStore()
	c := newTestCache(f, store, newFakeClock())

	require.Error(t, c.ForceRefresh(context.Background()))
	_, err := store.Get(context.Background(), SnapshotKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	assert.True(t, c.Stats().FetchedAt.IsZero())
}

func TestForceRefresh_CallerCancellationDoesNotAbortRefresh(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals, gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	store := kv.NewMemoryStore()
	c := newTestCache(ctxFetcher{f}, ctxStore{store}, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- c.ForceRefresh(ctx) }()
	<-f.entered

	second := make(chan error, 1)
	go func() { second <- c.ForceRefresh(context.Background()) }()
	cancel()
	close(f.gate)

	require.NoError(t, <-first)
	require.NoError(t, <-second)

	_, err := store.Get(context.Background(), SnapshotKey)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Stats().Journals)
}

func TestForceRefresh_CancelledContext(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals}
	store := kv.NewMemoryStore()
	c := newTestCache(ctxFetcher{f}, ctxStore{store}, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.ForceRefresh(ctx))
	_, err := store.Get(context.Background(), SnapshotKey)
	assert.NoError(t, err)
}

// --- Warm ---

func TestWarm_LoadsSnapshotAndKeepsFetchTime(t *testing.T) {
	store := kv.NewMemoryStore()
	clock := newFakeClock()

	writer := newTestCache(&fakeFetcher{journals: sampleJournals}, store, clock)
	require.NoError(t, writer.ForceRefresh(context.Background()))

	clock.Advance(30 * time.Minute)
	f := &fakeFetcher{journals: []types.Journal{{Name: "Nature", SJR: 1}}}
	reader := newTestCache(f, store, clock)

	ok, err := reader.Warm(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := reader.Resolve(context.Background(), "nature")
	require.NoError(t, err)
	assert.Equal(t, 15.2, got.SJR)
	assert.Zero(t, f.calls.Load())

	// The snapshot was 30 minutes old, so it expires 30 minutes later.
	clock.Advance(30 * time.Minute)
	got, err = reader.Resolve(context.Background(), "nature")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.SJR)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestWarm_NoSnapshot(t *testing.T) {
	c := newTestCache(&fakeFetcher{}, kv.NewMemoryStore(), newFakeClock())
	ok, err := c.Warm(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	c = New(&fakeFetcher{}, nil, 0)
	ok, err = c.Warm(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWarm_CorruptSnapshot(t *testing.T) {
	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), SnapshotKey, []byte("{not json")))

	c := newTestCache(&fakeFetcher{}, store, newFakeClock())
	_, err := c.Warm(context.Background())
	assert.Error(t, err)
}

func TestWarm_DoesNotReplaceNewerSnapshot(t *testing.T) {
	store := kv.NewMemoryStore()
	clock := newFakeClock()
	old, _ := json.Marshal(types.SnapshotRecord{
		FetchedAt: clock.Now().Add(-time.Minute),
		Journals:  map[string]types.Journal{"nature": {Name: "Nature", SJR: 1}},
	})
	require.NoError(t, store.Set(context.Background(), SnapshotKey, old))

	c := newTestCache(&fakeFetcher{journals: sampleJournals}, store, clock)
	_, err := c.Resolve(context.Background(), "nature")
	require.NoError(t, err)

	ok, err := c.Warm(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

// --- Journals / Stats ---

func TestJournals_SortedAndNoFetch(t *testing.T) {
	f := &fakeFetcher{journals: sampleJournals}
	c := newTestCache(f, kv.NewMemoryStore(), newFakeClock())
	assert.Nil(t, c.Journals())
	assert.Zero(t, f.calls.Load())

	_, err := c.Resolve(context.Background(), "cell")
	require.NoError(t, err)

	got := c.Journals()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Cell", "Journal of Obscure Results", "Nature"},
		[]string{got[0].Name, got[1].Name, got[2].Name})
}

func TestStats_TracksFreshness(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(&fakeFetcher{journals: sampleJournals}, kv.NewMemoryStore(), clock)

	assert.Equal(t, Stats{}, c.Stats())

	_, err := c.Resolve(context.Background(), "cell")
	require.NoError(t, err)
	st := c.Stats()
	assert.True(t, st.Fresh)
	assert.Equal(t, int64(1), st.Refreshes)

	clock.Advance(time.Hour)
	assert.False(t, c.Stats().Fresh)
}
