// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache holds the in-memory journal table keyed by lower-case name.
//
// The whole table is fetched at once and published as one immutable
// snapshot with a single fetch time. A snapshot older than the TTL is
// replaced on the next lookup; concurrent lookups that see it expire share
// one upstream fetch. ForceRefresh refetches unconditionally and also writes
// the snapshot to the durable key-value store so other processes can warm
// from it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/journal-checker/internal/kv"
	"github.com/pdiddy/journal-checker/internal/logging"
	"github.com/pdiddy/journal-checker/internal/metrics"
	"github.com/pdiddy/journal-checker/pkg/types"
)

// SnapshotKey is the durable key holding the last forced refresh.
const SnapshotKey = "journals-data"

// DefaultTTL is how long a fetched table is served before refetching.
const DefaultTTL = time.Hour

const (
	triggerTTL    = "ttl"
	triggerForced = "forced"
	triggerWarm   = "warm"
)

var (
	// ErrNotFound is returned by Resolve when no journal has the name.
	ErrNotFound = errors.New("journal not found")

	// ErrEmptyTable is returned when a refresh succeeds but yields no rows.
	// An empty table is never published or persisted.
	ErrEmptyTable = errors.New("data store returned no journals")
)

// Fetcher loads journals from the data store. An empty query means the
// full table. Failures must be returned, not swallowed.
type Fetcher interface {
	Fetch(ctx context.Context, query string) ([]types.Journal, error)
}

type snapshot struct {
	entries   map[string]types.Journal
	fetchedAt time.Time
}

// Stats describes the published snapshot.
type Stats struct {
	Journals  int       `json:"journals"`
	FetchedAt time.Time `json:"fetchedAt"`
	Fresh     bool      `json:"fresh"`
	Refreshes int64     `json:"refreshes"`
}

// Cache is the journal table cache. The zero value is not usable; call New.
type Cache struct {
	fetcher Fetcher
	store   kv.Store
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger

	current   atomic.Pointer[snapshot]
	flight    singleflight.Group
	refreshes atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = logging.OrNop(l) }
}

// New creates an empty cache. store receives the snapshot on ForceRefresh
// and is read by Warm. A ttl <= 0 uses DefaultTTL.
func New(fetcher Fetcher, store kv.Store, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		fetcher: fetcher,
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the journal whose name matches name case-insensitively.
// An absent or expired snapshot is refetched first; a failed refetch is
// returned as an error and nothing stale is served in its place.
func (c *Cache) Resolve(ctx context.Context, name string) (types.Journal, error) {
	snap, err := c.fresh(ctx)
	if err != nil {
		return types.Journal{}, err
	}

	j, ok := snap.entries[types.NormalizeName(name)]
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return types.Journal{}, ErrNotFound
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return j, nil
}

// fresh returns a snapshot younger than the TTL, fetching one if needed.
// Callers arriving while a fetch is in flight wait for its result.
func (c *Cache) fresh(ctx context.Context) (*snapshot, error) {
	if s := c.current.Load(); c.valid(s) {
		return s, nil
	}

	v, err, shared := c.flight.Do(triggerTTL, func() (any, error) {
		// A flight that finished just before this one started may already
		// have published.
		if s := c.current.Load(); c.valid(s) {
			return s, nil
		}
		// The fetch outlives any single caller's cancellation: waiters
		// share its result.
		s, err := c.load(context.WithoutCancel(ctx), triggerTTL)
		if err != nil {
			return nil, err
		}
		c.publish(s)
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("refreshing journal cache: %w", err)
	}
	if shared {
		c.logger.Debug("joined in-flight cache refresh")
	}
	return v.(*snapshot), nil
}

func (c *Cache) valid(s *snapshot) bool {
	return s != nil && c.now().Sub(s.fetchedAt) < c.ttl
}

// ForceRefresh refetches the full table, persists it under SnapshotKey,
// and then publishes it. If either the fetch or the write fails, the
// published snapshot and its fetch time are left unchanged.
func (c *Cache) ForceRefresh(ctx context.Context) error {
	_, err, _ := c.flight.Do(triggerForced, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		s, err := c.load(ctx, triggerForced)
		if err != nil {
			return nil, err
		}
		if err := c.persist(ctx, s); err != nil {
			metrics.CacheRefreshes.WithLabelValues(triggerForced, "persist_error").Inc()
			return nil, err
		}
		c.publish(s)
		return s, nil
	})
	if err != nil {
		return fmt.Errorf("forcing journal cache refresh: %w", err)
	}
	return nil
}

// Warm publishes the durable snapshot if one exists and is newer than the
// current one. The stored fetch time is kept, so an old snapshot expires
// on schedule. It reports whether a snapshot was published.
func (c *Cache) Warm(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	data, err := c.store.Get(ctx, SnapshotKey)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading journal snapshot: %w", err)
	}

	var rec types.SnapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return false, fmt.Errorf("decoding journal snapshot: %w", err)
	}
	if len(rec.Journals) == 0 {
		return false, nil
	}

	entries := make(map[string]types.Journal, len(rec.Journals))
	for _, j := range rec.Journals {
		if j.Name == "" {
			continue
		}
		entries[j.Key()] = j
	}
	s := &snapshot{entries: entries, fetchedAt: rec.FetchedAt}

	if cur := c.current.Load(); cur != nil && !cur.fetchedAt.Before(s.fetchedAt) {
		return false, nil
	}
	c.publish(s)
	metrics.CacheRefreshes.WithLabelValues(triggerWarm, "ok").Inc()
	c.logger.Info("warmed journal cache from snapshot",
		zap.Int("journals", len(entries)),
		zap.Time("fetched_at", rec.FetchedAt))
	return true, nil
}

// Stats reports on the published snapshot.
func (c *Cache) Stats() Stats {
	st := Stats{Refreshes: c.refreshes.Load()}
	if s := c.current.Load(); s != nil {
		st.Journals = len(s.entries)
		st.FetchedAt = s.fetchedAt
		st.Fresh = c.valid(s)
	}
	return st
}

// Journals returns the published snapshot sorted by name. It never fetches.
func (c *Cache) Journals() []types.Journal {
	s := c.current.Load()
	if s == nil {
		return nil
	}
	out := make([]types.Journal, 0, len(s.entries))
	for _, j := range s.entries {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// load fetches the full table and builds an unpublished snapshot.
func (c *Cache) load(ctx context.Context, trigger string) (*snapshot, error) {
	start := c.now()
	journals, err := c.fetcher.Fetch(ctx, "")
	if err == nil && len(journals) == 0 {
		err = ErrEmptyTable
	}
	if err != nil {
		metrics.CacheRefreshes.WithLabelValues(trigger, "error").Inc()
		c.logger.Error("journal cache refresh failed",
			zap.String("trigger", trigger),
			zap.Error(err))
		return nil, err
	}

	entries := make(map[string]types.Journal, len(journals))
	for _, j := range journals {
		entries[j.Key()] = j
	}

	c.refreshes.Add(1)
	metrics.CacheRefreshes.WithLabelValues(trigger, "ok").Inc()
	c.logger.Info("journal cache refreshed",
		zap.String("trigger", trigger),
		zap.Int("rows", len(journals)),
		zap.Int("journals", len(entries)),
		zap.Duration("elapsed", c.now().Sub(start)))
	return &snapshot{entries: entries, fetchedAt: c.now()}, nil
}

func (c *Cache) persist(ctx context.Context, s *snapshot) error {
	if c.store == nil {
		return errors.New("no snapshot store configured")
	}
	data, err := json.Marshal(types.SnapshotRecord{FetchedAt: s.fetchedAt, Journals: s.entries})
	if err != nil {
		return fmt.Errorf("encoding journal snapshot: %w", err)
	}
	if err := c.store.Set(ctx, SnapshotKey, data); err != nil {
		return fmt.Errorf("persisting journal snapshot: %w", err)
	}
	return nil
}

// publish replaces the snapshot in one atomic store; readers see either
// the old map or the new one.
func (c *Cache) publish(s *snapshot) {
	c.current.Store(s)
	metrics.CacheSize.Set(float64(len(s.entries)))
}
