// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analytics counts successful lookups per journal name.
//
// Increments are best-effort. Record returns immediately and the write
// happens on a detached goroutine with its own deadline, so a slow or
// unavailable store never delays or fails a lookup.
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/journal-checker/internal/kv"
	"github.com/pdiddy/journal-checker/internal/logging"
	"github.com/pdiddy/journal-checker/internal/metrics"
	"github.com/pdiddy/journal-checker/pkg/types"
)

// KeyPrefix precedes the lower-case journal name in counter keys.
const KeyPrefix = "search:"

// DefaultTimeout bounds a single increment.
const DefaultTimeout = 2 * time.Second

// Incrementer is the part of kv.Store the counter needs.
type Incrementer interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// Counter records search counts.
type Counter struct {
	store   Incrementer
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// New creates a Counter. A nil store makes Record a no-op.
func New(store Incrementer, timeout time.Duration, logger *zap.Logger) *Counter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Counter{store: store, timeout: timeout, logger: logging.OrNop(logger)}
}

// Key returns the counter key for a journal name.
func Key(name string) string {
	return KeyPrefix + types.NormalizeName(name)
}

// Record schedules one increment for name and returns without waiting.
func (c *Counter) Record(name string) {
	if c == nil || c.store == nil {
		return
	}
	key := Key(name)
	if key == KeyPrefix {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		n, err := c.store.Incr(ctx, key)
		metrics.AnalyticsIncrements.WithLabelValues(metrics.Outcome(err)).Inc()
		if err != nil {
			c.logger.Debug("search counter increment failed",
				zap.String("key", key),
				zap.Error(err))
			return
		}
		c.logger.Debug("search counter incremented",
			zap.String("key", key),
			zap.Int64("count", n))
	}()
}

// Wait blocks until every scheduled increment has finished.
func (c *Counter) Wait() {
	if c == nil {
		return
	}
	c.wg.Wait()
}

// Lister is the part of kv.Store that reads counters back.
type Lister interface {
	TopCounters(ctx context.Context, prefix string, n int) ([]kv.Counter, error)
}

// Top returns the n most searched names with their counts, most searched
// first. n <= 0 returns all of them.
func Top(ctx context.Context, store Lister, n int) ([]types.SearchCount, error) {
	counters, err := store.TopCounters(ctx, KeyPrefix, n)
	if err != nil {
		return nil, fmt.Errorf("reading search counters: %w", err)
	}
	out := make([]types.SearchCount, 0, len(counters))
	for _, c := range counters {
		out = append(out, types.SearchCount{
			Name:  c.Key[len(KeyPrefix):],
			Count: c.Count,
		})
	}
	return out, nil
}
