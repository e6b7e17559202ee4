// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/journal-checker/internal/analytics"
	"github.com/pdiddy/journal-checker/internal/cache"
	"github.com/pdiddy/journal-checker/internal/datastore"
	"github.com/pdiddy/journal-checker/internal/kv"
	"github.com/pdiddy/journal-checker/internal/logging"
	"github.com/pdiddy/journal-checker/internal/lookup"
	"github.com/pdiddy/journal-checker/pkg/types"
)

// app holds the components every command is built from.
type app struct {
	cfg     types.Config
	logger  *zap.Logger
	kv      kv.Store
	store   *datastore.Client
	cache   *cache.Cache
	counter *analytics.Counter
	svc     *lookup.Service
}

// newApp wires the components from cfg. The caller must Close it.
func newApp(ctx context.Context, cfg types.Config) (*app, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	store, err := datastore.New(cfg.Store, nil, logger.Named("datastore"))
	if err != nil {
		logger.Sync()
		return nil, err
	}

	kvStore, err := kv.Open(ctx, cfg.KV.URL)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("opening kv store: %w", err)
	}

	c := cache.New(store, kvStore, cfg.Cache.TTL, cache.WithLogger(logger.Named("cache")))
	counter := analytics.New(kvStore, cfg.Analytics.Timeout, logger.Named("analytics"))
	svc := lookup.New(c, store,
		lookup.Config{
			Secret:          cfg.RevalidateSecret,
			SearchCacheSize: cfg.Search.CacheSize,
			SearchCacheTTL:  cfg.Search.CacheTTL,
		},
		lookup.WithRecorder(counter),
		lookup.WithCounters(kvStore),
		lookup.WithLogger(logger.Named("lookup")),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		kv:      kvStore,
		store:   store,
		cache:   c,
		counter: counter,
		svc:     svc,
	}, nil
}

// warm loads the durable snapshot when configured. Failures are logged:
// the cache fetches on first lookup either way.
func (a *app) warm(ctx context.Context) {
	if !a.cfg.Cache.WarmFromSnapshot {
		return
	}
	if _, err := a.cache.Warm(ctx); err != nil {
		a.logger.Warn("could not warm cache from snapshot", zap.Error(err))
	}
}

// Close drains pending counter increments and releases the kv store.
func (a *app) Close() error {
	a.counter.Wait()
	err := a.kv.Close()
	a.logger.Sync()
	return err
}
