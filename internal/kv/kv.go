// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package kv is the durable key-value store behind the journal snapshot and
// the per-name search counters. Backends: SQLite (sqlite://path), Redis
// (redis:// or rediss://), and an in-process map (memory://) for tests and
// local runs.
package kv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Counter is one integer counter and its key.
type Counter struct {
	Key   string
	Count int64
}

// Store is a durable key-value store. Implementations provide atomic
// single-key writes and increments.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Incr atomically adds one to the counter at key, creating it at 1,
	// and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// TopCounters returns up to n counters whose key starts with prefix,
	// highest count first, ties broken by key.
	TopCounters(ctx context.Context, prefix string, n int) ([]Counter, error)

	// Close releases the backend connection.
	Close() error
}

// Open connects to the store named by rawURL.
func Open(ctx context.Context, rawURL string) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing kv URL: %w", err)
	}

	switch u.Scheme {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3", "file":
		path := strings.TrimPrefix(rawURL, u.Scheme+"://")
		if path == "" {
			return nil, errors.New("sqlite kv URL needs a path, e.g. sqlite://data/journal-checker.db")
		}
		return OpenSQLite(path)
	case "redis", "rediss":
		return OpenRedis(ctx, rawURL)
	case "":
		return nil, fmt.Errorf("kv URL %q has no scheme", rawURL)
	default:
		return nil, fmt.Errorf("unsupported kv scheme %q", u.Scheme)
	}
}
