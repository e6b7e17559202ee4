// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps values in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string][]byte
	counters map[string]int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string][]byte),
		counters: make(map[string]int64),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func (m *MemoryStore) TopCounters(_ context.Context, prefix string, n int) ([]Counter, error) {
	m.mu.Lock()
	var out []Counter
	for k, v := range m.counters {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Counter{Key: k, Count: v})
		}
	}
	m.mu.Unlock()
	return rank(out, n), nil
}

func (m *MemoryStore) Close() error { return nil }

// rank sorts counters by count descending, then key, and truncates to n.
func rank(cs []Counter, n int) []Counter {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Count != cs[j].Count {
			return cs[i].Count > cs[j].Count
		}
		return cs[i].Key < cs[j].Key
	})
	if n > 0 && len(cs) > n {
		cs = cs[:n]
	}
	return cs
}
