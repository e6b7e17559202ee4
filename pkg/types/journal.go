// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared records and per-component configuration
// for journal-checker: the normalized Journal, search counters, and the
// settings each internal package is constructed from.
package types

import (
	"strings"
	"time"
)

// Journal is a normalized row from the journal metrics table.
// Values are never mutated after construction.
type Journal struct {
	// Name is the canonical title as stored upstream. Never empty for a
	// record returned to a caller.
	Name string `json:"name" yaml:"name"`

	// SJR is the SCImago Journal Rank score. Absent, null, or unparseable
	// upstream values are stored as 0; the value is always finite and >= 0.
	SJR float64 `json:"sjr" yaml:"sjr"`

	// Category is the best-performing subject classification. May be empty.
	Category string `json:"category" yaml:"category"`

	// BestQuartile is Q1..Q4, or a composite string such as "Q1 (Oncology)".
	BestQuartile string `json:"bestQuartile,omitempty" yaml:"best_quartile,omitempty"`
}

// Key returns the cache and counter key for the journal name.
func (j Journal) Key() string {
	return NormalizeName(j.Name)
}

// NormalizeName lower-cases and trims a user-supplied or stored journal name
// so lookups are case-insensitive.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SearchCount is one entry of the per-name lookup counter.
type SearchCount struct {
	Name  string `json:"name" yaml:"name"`
	Count int64  `json:"count" yaml:"count"`
}

// SnapshotRecord is the durable form of the journal cache written by an
// explicit refresh and read back when a process warms its cache.
type SnapshotRecord struct {
	FetchedAt time.Time          `json:"fetchedAt"`
	Journals  map[string]Journal `json:"journals"`
}
