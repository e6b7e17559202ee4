// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP client settings for calls to the data store.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout. It is the only deadline applied
	// to store calls.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with store requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on 429/503 responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// ColumnMap names the upstream columns a journal row is read from.
type ColumnMap struct {
	Title    string `json:"title" yaml:"title" mapstructure:"title"`
	SJR      string `json:"sjr" yaml:"sjr" mapstructure:"sjr"`
	Category string `json:"category" yaml:"category" mapstructure:"category"`
	Quartile string `json:"quartile" yaml:"quartile" mapstructure:"quartile"`

	// ID is a unique column used to break title ties when paging.
	ID string `json:"id" yaml:"id" mapstructure:"id"`
}

// DefaultColumns matches the SCImago export loaded into the journals table.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		Title:    "Title",
		SJR:      "SJR-index",
		Category: "Best Categories",
		Quartile: "Best Quartile",
		ID:       "id",
	}
}

// StoreConfig configures the remote journal table.
type StoreConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URL is the Supabase project URL.
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// APIKey is the anon or service key sent as apikey and bearer token.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Table is the PostgREST table holding journal rows (default "journals").
	Table string `json:"table" yaml:"table" mapstructure:"table"`

	// PageSize is the row count per request when paging the full table (default 1000).
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size"`

	// SearchLimit caps substring-query results (default 1000).
	SearchLimit int `json:"search_limit" yaml:"search_limit" mapstructure:"search_limit"`

	Columns ColumnMap `json:"columns" yaml:"columns" mapstructure:"columns"`
}

// CacheConfig configures the journal cache.
type CacheConfig struct {
	// TTL is how long a fetched table stays fresh (default 1h).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	// RefreshSchedule is an optional cron spec for forced refreshes.
	RefreshSchedule string `json:"refresh_schedule" yaml:"refresh_schedule" mapstructure:"refresh_schedule"`

	// WarmFromSnapshot loads the durable snapshot at startup.
	WarmFromSnapshot bool `json:"warm_from_snapshot" yaml:"warm_from_snapshot" mapstructure:"warm_from_snapshot"`
}

// KVConfig configures the durable key-value store.
type KVConfig struct {
	// URL selects the backend: redis://, rediss://, sqlite://<path>, or memory://.
	URL string `json:"url" yaml:"url" mapstructure:"url"`
}

// SearchConfig configures substring-search mode.
type SearchConfig struct {
	// CacheSize is the number of memoised queries (default 256).
	CacheSize int `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`

	// CacheTTL is how long a memoised query result lives (default 5m).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// AnalyticsConfig configures the search counter.
type AnalyticsConfig struct {
	// Timeout bounds each detached increment (default 2s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// RateLimit is requests per second allowed per client (0 disables).
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// RateBurst is the token bucket size per client.
	RateBurst int `json:"rate_burst" yaml:"rate_burst" mapstructure:"rate_burst"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `json:"level" yaml:"level" mapstructure:"level"`
	Development bool   `json:"development" yaml:"development" mapstructure:"development"`
}

// Config groups every component's settings.
type Config struct {
	Store            StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	Cache            CacheConfig     `json:"cache" yaml:"cache" mapstructure:"cache"`
	KV               KVConfig        `json:"kv" yaml:"kv" mapstructure:"kv"`
	Search           SearchConfig    `json:"search" yaml:"search" mapstructure:"search"`
	Analytics        AnalyticsConfig `json:"analytics" yaml:"analytics" mapstructure:"analytics"`
	Server           ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Log              LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
	RevalidateSecret string          `json:"-" yaml:"-" mapstructure:"revalidate_secret"`
}

// ErrMissingConfig is wrapped by Validate for each absent required value.
var ErrMissingConfig = errors.New("missing required configuration")

// ApplyDefaults fills zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Store.Table == "" {
		c.Store.Table = "journals"
	}
	if c.Store.PageSize <= 0 {
		c.Store.PageSize = 1000
	}
	if c.Store.SearchLimit <= 0 {
		c.Store.SearchLimit = 1000
	}
	if c.Store.Timeout <= 0 {
		c.Store.Timeout = 30 * time.Second
	}
	if c.Store.UserAgent == "" {
		c.Store.UserAgent = "journal-checker/0.1"
	}
	if c.Store.MaxRetries <= 0 {
		c.Store.MaxRetries = 3
	}
	def := DefaultColumns()
	if c.Store.Columns.Title == "" {
		c.Store.Columns.Title = def.Title
	}
	if c.Store.Columns.SJR == "" {
		c.Store.Columns.SJR = def.SJR
	}
	if c.Store.Columns.Category == "" {
		c.Store.Columns.Category = def.Category
	}
	if c.Store.Columns.Quartile == "" {
		c.Store.Columns.Quartile = def.Quartile
	}
	if c.Store.Columns.ID == "" {
		c.Store.Columns.ID = def.ID
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = time.Hour
	}
	if c.Search.CacheSize <= 0 {
		c.Search.CacheSize = 256
	}
	if c.Search.CacheTTL <= 0 {
		c.Search.CacheTTL = 5 * time.Minute
	}
	if c.Analytics.Timeout <= 0 {
		c.Analytics.Timeout = 2 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 20
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports every missing required value. requireSecret is set by
// commands that expose or perform revalidation.
func (c *Config) Validate(requireSecret bool) error {
	var errs []error
	if c.Store.URL == "" {
		errs = append(errs, fmt.Errorf("%w: store.url (SUPABASE_URL)", ErrMissingConfig))
	}
	if c.Store.APIKey == "" {
		errs = append(errs, fmt.Errorf("%w: store.api_key (SUPABASE_ANON_KEY)", ErrMissingConfig))
	}
	if c.KV.URL == "" {
		errs = append(errs, fmt.Errorf("%w: kv.url (KV_URL)", ErrMissingConfig))
	}
	if requireSecret && c.RevalidateSecret == "" {
		errs = append(errs, fmt.Errorf("%w: revalidate_secret (REVALIDATE_SECRET)", ErrMissingConfig))
	}
	return errors.Join(errs...)
}
