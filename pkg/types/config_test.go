// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
)

func TestApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()

	assert.Equal(t, "journals", c.Store.Table)
	assert.Equal(t, 1000, c.Store.PageSize)
	assert.Equal(t, 1000, c.Store.SearchLimit)
	assert.Equal(t, 30*time.Second, c.Store.Timeout)
	assert.Equal(t, 3, c.Store.MaxRetries)
	assert.Equal(t, DefaultColumns(), c.Store.Columns)
	assert.Equal(t, time.Hour, c.Cache.TTL)
	assert.Equal(t, 256, c.Search.CacheSize)
	assert.Equal(t, 5*time.Minute, c.Search.CacheTTL)
	assert.Equal(t, 2*time.Second, c.Analytics.Timeout)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "info", c.Log.Level)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	c := Config{
		Store: StoreConfig{Table: "scimago", Columns: ColumnMap{Title: "name"}},
		Cache: CacheConfig{TTL: 10 * time.Minute},
	}
	c.ApplyDefaults()

	assert.Equal(t, "scimago", c.Store.Table)
	assert.Equal(t, "name", c.Store.Columns.Title)
	assert.Equal(t, "SJR-index", c.Store.Columns.SJR)
	assert.Equal(t, 10*time.Minute, c.Cache.TTL)
}

func TestValidate(t *testing.T) {
	full := Config{
		Store:            StoreConfig{URL: "https://x.supabase.co", APIKey: "k"},
		KV:               KVConfig{URL: "memory://"},
		RevalidateSecret: "s",
	}
	assert.NoError(t, full.Validate(true))

	noSecret := full
	noSecret.RevalidateSecret = ""
	assert.NoError(t, noSecret.Validate(false))
	err := noSecret.Validate(true)
	assert.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), "REVALIDATE_SECRET")

	err = (&Config{}).Validate(false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfig))
	for _, want := range []string{"SUPABASE_URL", "SUPABASE_ANON_KEY", "KV_URL"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestConfig_YAML(t *testing.T) {
	doc := `
store:
  url: https://x.supabase.co
  table: scimago
  timeout: 5s
  columns:
    title: name
    sjr: sjr
cache:
  ttl: 30m
  refresh_schedule: "@every 1h"
`
	var c Config
	require.NoError(t, yaml.Unmarshal([]byte(doc), &c))
	c.ApplyDefaults()

	assert.Equal(t, "https://x.supabase.co", c.Store.URL)
	assert.Equal(t, 5*time.Second, c.Store.Timeout)
	assert.Equal(t, ColumnMap{Title: "name", SJR: "sjr", Category: "Best Categories", Quartile: "Best Quartile", ID: "id"}, c.Store.Columns)
	assert.Equal(t, 30*time.Minute, c.Cache.TTL)
	assert.Equal(t, "@every 1h", c.Cache.RefreshSchedule)
}

func TestJournalKey(t *testing.T) {
	assert.Equal(t, "nature", Journal{Name: "  Nature "}.Key())
	assert.Equal(t, "the lancet", NormalizeName("The LANCET"))
}
