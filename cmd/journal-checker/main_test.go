// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/journal-checker/internal/secrets"
	"github.com/pdiddy/journal-checker/pkg/types"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	configureViper(v)
	return v
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("KV_URL", "memory://")
	t.Setenv("REVALIDATE_SECRET", "s3cret")
	t.Setenv("JOURNAL_CHECKER_CACHE_TTL", "15m")
	t.Setenv("JOURNAL_CHECKER_STORE_TABLE", "scimago")

	cfg, err := loadConfig(newTestViper(t), true)
	require.NoError(t, err)

	assert.Equal(t, "https://abc.supabase.co", cfg.Store.URL)
	assert.Equal(t, "anon", cfg.Store.APIKey)
	assert.Equal(t, "memory://", cfg.KV.URL)
	assert.Equal(t, "s3cret", cfg.RevalidateSecret)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "scimago", cfg.Store.Table)
	assert.Equal(t, types.DefaultColumns(), cfg.Store.Columns)
	assert.True(t, cfg.Cache.WarmFromSnapshot)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")
	t.Setenv("KV_URL", "")
	t.Setenv("REVALIDATE_SECRET", "")

	_, err := loadConfig(newTestViper(t), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMissingConfig)
	assert.Contains(t, err.Error(), "SUPABASE_URL")
	assert.Contains(t, err.Error(), "REVALIDATE_SECRET")
}

func TestApplySecrets_FillsOnlyEmptyKeys(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://from-env.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "")
	t.Setenv("KV_URL", "")
	t.Setenv("REVALIDATE_SECRET", "")

	v := newTestViper(t)
	applySecrets(v, secrets.Secrets{
		secrets.SupabaseURL:      "https://from-file.supabase.co",
		secrets.SupabaseAnonKey:  "file-key",
		secrets.KVURL:            "memory://",
		secrets.RevalidateSecret: "file-secret",
	})

	cfg, err := loadConfig(v, true)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.supabase.co", cfg.Store.URL)
	assert.Equal(t, "file-key", cfg.Store.APIKey)
	assert.Equal(t, "memory://", cfg.KV.URL)
	assert.Equal(t, "file-secret", cfg.RevalidateSecret)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "check", "revalidate", "top", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
