// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the journal-checker CLI.
// It serves the lookup API and offers one-shot check, revalidate, and top
// commands against the same configuration.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/journal-checker/internal/secrets"
	"github.com/pdiddy/journal-checker/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// envBindings maps configuration keys to the unprefixed environment
// variables deployments already use.
var envBindings = map[string]string{
	"store.url":         "SUPABASE_URL",
	"store.api_key":     "SUPABASE_ANON_KEY",
	"kv.url":            "KV_URL",
	"revalidate_secret": "REVALIDATE_SECRET",
}

// rootCmd is the base command for the journal-checker CLI.
var rootCmd = &cobra.Command{
	Use:   "journal-checker",
	Short: "Look up journal quality scores (SJR, category, best quartile)",
	Long: `journal-checker answers whether a journal is in the ranked list and how it
scores. The table lives in a Supabase (PostgREST) database and is cached in
memory for an hour; a durable key-value store holds a refreshed snapshot and
per-journal search counters.

Use serve to run the HTTP API and form, check for a one-off lookup,
revalidate to force a refresh, and top to list the most searched journals.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(secrets.DefaultDir, nil)
		if err != nil {
			return err
		}
		applySecrets(viper.GetViper(), s)
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Keys())
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./journal-checker.yaml or ~/.config/journal-checker/config.yaml)")
	pf.String("env-file", ".env", "dotenv file loaded before reading the environment")
	pf.String("log-level", "", "log level: debug, info, warn, error (default info)")
	pf.Bool("dev", false, "human-readable development logging")
	pf.String("kv-url", "", "key-value store URL: redis://, sqlite://path, or memory://")

	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.development", pf.Lookup("dev"))
	viper.BindPFlag("kv.url", pf.Lookup("kv-url"))
}

func initConfig() {
	envFile, _ := rootCmd.PersistentFlags().GetString("env-file")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load %s: %v\n", envFile, err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("journal-checker")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "journal-checker"))
		}
	}

	configureViper(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// configureViper registers defaults and environment bindings. Every key
// needs a default so Unmarshal sees values that only exist in the
// environment.
func configureViper(v *viper.Viper) {
	var def types.Config
	def.ApplyDefaults()
	def.Cache.WarmFromSnapshot = true

	defaults := map[string]any{
		"store.url":                def.Store.URL,
		"store.api_key":            def.Store.APIKey,
		"store.table":              def.Store.Table,
		"store.page_size":          def.Store.PageSize,
		"store.search_limit":       def.Store.SearchLimit,
		"store.timeout":            def.Store.Timeout,
		"store.user_agent":         def.Store.UserAgent,
		"store.max_retries":        def.Store.MaxRetries,
		"store.columns.title":      def.Store.Columns.Title,
		"store.columns.sjr":        def.Store.Columns.SJR,
		"store.columns.category":   def.Store.Columns.Category,
		"store.columns.quartile":   def.Store.Columns.Quartile,
		"store.columns.id":         def.Store.Columns.ID,
		"cache.ttl":                def.Cache.TTL,
		"cache.refresh_schedule":   def.Cache.RefreshSchedule,
		"cache.warm_from_snapshot": def.Cache.WarmFromSnapshot,
		"kv.url":                   def.KV.URL,
		"search.cache_size":        def.Search.CacheSize,
		"search.cache_ttl":         def.Search.CacheTTL,
		"analytics.timeout":        def.Analytics.Timeout,
		"server.addr":              def.Server.Addr,
		"server.rate_limit":        def.Server.RateLimit,
		"server.rate_burst":        def.Server.RateBurst,
		"server.shutdown_timeout":  def.Server.ShutdownTimeout,
		"log.level":                def.Log.Level,
		"log.development":          def.Log.Development,
		"revalidate_secret":        def.RevalidateSecret,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix("JOURNAL_CHECKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		v.BindEnv(key, env, "JOURNAL_CHECKER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
}

// applySecrets fills configuration keys that are still empty from the
// .secrets/ directory. Flags, environment, and config file take precedence.
func applySecrets(v *viper.Viper, s secrets.Secrets) {
	for file, key := range secrets.ConfigKeys {
		if value := s.Get(file); value != "" && v.GetString(key) == "" {
			v.Set(key, value)
		}
	}
}

// loadConfig unmarshals, defaults, and validates the configuration.
func loadConfig(v *viper.Viper, requireSecret bool) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(requireSecret); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
