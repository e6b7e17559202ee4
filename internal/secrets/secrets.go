// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// The filename is the key and the trimmed contents are the value.
//
// Recognized files: supabase-url, supabase-anon-key, kv-url, revalidate-secret.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultDir is where the CLI looks for secret files.
const DefaultDir = ".secrets/"

// Recognized secret files.
const (
	SupabaseURL      = "supabase-url"
	SupabaseAnonKey  = "supabase-anon-key"
	KVURL            = "kv-url"
	RevalidateSecret = "revalidate-secret"
)

// ConfigKeys maps each recognized secret file to the configuration key it
// supplies a fallback for.
var ConfigKeys = map[string]string{
	SupabaseURL:      "store.url",
	SupabaseAnonKey:  "store.api_key",
	KVURL:            "kv.url",
	RevalidateSecret: "revalidate_secret",
}

// Secrets holds loaded secret values by file name.
type Secrets map[string]string

// Get returns the value for key, or "" if it was not loaded.
func (s Secrets) Get(key string) string {
	return s[key]
}

// Keys returns the loaded key names, sorted. Values are never exposed here
// so the result is safe to log.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load reads every regular, non-hidden file in dir. A missing directory is
// not an error and yields an empty set. Unreadable and empty files are
// skipped; unreadable ones are logged.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(Secrets)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			out[name] = value
		}
	}
	return out, nil
}
