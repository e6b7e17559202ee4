// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lookup answers "is this journal in the list, and how good is it".
//
// Exact lookups go through the cache. Search lookups query the data store
// directly with a substring match and are memoised briefly. Every failure is
// one of ErrValidation, ErrNotFound, ErrUnauthorized, or a *ServiceError, so
// callers can tell a missing journal apart from a store that could not be
// reached.
package lookup

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/pdiddy/journal-checker/internal/analytics"
	"github.com/pdiddy/journal-checker/internal/cache"
	"github.com/pdiddy/journal-checker/internal/logging"
	"github.com/pdiddy/journal-checker/pkg/types"
)

var (
	// ErrValidation means the request was malformed.
	ErrValidation = errors.New("journal name required")

	// ErrNotFound means no journal matched.
	ErrNotFound = errors.New("journal not found")

	// ErrUnauthorized means the revalidation secret did not match.
	ErrUnauthorized = errors.New("invalid secret")
)

// ServiceError wraps a cache or data store failure.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Mode selects how a name is matched.
type Mode string

const (
	// ModeExact matches the whole name case-insensitively against the cache.
	ModeExact Mode = "exact"
	// ModeSearch matches the name as a substring of titles in the data store.
	ModeSearch Mode = "search"
)

// ParseMode maps a query parameter to a Mode. Empty means ModeExact.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeExact:
		return ModeExact, nil
	case ModeSearch:
		return ModeSearch, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrValidation, s)
	}
}

// Query is one lookup request.
type Query struct {
	Name string
	Mode Mode
	// First keeps only the first match in search mode.
	First bool
}

// Result holds the exact match, or the matches of a search.
type Result struct {
	Journal *types.Journal
	Matches []types.Journal
}

// Resolver is the cache the service reads exact matches from.
type Resolver interface {
	Resolve(ctx context.Context, name string) (types.Journal, error)
	ForceRefresh(ctx context.Context) error
}

// Searcher runs fail-soft substring queries against the data store.
type Searcher interface {
	FetchJournalData(ctx context.Context, query string) []types.Journal
}

// Recorder counts successful lookups.
type Recorder interface {
	Record(name string)
}

// Config holds the service settings.
type Config struct {
	// Secret gates Revalidate. Empty disables revalidation.
	Secret string

	SearchCacheSize int
	SearchCacheTTL  time.Duration
}

// Service is the lookup entry point shared by the HTTP API, the UI, and
// the CLI.
type Service struct {
	resolver Resolver
	searcher Searcher
	recorder Recorder
	counters analytics.Lister
	secret   string
	searches *expirable.LRU[string, []types.Journal]
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder counts every successful lookup.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithCounters enables TopSearches.
func WithCounters(l analytics.Lister) Option {
	return func(s *Service) { s.counters = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(l) }
}

// New creates a Service.
func New(resolver Resolver, searcher Searcher, cfg Config, opts ...Option) *Service {
	size := cfg.SearchCacheSize
	if size <= 0 {
		size = 256
	}
	ttl := cfg.SearchCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s := &Service{
		resolver: resolver,
		searcher: searcher,
		secret:   cfg.Secret,
		searches: expirable.NewLRU[string, []types.Journal](size, nil, ttl),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check looks up q.Name. The store is not contacted when the name is blank.
func (s *Service) Check(ctx context.Context, q Query) (Result, error) {
	name := strings.TrimSpace(q.Name)
	if name == "" {
		return Result{}, ErrValidation
	}

	var (
		res Result
		err error
	)
	switch q.Mode {
	case "", ModeExact:
		res, err = s.exact(ctx, name)
	case ModeSearch:
		res, err = s.search(ctx, name, q.First)
	default:
		return Result{}, fmt.Errorf("%w: unknown mode %q", ErrValidation, q.Mode)
	}
	if err != nil {
		return Result{}, err
	}

	if s.recorder != nil {
		s.recorder.Record(name)
	}
	return res, nil
}

func (s *Service) exact(ctx context.Context, name string) (Result, error) {
	j, err := s.resolver.Resolve(ctx, name)
	if errors.Is(err, cache.ErrNotFound) {
		s.logger.Debug("journal not in list", zap.String("name", name))
		return Result{}, ErrNotFound
	}
	if err != nil {
		s.logger.Error("journal lookup failed", zap.String("name", name), zap.Error(err))
		return Result{}, &ServiceError{Op: "resolving journal", Err: err}
	}
	return Result{Journal: &j}, nil
}

func (s *Service) search(ctx context.Context, name string, first bool) (Result, error) {
	key := types.NormalizeName(name)
	matches, ok := s.searches.Get(key)
	if !ok {
		matches = s.searcher.FetchJournalData(ctx, name)
		// Empty results are not memoised: the adapter reports an outage as
		// an empty result.
		if len(matches) > 0 {
			s.searches.Add(key, matches)
		}
	}
	if len(matches) == 0 {
		return Result{}, ErrNotFound
	}
	if first {
		j := matches[0]
		return Result{Journal: &j, Matches: matches[:1:1]}, nil
	}
	return Result{Matches: matches}, nil
}

// Revalidate refetches the journal table and rewrites the durable snapshot.
// A wrong or empty secret returns ErrUnauthorized and changes nothing.
func (s *Service) Revalidate(ctx context.Context, secret string) error {
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.secret)) != 1 {
		s.logger.Warn("revalidation rejected: invalid secret")
		return ErrUnauthorized
	}
	if err := s.refresh(ctx, "revalidating journals"); err != nil {
		return err
	}
	s.logger.Info("journal table revalidated")
	return nil
}

// Refresh refetches the journal table and drops memoised search results.
// It is the unauthenticated path for in-process schedulers.
func (s *Service) Refresh(ctx context.Context) error {
	return s.refresh(ctx, "refreshing journals")
}

func (s *Service) refresh(ctx context.Context, op string) error {
	if err := s.resolver.ForceRefresh(ctx); err != nil {
		s.logger.Error("journal refresh failed", zap.String("op", op), zap.Error(err))
		return &ServiceError{Op: op, Err: err}
	}
	s.searches.Purge()
	return nil
}

// TopSearches returns the n most looked-up names. n <= 0 returns all.
func (s *Service) TopSearches(ctx context.Context, n int) ([]types.SearchCount, error) {
	if s.counters == nil {
		return nil, &ServiceError{Op: "reading search counters", Err: errors.New("no counter store configured")}
	}
	top, err := analytics.Top(ctx, s.counters, n)
	if err != nil {
		return nil, &ServiceError{Op: "reading search counters", Err: err}
	}
	return top, nil
}
