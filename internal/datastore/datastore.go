// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package datastore reads journal rows from a Supabase (PostgREST) table and
// normalizes them into types.Journal records.
//
// Two query modes exist: the full table, paged until a short page, and a
// case-insensitive substring match on the title column capped at
// StoreConfig.SearchLimit rows. Fetch reports store failures to the caller;
// FetchJournalData logs them and degrades to an empty result.
package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/journal-checker/internal/httputil"
	"github.com/pdiddy/journal-checker/internal/logging"
	"github.com/pdiddy/journal-checker/internal/metrics"
	"github.com/pdiddy/journal-checker/pkg/types"
)

const (
	modeFull   = "full"
	modeSearch = "search"

	// maxPages stops a misbehaving server from paging forever.
	maxPages = 10000
)

// StatusError is returned when PostgREST answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("data store returned HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("data store returned HTTP %d", e.StatusCode)
}

// Client queries the journal table.
type Client struct {
	httpClient *http.Client
	cfg        types.StoreConfig
	baseURL    string
	logger     *zap.Logger
}

// New creates a Client. A nil httpClient gets one with cfg.Timeout.
func New(cfg types.StoreConfig, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("data store URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("data store API key is required")
	}
	if cfg.Table == "" {
		cfg.Table = "journals"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 1000
	}
	if cfg.Columns.Title == "" {
		cfg.Columns = types.DefaultColumns()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		baseURL:    strings.TrimSuffix(cfg.URL, "/") + "/rest/v1/" + url.PathEscape(cfg.Table),
		logger:     logging.OrNop(logger),
	}, nil
}

// FetchJournalData returns the full table when query is empty, otherwise the
// rows whose title contains query (case-insensitive). Store failures are
// logged and produce an empty, non-nil slice.
func (c *Client) FetchJournalData(ctx context.Context, query string) []types.Journal {
	journals, err := c.Fetch(ctx, query)
	if err != nil {
		c.logger.Error("fetching journal data",
			zap.String("query", query),
			zap.Error(err))
		return []types.Journal{}
	}
	return journals
}

// Fetch runs the same query as FetchJournalData but returns store failures.
func (c *Client) Fetch(ctx context.Context, query string) ([]types.Journal, error) {
	query = strings.TrimSpace(query)
	mode := modeFull
	if query != "" {
		mode = modeSearch
	}

	start := time.Now()
	var (
		journals []types.Journal
		err      error
	)
	if mode == modeFull {
		journals, err = c.fetchAll(ctx)
	} else {
		journals, err = c.search(ctx, query)
	}
	metrics.StoreDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	metrics.StoreRequests.WithLabelValues(mode, metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched journals",
		zap.String("mode", mode),
		zap.String("query", query),
		zap.Int("rows", len(journals)),
		zap.Duration("elapsed", time.Since(start)))
	return journals, nil
}

// fetchAll pages through the table ordered by title, then by the unique
// id column so ties cannot straddle a page boundary. The server may cap a
// page below PageSize (PostgREST max-rows), so the offset advances by the
// rows actually returned and only an empty page ends the table.
func (c *Client) fetchAll(ctx context.Context) ([]types.Journal, error) {
	var all []types.Journal
	offset := 0
	for page := 0; page < maxPages; page++ {
		params := url.Values{
			"select": {"*"},
			"order":  {c.order()},
			"limit":  {strconv.Itoa(c.cfg.PageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		body, err := c.get(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", page, err)
		}
		rows, n, err := parseRows(body, c.cfg.Columns)
		if err != nil {
			return nil, fmt.Errorf("parsing page %d: %w", page, err)
		}
		if n == 0 {
			return all, nil
		}
		c.noteDropped(n-len(rows), modeFull)
		all = append(all, rows...)
		offset += n
	}
	return nil, fmt.Errorf("table exceeds %d pages", maxPages)
}

func (c *Client) order() string {
	order := c.cfg.Columns.Title + ".asc"
	if c.cfg.Columns.ID != "" {
		order += "," + c.cfg.Columns.ID + ".asc"
	}
	return order
}

func (c *Client) search(ctx context.Context, query string) ([]types.Journal, error) {
	params := url.Values{
		"select":            {"*"},
		c.cfg.Columns.Title: {"ilike.*" + escapeLike(query) + "*"},
		"limit":             {strconv.Itoa(c.cfg.SearchLimit)},
	}
	body, err := c.get(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	rows, n, err := parseRows(body, c.cfg.Columns)
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}
	c.noteDropped(n-len(rows), modeSearch)
	return rows, nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("data store request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

func (c *Client) noteDropped(n int, mode string) {
	if n <= 0 {
		return
	}
	metrics.DroppedRows.Add(float64(n))
	c.logger.Warn("dropped journal rows without a title",
		zap.String("mode", mode),
		zap.String("column", c.cfg.Columns.Title),
		zap.Int("rows", n))
}

// errorMessage extracts PostgREST's message or error field.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// escapeLike makes query a literal for ILIKE. PostgREST turns '*' into '%',
// so a literal asterisk is widened to a single-character wildcard.
func escapeLike(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `_`)
	return r.Replace(query)
}
