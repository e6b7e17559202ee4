// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/journal-checker/internal/lookup"
	"github.com/pdiddy/journal-checker/pkg/types"
)

type stubChecker struct {
	journal types.Journal
	err     error
	calls   int
}

func (s *stubChecker) Check(_ context.Context, q lookup.Query) (lookup.Result, error) {
	s.calls++
	if q.Name == "" {
		return lookup.Result{}, lookup.ErrValidation
	}
	if s.err != nil {
		return lookup.Result{}, s.err
	}
	j := s.journal
	return lookup.Result{Journal: &j}, nil
}

func TestSJRClass(t *testing.T) {
	tests := []struct {
		sjr  float64
		want string
	}{
		{15.2, "high"},
		{5, "high"},
		{4.999, "medium"},
		{2, "medium"},
		{1.999, "low"},
		{0, "low"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SJRClass(tt.sjr), "sjr %v", tt.sjr)
	}
}

func TestQuartileClass(t *testing.T) {
	tests := []struct {
		q    string
		want string
	}{
		{"Q1", "high"},
		{"Q1 (Oncology)", "high"},
		{"q2", "medium"},
		{"Q3", "low"},
		{"Q4", "low"},
		{"", "low"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuartileClass(tt.q), "quartile %q", tt.q)
	}
}

func TestFormatSJR(t *testing.T) {
	assert.Equal(t, "15.200", FormatSJR(15.2))
	assert.Equal(t, "0.000", FormatSJR(0))
	assert.Equal(t, "1.235", FormatSJR(1.2346))
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	return rec
}

func TestHandler_EmptyFormDoesNotCheck(t *testing.T) {
	c := &stubChecker{}
	rec := get(t, NewHandler(c, nil), "/")

	assert.Contains(t, rec.Body.String(), `<form method="get" action="/">`)
	assert.NotContains(t, rec.Body.String(), "Error")
	assert.Zero(t, c.calls)
}

func TestHandler_RendersResult(t *testing.T) {
	c := &stubChecker{journal: types.Journal{
		Name: "Nature", SJR: 15.2, Category: "Multidisciplinary", BestQuartile: "Q1",
	}}
	body := get(t, NewHandler(c, nil), "/?name=nature").Body.String()

	assert.Contains(t, body, "<h2>Nature</h2>")
	assert.Contains(t, body, `<p class="high">SJR Score: 15.200</p>`)
	assert.Contains(t, body, "Category: Multidisciplinary")
	assert.Contains(t, body, `<p class="high">Best Quartile: Q1</p>`)
}

func TestHandler_RendersErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		want   string
	}{
		{name: "blank", target: "/?name=", want: MsgNameRequired},
		{name: "not found", target: "/?name=zzz", err: lookup.ErrNotFound, want: MsgNotInList},
		{name: "service", target: "/?name=nature", err: &lookup.ServiceError{Op: "x", Err: errors.New("down")}, want: MsgFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := get(t, NewHandler(&stubChecker{err: tt.err}, nil), tt.target).Body.String()
			assert.Contains(t, body, `role="alert"`)
			assert.Contains(t, body, tt.want)
		})
	}
}

func TestHandler_EscapesInput(t *testing.T) {
	c := &stubChecker{err: lookup.ErrNotFound}
	body := get(t, NewHandler(c, nil), "/?name=%3Cscript%3E").Body.String()
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}
