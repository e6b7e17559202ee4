// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ui serves the single-page journal check form.
package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/journal-checker/internal/logging"
	"github.com/pdiddy/journal-checker/internal/lookup"
	"github.com/pdiddy/journal-checker/pkg/types"
)

// Messages shown in place of a result.
const (
	MsgNameRequired = "Journal name is required"
	MsgNotInList    = "Journal not in list - try again"
	MsgFailed       = "An error occurred while checking the journal. Please try again."
)

// Checker is the lookup the form submits to.
type Checker interface {
	Check(ctx context.Context, q lookup.Query) (lookup.Result, error)
}

// SJRClass grades a score: >= 5 high, >= 2 medium, otherwise low.
func SJRClass(sjr float64) string {
	switch {
	case sjr >= 5:
		return "high"
	case sjr >= 2:
		return "medium"
	default:
		return "low"
	}
}

// QuartileClass grades a best-quartile string by the first of Q1 or Q2 it
// contains. Anything else, including empty, is low.
func QuartileClass(q string) string {
	q = strings.ToUpper(q)
	switch {
	case strings.Contains(q, "Q1"):
		return "high"
	case strings.Contains(q, "Q2"):
		return "medium"
	default:
		return "low"
	}
}

// FormatSJR renders a score with three decimals.
func FormatSJR(sjr float64) string {
	return fmt.Sprintf("%.3f", sjr)
}

var pageTmpl = template.Must(template.New("page").Funcs(template.FuncMap{
	"sjrClass":      SJRClass,
	"quartileClass": QuartileClass,
	"formatSJR":     FormatSJR,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Check Journal Quality</title>
<style>
body{font-family:system-ui,sans-serif;max-width:36rem;margin:3rem auto;padding:0 1rem}
form{display:flex;gap:.5rem}input{flex:1;padding:.4rem}
.high{color:#16a34a}.medium{color:#ca8a04}.low{color:#dc2626}
.error{border:1px solid #dc2626;padding:.75rem;margin-top:1rem}
</style>
</head>
<body>
<h1>Check Journal Quality</h1>
<p>Enter a journal name to check its quality score</p>
<form method="get" action="/">
<input type="text" name="name" value="{{.Name}}" placeholder="Enter journal name" autofocus>
<button type="submit">Check</button>
</form>
{{with .Error}}<div class="error" role="alert"><strong>Error</strong><p>{{.}}</p></div>{{end}}
{{with .Journal}}<div class="result">
<h2>{{.Name}}</h2>
<p class="{{sjrClass .SJR}}">SJR Score: {{formatSJR .SJR}}</p>
<p>Category: {{.Category}}</p>
{{if .BestQuartile}}<p class="{{quartileClass .BestQuartile}}">Best Quartile: {{.BestQuartile}}</p>{{end}}
</div>{{end}}
</body>
</html>
`))

type page struct {
	Name    string
	Error   string
	Journal *types.Journal
}

// Handler renders the form at GET /. With a name query parameter it also
// renders the exact-match result or the error message.
type Handler struct {
	checker Checker
	logger  *zap.Logger
}

// NewHandler creates the form handler.
func NewHandler(checker Checker, logger *zap.Logger) *Handler {
	return &Handler{checker: checker, logger: logging.OrNop(logger)}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := page{Name: r.URL.Query().Get("name")}
	if r.URL.Query().Has("name") {
		res, err := h.checker.Check(r.Context(), lookup.Query{Name: p.Name})
		if err != nil {
			p.Error = message(err)
		} else {
			p.Journal = res.Journal
		}
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, p); err != nil {
		h.logger.Error("rendering form", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func message(err error) string {
	switch {
	case errors.Is(err, lookup.ErrValidation):
		return MsgNameRequired
	case errors.Is(err, lookup.ErrNotFound):
		return MsgNotInList
	default:
		return MsgFailed
	}
}
