// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package datastore

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pdiddy/journal-checker/pkg/types"
)

// legacyColumns is the schema of the first journals table, read when the
// configured columns are absent from a row.
var legacyColumns = types.ColumnMap{
	Title:    "name",
	SJR:      "sjr",
	Category: "category",
	Quartile: "best_quartile",
}

// parseRows decodes a PostgREST JSON array into journals. It returns the
// kept journals and the number of rows seen; rows without a title are
// dropped.
func parseRows(body []byte, cols types.ColumnMap) ([]types.Journal, int, error) {
	if !gjson.ValidBytes(body) {
		return nil, 0, errors.New("response is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, 0, errors.New("response is not a JSON array")
	}

	rows := doc.Array()
	journals := make([]types.Journal, 0, len(rows))
	for _, row := range rows {
		if j, ok := normalizeRow(row, cols); ok {
			journals = append(journals, j)
		}
	}
	return journals, len(rows), nil
}

// normalizeRow maps one raw row onto a Journal. Column lookups go through
// ForEach rather than gjson paths because upstream names contain spaces
// and hyphens.
func normalizeRow(row gjson.Result, cols types.ColumnMap) (types.Journal, bool) {
	fields := make(map[string]gjson.Result)
	row.ForEach(func(key, value gjson.Result) bool {
		fields[key.String()] = value
		return true
	})

	field := func(primary, legacy string) gjson.Result {
		if v, ok := fields[primary]; ok && v.Type != gjson.Null {
			return v
		}
		return fields[legacy]
	}

	name := strings.TrimSpace(field(cols.Title, legacyColumns.Title).String())
	if name == "" {
		return types.Journal{}, false
	}

	return types.Journal{
		Name:         name,
		SJR:          parseScore(field(cols.SJR, legacyColumns.SJR)),
		Category:     strings.TrimSpace(field(cols.Category, legacyColumns.Category).String()),
		BestQuartile: strings.TrimSpace(field(cols.Quartile, legacyColumns.Quartile).String()),
	}, true
}

// parseScore coerces an SJR value to a finite, non-negative float. The
// SCImago CSV export uses a decimal comma, so "15,2" reads as 15.2.
func parseScore(v gjson.Result) float64 {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		s := strings.ReplaceAll(strings.TrimSpace(v.Str), ",", ".")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
