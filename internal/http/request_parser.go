package http

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"splitlens/internal/core"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 500
)

// parseFilters extracts analysis filters from query parameters.
// List parameters (people, categories, stores) are comma-joined.
func parseFilters(q url.Values) (core.AnalysisFilters, error) {
	f := core.AnalysisFilters{
		StartDate:  strings.TrimSpace(q.Get("startDate")),
		EndDate:    strings.TrimSpace(q.Get("endDate")),
		People:     splitCSV(q.Get("people")),
		Categories: splitCSV(q.Get("categories")),
		Stores:     splitCSV(q.Get("stores")),
	}
	if err := f.Validate(); err != nil {
		return core.AnalysisFilters{}, err
	}
	return f, nil
}

// parsePagination extracts page and pageSize with bounds checking.
func parsePagination(q url.Values) (page, pageSize int, err error) {
	page, pageSize = defaultPage, defaultPageSize

	if v := strings.TrimSpace(q.Get("page")); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("invalid page %q", v)
		}
	}
	if v := strings.TrimSpace(q.Get("pageSize")); v != "" {
		pageSize, err = strconv.Atoi(v)
		if err != nil || pageSize < 1 || pageSize > maxPageSize {
			return 0, 0, fmt.Errorf("invalid pageSize %q", v)
		}
	}

	return page, pageSize, nil
}

func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cacheKey builds a deterministic cache key from the session, route and
// query. Query parameters are sorted so equivalent requests share one entry.
func cacheKey(sessionID, path string, q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(sessionID)
	b.WriteByte('|')
	b.WriteString(path)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(q[k], ","))
	}
	return b.String()
}
