// Package listing implements the local filter, sort and paginate pipeline
// applied to fallback datasets on collection reads.
package listing

import (
	"cmp"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Query parameter names accepted by collection endpoints.
const (
	ParamPage    = "page"
	ParamLimit   = "limit"
	ParamSortBy  = "sortBy"
	ParamSortDir = "sortDir"
	ParamQ       = "q"
)

// Pagination bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MinLimit     = 1
	MaxLimit     = 100
)

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Record is one decoded JSON object of a dataset.
type Record = map[string]any

// Query is the normalized set of collection query parameters.
type Query struct {
	Page    int
	Limit   int
	SortBy  string
	SortDir string
	Q       string
}

// PageMeta is the pagination block returned next to collection data.
type PageMeta struct {
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
	Limit      int    `json:"limit"`
	SortBy     string `json:"sortBy"`
	SortDir    string `json:"sortDir"`
	Q          string `json:"q"`
}

// ParseQuery normalizes collection query parameters. Invalid numbers fall back
// to defaults; page is clamped to at least 1 and limit to [1, 100].
func ParseQuery(values url.Values) Query {
	q := Query{
		Page:    parseInt(values.Get(ParamPage), DefaultPage),
		Limit:   parseInt(values.Get(ParamLimit), DefaultLimit),
		SortBy:  strings.TrimSpace(values.Get(ParamSortBy)),
		SortDir: SortAsc,
		Q:       strings.TrimSpace(values.Get(ParamQ)),
	}
	q.Page = max(q.Page, DefaultPage)
	q.Limit = min(max(q.Limit, MinLimit), MaxLimit)
	if strings.EqualFold(strings.TrimSpace(values.Get(ParamSortDir)), SortDesc) {
		q.SortDir = SortDesc
	}
	return q
}

func parseInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// TotalPages returns max(1, ceil(total/limit)).
func TotalPages(total, limit int) int {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return max(1, int(math.Ceil(float64(total)/float64(limit))))
}

// Filter keeps records where any of fields contains term, compared under
// Unicode case folding. An empty term returns records unchanged.
func Filter(records []Record, term string, fields []string) []Record {
	if term == "" {
		return records
	}
	folder := cases.Fold()
	needle := folder.String(term)

	out := make([]Record, 0, len(records))
	for _, rec := range records {
		for _, field := range fields {
			s, ok := stringify(rec[field])
			if ok && strings.Contains(folder.String(s), needle) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// Sort returns a copy of records stably ordered by field. Ascending ties keep
// their input order; descending is exactly the ascending result reversed.
func Sort(records []Record, field, dir string) []Record {
	out := slices.Clone(records)
	if field == "" {
		return out
	}
	folder := cases.Fold()
	slices.SortStableFunc(out, func(a, b Record) int {
		return compareValues(folder, a[field], b[field])
	})
	if dir == SortDesc {
		slices.Reverse(out)
	}
	return out
}

// Paginate returns the [(page-1)*limit, page*limit) window clipped to bounds.
func Paginate(records []Record, page, limit int) []Record {
	page = max(page, DefaultPage)
	limit = min(max(limit, MinLimit), MaxLimit)

	// Compare in pages so a huge page cannot overflow (page-1)*limit.
	if page-1 >= (len(records)+limit-1)/limit {
		return []Record{}
	}
	start := (page - 1) * limit
	end := min(start+limit, len(records))
	return records[start:end]
}

// Apply runs filter, sort and paginate and builds the matching PageMeta.
func Apply(records []Record, q Query, searchFields []string) ([]Record, PageMeta) {
	filtered := Filter(records, q.Q, searchFields)
	sorted := Sort(filtered, q.SortBy, q.SortDir)
	page := Paginate(sorted, q.Page, q.Limit)

	return page, PageMeta{
		Total:      len(filtered),
		Page:       q.Page,
		TotalPages: TotalPages(len(filtered), q.Limit),
		Limit:      q.Limit,
		SortBy:     q.SortBy,
		SortDir:    q.SortDir,
		Q:          q.Q,
	}
}

// value ranks: missing/null < bool < number < string < anything else
const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
	rankOther
)

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case string:
		return rankString
	}
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	return rankOther
}

func compareValues(folder cases.Caser, a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNull:
		return 0
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return cmp.Compare(fa, fb)
	case rankString:
		return strings.Compare(folder.String(a.(string)), folder.String(b.(string)))
	default:
		return strings.Compare(folder.String(fmt.Sprint(a)), folder.String(fmt.Sprint(b)))
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return fmt.Sprint(v), true
}
