package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	// MinSearchLength is the shortest search term applied to listings
	MinSearchLength = 2

	DefaultLimit = 20
	MaxLimit     = 100
)

// FilterParams is a parsed listing request
type FilterParams struct {
	Filters map[string]string `json:"filters"`
	Sort    SortParams        `json:"sort"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
	Search  string            `json:"search"`
}

// SortParams names a requested column and "asc" or "desc"
type SortParams struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// PaginationResponse is the pagination block of listing responses
type PaginationResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// ParseQueryParams reads a listing request. Each setting accepts two
// spellings, the first one present wins:
//
//	page
//	limit, page_size       clamped to 1..MaxLimit
//	search, q              trimmed
//	sort[field], sort_by   defaults to defaultSort
//	sort[order], order     asc or desc, anything else is desc
//	filters[name]=value    empty values are dropped
func ParseQueryParams(c *gin.Context, defaultSort string) FilterParams {
	values := c.Request.URL.Query()
	pick := func(fallback string, keys ...string) string {
		for _, k := range keys {
			if v := values.Get(k); v != "" {
				return v
			}
		}
		return fallback
	}

	order := strings.ToLower(pick("desc", "sort[order]", "order"))
	if order != "asc" {
		order = "desc"
	}

	return FilterParams{
		Filters: bracketed(values, "filters"),
		Sort:    SortParams{Field: pick(defaultSort, "sort[field]", "sort_by"), Order: order},
		Page:    clamp(atoi(pick("1", "page"), 1), 1, 0),
		Limit:   clamp(atoi(pick(strconv.Itoa(DefaultLimit), "limit", "page_size"), DefaultLimit), 1, MaxLimit),
		Search:  strings.TrimSpace(pick("", "search", "q")),
	}
}

// bracketed collects prefix[key]=value pairs with a non-empty value
func bracketed(values url.Values, prefix string) map[string]string {
	out := make(map[string]string)
	open := prefix + "["
	for key, vs := range values {
		if !strings.HasPrefix(key, open) || !strings.HasSuffix(key, "]") {
			continue
		}
		if name := key[len(open) : len(key)-1]; name != "" && len(vs) > 0 && vs[0] != "" {
			out[name] = vs[0]
		}
	}
	return out
}

func atoi(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// clamp bounds n to [lo, hi]; hi <= 0 leaves it unbounded above
func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if hi > 0 && n > hi {
		return hi
	}
	return n
}

// ApplySearch ORs a case-insensitive substring match over columns. Terms
// shorter than MinSearchLength are ignored.
func ApplySearch(q *gorm.DB, search string, columns []string) *gorm.DB {
	search = strings.TrimSpace(search)
	if len([]rune(search)) < MinSearchLength || len(columns) == 0 {
		return q
	}

	pattern := LikePattern(search)
	clauses := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		clauses = append(clauses, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, col))
		args = append(args, pattern)
	}
	return q.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

// ApplySort orders by the column mapped to sort.Field in allowed. Unknown
// fields fall back to the fallback ORDER BY clause.
func ApplySort(q *gorm.DB, sort SortParams, allowed map[string]string, fallback string) *gorm.DB {
	column, ok := allowed[sort.Field]
	if !ok {
		return q.Order(fallback)
	}
	direction := "DESC"
	if strings.EqualFold(sort.Order, "asc") {
		direction = "ASC"
	}
	return q.Order(column + " " + direction)
}

func ApplyPagination(q *gorm.DB, page, limit int) *gorm.DB {
	page, limit = clamp(page, 1, 0), clamp(limit, 1, 0)
	return q.Offset((page - 1) * limit).Limit(limit)
}

func BuildPaginationResponse(page, limit int, total int64) PaginationResponse {
	limit = clamp(limit, 1, 0)
	pages := (total + int64(limit) - 1) / int64(limit)
	return PaginationResponse{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    int64(page) < pages,
		HasPrev:    page > 1,
	}
}

// LikePattern lowercases term, escapes LIKE wildcards and wraps it in %
func LikePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(term))
	return "%" + escaped + "%"
}
