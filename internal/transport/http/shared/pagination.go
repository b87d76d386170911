package shared

import (
	"math"
	"net/http"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// maxOffset keeps page*pageSize inside an int and a sane OFFSET.
	maxOffset = math.MaxInt32
)

type Pagination struct {
	Page     int
	PageSize int
	Limit    int
	Offset   int
}

// ParsePagination reads page/pageSize, falling back to limit/offset when the
// caller uses those instead. Sizes are clamped to maxLimit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0
	if raw := q.Get("pageSize"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	} else if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	page := 1
	if raw := q.Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			page = min(v, maxOffset/limit+1)
		}
		offset = (page - 1) * limit
	} else if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = min(v, maxOffset)
		}
		page = offset/limit + 1
	}
	return Pagination{Page: page, PageSize: limit, Limit: limit, Offset: offset}
}

// ParsePage uses the service-wide defaults.
func ParsePage(r *http.Request) Pagination {
	return ParsePagination(r, DefaultPageSize, MaxPageSize)
}

func SetTotal(w http.ResponseWriter, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
}
