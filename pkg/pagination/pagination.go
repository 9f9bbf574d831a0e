package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit/offset, accepting the FHIR _count/_offset
// spellings first.
func FromContext(c echo.Context) Params {
	limit := firstInt(c, "_count", "limit")
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset := firstInt(c, "_offset", "offset")
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

func firstInt(c echo.Context, names ...string) int {
	for _, name := range names {
		if n, err := strconv.Atoi(c.QueryParam(name)); err == nil && n != 0 {
			return n
		}
	}
	return 0
}

// Window returns the [start, end) bounds of the page within total items.
func (p Params) Window(total int) (start, end int) {
	start = min(p.Offset, total)
	end = min(start+p.Limit, total)
	return start, end
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// Page slices an in-memory list to p and wraps it. An offset past the end
// yields an empty, non-nil page.
func Page[T any](items []T, p Params) *Response {
	start, end := p.Window(len(items))
	page := items[start:end]
	if page == nil {
		page = []T{}
	}
	return NewResponse(page, len(items), p.Limit, p.Offset)
}
