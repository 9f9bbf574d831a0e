package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Limit: DefaultLimit, Offset: 0}},
		{"?limit=50&offset=10", Params{Limit: 50, Offset: 10}},
		{"?_count=25&_offset=5", Params{Limit: 25, Offset: 5}},
		{"?_count=5&limit=50", Params{Limit: 5, Offset: 0}},
		{"?limit=500", Params{Limit: MaxLimit, Offset: 0}},
		{"?offset=-5", Params{Limit: DefaultLimit, Offset: 0}},
		{"?limit=abc", Params{Limit: DefaultLimit, Offset: 0}},
	}
	for _, tt := range tests {
		if got := paramsFor(tt.query); got != tt.want {
			t.Errorf("query %q: expected %+v, got %+v", tt.query, tt.want, got)
		}
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b", "c"}
	r := NewResponse(data, 10, 3, 0)

	if r.Total != 10 {
		t.Errorf("expected total 10, got %d", r.Total)
	}
	if !r.HasMore {
		t.Error("expected has_more to be true when offset+limit < total")
	}

	r2 := NewResponse(data, 3, 3, 0)
	if r2.HasMore {
		t.Error("expected has_more to be false when offset+limit >= total")
	}
}

func TestParams_Window(t *testing.T) {
	tests := []struct {
		name               string
		params             Params
		total              int
		wantStart, wantEnd int
	}{
		{"first page", Params{Limit: 10, Offset: 0}, 25, 0, 10},
		{"last partial page", Params{Limit: 10, Offset: 20}, 25, 20, 25},
		{"past end", Params{Limit: 10, Offset: 30}, 25, 25, 25},
		{"no results", Params{Limit: 10, Offset: 0}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.params.Window(tt.total)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Window() = [%d,%d), want [%d,%d)", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	r := Page(items, Params{Limit: 2, Offset: 2})
	if got := r.Data.([]int); len(got) != 2 || got[0] != 3 {
		t.Errorf("unexpected page %v", got)
	}
	if r.Total != 5 || !r.HasMore {
		t.Errorf("unexpected response %+v", r)
	}

	r = Page(items, Params{Limit: 2, Offset: 9})
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"data":[],"total":5,"limit":2,"offset":9,"has_more":false}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}

	r = Page([]string(nil), Params{Limit: 2})
	if got := r.Data.([]string); got == nil {
		t.Error("expected non-nil empty page")
	}
}
