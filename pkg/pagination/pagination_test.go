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
	req := httptest.NewRequest(http.MethodGet, "/admin/get_doctors/pending"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=10&offset=30", 10, 30},
		{"?limit=500", MaxLimit, 0},
		{"?limit=-3&offset=-5", DefaultLimit, 0},
		{"?limit=abc", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := paramsFor(tt.query)
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("got %+v, want limit=%d offset=%d", p, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNewPage(t *testing.T) {
	p := Params{Limit: 2, Offset: 0}
	page := NewPage([]string{"a", "b"}, 5, p)
	if !page.HasMore || page.Total != 5 || page.Limit != 2 {
		t.Errorf("unexpected page %+v", page)
	}
	if p.NextOffset() != 2 {
		t.Errorf("expected next offset 2, got %d", p.NextOffset())
	}

	last := NewPage([]string{"e"}, 5, Params{Limit: 2, Offset: 4})
	if last.HasMore {
		t.Error("last page should not have more")
	}
}

func TestNewPage_EmptyEncodesAsArray(t *testing.T) {
	b, err := json.Marshal(NewPage[int](nil, 0, Params{Limit: 20}))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"data":[],"total":0,"limit":20,"offset":0,"has_more":false}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}
