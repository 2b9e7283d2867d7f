package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		page, perPage                   int
		wantPage, wantPerPage, wantOffs int
	}{
		{0, 0, 1, DefaultPerPage, 0},
		{3, 20, 3, 20, 40},
		{2, 1000, 2, MaxPerPage, MaxPerPage},
	}
	for _, tc := range cases {
		p, pp, off := NormalizePage(tc.page, tc.perPage)
		if p != tc.wantPage || pp != tc.wantPerPage || off != tc.wantOffs {
			t.Errorf("NormalizePage(%d, %d) = %d, %d, %d", tc.page, tc.perPage, p, pp, off)
		}
	}

	if got := NewPagination(1, 10, 21).TotalPages; got != 3 {
		t.Fatalf("expected 3 pages, got %d", got)
	}
}

func TestFailEnvelopeCarriesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) {
		FailWithFields(c, http.StatusConflict, ErrSessionFull, map[string]string{"join_code": "full"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error == nil || body.Error.Code != ErrSessionFull || body.Error.Message != GetMessage(ErrSessionFull) {
		t.Fatalf("unexpected error body %+v", body.Error)
	}
	if body.Metadata.RequestID != "req-123" {
		t.Fatalf("expected propagated request id, got %q", body.Metadata.RequestID)
	}
	if body.Error.Fields["join_code"] != "full" {
		t.Fatalf("fields lost: %+v", body.Error.Fields)
	}
}

func TestRequestIDRejectsUnsafeHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, header := range []string{"", "has space", strings.Repeat("a", maxRequestIDLen+1)} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Request-ID", header)
		r.ServeHTTP(w, req)

		got := w.Header().Get("X-Request-ID")
		if got == header || len(got) != 36 {
			t.Fatalf("header %q should be replaced by a UUID, got %q", header, got)
		}
	}
}
