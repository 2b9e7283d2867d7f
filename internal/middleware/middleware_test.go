package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/config"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/response"
	"github.com/stemsi/psytest-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "middleware-secret", JWTExpiry: time.Hour})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireParticipantJWT(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/me", RequireParticipantJWT(auth), func(c *gin.Context) {
		id, err := ParticipantID(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, "%d", id)
	})

	participant, _ := auth.GenerateParticipantToken(7)
	admin, _ := auth.GenerateAdminToken(1, nil)

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
		{"admin token", "Bearer " + admin, "", http.StatusForbidden},
		{"header", "Bearer " + participant, "", http.StatusOK},
		{"query fallback", "", participant, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me?token="+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := serve(r, req)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if tc.status == http.StatusOK && w.Body.String() != "7" {
				t.Fatalf("unexpected participant id %q", w.Body.String())
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/reports", RequireAdminJWT(auth), RequirePermission(model.PermissionReportsRead), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	reader, _ := auth.GenerateAdminToken(1, []string{string(model.PermissionReportsRead)})
	writer, _ := auth.GenerateAdminToken(2, []string{string(model.PermissionSessionsWrite)})

	for tok, want := range map[string]int{reader: http.StatusNoContent, writer: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		if w := serve(r, req); w.Code != want {
			t.Fatalf("expected %d, got %d", want, w.Code)
		}
	}
}

func TestRateLimiterRefills(t *testing.T) {
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("keys are limited independently")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("bucket should refill after the interval")
	}

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Fatalf("idle visitors should be dropped, have %d", len(rl.visitors))
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	r := gin.New()
	r.POST("/join", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	first := serve(r, httptest.NewRequest(http.MethodPost, "/join", nil))
	second := serve(r, httptest.NewRequest(http.MethodPost, "/join", nil))
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %d then %d", first.Code, second.Code)
	}
}

func TestCompress(t *testing.T) {
	big := strings.Repeat("psikotes ", 400)
	r := gin.New()
	r.Use(Compress())
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, big) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, big) })

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
		return serve(r, req)
	}

	w := get("/big")
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("expected brotli encoding, got %q", w.Header().Get("Content-Encoding"))
	}
	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil || string(body) != big {
		t.Fatalf("body did not round trip: %v", err)
	}

	if w := get("/small"); w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Fatalf("short bodies are sent as is, got %q", w.Body.String())
	}
	if w := get("/health"); w.Header().Get("Content-Encoding") != "" {
		t.Fatal("excluded paths must not be compressed")
	}
}

func TestCacheControl(t *testing.T) {
	r := gin.New()
	r.GET("/state", CacheControl("no-store"), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := serve(r, httptest.NewRequest(http.MethodGet, "/state", nil))
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("unexpected Cache-Control %q", w.Header().Get("Cache-Control"))
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(response.RequestIDMiddleware(), RequestLogger(zerolog.New(&buf)))
	r.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/sessions/abc", nil)
	req.Header.Set("X-Request-ID", "req-7")
	serve(r, req)

	var line struct {
		Level     string `json:"level"`
		Component string `json:"component"`
		RequestID string `json:"request_id"`
		Route     string `json:"route"`
		Status    int    `json:"status"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q", buf.String())
	}
	if line.Level != "warn" || line.Component != "http" || line.RequestID != "req-7" {
		t.Fatalf("unexpected log line %+v", line)
	}
	if line.Route != "/sessions/:id" || line.Status != http.StatusNotFound {
		t.Fatalf("route template and status expected, got %+v", line)
	}
}
