package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type joinRequest struct {
	JoinCode string `json:"join_code" binding:"required,joincode"`
}

type moduleRequest struct {
	Sequence int `json:"sequence" binding:"required,min=1"`
}

type createRequest struct {
	Name    string          `json:"name" binding:"required"`
	Modules []moduleRequest `json:"modules" binding:"required,min=1,dive"`
}

func bindBody(t *testing.T, body string, dst any) map[string]string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	Setup()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return Bind(c, dst)
}

func TestBindJoinCode(t *testing.T) {
	var ok joinRequest
	if fields := bindBody(t, `{"join_code":"GDG2026"}`, &ok); fields != nil {
		t.Fatalf("expected valid code, got %v", fields)
	}

	var bad joinRequest
	fields := bindBody(t, `{"join_code":"no spaces!"}`, &bad)
	if !strings.Contains(fields["join_code"], "letters or digits") {
		t.Fatalf("expected joincode message, got %v", fields)
	}
}

func TestBindNestedFieldPath(t *testing.T) {
	var req createRequest
	fields := bindBody(t, `{"name":"x","modules":[{"sequence":1},{"sequence":0}]}`, &req)
	if _, ok := fields["modules[1].sequence"]; !ok {
		t.Fatalf("expected nested field key, got %v", fields)
	}
}

func TestBindMalformedJSON(t *testing.T) {
	var req joinRequest
	fields := bindBody(t, `{"join_code":`, &req)
	if fields["detail"] == "" {
		t.Fatalf("expected detail entry, got %v", fields)
	}
}
