package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/agent-services/internal/auth"
	"github.com/suPer8Hu/agent-services/internal/observability"
)

func init() { gin.SetMode(gin.TestMode) }

func do(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecovery_ReturnsJSONError(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := do(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error"`) || !strings.Contains(w.Body.String(), "kaboom") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = observability.RequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	got := w.Header().Get(RequestIDHeader)
	if got == "" || got != seen {
		t.Fatalf("header=%q ctx=%q", got, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = do(r, req)
	if w.Header().Get(RequestIDHeader) != "abc-123" || seen != "abc-123" {
		t.Fatalf("incoming id not kept: header=%q ctx=%q", w.Header().Get(RequestIDHeader), seen)
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := do(r, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("allowed origin not echoed: %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = do(r, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin allowed")
	}

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	w = do(r, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", w.Code)
	}
}

func TestCORS_Wildcard(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"*"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	w := do(r, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected *, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestAuthRequired(t *testing.T) {
	const secret = "s3cret"
	r := gin.New()
	r.Use(AuthRequired(secret))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(SubjectKey)) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	if w = do(r, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", w.Code)
	}

	tok, err := auth.SignJWT("backend", secret, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = do(r, req)
	if w.Code != http.StatusOK || w.Body.String() != "backend" {
		t.Fatalf("valid token: code=%d body=%q", w.Code, w.Body.String())
	}
}

func TestAuthRequired_EmptySecretDisables(t *testing.T) {
	r := gin.New()
	r.Use(AuthRequired(""))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := do(r, httptest.NewRequest(http.MethodGet, "/x", nil)); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
