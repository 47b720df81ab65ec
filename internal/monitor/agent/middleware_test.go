package agent

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/monitor"
	"hyperwatch/internal/monitor/alerts"
	"hyperwatch/internal/monitor/storage"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(NewRateLimiter(rate.Limit(1), 2).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst should be allowed, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %v", codes)
	}

	// Another client has its own bucket
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("second client should pass, got %d", w.Code)
	}
}

func TestTokenAuthRoundTrip(t *testing.T) {
	auth := NewTokenAuth("s3cret")

	token, err := auth.GenerateToken("ops", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "ops" || claims.Issuer != "hyperwatch" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := NewTokenAuth("other").ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret should be rejected")
	}

	expired, _ := auth.GenerateToken("ops", -time.Minute)
	if _, err := auth.ValidateToken(expired); err == nil {
		t.Fatal("expired token should be rejected")
	}

	if _, err := NewTokenAuth("").GenerateToken("ops", time.Hour); err == nil {
		t.Fatal("expected error without a secret")
	}
}

func TestWriteRoutesRequireToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := monitor.DefaultConfig()
	config.Agent.AuthSecret = "s3cret"
	a, err := NewAgent(config, alerts.CreateDefaultConfig(), logging.NewDiscardLogger(),
		WithStore(storage.NewMemoryStore()), WithCollectors())
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	t.Cleanup(func() { a.hub.Close() })

	token, err := NewTokenAuth("s3cret").GenerateToken("ops", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"invalid", "Bearer not-a-token", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/settings/resource_alerts_enabled",
				strings.NewReader(`{"enabled":false}`))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			a.server.Handler().ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	// Reads stay open
	w := doJSON(t, a.server.Handler(), http.MethodGet, "/api/v1/settings/resource_alerts_enabled", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reads should not need a token, got %d", w.Code)
	}
}
