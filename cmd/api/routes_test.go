package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"callscreen-platform/internal/auth"
	"callscreen-platform/internal/calls"
	"callscreen-platform/internal/config"
	"callscreen-platform/internal/delivery"
	"callscreen-platform/internal/httpapi"
	"callscreen-platform/internal/reporting"
	"callscreen-platform/internal/users"
	"callscreen-platform/internal/webhook"

	"github.com/gin-gonic/gin"
)

func testRouter(t *testing.T) (*gin.Engine, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	callSvc := calls.NewService(calls.NewMemoryRepo())
	h := httpapi.Handlers{
		Auth:       m,
		Users:      users.NewMemoryRepo(),
		Calls:      callSvc,
		Reports:    reporting.NewConfigService(reporting.NewMemoryConfigRepo()),
		Deliveries: delivery.NewLogger(delivery.NewMemoryRepo()),
	}
	r := gin.New()
	registerRoutes(r, h, webhook.Handler{Calls: callSvc}, auth.RequireAccessToken(m))
	return r, m
}

func request(r http.Handler, method, path, token, body string) int {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoutes_PublicEndpoints(t *testing.T) {
	r, _ := testRouter(t)
	if code := request(r, http.MethodGet, "/healthz", "", ""); code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", code)
	}
	body := `{"data":{"conversation_id":"conv_1","agent_id":"a"}}`
	if code := request(r, http.MethodPost, "/api/inbound", "", body); code != http.StatusOK {
		t.Fatalf("inbound: expected 200, got %d", code)
	}
}

func TestRoutes_RoleGuards(t *testing.T) {
	r, m := testRouter(t)
	viewer, _ := m.IssuePair(time.Now(), "v1", "viewer")
	admin, _ := m.IssuePair(time.Now(), "a1", "admin")
	cfg := `{"name":"weekly","enabled":true,"frequency":"weekly","hour_of_day":9}`

	if code := request(r, http.MethodGet, "/v1/calls", "", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := request(r, http.MethodGet, "/v1/calls", viewer.AccessToken, ""); code != http.StatusOK {
		t.Fatalf("expected viewer read 200, got %d", code)
	}
	if code := request(r, http.MethodPost, "/v1/report-configs", viewer.AccessToken, cfg); code != http.StatusForbidden {
		t.Fatalf("expected viewer write 403, got %d", code)
	}
	if code := request(r, http.MethodPost, "/v1/report-configs", admin.AccessToken, cfg); code != http.StatusCreated {
		t.Fatalf("expected admin write 201, got %d", code)
	}
	if code := request(r, http.MethodGet, "/v1/scheduler/status", viewer.AccessToken, ""); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without scheduler, got %d", code)
	}
}
