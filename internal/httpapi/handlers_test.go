package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"callscreen-platform/internal/auth"
	"callscreen-platform/internal/calls"
	"callscreen-platform/internal/config"
	"callscreen-platform/internal/delivery"
	"callscreen-platform/internal/reporting"
	"callscreen-platform/internal/scheduler"
	"callscreen-platform/internal/users"
	"callscreen-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type fakeScheduler struct {
	running    bool
	refreshes  int
	refreshErr error
	ran        []string
}

func (f *fakeScheduler) Start(ctx context.Context) error {
	f.running = true
	return nil
}

func (f *fakeScheduler) Stop() { f.running = false }

func (f *fakeScheduler) Refresh(ctx context.Context) error {
	f.refreshes++
	return f.refreshErr
}

func (f *fakeScheduler) RunNow(ctx context.Context, id string) (scheduler.DispatchResult, error) {
	if id == "missing" {
		return scheduler.DispatchResult{}, reporting.ErrNotFound
	}
	f.ran = append(f.ran, id)
	return scheduler.DispatchResult{ConfigID: id, Sent: 2}, nil
}

func (f *fakeScheduler) Status() scheduler.Status { return scheduler.Status{Running: f.running} }

type env struct {
	router *gin.Engine
	calls  *calls.MemoryRepo
	sched  *fakeScheduler
	auth   *auth.Manager
	logs   *bytes.Buffer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	hash, err := users.HashPassword("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	e := &env{calls: calls.NewMemoryRepo(), sched: &fakeScheduler{}, auth: m, logs: &bytes.Buffer{}}
	h := Handlers{
		Auth:       m,
		Users:      users.NewMemoryRepo(users.User{ID: "u1", Email: "ops@example.com", Role: "admin", PasswordHash: hash}),
		Calls:      calls.NewService(e.calls),
		Reports:    reporting.NewConfigService(reporting.NewMemoryConfigRepo()),
		Deliveries: delivery.NewLogger(delivery.NewMemoryRepo()),
		Scheduler:  e.sched,
	}

	r := gin.New()
	r.Use(logger.Middleware(slog.New(slog.NewJSONHandler(e.logs, nil))))
	r.POST("/login", h.Login)
	r.POST("/refresh", h.Refresh)
	r.GET("/calls", h.ListCalls)
	r.GET("/calls/stats", h.CallStats)
	r.GET("/calls/:id", h.GetCall)
	r.PATCH("/calls/:id/qualification", h.SetQualification)
	r.GET("/report-configs", h.ListReportConfigs)
	r.POST("/report-configs", h.CreateReportConfig)
	r.GET("/report-configs/:id", h.GetReportConfig)
	r.PUT("/report-configs/:id", h.UpdateReportConfig)
	r.DELETE("/report-configs/:id", h.DeleteReportConfig)
	r.GET("/email-logs", h.ListEmailLogs)
	r.GET("/scheduler/status", h.SchedulerStatus)
	r.POST("/scheduler/start", h.StartScheduler)
	r.POST("/scheduler/run/:id", h.RunReportNow)
	e.router = r
	return e
}

func (e *env) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/login", map[string]string{"email": "OPS@example.com", "password": "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var pair auth.TokenPair
	_ = json.Unmarshal(w.Body.Bytes(), &pair)
	claims, err := e.auth.Verify(pair.AccessToken, auth.TokenTypeAccess, time.Now())
	if err != nil || claims.Role != "admin" || claims.UserID != "u1" {
		t.Fatalf("unexpected token: %+v %v", claims, err)
	}

	w = e.do(http.MethodPost, "/refresh", map[string]string{"refresh_token": pair.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("expected refresh 200, got %d", w.Code)
	}
	if w := e.do(http.MethodPost, "/refresh", map[string]string{"refresh_token": pair.AccessToken}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected access token refused for refresh, got %d", w.Code)
	}

	for _, body := range []map[string]string{
		{"email": "ops@example.com", "password": "nope"},
		{"email": "nobody@example.com", "password": "pw"},
	} {
		if w := e.do(http.MethodPost, "/login", body); w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %v, got %d", body, w.Code)
		}
	}
	if w := e.do(http.MethodPost, "/login", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", w.Code)
	}
}

func TestCalls_GetListAndReview(t *testing.T) {
	e := newEnv(t)
	svc := calls.NewService(e.calls)
	rec, err := svc.Upsert(context.Background(), "conv_1", "agent_1", "done", []byte(`{}`))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if w := e.do(http.MethodGet, "/calls/"+rec.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/calls/nope", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/calls?limit=x", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
	w := e.do(http.MethodGet, "/calls?agent_id=agent_1", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "conv_1") {
		t.Fatalf("unexpected list: %d %s", w.Code, w.Body.String())
	}

	w = e.do(http.MethodPatch, "/calls/"+rec.ID+"/qualification", map[string]string{"qualified": "qualified"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"qualified":"qualified"`) {
		t.Fatalf("unexpected review response: %d %s", w.Code, w.Body.String())
	}
	if w := e.do(http.MethodPatch, "/calls/"+rec.ID+"/qualification", map[string]string{"qualified": "maybe"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = e.do(http.MethodGet, "/calls/stats", nil)
	var st calls.Stats
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.TodayCalls != 1 || st.Qualified != 1 || st.QualificationRate != 100 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestReportConfigs_CRUD(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/report-configs", map[string]any{
		"name": "Daily digest", "enabled": true, "frequency": "daily", "hour_of_day": 8,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var cfg reporting.ReportConfig
	_ = json.Unmarshal(w.Body.Bytes(), &cfg)
	if cfg.ID == "" || cfg.NextSendAt == nil {
		t.Fatalf("expected id and schedule, got %+v", cfg)
	}

	if w := e.do(http.MethodPost, "/report-configs", map[string]any{"name": "bad", "frequency": "hourly"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad frequency, got %d", w.Code)
	}

	w = e.do(http.MethodPut, "/report-configs/"+cfg.ID, map[string]any{
		"name": "Daily digest", "enabled": true, "frequency": "weekly", "hour_of_day": 8,
	})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"weekly"`) {
		t.Fatalf("unexpected update: %d %s", w.Code, w.Body.String())
	}
	if w := e.do(http.MethodDelete, "/report-configs/"+cfg.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/report-configs/"+cfg.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
	if e.sched.refreshes != 3 {
		t.Fatalf("expected scheduler refreshed after each write, got %d", e.sched.refreshes)
	}
}

func TestReportConfigs_RefreshFailureIsLogged(t *testing.T) {
	e := newEnv(t)
	e.sched.refreshErr = errors.New("db timeout")

	w := e.do(http.MethodPost, "/report-configs", map[string]any{
		"name": "Daily digest", "enabled": true, "frequency": "daily", "hour_of_day": 8,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected write to succeed despite refresh failure, got %d", w.Code)
	}
	out := e.logs.String()
	if !strings.Contains(out, "scheduler refresh after config change failed") || !strings.Contains(out, "db timeout") {
		t.Fatalf("expected refresh failure in logs, got %s", out)
	}
}

func TestEmailLogs_InvalidStatus(t *testing.T) {
	e := newEnv(t)
	if w := e.do(http.MethodGet, "/email-logs?status=bounced", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := e.do(http.MethodGet, "/email-logs?status=failed", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestScheduler_Controls(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/scheduler/start", nil)
	if w.Code != http.StatusOK || !e.sched.running {
		t.Fatalf("expected started, got %d", w.Code)
	}
	w = e.do(http.MethodPost, "/scheduler/run/cfg_1", nil)
	if w.Code != http.StatusOK || len(e.sched.ran) != 1 || !strings.Contains(w.Body.String(), `"sent":2`) {
		t.Fatalf("unexpected run response: %d %s", w.Code, w.Body.String())
	}
	if w := e.do(http.MethodPost, "/scheduler/run/missing", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
