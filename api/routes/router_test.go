package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aurelia-jewels/aurelia-backend/internal/refunds"
	pkgAuth "github.com/aurelia-jewels/aurelia-backend/pkg/auth"
	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	"github.com/aurelia-jewels/aurelia-backend/pkg/enums"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
	"github.com/aurelia-jewels/aurelia-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
	hits map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, hits: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryRedis) Ping(context.Context) error {
	return nil
}

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[scope]++
	return m.hits[scope] <= limit, m.hits[scope], nil
}

type stubRefunds struct {
	calls int
}

func (s *stubRefunds) ProcessAutomaticRefund(_ context.Context, returnID uuid.UUID, _ *uuid.UUID) (*refunds.RefundResult, error) {
	s.calls++
	return &refunds.RefundResult{
		Success:       true,
		ReturnID:      returnID,
		TransactionID: "re_test_1",
		Amount:        decimal.RequireFromString("8500"),
		Status:        enums.RefundStatusProcessed,
	}, nil
}

func (s *stubRefunds) CheckRefundStatus(_ context.Context, returnID uuid.UUID) (*refunds.StatusResult, error) {
	return &refunds.StatusResult{ReturnID: returnID, Status: enums.RefundStatusProcessed}, nil
}

func (s *stubRefunds) HandleApprovedRefund(_ context.Context, returnID uuid.UUID, _ *uuid.UUID) *refunds.RefundResult {
	return &refunds.RefundResult{ReturnID: returnID}
}

type stubJobs struct {
	ran []string
}

func (s *stubJobs) RunJob(_ context.Context, name string) error {
	if name != "pending-returns-sweep" {
		return pkgerrors.New(pkgerrors.CodeNotFound, "job not registered")
	}
	s.ran = append(s.ran, name)
	return nil
}

func (s *stubJobs) Jobs() []string {
	return []string{"pending-returns-sweep"}
}

type harness struct {
	handler http.Handler
	cfg     *config.Config
	refunds *stubRefunds
	jobs    *stubJobs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		App:       config.AppConfig{Env: "test"},
		JWT:       config.JWTConfig{Secret: "router-secret", Issuer: "aurelia", ExpirationMinutes: 30},
		RateLimit: config.RateLimitConfig{Window: time.Minute, Limit: 100},
	}
	reg := prometheus.NewRegistry()
	metrics.NewReturnsMetrics(reg).IncRefund("succeeded")

	h := &harness{cfg: cfg, refunds: &stubRefunds{}, jobs: &stubJobs{}}
	h.handler = NewRouter(RouterParams{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:       stubPinger{},
		Redis:    newMemoryRedis(),
		Gatherer: reg,
		Refunds:  h.refunds,
		Jobs:     h.jobs,
	})
	return h
}

func (h *harness) token(t *testing.T, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return token
}

func (h *harness) do(method, path, token, idemKey, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/health/live", "", "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "test", resp.Header().Get("X-Aurelia-Env"))

	resp = h.do(http.MethodGet, "/health/ready", "", "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"postgres":"ok"`)

	resp = h.do(http.MethodGet, "/metrics", "", "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "refunds_total")
}

func TestAdminRoutesRequireStaffToken(t *testing.T) {
	h := newHarness(t)
	path := "/api/v1/admin/returns/" + uuid.NewString() + "/refund/status"

	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, path, "", "", "").Code)
	require.Equal(t, http.StatusForbidden, h.do(http.MethodGet, path, h.token(t, enums.RoleCustomer), "", "").Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, path, h.token(t, enums.RoleSupport), "", "").Code)
}

func TestRefundRequiresAdminAndIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	path := "/api/v1/admin/returns/" + uuid.NewString() + "/refund"
	admin := h.token(t, enums.RoleAdmin)

	require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, path, admin, "", "").Code)
	require.Equal(t, http.StatusForbidden, h.do(http.MethodPost, path, h.token(t, enums.RoleSupport), "k-1", "").Code)

	first := h.do(http.MethodPost, path, admin, "k-2", "")
	require.Equal(t, http.StatusOK, first.Code)
	replay := h.do(http.MethodPost, path, admin, "k-2", "")
	require.Equal(t, http.StatusOK, replay.Code)
	require.Equal(t, first.Body.String(), replay.Body.String())
	require.Equal(t, 1, h.refunds.calls)
}

func TestRunJobRoute(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, enums.RoleAdmin)

	resp := h.do(http.MethodPost, "/api/v1/admin/jobs/pending-returns-sweep", admin, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, []string{"pending-returns-sweep"}, h.jobs.ran)

	resp = h.do(http.MethodPost, "/api/v1/admin/jobs/unknown", admin, "", "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = h.do(http.MethodGet, "/api/v1/admin/jobs", h.token(t, enums.RoleSupport), "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "pending-returns-sweep")
}
