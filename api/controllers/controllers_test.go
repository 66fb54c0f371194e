package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/aurelia-jewels/aurelia-backend/pkg/config"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubRunner struct {
	err error
	ran []string
}

func (s *stubRunner) RunJob(_ context.Context, name string) error {
	s.ran = append(s.ran, name)
	return s.err
}

func (s *stubRunner) Jobs() []string { return []string{"refund-reconcile"} }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	ok := HealthReady(cfg, testLogger(), map[string]Pinger{"postgres": stubPinger{}, "redis": stubPinger{}})
	resp := httptest.NewRecorder()
	ok.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	down := HealthReady(cfg, testLogger(), map[string]Pinger{"postgres": stubPinger{}, "redis": stubPinger{err: errors.New("dial tcp")}})
	resp = httptest.NewRecorder()
	down.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.Contains(t, resp.Body.String(), `"redis":"down"`)

	missing := HealthReady(cfg, testLogger(), map[string]Pinger{"redis": nil})
	resp = httptest.NewRecorder()
	missing.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestRunJob(t *testing.T) {
	runner := &stubRunner{}
	r := chi.NewRouter()
	r.Post("/jobs/{name}", RunJob(runner, testLogger()))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/jobs/refund-reconcile", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, []string{"refund-reconcile"}, runner.ran)
	require.Contains(t, resp.Body.String(), `"status":"completed"`)

	runner.err = pkgerrors.New(pkgerrors.CodeConflict, "job is already running")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/jobs/refund-reconcile", nil))
	require.Equal(t, http.StatusConflict, resp.Code)
}
