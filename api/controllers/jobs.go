package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aurelia-jewels/aurelia-backend/api/responses"
	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
)

// JobRunner runs a registered periodic job on demand.
type JobRunner interface {
	RunJob(ctx context.Context, name string) error
	Jobs() []string
}

type jobRunResponse struct {
	Job        string `json:"job"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
}

// ListJobs returns the job names the admin API can trigger.
func ListJobs(runner JobRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string][]string{"jobs": runner.Jobs()})
	}
}

// RunJob triggers one periodic job and waits for it to finish.
func RunJob(runner JobRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "name"))
		if name == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "job name is required"))
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithJob(ctx, name)
		}
		start := time.Now()
		if err := runner.RunJob(ctx, name); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, jobRunResponse{
			Job:        name,
			Status:     "completed",
			DurationMS: time.Since(start).Milliseconds(),
		})
	}
}
