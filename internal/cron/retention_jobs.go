package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/aurelia-jewels/aurelia-backend/pkg/logger"
)

const (
	JobOutboxRetention       = "outbox-retention"
	JobNotificationRetention = "notification-retention"

	defaultOutboxRetention       = 30 * 24 * time.Hour
	defaultNotificationRetention = 90 * 24 * time.Hour
)

type purger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	repo      purger
	retention time.Duration
	now       func() time.Time
}

// NewOutboxRetentionJob purges published outbox events past retention.
func NewOutboxRetentionJob(logg *logger.Logger, repo purger, retention time.Duration) (Job, error) {
	job, err := newRetentionJob(JobOutboxRetention, logg, repo, retention, defaultOutboxRetention)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// NewNotificationRetentionJob purges old customer notification records.
func NewNotificationRetentionJob(logg *logger.Logger, repo purger, retention time.Duration) (Job, error) {
	job, err := newRetentionJob(JobNotificationRetention, logg, repo, retention, defaultNotificationRetention)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func newRetentionJob(name string, logg *logger.Logger, repo purger, retention, fallback time.Duration) (*retentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository required for %s", name)
	}
	if retention <= 0 {
		retention = fallback
	}
	return &retentionJob{
		name:      name,
		logg:      logg,
		repo:      repo,
		retention: retention,
		now:       time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	}), "retention cleanup complete")
	return nil
}
