package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const alertRetentionDays = 30

type AlertCleanupJobParams struct {
	Logger     *logger.Logger
	Repository alertCleanupRepo
	Retention  int
}

type alertCleanupRepo interface {
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewAlertCleanupJob drops seller alerts that were read more than Retention days ago.
// Unread alerts are never removed.
func NewAlertCleanupJob(params AlertCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = alertRetentionDays
	}
	return &alertCleanupJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type alertCleanupJob struct {
	logg      *logger.Logger
	repo      alertCleanupRepo
	retention int
	now       func() time.Time
}

func (j *alertCleanupJob) Name() string { return "alert-cleanup" }

func (j *alertCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeleteReadOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("alert cleanup: %w", err)
	}
	if deleted == 0 {
		return nil
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "alert cleanup complete")
	return nil
}
