package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/thalibox/marketplace-backend/pkg/logger"
)

const (
	notificationRetentionDays = 30
	outboxRetentionDays       = 14
)

// retentionJob deletes rows older than a rolling window of calendar days.
type retentionJob struct {
	name  string
	logg  *logger.Logger
	days  int
	purge func(ctx context.Context, cutoff time.Time) (int64, error)
	now   func() time.Time
}

func newRetentionJob(name string, logg *logger.Logger, days, fallback int, purge func(context.Context, time.Time) (int64, error)) (Job, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if days <= 0 {
		days = fallback
	}
	return &retentionJob{name: name, logg: logg, days: days, purge: purge, now: time.Now}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) cutoff() time.Time {
	return j.now().UTC().AddDate(0, 0, -j.days)
}

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.cutoff()
	deleted, err := j.purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.days,
		"rows_deleted":   deleted,
	}), "retention purge complete")
	return nil
}

type NotificationCleanupJobParams struct {
	Logger    *logger.Logger
	Purger    readNotificationPurger
	Retention int
}

type readNotificationPurger interface {
	PurgeRead(ctx context.Context, olderThan time.Time) (int64, error)
}

// NewNotificationCleanupJob deletes read notifications past the retention
// window. Unread notifications are kept regardless of age.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Purger == nil {
		return nil, errors.New("notification purger required")
	}
	return newRetentionJob("notification-cleanup", params.Logger, params.Retention, notificationRetentionDays,
		func(ctx context.Context, cutoff time.Time) (int64, error) {
			return params.Purger.PurgeRead(ctx, cutoff)
		})
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	Retention  int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob prunes outbox rows that were published long ago.
// Unpublished rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	return newRetentionJob("outbox-retention", params.Logger, params.Retention, outboxRetentionDays,
		func(ctx context.Context, cutoff time.Time) (int64, error) {
			var deleted int64
			err := params.DB.WithTx(ctx, func(tx *gorm.DB) error {
				var err error
				deleted, err = params.Repository.DeletePublishedBefore(tx, cutoff)
				return err
			})
			return deleted, err
		})
}
