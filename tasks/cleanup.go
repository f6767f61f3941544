package tasks

import (
	"context"
	"fmt"
	"time"

	"outfitapi/models"
	"outfitapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

// Cache rows that were never hit are dropped after this long even if unexpired.
const unusedCacheRetention = 7 * 24 * time.Hour

func NewCacheCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskCacheCleanup, nil, asynq.MaxRetry(1))
}

// CleanupGenerationCache deletes expired fingerprints and unused ones older than a week.
func CleanupGenerationCache(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at < ? OR (hit_count = 0 AND created_at < ?)", now, now.Add(-unusedCacheRetention)).
		Delete(&models.GenerationCacheEntry{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func HandleCacheCleanupTask(ctx context.Context, t *asynq.Task, db *gorm.DB) error {
	deleted, err := CleanupGenerationCache(ctx, db, time.Now())
	if err != nil {
		sentry.CaptureException(fmt.Errorf("[Cache Cleanup] %v", err))
		return err
	}
	services.RecordCacheCleanup(deleted)
	fmt.Printf("[Cache Cleanup] Removed %d generation cache entries\n", deleted)
	return nil
}
