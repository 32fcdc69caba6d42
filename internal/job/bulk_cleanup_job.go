package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/solenhart/docingest/internal/service"
)

type BulkCleanupJob struct {
	bulk   *service.BulkService
	maxAge time.Duration
}

func NewBulkCleanupJob(bulk *service.BulkService, maxAge time.Duration) *BulkCleanupJob {
	return &BulkCleanupJob{bulk: bulk, maxAge: maxAge}
}

func (j *BulkCleanupJob) Name() string {
	return "bulk_cleanup"
}

func (j *BulkCleanupJob) Run(ctx context.Context) error {
	if j.bulk == nil {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	removed := j.bulk.CleanupExpired(maxAge)
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired bulk jobs removed", zap.Int("count", removed))
	}
	return nil
}
