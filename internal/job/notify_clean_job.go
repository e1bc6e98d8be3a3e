package job

import (
	"SportHub/internal/pkg/logger"
	"SportHub/internal/pkg/mongo"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

// 已读通知保留 30 天
const notifyRetention = 30 * 24 * time.Hour

type NotifyCleanJob struct {
	notifyRepo mongo.NotifyRepo
}

func NewNotifyCleanJob(notifyRepo mongo.NotifyRepo) *NotifyCleanJob {
	return &NotifyCleanJob{
		notifyRepo: notifyRepo,
	}
}

func (s *NotifyCleanJob) Run() {
	traceID := "job-notify-clean-" + uuid.NewString()
	ctx := context.WithValue(context.Background(), logger.TraceIDKey, traceID)

	before := time.Now().Add(-notifyRetention)
	deleted, err := s.notifyRepo.DeleteReadBefore(ctx, before)
	if err != nil {
		log.ErrorContext(ctx, "clean read notifications error", "err", err)
		return
	}

	if deleted > 0 {
		log.InfoContext(ctx, "notify clean job finished", "deleted_count", deleted, "before", before)
	}
}
