package kafka

import (
	"SportHub/internal/api/dto"
	"SportHub/internal/service"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// activityEvent 上游业务（点赞/评论/关注/打赏服务）投递的互动事件
type activityEvent struct {
	Type        int8   `json:"type"`
	ActorID     uint64 `json:"actor_id"`
	ReceiverID  uint64 `json:"receiver_id"`
	ReferenceID uint64 `json:"reference_id"`
	Content     string `json:"content"`
}

type ActivityHandler struct {
	notifyService service.NotifyService
}

func NewActivityHandler(notifyService service.NotifyService) *ActivityHandler {
	return &ActivityHandler{
		notifyService: notifyService,
	}
}

func (s *ActivityHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("activity consumer setup")
	return nil
}

func (s *ActivityHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("activity consumer cleanup")
	return nil
}

func (s *ActivityHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("topic-activity consume claim")
	err := pullMessageBatch(session, claim, s.logic)
	if err != nil {
		log.Error("topic-activity process batch error", "err", err)
		return err
	}
	log.Info("topic-activity consume claim end")
	return nil
}

func (s *ActivityHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event activityEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal activity event")
	}

	if event.ReceiverID == 0 {
		return errors.New("activity event missing receiver")
	}
	// 自己给自己的互动不生成通知
	if event.ActorID != 0 && event.ActorID == event.ReceiverID {
		return nil
	}

	req := &dto.CreateNotifyDTO{
		ReceiverID:  event.ReceiverID,
		ActorID:     event.ActorID,
		Type:        event.Type,
		ReferenceID: event.ReferenceID,
		Content:     event.Content,
	}
	if err := s.notifyService.CreateNotification(ctx, req); err != nil {
		return errors.Wrapf(err, "create notification for user %d", event.ReceiverID)
	}

	log.InfoContext(ctx, "activity notification created",
		"receiver_id", event.ReceiverID, "type", event.Type)
	return nil
}
