package kafka

import (
	"SportHub/internal/pkg/es"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// UserHandler 同步 user_details 的 Canal 变更到 ES 搜索索引
type UserHandler struct {
	userESRepo es.UserRepo
}

func NewUserHandler(userESRepo es.UserRepo) *UserHandler {
	return &UserHandler{
		userESRepo: userESRepo,
	}
}

func (s *UserHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("user consumer setup")
	return nil
}

func (s *UserHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("user consumer cleanup")
	return nil
}

func (s *UserHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log.Info("topic-user-detail consume claim")
	err := pullMessageBatch(session, claim, s.logic)
	if err != nil {
		log.Error("topic-user-detail process batch error", "err", err)
		return err
	}
	log.Info("topic-user-detail consume claim end")
	return nil
}

func (s *UserHandler) logic(ctx context.Context, msg *sarama.ConsumerMessage) error {
	canalMsg, err := ToCanalMessage(msg, "user_details")
	if err != nil {
		return err
	}

	row := canalMsg.Data[0]
	userID := StrToUint64(row["user_id"])

	if canalMsg.Type == DELETE {
		return s.userESRepo.DeleteUser(ctx, userID)
	}

	bio := StrToString(row["bio"])
	user := &es.UserES{
		ID:        userID,
		Nickname:  StrToString(row["nickname"]),
		Bio:       &bio,
		AvatarURL: StrToString(row["avatar_url"]),
		Sport:     StrToString(row["sport"]),
		Team:      StrToString(row["team"]),
	}
	return s.userESRepo.IndexUser(ctx, user, canalMsg.TS)
}
