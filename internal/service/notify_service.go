package service

import (
	"SportHub/internal/api/dto"
	"SportHub/internal/pkg/consts"
	"SportHub/internal/pkg/minio"
	"SportHub/internal/pkg/mongo"
	"SportHub/internal/pkg/push"
	"SportHub/internal/realtime"
	"SportHub/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"strconv"
	"time"

	"github.com/jinzhu/copier"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongoDB "go.mongodb.org/mongo-driver/mongo"
)

// NotifyService 通知收件箱服务
type NotifyService interface {
	CreateNotification(ctx context.Context, req *dto.CreateNotifyDTO) error
	GetNotificationList(ctx context.Context, userID uint64, page, pageSize int) ([]*dto.NotifyDTO, error)
	GetUnreadCount(ctx context.Context, userID uint64) (int64, error)
	MarkRead(ctx context.Context, userID uint64, msgID string) error
	MarkAllRead(ctx context.Context, userID uint64) error
}

type notifyServiceImpl struct {
	notifyRepo mongo.NotifyRepo
	userRepo   repository.UserRepo
	bus        realtime.EventPublisher
	pusher     push.Sender
}

func NewNotifyService(notifyRepo mongo.NotifyRepo, userRepo repository.UserRepo, bus realtime.EventPublisher, pusher push.Sender) NotifyService {
	return &notifyServiceImpl{
		notifyRepo: notifyRepo,
		userRepo:   userRepo,
		bus:        bus,
		pusher:     pusher,
	}
}

// CreateNotification 落库后广播插入事件，并给接收者兜底推送
func (s *notifyServiceImpl) CreateNotification(ctx context.Context, req *dto.CreateNotifyDTO) error {
	msg := &mongo.Notification{
		ID:          primitive.NewObjectID(),
		ReceiverID:  req.ReceiverID,
		ActorID:     req.ActorID,
		Type:        req.Type,
		ReferenceID: req.ReferenceID,
		Content:     req.Content,
		IsRead:      false,
		CreatedAt:   time.Now(),
	}

	if err := s.notifyRepo.CreateNotification(ctx, msg); err != nil {
		return err
	}

	notifyDTO := s.toNotifyDTO(ctx, msg)
	if err := s.publish(ctx, req.ReceiverID, realtime.NewNotifyEvent(notifyDTO)); err != nil {
		log.ErrorContext(ctx, "通知事件发布失败", "receiver_id", req.ReceiverID, "err", err)
	}

	s.firePush(req.ReceiverID, notifyDTO)
	return nil
}

// GetNotificationList 分页获取通知列表并补全动作发起者信息
func (s *notifyServiceImpl) GetNotificationList(ctx context.Context, userID uint64, page, pageSize int) ([]*dto.NotifyDTO, error) {
	limit := int64(pageSize)
	offset := int64((page - 1) * pageSize)

	list, err := s.notifyRepo.GetNotificationList(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.NotifyDTO, 0, len(list))
	for _, m := range list {
		res = append(res, s.toNotifyDTO(ctx, m))
	}
	return res, nil
}

// GetUnreadCount 获取未读通知总数 (角标回源入口)
func (s *notifyServiceImpl) GetUnreadCount(ctx context.Context, userID uint64) (int64, error) {
	return s.notifyRepo.GetUnreadCount(ctx, userID)
}

// MarkRead 标记单条已读
func (s *notifyServiceImpl) MarkRead(ctx context.Context, userID uint64, msgID string) error {
	objectID, err := primitive.ObjectIDFromHex(msgID)
	if err != nil {
		return ErrParamInvalid
	}

	notice, err := s.notifyRepo.GetByID(ctx, objectID)
	if err != nil {
		if errors.Is(err, mongoDB.ErrNoDocuments) {
			return ErrNotifyNotFound
		}
		return err
	}

	if notice.ReceiverID != userID {
		return UnauthorizedError
	}

	if notice.IsRead {
		return nil
	}

	if err := s.notifyRepo.MarkAsRead(ctx, userID, msgID); err != nil {
		return err
	}

	// 订阅方收到任意事件都会重新回源统计未读数
	if err := s.publish(ctx, userID, &realtime.Event{Type: realtime.EventUpdate}); err != nil {
		log.WarnContext(ctx, "已读事件发布失败", "user_id", userID, "err", err)
	}
	return nil
}

// MarkAllRead 一键已读
func (s *notifyServiceImpl) MarkAllRead(ctx context.Context, userID uint64) error {
	if err := s.notifyRepo.MarkAllAsRead(ctx, userID); err != nil {
		return err
	}

	if err := s.publish(ctx, userID, &realtime.Event{Type: realtime.EventUpdate}); err != nil {
		log.WarnContext(ctx, "已读事件发布失败", "user_id", userID, "err", err)
	}
	return nil
}

func (s *notifyServiceImpl) publish(ctx context.Context, userID uint64, ev *realtime.Event) error {
	channel := consts.NotifyUserKey + strconv.FormatUint(userID, 10)
	return s.bus.Publish(ctx, channel, ev)
}

// firePush 走外部推送网关，失败只记日志
func (s *notifyServiceImpl) firePush(receiverID uint64, n *dto.NotifyDTO) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		title := "新通知"
		if n.ActorName != "" {
			title = n.ActorName
		}
		if err := s.pusher.SendPush(ctx, receiverID, title, n.Content, realtime.NotifyScreenURL); err != nil {
			log.Warn("通知推送失败", "receiver_id", receiverID, "err", err)
		}
	}()
}

// toNotifyDTO 模型转 DTO，补全发起者昵称头像 (ActorID 为 0 代表系统通知)
func (s *notifyServiceImpl) toNotifyDTO(ctx context.Context, m *mongo.Notification) *dto.NotifyDTO {
	d := &dto.NotifyDTO{}
	_ = copier.Copy(d, m)
	d.ID = m.ID.Hex()
	d.CreatedAt = m.CreatedAt.UTC().Format(time.RFC3339)

	if m.ActorID > 0 {
		actor, err := s.userRepo.GetUserSimpleInfoById(ctx, m.ActorID)
		if err == nil && actor != nil {
			d.ActorName = actor.Nickname
			d.AvatarURL = minio.GetPublicURL(actor.AvatarURL)
		}
	} else {
		d.ActorName = "系统通知"
	}
	return d
}
