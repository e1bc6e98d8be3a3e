package service

import (
	"SportHub/internal/api/dto"
	"SportHub/internal/model"
	"SportHub/internal/pkg/cache"
	"SportHub/internal/pkg/consts"
	"SportHub/internal/pkg/minio"
	"SportHub/internal/pkg/mongo"
	"SportHub/internal/pkg/push"
	"SportHub/internal/pkg/util"
	"SportHub/internal/realtime"
	"SportHub/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IMService 即时通讯服务接口定义
type IMService interface {
	SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	GetOrCreateConversation(ctx context.Context, userID, targetUserID uint64) (uint64, error)
	GetChatHistory(ctx context.Context, userID uint64, convID uint64) ([]*dto.MessageDTO, error)
	GetConversationList(ctx context.Context, userID uint64) ([]*dto.ConversationDTO, error)
	MarkAsRead(ctx context.Context, userID uint64, convID uint64) error
	EnsureMember(ctx context.Context, userID uint64, convID uint64) error
	BindPresence(p Presence)
}

// Presence 查询用户是否已打开某个会话的实时订阅
type Presence interface {
	IsOpen(viewerID, convID uint64) bool
}

type imServiceImpl struct {
	convRepo    repository.ConversationRepo
	messageRepo mongo.MessageRepo
	userRepo    repository.UserRepo
	store       cache.Store
	bus         realtime.EventPublisher
	pusher      push.Sender
	presence    Presence
}

func NewIMService(
	convRepo repository.ConversationRepo,
	messageRepo mongo.MessageRepo,
	userRepo repository.UserRepo,
	store cache.Store,
	bus realtime.EventPublisher,
	pusher push.Sender,
) IMService {
	return &imServiceImpl{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		store:       store,
		bus:         bus,
		pusher:      pusher,
	}
}

// SendMessage 发送消息
// 本地渲染完全由事件路径驱动：这里只落库、发布事件、失效缓存，
// 不做乐观写入，发送方与接收方走同一条渲染链路
func (s *imServiceImpl) SendMessage(ctx context.Context, senderID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	// 空白内容在任何 I/O 之前拒绝
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	var convID = req.ConversationID
	var targetID = req.TargetUserID

	if convID == 0 {
		if targetID == 0 || targetID == senderID {
			return nil, ErrTargetUserInvalid
		}
		id, err := s.GetOrCreateConversation(ctx, senderID, targetID)
		if err != nil {
			return nil, err
		}
		convID = id
	} else {
		conv, err := s.convRepo.GetConversation(ctx, convID)
		if err != nil {
			return nil, ErrConversation
		}
		isMember, _ := s.convRepo.IsMember(ctx, convID, senderID)
		if !isMember {
			return nil, UnauthorizedError
		}
		targetID, err = s.parsePeerID(conv.PeerKey, senderID)
		if err != nil {
			return nil, ErrConversation
		}
	}

	now := time.Now()
	msgModel := &mongo.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: convID,
		SenderID:       senderID,
		Content:        content,
		IsRead:         false,
		CreatedAt:      now,
	}

	// 落库失败必须让调用方感知，内容不允许静默丢失
	if err := s.messageRepo.SaveMessage(ctx, msgModel); err != nil {
		log.ErrorContext(ctx, "消息落库失败", "conversation_id", convID, "sender_id", senderID, "err", err)
		return nil, err
	}

	if err := s.convRepo.UpdateLastMessage(ctx, convID, content, now); err != nil {
		log.WarnContext(ctx, "会话预览更新失败", "conversation_id", convID, "err", err)
	}

	msgDTO := s.toMessageDTO(msgModel)

	// 发布到会话频道，双方订阅各自完成缓存合并
	channel := consts.IMConversationKey + strconv.FormatUint(convID, 10)
	if err := s.bus.Publish(ctx, channel, realtime.NewMessageEvent(msgDTO)); err != nil {
		log.ErrorContext(ctx, "消息事件发布失败", "conversation_id", convID, "err", err)
	}

	s.store.Invalidate(cache.ConversationsKey(senderID))
	s.store.Invalidate(cache.ConversationsKey(targetID))

	s.firePush(senderID, targetID, convID, content)

	return msgDTO, nil
}

// GetOrCreateConversation 针对单聊：获取或创建会话
func (s *imServiceImpl) GetOrCreateConversation(ctx context.Context, userID, targetUserID uint64) (uint64, error) {
	// 校验目标用户存在
	if _, err := s.userRepo.GetUserSimpleInfoById(ctx, targetUserID); err != nil {
		return 0, ErrTargetUserInvalid
	}

	peerKey := buildPeerKey(userID, targetUserID)
	conv, err := s.convRepo.GetConversationByPeerKey(ctx, peerKey)
	if err == nil {
		return conv.ID, nil
	}

	newConv := &model.Conversation{
		Type:          consts.ConversationTypeSingle,
		PeerKey:       peerKey,
		LastMessageAt: time.Now(),
	}
	members := []*model.ConversationMember{
		{UserID: userID},
		{UserID: targetUserID},
	}

	if err := s.convRepo.CreateConversation(ctx, newConv, members); err != nil {
		// 双方同时发首条消息会撞 peer_key 唯一索引，回读已建会话
		if isDuplicateError(err) {
			conv, err = s.convRepo.GetConversationByPeerKey(ctx, peerKey)
			if err != nil {
				return 0, ErrConversation
			}
			return conv.ID, nil
		}
		return 0, err
	}
	return newConv.ID, nil
}

func isDuplicateError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	return false
}

// GetChatHistory 按创建时间升序返回历史消息，无消息时为空列表
func (s *imServiceImpl) GetChatHistory(ctx context.Context, userID uint64, convID uint64) ([]*dto.MessageDTO, error) {
	isMember, err := s.convRepo.IsMember(ctx, convID, userID)
	if err != nil || !isMember {
		return nil, UnauthorizedError
	}

	key := cache.MessagesKey(convID)
	if cached, ok := s.store.Get(key); ok {
		if list, ok := cached.([]*dto.MessageDTO); ok {
			return list, nil
		}
		s.store.Invalidate(key)
	}

	models, err := s.messageRepo.GetHistory(ctx, convID)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MessageDTO, 0, len(models))
	for _, m := range models {
		res = append(res, s.toMessageDTO(m))
	}
	s.store.Set(key, res)
	return res, nil
}

// GetConversationList 获取会话列表，带对方资料、预览与未读数
// 单个会话补全失败时丢弃该条并记日志，不影响整个列表
func (s *imServiceImpl) GetConversationList(ctx context.Context, userID uint64) ([]*dto.ConversationDTO, error) {
	key := cache.ConversationsKey(userID)
	if cached, ok := s.store.Get(key); ok {
		if list, ok := cached.([]*dto.ConversationDTO); ok {
			return list, nil
		}
		s.store.Invalidate(key)
	}

	members, err := s.convRepo.GetUserConversationMemList(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ConversationDTO, 0, len(members))
	for _, m := range members {
		peerID, err := s.parsePeerID(m.Conversation.PeerKey, userID)
		if err != nil {
			log.WarnContext(ctx, "会话 PeerKey 异常，跳过", "conversation_id", m.ConversationID, "err", err)
			continue
		}

		peer, err := s.userRepo.GetUserSimpleInfoById(ctx, peerID)
		if err != nil {
			log.WarnContext(ctx, "会话对方资料补全失败，跳过", "conversation_id", m.ConversationID, "peer_id", peerID, "err", err)
			continue
		}

		unread, err := s.messageRepo.CountUnread(ctx, m.ConversationID, userID)
		if err != nil {
			log.WarnContext(ctx, "未读数统计失败", "conversation_id", m.ConversationID, "err", err)
			unread = 0
		}

		res = append(res, &dto.ConversationDTO{
			ConversationID: m.ConversationID,
			PeerID:         peerID,
			PeerNickname:   peer.Nickname,
			PeerAvatarURL:  minio.GetPublicURL(peer.AvatarURL),
			LastMessage:    m.Conversation.LastMessage,
			LastMessageAt:  m.Conversation.LastMessageAt,
			LastMessageAgo: util.RelativeTime(m.Conversation.LastMessageAt),
			UnreadCount:    unread,
		})
	}

	s.store.Set(key, res)
	return res, nil
}

// EnsureMember 会话成员鉴权，实时频道打开前调用
func (s *imServiceImpl) EnsureMember(ctx context.Context, userID uint64, convID uint64) error {
	isMember, err := s.convRepo.IsMember(ctx, convID, userID)
	if err != nil || !isMember {
		return UnauthorizedError
	}
	return nil
}

// MarkAsRead 将会话内非本人发送的消息全部置为已读，并广播回执
func (s *imServiceImpl) MarkAsRead(ctx context.Context, userID uint64, convID uint64) error {
	isMember, err := s.convRepo.IsMember(ctx, convID, userID)
	if err != nil || !isMember {
		return UnauthorizedError
	}

	if err := s.messageRepo.MarkConversationRead(ctx, convID, userID); err != nil {
		return err
	}

	channel := consts.IMConversationKey + strconv.FormatUint(convID, 10)
	if err := s.bus.Publish(ctx, channel, realtime.NewReceiptEvent(convID, userID)); err != nil {
		log.WarnContext(ctx, "已读回执发布失败", "conversation_id", convID, "err", err)
	}

	s.store.Invalidate(cache.MessagesKey(convID))
	s.store.Invalidate(cache.ConversationsKey(userID))
	return nil
}

// BindPresence 注入在线状态查询
// 订阅管理器构造时反向依赖本服务的已读回执，只能在装配完成后绑定
func (s *imServiceImpl) BindPresence(p Presence) {
	s.presence = p
}

// firePush 给对方推送 {title, message, url}，失败只记日志
// 对方已打开该会话的实时订阅时消息走事件路径渲染，跳过推送
func (s *imServiceImpl) firePush(senderID, targetID, convID uint64, content string) {
	if s.presence != nil && s.presence.IsOpen(targetID, convID) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		title := "新消息"
		if sender, err := s.userRepo.GetUserSimpleInfoById(ctx, senderID); err == nil {
			title = sender.Nickname
		}

		url := "/messages/" + strconv.FormatUint(convID, 10)
		if err := s.pusher.SendPush(ctx, targetID, title, content, url); err != nil {
			log.Warn("离线推送失败", "target_id", targetID, "conversation_id", convID, "err", err)
		}
	}()
}

func buildPeerKey(userID, targetUserID uint64) string {
	if userID < targetUserID {
		return fmt.Sprintf("%d_%d", userID, targetUserID)
	}
	return fmt.Sprintf("%d_%d", targetUserID, userID)
}

func (s *imServiceImpl) parsePeerID(peerKey string, currentUserID uint64) (uint64, error) {
	var u1, u2 uint64
	_, err := fmt.Sscanf(peerKey, "%d_%d", &u1, &u2)
	if err != nil {
		return 0, err
	}
	if u1 == currentUserID {
		return u2, nil
	}
	return u1, nil
}

func (s *imServiceImpl) toMessageDTO(m *mongo.Message) *dto.MessageDTO {
	return &dto.MessageDTO{
		ID:             m.ID.Hex(),
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}
