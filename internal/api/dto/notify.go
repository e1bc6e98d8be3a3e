package dto

// NotifyDTO 通知列表项响应
type NotifyDTO struct {
	ID          string `json:"id"`
	ActorID     uint64 `json:"actor_id"`
	ActorName   string `json:"actor_name"`
	AvatarURL   string `json:"avatar_url"`
	Type        int8   `json:"type"` // 1-点赞, 2-评论, 3-关注, 4-打赏
	ReferenceID uint64 `json:"reference_id"`
	Content     string `json:"content"`
	IsRead      bool   `json:"is_read"`
	CreatedAt   string `json:"created_at"`
}

// NotifyUnreadDTO 未读数返回
type NotifyUnreadDTO struct {
	UnreadCount int64 `json:"unread_count"`
}

// CreateNotifyDTO 通知写入（Kafka 活动事件落库用）
type CreateNotifyDTO struct {
	ReceiverID  uint64 `json:"receiver_id"`
	ActorID     uint64 `json:"actor_id"`
	Type        int8   `json:"type"`
	ReferenceID uint64 `json:"reference_id"`
	Content     string `json:"content"`
}
