package realtime

import (
	"SportHub/internal/api/dto"
)

// 实时总线上的事件类型
const (
	EventInsert      = "INSERT"
	EventUpdate      = "UPDATE"
	EventDelete      = "DELETE"
	EventReadReceipt = "READ_RECEIPT"
	EventStatus      = "STATUS"
	EventBadge       = "BADGE"
)

// Event 实时总线上的一条变更事件
// 发布方只填与 Type 对应的载荷字段，其余留空
type Event struct {
	Type        string              `json:"type"`
	Message     *dto.MessageDTO     `json:"message,omitempty"`
	Receipt     *dto.ReadReceiptDTO `json:"receipt,omitempty"`
	Notify      *dto.NotifyDTO      `json:"notify,omitempty"`
	Notice      string              `json:"notice,omitempty"`
	URL         string              `json:"url,omitempty"`
	UnreadCount int64               `json:"unread_count,omitempty"`
	Subscribed  bool                `json:"subscribed,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// NewMessageEvent 消息插入事件
func NewMessageEvent(msg *dto.MessageDTO) *Event {
	return &Event{Type: EventInsert, Message: msg}
}

// NewReceiptEvent 已读回执事件
func NewReceiptEvent(convID, userID uint64) *Event {
	return &Event{Type: EventReadReceipt, Receipt: &dto.ReadReceiptDTO{
		ConversationID: convID,
		UserID:         userID,
	}}
}

// NewNotifyEvent 通知插入事件
func NewNotifyEvent(n *dto.NotifyDTO) *Event {
	return &Event{Type: EventInsert, Notify: n}
}
