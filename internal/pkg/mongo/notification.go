package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification 通知模型
type Notification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReceiverID  uint64             `bson:"receiver_id" json:"receiverId"`   // 通知接收者ID
	ActorID     uint64             `bson:"actor_id" json:"actorId"`         // 动作发起者ID (系统通知可为0)
	Type        int8               `bson:"type" json:"type"`                // 通知类型: 1-点赞, 2-评论, 3-关注, 4-打赏
	ReferenceID uint64             `bson:"reference_id" json:"referenceId"` // 关联的目标ID (如帖子ID)
	Content     string             `bson:"content" json:"content"`          // 通知文案预览
	IsRead      bool               `bson:"is_read" json:"isRead"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}
