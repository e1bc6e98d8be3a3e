package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetHistory(ctx context.Context, convID uint64) ([]*Message, error)
	CountUnread(ctx context.Context, convID uint64, viewerID uint64) (int64, error)
	MarkConversationRead(ctx context.Context, convID uint64, viewerID uint64) error
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection("message"),
	}
}

// SaveMessage 将消息存入 MongoDB
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

// GetHistory 按创建时间升序返回会话全部消息，无消息时返回空切片
func (s *messageRepoImpl) GetHistory(ctx context.Context, convID uint64) ([]*Message, error) {
	filter := bson.M{"conversation_id": convID}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	messages := make([]*Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// CountUnread 视角未读数 = 会话内 is_read=false 且非本人发送的消息数
func (s *messageRepoImpl) CountUnread(ctx context.Context, convID uint64, viewerID uint64) (int64, error) {
	filter := bson.M{
		"conversation_id": convID,
		"is_read":         false,
		"sender_id":       bson.M{"$ne": viewerID},
	}
	return s.col.CountDocuments(ctx, filter)
}

// MarkConversationRead 将会话内所有非本人发送的消息翻转为已读
func (s *messageRepoImpl) MarkConversationRead(ctx context.Context, convID uint64, viewerID uint64) error {
	filter := bson.M{
		"conversation_id": convID,
		"is_read":         false,
		"sender_id":       bson.M{"$ne": viewerID},
	}
	update := bson.M{"$set": bson.M{"is_read": true}}
	_, err := s.col.UpdateMany(ctx, filter, update)
	return err
}
