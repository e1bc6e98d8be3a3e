package realtime

import (
	"SportHub/internal/pkg/redis"
	"context"
	log "log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/goccy/go-json"
)

// EventChannel 一条已建立的实时频道，事件由单一消费循环排空
type EventChannel interface {
	Events() <-chan *Event
	Close() error
}

// EventSource 实时事件来源，抽象掉 Redis 传输便于替换与测试
type EventSource interface {
	Subscribe(ctx context.Context, channel string) (EventChannel, error)
}

// EventPublisher 实时事件发布端，写路径 (发消息、回执、通知) 使用
type EventPublisher interface {
	Publish(ctx context.Context, channel string, ev *Event) error
}

// RedisBus 基于 Redis Pub/Sub 的事件总线，同时充当事件源与发布端
type RedisBus struct{}

func NewRedisBus() *RedisBus {
	return &RedisBus{}
}

func (s *RedisBus) Subscribe(ctx context.Context, channel string) (EventChannel, error) {
	pubsub := redis.Subscribe(ctx, channel)

	// 确认订阅真正建立，失败交给上层重试
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	ch := &redisChannel{
		pubsub: pubsub,
		events: make(chan *Event, 64),
	}
	go ch.pump(channel)
	return ch, nil
}

func (s *RedisBus) Publish(ctx context.Context, channel string, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return redis.Publish(ctx, channel, data)
}

type redisChannel struct {
	pubsub    *goredis.PubSub
	events    chan *Event
	closeOnce sync.Once
}

// pump 将 Redis 消息解码后转入事件通道，底层断开时关闭通道
func (c *redisChannel) pump(channel string) {
	defer close(c.events)
	for msg := range c.pubsub.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Warn("丢弃无法解析的实时事件", "channel", channel, "err", err)
			continue
		}
		c.events <- &ev
	}
}

func (c *redisChannel) Events() <-chan *Event {
	return c.events
}

func (c *redisChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.pubsub.Close()
	})
	return err
}
