package realtime

import (
	"SportHub/internal/api/dto"
	"SportHub/internal/pkg/cache"
	"SportHub/internal/pkg/consts"
	"context"
	log "log/slog"
	"strconv"
	"sync"
	"time"
)

// 重连策略：延迟 = min(1000ms × 2^attempt, 10000ms)，最多重试 3 次，
// 耗尽后进入失败态，直到会话重新打开
const (
	maxRetries = 3
	baseDelay  = time.Second
	maxDelay   = 10 * time.Second
)

// FailedNotice 重试耗尽后推给客户端的提示文案
const FailedNotice = "消息服务连接失败"

// 订阅状态
const (
	StateConnecting = iota
	StateSubscribed
	StateFailed
	StateClosed
)

// ReceiptMarker 已读回执入口，由 IM 服务实现
type ReceiptMarker interface {
	MarkAsRead(ctx context.Context, userID uint64, convID uint64) error
}

// Subscription 单个 (用户, 会话) 维度的实时订阅
// 一个消费循环排空频道事件：幂等合并进消息缓存、触发已读回执、
// 失效会话列表缓存，并转发给外部观察者 (WS 写循环)
type Subscription struct {
	viewerID uint64
	convID   uint64

	source   EventSource
	store    cache.Store
	receipts ReceiptMarker
	sleep    func(time.Duration)

	out  chan *Event
	done chan struct{}

	mu    sync.Mutex
	state int

	closeOnce sync.Once
}

func newSubscription(viewerID, convID uint64, source EventSource, store cache.Store, receipts ReceiptMarker, sleep func(time.Duration)) *Subscription {
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Subscription{
		viewerID: viewerID,
		convID:   convID,
		source:   source,
		store:    store,
		receipts: receipts,
		sleep:    sleep,
		out:      make(chan *Event, 64),
		done:     make(chan struct{}),
		state:    StateConnecting,
	}
}

// Events 返回转发给观察者的事件通道
func (s *Subscription) Events() <-chan *Event {
	return s.out
}

// State 当前订阅状态
func (s *Subscription) State() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsSubscribed 频道是否在线
func (s *Subscription) IsSubscribed() bool {
	return s.State() == StateSubscribed
}

// Close 释放频道，幂等
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		close(s.done)
	})
}

func (s *Subscription) channelName() string {
	return consts.IMConversationKey + strconv.FormatUint(s.convID, 10)
}

// run 订阅主循环：建立频道、消费事件、断开后按退避策略重连
// 退出时关闭 out 通道，通知下游转发循环结束
func (s *Subscription) run() {
	defer close(s.out)

	attempt := 0
	for {
		ch, err := s.source.Subscribe(context.Background(), s.channelName())
		if err != nil {
			log.Warn("实时频道订阅失败", "conversation_id", s.convID, "attempt", attempt, "err", err)
			if !s.backoff(&attempt) {
				return
			}
			continue
		}

		s.setState(StateSubscribed)
		attempt = 0
		s.emit(&Event{Type: EventStatus, Subscribed: true})

		alive := s.consume(ch)
		_ = ch.Close()
		if !alive {
			return
		}

		// 底层通道断开，走同一套重连策略
		log.Warn("实时频道断开", "conversation_id", s.convID)
		if !s.backoff(&attempt) {
			return
		}
	}
}

// backoff 返回 false 表示不再重试 (重试耗尽或订阅已关闭)
func (s *Subscription) backoff(attempt *int) bool {
	if *attempt >= maxRetries {
		s.setState(StateFailed)
		log.Error("实时频道重试耗尽", "conversation_id", s.convID, "viewer_id", s.viewerID)
		s.emit(&Event{Type: EventStatus, Subscribed: false, Error: FailedNotice})
		return false
	}
	*attempt++
	delay := baseDelay << uint(*attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	s.sleep(delay)
	return !s.isClosed()
}

// consume 排空事件直到频道断开 (返回 true) 或订阅被关闭 (返回 false)
func (s *Subscription) consume(ch EventChannel) bool {
	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				return true
			}
			s.handle(ev)
			s.emit(ev)
		case <-s.done:
			return false
		}
	}
}

func (s *Subscription) handle(ev *Event) {
	switch ev.Type {
	case EventInsert:
		if ev.Message == nil {
			return
		}
		s.mergeMessage(ev.Message)
		if ev.Message.SenderID != s.viewerID {
			s.fireReadReceipt()
		}
		s.store.Invalidate(cache.ConversationsKey(s.viewerID))
	case EventReadReceipt:
		s.store.Invalidate(cache.MessagesKey(s.convID))
		s.store.Invalidate(cache.ConversationsKey(s.viewerID))
	}
}

// mergeMessage 幂等合并：同一消息 ID 只进缓存一次，防止重复投递
// 双方订阅在同一进程里写同一个键，整个读改写必须在缓存锁内完成
func (s *Subscription) mergeMessage(msg *dto.MessageDTO) {
	key := cache.MessagesKey(s.convID)
	s.store.Update(key, func(cached interface{}, ok bool) (interface{}, bool) {
		if !ok {
			// 历史尚未拉取，留给下次读取回源
			return nil, false
		}
		list, ok := cached.([]*dto.MessageDTO)
		if !ok {
			return nil, false
		}
		for _, m := range list {
			if m.ID == msg.ID {
				return nil, false
			}
		}
		return append(list, msg), true
	})
}

// fireReadReceipt 回执失败只记日志，消息展示不受影响
func (s *Subscription) fireReadReceipt() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.receipts.MarkAsRead(ctx, s.viewerID, s.convID); err != nil {
			log.Warn("已读回执失败", "conversation_id", s.convID, "viewer_id", s.viewerID, "err", err)
		}
	}()
}

func (s *Subscription) emit(ev *Event) {
	select {
	case s.out <- ev:
	default:
		log.Warn("订阅事件队列已满，丢弃事件", "conversation_id", s.convID, "type", ev.Type)
	}
}

func (s *Subscription) setState(state int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = state
}

func (s *Subscription) isClosed() bool {
	return s.State() == StateClosed
}
