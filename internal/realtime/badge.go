package realtime

import (
	"SportHub/internal/pkg/consts"
	"context"
	log "log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// NotifyScreenURL 瞬时提醒点击后跳转的通知页
const NotifyScreenURL = "/notifications"

// NotifyBackend 未读数回源入口，由通知服务实现
type NotifyBackend interface {
	GetUnreadCount(ctx context.Context, userID uint64) (int64, error)
}

// BadgeFeed 用户级未读角标订阅
// 任意事件都从后端重新统计未读数，绝不在本地增减，
// 避免批量已读等部分更新造成的漂移
type BadgeFeed struct {
	userID  uint64
	source  EventSource
	backend NotifyBackend
	sleep   func(time.Duration)

	out  chan *Event
	done chan struct{}

	unread atomic.Int64

	mu    sync.Mutex
	state int

	closeOnce sync.Once
}

func NewBadgeFeed(userID uint64, source EventSource, backend NotifyBackend) *BadgeFeed {
	return &BadgeFeed{
		userID:  userID,
		source:  source,
		backend: backend,
		sleep:   time.Sleep,
		out:     make(chan *Event, 64),
		done:    make(chan struct{}),
		state:   StateConnecting,
	}
}

// Start 先回源一次未读数，再启动订阅循环
func (f *BadgeFeed) Start() {
	f.recount()
	go f.run()
}

// Events 返回推送给观察者的事件通道
func (f *BadgeFeed) Events() <-chan *Event {
	return f.out
}

// Unread 当前未读数
func (f *BadgeFeed) Unread() int64 {
	return f.unread.Load()
}

// Stop 释放频道，幂等
func (f *BadgeFeed) Stop() {
	f.closeOnce.Do(func() {
		f.setState(StateClosed)
		close(f.done)
	})
}

func (f *BadgeFeed) channelName() string {
	return consts.NotifyUserKey + strconv.FormatUint(f.userID, 10)
}

func (f *BadgeFeed) run() {
	defer close(f.out)

	attempt := 0
	for {
		ch, err := f.source.Subscribe(context.Background(), f.channelName())
		if err != nil {
			log.Warn("通知频道订阅失败", "user_id", f.userID, "attempt", attempt, "err", err)
			if !f.backoff(&attempt) {
				return
			}
			continue
		}

		f.setState(StateSubscribed)
		attempt = 0
		f.emit(&Event{Type: EventStatus, Subscribed: true})

		alive := f.consume(ch)
		_ = ch.Close()
		if !alive {
			return
		}

		log.Warn("通知频道断开", "user_id", f.userID)
		if !f.backoff(&attempt) {
			return
		}
	}
}

func (f *BadgeFeed) backoff(attempt *int) bool {
	if *attempt >= maxRetries {
		f.setState(StateFailed)
		log.Error("通知频道重试耗尽", "user_id", f.userID)
		f.emit(&Event{Type: EventStatus, Subscribed: false, Error: FailedNotice})
		return false
	}
	*attempt++
	delay := baseDelay << uint(*attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	f.sleep(delay)
	return f.State() != StateClosed
}

func (f *BadgeFeed) consume(ch EventChannel) bool {
	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				return true
			}
			f.handle(ev)
		case <-f.done:
			return false
		}
	}
}

func (f *BadgeFeed) handle(ev *Event) {
	// 插入事件额外推一条可跳转的瞬时提醒
	if ev.Type == EventInsert && ev.Notify != nil {
		f.emit(&Event{
			Type:   EventInsert,
			Notify: ev.Notify,
			Notice: noticeText(ev.Notify.Type),
			URL:    NotifyScreenURL,
		})
	}
	f.recount()
}

// recount 从后端重算未读数并广播角标事件
func (f *BadgeFeed) recount() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := f.backend.GetUnreadCount(ctx, f.userID)
	if err != nil {
		log.Warn("未读数回源失败", "user_id", f.userID, "err", err)
		return
	}
	f.unread.Store(n)
	f.emit(&Event{Type: EventBadge, UnreadCount: n})
}

func noticeText(notifyType int8) string {
	switch notifyType {
	case consts.NotifyTypeLike:
		return "收到新的点赞"
	case consts.NotifyTypeComment:
		return "收到新的评论"
	case consts.NotifyTypeFollow:
		return "有新的粉丝关注了你"
	case consts.NotifyTypeDonation:
		return "收到新的打赏"
	default:
		return "收到新的通知"
	}
}

func (f *BadgeFeed) emit(ev *Event) {
	select {
	case f.out <- ev:
	default:
		log.Warn("角标事件队列已满，丢弃事件", "user_id", f.userID, "type", ev.Type)
	}
}

func (f *BadgeFeed) State() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *BadgeFeed) setState(state int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateClosed {
		return
	}
	f.state = state
}
