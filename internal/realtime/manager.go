package realtime

import (
	"SportHub/internal/pkg/cache"
	log "log/slog"
	"sync"
	"time"
)

type subKey struct {
	viewerID uint64
	convID   uint64
}

// Manager 维护每个 (用户, 会话) 对上唯一的实时订阅
type Manager struct {
	source   EventSource
	store    cache.Store
	receipts ReceiptMarker
	sleep    func(time.Duration)

	mu   sync.Mutex
	subs map[subKey]*Subscription
}

func NewManager(source EventSource, store cache.Store, receipts ReceiptMarker) *Manager {
	return &Manager{
		source:   source,
		store:    store,
		receipts: receipts,
		sleep:    time.Sleep,
		subs:     make(map[subKey]*Subscription),
	}
}

// Open 打开会话订阅
// 同一 (用户, 会话) 重复打开时先关闭旧通道，保证不产生重复监听
func (m *Manager) Open(viewerID, convID uint64) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := subKey{viewerID: viewerID, convID: convID}
	if old, ok := m.subs[key]; ok {
		log.Info("关闭重复打开的会话订阅", "viewer_id", viewerID, "conversation_id", convID)
		old.Close()
	}

	sub := newSubscription(viewerID, convID, m.source, m.store, m.receipts, m.sleep)
	m.subs[key] = sub
	go sub.run()
	return sub
}

// Close 关闭指定会话订阅
func (m *Manager) Close(viewerID, convID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := subKey{viewerID: viewerID, convID: convID}
	if sub, ok := m.subs[key]; ok {
		sub.Close()
		delete(m.subs, key)
	}
}

// CloseAll 用户下线时释放其全部订阅
func (m *Manager) CloseAll(viewerID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, sub := range m.subs {
		if key.viewerID == viewerID {
			sub.Close()
			delete(m.subs, key)
		}
	}
}

// IsOpen 该用户是否有在线的指定会话订阅
// 在线意味着消息走事件路径实时渲染，发送方可据此跳过离线推送
func (m *Manager) IsOpen(viewerID, convID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[subKey{viewerID: viewerID, convID: convID}]
	return ok && sub.IsSubscribed()
}

// Active 当前存活的订阅数，监控用
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
