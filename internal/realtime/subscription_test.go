package realtime

import (
	"SportHub/internal/api/dto"
	"SportHub/internal/pkg/cache"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

type fakeChannel struct {
	events chan *Event
	mu     sync.Mutex
	closed bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan *Event, 16)}
}

func (c *fakeChannel) Events() <-chan *Event { return c.events }

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeSource replays a scripted sequence of subscribe outcomes; a nil entry
// (or running past the end of the script) fails the subscribe call.
type fakeSource struct {
	mu     sync.Mutex
	script []*fakeChannel
	calls  int
}

func (s *fakeSource) Subscribe(_ context.Context, _ string) (EventChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var step *fakeChannel
	if s.calls < len(s.script) {
		step = s.script[s.calls]
	}
	s.calls++
	if step == nil {
		return nil, errors.New("subscribe refused")
	}
	return step, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeReceipts struct {
	mu    sync.Mutex
	calls []uint64
}

func (r *fakeReceipts) MarkAsRead(_ context.Context, _ uint64, convID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, convID)
	return nil
}

func (r *fakeReceipts) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitEvent(t *testing.T, ch <-chan *Event, wantType string) *Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("event channel closed while waiting for %s", wantType)
		}
		if ev.Type != wantType {
			t.Fatalf("expected %s event, got %s", wantType, ev.Type)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s event", wantType)
	}
	return nil
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestInsertMergeIsIdempotent(t *testing.T) {
	ch := newFakeChannel()
	src := &fakeSource{script: []*fakeChannel{ch}}
	store := cache.NewMemoryStore()
	store.Set(cache.MessagesKey(7), []*dto.MessageDTO{})
	store.Set(cache.ConversationsKey(1), []*dto.ConversationDTO{{ConversationID: 7}})

	sub := newSubscription(1, 7, src, store, &fakeReceipts{}, func(time.Duration) {})
	go sub.run()
	defer sub.Close()

	// the same insert delivered three times must land in the cache once
	msg := &dto.MessageDTO{ID: "abc123", ConversationID: 7, SenderID: 1, Content: "hi", CreatedAt: time.Now()}
	for i := 0; i < 3; i++ {
		ch.events <- NewMessageEvent(msg)
	}

	waitEvent(t, sub.Events(), EventStatus)
	for i := 0; i < 3; i++ {
		waitEvent(t, sub.Events(), EventInsert)
	}

	cached, ok := store.Get(cache.MessagesKey(7))
	if !ok {
		t.Fatal("message cache entry missing")
	}
	list := cached.([]*dto.MessageDTO)
	if len(list) != 1 {
		t.Fatalf("expected 1 cached message, got %d", len(list))
	}
	if list[0].ID != "abc123" {
		t.Fatalf("unexpected cached message id %s", list[0].ID)
	}

	if _, ok := store.Get(cache.ConversationsKey(1)); ok {
		t.Fatal("conversation list cache was not invalidated")
	}
}

func TestConcurrentMergesKeepEveryMessage(t *testing.T) {
	chA := newFakeChannel()
	chB := newFakeChannel()
	store := cache.NewMemoryStore()
	store.Set(cache.MessagesKey(7), []*dto.MessageDTO{})

	subA := newSubscription(1, 7, &fakeSource{script: []*fakeChannel{chA}}, store, &fakeReceipts{}, func(time.Duration) {})
	subB := newSubscription(2, 7, &fakeSource{script: []*fakeChannel{chB}}, store, &fakeReceipts{}, func(time.Duration) {})
	go subA.run()
	go subB.run()
	defer subA.Close()
	defer subB.Close()

	// 双方订阅并发往同一个消息缓存键合并各自的一半，
	// 任何一条丢失都意味着读改写不是原子的
	const perSide = 200
	feed := func(ch *fakeChannel, prefix string) {
		for i := 0; i < perSide; i++ {
			ch.events <- NewMessageEvent(&dto.MessageDTO{
				ID:             prefix + strconv.Itoa(i),
				ConversationID: 7,
				SenderID:       1,
				Content:        "ping",
			})
		}
	}
	go feed(chA, "a-")
	go feed(chB, "b-")

	waitFor(t, func() bool {
		cached, ok := store.Get(cache.MessagesKey(7))
		if !ok {
			return false
		}
		list, ok := cached.([]*dto.MessageDTO)
		return ok && len(list) == 2*perSide
	}, "concurrent merges lost messages")

	cached, _ := store.Get(cache.MessagesKey(7))
	seen := make(map[string]bool)
	for _, m := range cached.([]*dto.MessageDTO) {
		if seen[m.ID] {
			t.Fatalf("message %s merged twice", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestRemoteInsertTriggersReadReceipt(t *testing.T) {
	ch := newFakeChannel()
	src := &fakeSource{script: []*fakeChannel{ch}}
	store := cache.NewMemoryStore()
	receipts := &fakeReceipts{}

	sub := newSubscription(1, 7, src, store, receipts, func(time.Duration) {})
	go sub.run()
	defer sub.Close()

	waitEvent(t, sub.Events(), EventStatus)

	ch.events <- NewMessageEvent(&dto.MessageDTO{ID: "m1", ConversationID: 7, SenderID: 2, Content: "hey"})
	waitEvent(t, sub.Events(), EventInsert)

	waitFor(t, func() bool { return receipts.callCount() == 1 }, "read receipt was not fired")
}

func TestOwnInsertDoesNotTriggerReadReceipt(t *testing.T) {
	ch := newFakeChannel()
	src := &fakeSource{script: []*fakeChannel{ch}}
	receipts := &fakeReceipts{}

	sub := newSubscription(1, 7, src, cache.NewMemoryStore(), receipts, func(time.Duration) {})
	go sub.run()
	defer sub.Close()

	waitEvent(t, sub.Events(), EventStatus)

	ch.events <- NewMessageEvent(&dto.MessageDTO{ID: "m2", ConversationID: 7, SenderID: 1, Content: "me"})
	waitEvent(t, sub.Events(), EventInsert)

	time.Sleep(50 * time.Millisecond)
	if receipts.callCount() != 0 {
		t.Fatalf("expected no read receipt for own message, got %d", receipts.callCount())
	}
}

func TestBackoffScheduleAndCap(t *testing.T) {
	src := &fakeSource{} // every subscribe fails
	var mu sync.Mutex
	var delays []time.Duration
	sleep := func(d time.Duration) {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
	}

	sub := newSubscription(1, 7, src, cache.NewMemoryStore(), &fakeReceipts{}, sleep)
	sub.run() // returns once retries are exhausted

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d reconnect delays, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d: expected %v, got %v", i, want[i], delays[i])
		}
	}
	if got := src.callCount(); got != 4 {
		t.Fatalf("expected 4 subscribe attempts (initial + 3 retries), got %d", got)
	}
	if sub.State() != StateFailed {
		t.Fatalf("expected failed state, got %d", sub.State())
	}

	ev := waitEvent(t, sub.Events(), EventStatus)
	if ev.Subscribed || ev.Error != FailedNotice {
		t.Fatalf("expected failure status event, got %+v", ev)
	}
}

func TestBackoffResetsAfterSuccessfulResubscribe(t *testing.T) {
	dropped := newFakeChannel()
	close(dropped.events) // channel drops right after subscribing
	src := &fakeSource{script: []*fakeChannel{nil, nil, dropped}}

	var mu sync.Mutex
	var delays []time.Duration
	sleep := func(d time.Duration) {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
	}

	sub := newSubscription(1, 7, src, cache.NewMemoryStore(), &fakeReceipts{}, sleep)
	sub.run()

	// two failures, a successful subscribe that resets the counter, a drop,
	// then three more failures until the cap
	want := []time.Duration{
		2 * time.Second, 4 * time.Second,
		2 * time.Second, 4 * time.Second, 8 * time.Second,
	}
	if len(delays) != len(want) {
		t.Fatalf("expected %d reconnect delays, got %v", len(want), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d: expected %v, got %v", i, want[i], delays[i])
		}
	}
	if got := src.callCount(); got != 6 {
		t.Fatalf("expected 6 subscribe attempts, got %d", got)
	}
	if sub.State() != StateFailed {
		t.Fatalf("expected failed state, got %d", sub.State())
	}
}

func TestDuplicateOpenClosesPreviousChannel(t *testing.T) {
	ch1 := newFakeChannel()
	ch2 := newFakeChannel()
	src := &fakeSource{script: []*fakeChannel{ch1, ch2}}

	m := NewManager(src, cache.NewMemoryStore(), &fakeReceipts{})
	m.sleep = func(time.Duration) {}

	first := m.Open(1, 7)
	waitEvent(t, first.Events(), EventStatus)

	second := m.Open(1, 7)
	waitEvent(t, second.Events(), EventStatus)
	defer m.Close(1, 7)

	waitFor(t, func() bool { return ch1.isClosed() }, "first channel was not released")
	if first.State() != StateClosed {
		t.Fatalf("expected first subscription closed, got state %d", first.State())
	}
	if !second.IsSubscribed() {
		t.Fatal("second subscription should be live")
	}
	if ch2.isClosed() {
		t.Fatal("second channel must stay open")
	}
	if m.Active() != 1 {
		t.Fatalf("expected exactly 1 active subscription, got %d", m.Active())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ch := newFakeChannel()
	src := &fakeSource{script: []*fakeChannel{ch}}

	m := NewManager(src, cache.NewMemoryStore(), &fakeReceipts{})
	sub := m.Open(1, 7)
	waitEvent(t, sub.Events(), EventStatus)

	sub.Close()
	sub.Close()
	m.Close(1, 7)

	waitFor(t, func() bool { return ch.isClosed() }, "channel was not released")
	if m.Active() != 0 {
		t.Fatalf("expected 0 active subscriptions, got %d", m.Active())
	}
}
