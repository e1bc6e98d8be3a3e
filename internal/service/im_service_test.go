package service

import (
	"SportHub/internal/api/config"
	"SportHub/internal/api/dto"
	"SportHub/internal/model"
	"SportHub/internal/pkg/cache"
	"SportHub/internal/pkg/mongo"
	"SportHub/internal/realtime"
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	config.Cfg = &config.Config{}
	os.Exit(m.Run())
}

type fakeConvRepo struct {
	mu      sync.Mutex
	convs   map[uint64]*model.Conversation
	members map[uint64][]uint64
	nextID  uint64
	calls   int
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		convs:   make(map[uint64]*model.Conversation),
		members: make(map[uint64][]uint64),
		nextID:  1,
	}
}

func (r *fakeConvRepo) seed(convID uint64, peerKey string, userIDs ...uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[convID] = &model.Conversation{ID: convID, Type: 1, PeerKey: peerKey}
	r.members[convID] = userIDs
	if convID >= r.nextID {
		r.nextID = convID + 1
	}
}

func (r *fakeConvRepo) CreateConversation(_ context.Context, conv *model.Conversation, members []*model.ConversationMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	conv.ID = r.nextID
	r.nextID++
	r.convs[conv.ID] = conv
	for _, m := range members {
		r.members[conv.ID] = append(r.members[conv.ID], m.UserID)
	}
	return nil
}

func (r *fakeConvRepo) GetConversation(_ context.Context, convID uint64) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	conv, ok := r.convs[convID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return conv, nil
}

func (r *fakeConvRepo) GetConversationByPeerKey(_ context.Context, peerKey string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, conv := range r.convs {
		if conv.PeerKey == peerKey {
			return conv, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeConvRepo) IsMember(_ context.Context, convID uint64, userID uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, id := range r.members[convID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeConvRepo) UpdateLastMessage(_ context.Context, convID uint64, preview string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if conv, ok := r.convs[convID]; ok {
		conv.LastMessage = preview
		conv.LastMessageAt = at
	}
	return nil
}

func (r *fakeConvRepo) GetUserConversationMemList(_ context.Context, userID uint64) ([]*model.ConversationMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	var res []*model.ConversationMember
	for convID, ids := range r.members {
		for _, id := range ids {
			if id == userID {
				res = append(res, &model.ConversationMember{
					ConversationID: convID,
					UserID:         userID,
					Conversation:   *r.convs[convID],
				})
			}
		}
	}
	return res, nil
}

func (r *fakeConvRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  []*mongo.Message
	saveCalls int
	failSave  bool
}

func (r *fakeMessageRepo) SaveMessage(_ context.Context, msg *mongo.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if r.failSave {
		return errors.New("mongo unavailable")
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *fakeMessageRepo) GetHistory(_ context.Context, convID uint64) ([]*mongo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*mongo.Message, 0)
	for _, m := range r.messages {
		if m.ConversationID == convID {
			res = append(res, m)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (r *fakeMessageRepo) CountUnread(_ context.Context, convID uint64, viewerID uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.messages {
		if m.ConversationID == convID && !m.IsRead && m.SenderID != viewerID {
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) MarkConversationRead(_ context.Context, convID uint64, viewerID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ConversationID == convID && m.SenderID != viewerID {
			m.IsRead = true
		}
	}
	return nil
}

func (r *fakeMessageRepo) saveCallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveCalls
}

type fakeUserRepo struct {
	details map[uint64]*model.UserDetail
	failIds map[uint64]bool
}

func newFakeUserRepo(details ...*model.UserDetail) *fakeUserRepo {
	r := &fakeUserRepo{
		details: make(map[uint64]*model.UserDetail),
		failIds: make(map[uint64]bool),
	}
	for _, d := range details {
		r.details[d.UserID] = d
	}
	return r
}

func (r *fakeUserRepo) CreateUser(_ context.Context, _ *model.User, _ *model.UserDetail) error {
	return nil
}

func (r *fakeUserRepo) GetUserByUsername(_ context.Context, _ string) (*model.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetUserSimpleInfoById(_ context.Context, id uint64) (*model.UserDetail, error) {
	if r.failIds[id] {
		return nil, errors.New("profile lookup failed")
	}
	d, ok := r.details[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return d, nil
}

func (r *fakeUserRepo) GetUserSimpleInfoByIds(_ context.Context, ids []uint64) ([]*model.UserDetail, error) {
	var res []*model.UserDetail
	for _, id := range ids {
		if d, ok := r.details[id]; ok {
			res = append(res, d)
		}
	}
	return res, nil
}

// testBus fans published events out to every subscriber of a channel,
// doubling as EventSource and EventPublisher.
type testBus struct {
	mu   sync.Mutex
	subs map[string][]*testChannel
}

func newTestBus() *testBus {
	return &testBus{subs: make(map[string][]*testChannel)}
}

type testChannel struct {
	events chan *realtime.Event
}

func (c *testChannel) Events() <-chan *realtime.Event { return c.events }
func (c *testChannel) Close() error                   { return nil }

func (b *testBus) Subscribe(_ context.Context, name string) (realtime.EventChannel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := &testChannel{events: make(chan *realtime.Event, 16)}
	b.subs[name] = append(b.subs[name], ch)
	return ch, nil
}

func (b *testBus) Publish(_ context.Context, name string, ev *realtime.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[name] {
		ch.events <- ev
	}
	return nil
}

func (b *testBus) published(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[name])
}

type fakePusher struct {
	mu    sync.Mutex
	calls int
}

func (p *fakePusher) SendPush(_ context.Context, _ uint64, _, _, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return nil
}

func (p *fakePusher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func waitRealtimeEvent(t *testing.T, ch <-chan *realtime.Event, wantType string) *realtime.Event {
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

func newTestIMService(convRepo *fakeConvRepo, msgRepo *fakeMessageRepo, userRepo *fakeUserRepo, store cache.Store, bus *testBus) IMService {
	return NewIMService(convRepo, msgRepo, userRepo, store, bus, &fakePusher{})
}

func TestSendMessageRejectsBlankContent(t *testing.T) {
	convRepo := newFakeConvRepo()
	msgRepo := &fakeMessageRepo{}
	svc := newTestIMService(convRepo, msgRepo, newFakeUserRepo(), cache.NewMemoryStore(), newTestBus())

	for _, content := range []string{"", "   ", "\n\t  "} {
		_, err := svc.SendMessage(context.Background(), 1, &dto.SendMessageReq{ConversationID: 7, Content: content})
		if !errors.Is(err, ErrMessageEmpty) {
			t.Fatalf("content %q: expected ErrMessageEmpty, got %v", content, err)
		}
	}

	// validation failures must never reach the storage layer
	if msgRepo.saveCallCount() != 0 {
		t.Fatalf("expected no save calls, got %d", msgRepo.saveCallCount())
	}
	if convRepo.callCount() != 0 {
		t.Fatalf("expected no conversation lookups, got %d", convRepo.callCount())
	}
}

func TestChatHistoryAscendingAndEmpty(t *testing.T) {
	convRepo := newFakeConvRepo()
	convRepo.seed(7, "1_2", 1, 2)
	msgRepo := &fakeMessageRepo{}

	base := time.Now()
	for _, offset := range []int{3, 1, 2, 0} {
		_ = msgRepo.SaveMessage(context.Background(), &mongo.Message{
			ConversationID: 7, SenderID: 2, Content: "m",
			CreatedAt: base.Add(time.Duration(offset) * time.Second),
		})
	}

	svc := newTestIMService(convRepo, msgRepo, newFakeUserRepo(), cache.NewMemoryStore(), newTestBus())

	history, err := svc.GetChatHistory(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].CreatedAt.Before(history[i-1].CreatedAt) {
			t.Fatalf("messages not ascending at index %d", i)
		}
	}

	// a conversation with no messages yields an empty list, not an error
	convRepo.seed(8, "1_3", 1, 3)
	history, err = svc.GetChatHistory(context.Background(), 1, 8)
	if err != nil {
		t.Fatalf("unexpected error for empty conversation: %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Fatalf("expected empty list, got %v", history)
	}
}

func TestUnreadCountAndMarkAsRead(t *testing.T) {
	convRepo := newFakeConvRepo()
	convRepo.seed(7, "1_2", 1, 2)
	msgRepo := &fakeMessageRepo{}

	base := time.Now()
	for i := 0; i < 3; i++ {
		_ = msgRepo.SaveMessage(context.Background(), &mongo.Message{
			ConversationID: 7, SenderID: 2, Content: "from peer",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	// the viewer's own unread message must not count
	_ = msgRepo.SaveMessage(context.Background(), &mongo.Message{
		ConversationID: 7, SenderID: 1, Content: "mine", CreatedAt: base,
	})

	userRepo := newFakeUserRepo(&model.UserDetail{UserID: 2, Nickname: "rivalCoach"})
	store := cache.NewMemoryStore()
	bus := newTestBus()
	svc := newTestIMService(convRepo, msgRepo, userRepo, store, bus)

	list, err := svc.GetConversationList(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(list))
	}
	if list[0].UnreadCount != 3 {
		t.Fatalf("expected unread 3, got %d", list[0].UnreadCount)
	}

	if err := svc.MarkAsRead(context.Background(), 1, 7); err != nil {
		t.Fatalf("mark as read failed: %v", err)
	}

	list, err = svc.GetConversationList(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list[0].UnreadCount != 0 {
		t.Fatalf("expected unread 0 after mark as read, got %d", list[0].UnreadCount)
	}
}

func TestEnrichmentFailureDropsSingleConversation(t *testing.T) {
	convRepo := newFakeConvRepo()
	convRepo.seed(7, "1_2", 1, 2)
	convRepo.seed(8, "1_3", 1, 3)
	msgRepo := &fakeMessageRepo{}

	userRepo := newFakeUserRepo(&model.UserDetail{UserID: 2, Nickname: "rivalCoach"})
	userRepo.failIds[3] = true

	svc := newTestIMService(convRepo, msgRepo, userRepo, cache.NewMemoryStore(), newTestBus())

	list, err := svc.GetConversationList(context.Background(), 1)
	if err != nil {
		t.Fatalf("enrichment failure must not abort the whole list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 conversation after dropping the broken one, got %d", len(list))
	}
	if list[0].ConversationID != 7 {
		t.Fatalf("expected conversation 7 to survive, got %d", list[0].ConversationID)
	}
}

func TestSendMessagePropagatesInsertFailure(t *testing.T) {
	convRepo := newFakeConvRepo()
	convRepo.seed(7, "1_2", 1, 2)
	msgRepo := &fakeMessageRepo{failSave: true}
	bus := newTestBus()

	svc := newTestIMService(convRepo, msgRepo, newFakeUserRepo(), cache.NewMemoryStore(), bus)

	_, err := svc.SendMessage(context.Background(), 1, &dto.SendMessageReq{ConversationID: 7, Content: "hello"})
	if err == nil {
		t.Fatal("expected insert failure to surface")
	}
}

func TestPushSkippedWhenPeerConversationIsOpen(t *testing.T) {
	convRepo := newFakeConvRepo()
	convRepo.seed(123, "1_2", 1, 2)
	msgRepo := &fakeMessageRepo{}
	userRepo := newFakeUserRepo(
		&model.UserDetail{UserID: 1, Nickname: "strikerA"},
		&model.UserDetail{UserID: 2, Nickname: "keeperB"},
	)
	store := cache.NewMemoryStore()
	bus := newTestBus()
	pusher := &fakePusher{}

	svc := NewIMService(convRepo, msgRepo, userRepo, store, bus, pusher)
	manager := realtime.NewManager(bus, store, svc)
	svc.BindPresence(manager)

	// the peer's view of the conversation is open: rendering happens over
	// the event path, so the gateway push must be skipped
	subB := manager.Open(2, 123)
	waitRealtimeEvent(t, subB.Events(), realtime.EventStatus)

	if _, err := svc.SendMessage(context.Background(), 1, &dto.SendMessageReq{ConversationID: 123, Content: "live"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	waitRealtimeEvent(t, subB.Events(), realtime.EventInsert)

	// once the peer closes the view, the next message falls back to push
	manager.Close(2, 123)

	if _, err := svc.SendMessage(context.Background(), 1, &dto.SendMessageReq{ConversationID: 123, Content: "offline"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && pusher.callCount() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if got := pusher.callCount(); got != 1 {
		t.Fatalf("expected exactly 1 push (for the offline peer), got %d", got)
	}
}

func TestSendMessageRoundTrip(t *testing.T) {
	convRepo := newFakeConvRepo()
	convRepo.seed(123, "1_2", 1, 2)
	msgRepo := &fakeMessageRepo{}
	userRepo := newFakeUserRepo(
		&model.UserDetail{UserID: 1, Nickname: "strikerA"},
		&model.UserDetail{UserID: 2, Nickname: "keeperB"},
	)
	store := cache.NewMemoryStore()
	bus := newTestBus()

	svc := newTestIMService(convRepo, msgRepo, userRepo, store, bus)
	manager := realtime.NewManager(bus, store, svc)

	subA := manager.Open(1, 123)
	waitRealtimeEvent(t, subA.Events(), realtime.EventStatus)
	subB := manager.Open(2, 123)
	waitRealtimeEvent(t, subB.Events(), realtime.EventStatus)
	defer manager.CloseAll(1)
	defer manager.CloseAll(2)

	sent, err := svc.SendMessage(context.Background(), 1, &dto.SendMessageReq{ConversationID: 123, Content: "Good game!"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// both open views observe the insert exactly once; B's auto read receipt
	// follows on the same channel, proving no duplicate insert preceded it
	evA := waitRealtimeEvent(t, subA.Events(), realtime.EventInsert)
	evB := waitRealtimeEvent(t, subB.Events(), realtime.EventInsert)
	waitRealtimeEvent(t, subA.Events(), realtime.EventReadReceipt)
	waitRealtimeEvent(t, subB.Events(), realtime.EventReadReceipt)

	if evA.Message.ID != sent.ID || evB.Message.ID != sent.ID {
		t.Fatal("subscribers observed a different message than the one sent")
	}
	if evA.Message.Content != "Good game!" {
		t.Fatalf("unexpected content %q", evA.Message.Content)
	}

	list, err := svc.GetConversationList(context.Background(), 1)
	if err != nil {
		t.Fatalf("conversation list failed: %v", err)
	}
	if len(list) != 1 || list[0].LastMessage != "Good game!" {
		t.Fatalf("conversation preview not updated: %+v", list)
	}
	if list[0].LastMessageAt.IsZero() {
		t.Fatal("conversation preview timestamp not updated")
	}
}
