package realtime

import (
	"SportHub/internal/api/dto"
	"context"
	"sync"
	"testing"
)

type fakeNotifyBackend struct {
	mu    sync.Mutex
	count int64
}

func (b *fakeNotifyBackend) GetUnreadCount(_ context.Context, _ uint64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count, nil
}

func (b *fakeNotifyBackend) set(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count = n
}

func TestBadgeRecomputesFromBackend(t *testing.T) {
	ch := newFakeChannel()
	src := &fakeSource{script: []*fakeChannel{ch}}
	backend := &fakeNotifyBackend{count: 3}

	feed := NewBadgeFeed(9, src, backend)
	feed.Start()
	defer feed.Stop()

	ev := waitEvent(t, feed.Events(), EventBadge)
	if ev.UnreadCount != 3 {
		t.Fatalf("expected initial unread 3, got %d", ev.UnreadCount)
	}
	waitEvent(t, feed.Events(), EventStatus)

	// a bulk mark-all-read happened server side: the feed must recount,
	// not decrement locally
	backend.set(0)
	ch.events <- &Event{Type: EventUpdate}

	ev = waitEvent(t, feed.Events(), EventBadge)
	if ev.UnreadCount != 0 {
		t.Fatalf("expected unread 0 after recount, got %d", ev.UnreadCount)
	}
	if feed.Unread() != 0 {
		t.Fatalf("expected Unread()==0, got %d", feed.Unread())
	}
}

func TestBadgeInsertEmitsTransientNotice(t *testing.T) {
	ch := newFakeChannel()
	src := &fakeSource{script: []*fakeChannel{ch}}
	backend := &fakeNotifyBackend{count: 1}

	feed := NewBadgeFeed(9, src, backend)
	feed.Start()
	defer feed.Stop()

	waitEvent(t, feed.Events(), EventBadge)
	waitEvent(t, feed.Events(), EventStatus)

	backend.set(2)
	ch.events <- NewNotifyEvent(&dto.NotifyDTO{ID: "n1", ActorID: 4, Type: 1, Content: "点赞了你的帖子"})

	notice := waitEvent(t, feed.Events(), EventInsert)
	if notice.Notice != "收到新的点赞" {
		t.Fatalf("unexpected notice text %q", notice.Notice)
	}
	if notice.URL != NotifyScreenURL {
		t.Fatalf("notice should link to the notifications screen, got %q", notice.URL)
	}

	badge := waitEvent(t, feed.Events(), EventBadge)
	if badge.UnreadCount != 2 {
		t.Fatalf("expected unread 2 after insert, got %d", badge.UnreadCount)
	}
}

func TestNoticePhrasingPerType(t *testing.T) {
	cases := []struct {
		notifyType int8
		want       string
	}{
		{1, "收到新的点赞"},
		{2, "收到新的评论"},
		{3, "有新的粉丝关注了你"},
		{4, "收到新的打赏"},
		{99, "收到新的通知"},
	}
	for _, c := range cases {
		if got := noticeText(c.notifyType); got != c.want {
			t.Fatalf("type %d: expected %q, got %q", c.notifyType, c.want, got)
		}
	}
}
