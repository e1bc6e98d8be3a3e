package cache

import (
	"sync"
	"testing"
)

func TestUpdateIsAtomicUnderConcurrency(t *testing.T) {
	store := NewMemoryStore()
	key := MessagesKey(1)
	store.Set(key, []int{})

	const writers = 8
	const perWriter = 100

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				store.Update(key, func(value interface{}, ok bool) (interface{}, bool) {
					if !ok {
						return nil, false
					}
					return append(value.([]int), base+i), true
				})
			}
		}(w * perWriter)
	}
	wg.Wait()

	cached, ok := store.Get(key)
	if !ok {
		t.Fatal("entry missing after concurrent updates")
	}
	list := cached.([]int)
	if len(list) != writers*perWriter {
		t.Fatalf("expected %d entries, got %d", writers*perWriter, len(list))
	}
}

func TestUpdateSkipsWriteOnMiss(t *testing.T) {
	store := NewMemoryStore()
	key := ConversationsKey(9)

	called := false
	store.Update(key, func(value interface{}, ok bool) (interface{}, bool) {
		called = true
		if ok {
			t.Fatal("expected a miss for an unseeded key")
		}
		return "should not be written", false
	})

	if !called {
		t.Fatal("update callback was not invoked")
	}
	if _, ok := store.Get(key); ok {
		t.Fatal("miss must not create an entry")
	}
}
