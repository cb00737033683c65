package telegram

import (
	"sync"
	"testing"
	"time"
)

func TestChatLanesRunInOrderPerKey(t *testing.T) {
	lanes := newChatLanes()

	var mu sync.Mutex
	seen := map[int64][]int{}

	for i := 0; i < 50; i++ {
		for _, key := range []int64{1, 2, 3} {
			i, key := i, key
			lanes.Submit(key, func() {
				mu.Lock()
				seen[key] = append(seen[key], i)
				mu.Unlock()
			})
		}
	}
	lanes.Wait()

	for _, key := range []int64{1, 2, 3} {
		if len(seen[key]) != 50 {
			t.Fatalf("expected 50 tasks for key %d, got %d", key, len(seen[key]))
		}
		for i, v := range seen[key] {
			if v != i {
				t.Fatalf("key %d ran task %d at position %d", key, v, i)
			}
		}
	}
}

func TestChatLanesRunKeysConcurrently(t *testing.T) {
	lanes := newChatLanes()

	release := make(chan struct{})
	done := make(chan struct{})

	lanes.Submit(1, func() { <-release })
	lanes.Submit(2, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a blocked chat not to stall another chat")
	}

	close(release)
	lanes.Wait()
}

func TestChatLanesReleaseIdleKeys(t *testing.T) {
	lanes := newChatLanes()
	lanes.Submit(7, func() {})
	lanes.Wait()

	lanes.mu.Lock()
	defer lanes.mu.Unlock()
	if len(lanes.pending) != 0 {
		t.Fatalf("expected idle lanes to be released, got %d", len(lanes.pending))
	}
}
