package telegram

import "sync"

// chatLanes runs tasks for the same chat one at a time in submission order
// while different chats proceed concurrently. A lane goroutine exists only
// while its chat has queued work.
type chatLanes struct {
	mu      sync.Mutex
	pending map[int64][]func()
	wg      sync.WaitGroup
}

func newChatLanes() *chatLanes {
	return &chatLanes{pending: make(map[int64][]func())}
}

// Submit queues task behind any unfinished work for key.
func (l *chatLanes) Submit(key int64, task func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if queued, busy := l.pending[key]; busy {
		l.pending[key] = append(queued, task)
		return
	}

	l.pending[key] = nil
	l.wg.Add(1)
	go l.drain(key, task)
}

func (l *chatLanes) drain(key int64, task func()) {
	defer l.wg.Done()

	for task != nil {
		task()

		l.mu.Lock()
		queued := l.pending[key]
		if len(queued) == 0 {
			delete(l.pending, key)
			task = nil
		} else {
			task = queued[0]
			l.pending[key] = queued[1:]
		}
		l.mu.Unlock()
	}
}

// Wait blocks until every submitted task has finished.
func (l *chatLanes) Wait() {
	l.wg.Wait()
}
