package scheduler

import (
	"sync"
	"time"

	"postureguard/internal/model"
)

// History is the bounded reminder archive, FIFO eviction past the limit.
type History struct {
	mu    sync.RWMutex
	buf   []model.ReminderEvent
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 100
	}
	return &History{limit: limit}
}

func (h *History) Add(event model.ReminderEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buf) < h.limit {
		h.buf = append(h.buf, event)
		return
	}
	copy(h.buf, h.buf[1:])
	h.buf[len(h.buf)-1] = event
}

func (h *History) List(limit int) []model.ReminderEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if limit <= 0 || limit > len(h.buf) {
		limit = len(h.buf)
	}
	out := make([]model.ReminderEvent, 0, limit)
	for i := len(h.buf) - limit; i < len(h.buf); i++ {
		out = append(out, h.buf[i])
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.buf)
}

// MeanInterval averages the gaps between consecutive archived reminders.
func (h *History) MeanInterval() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.buf) < 2 {
		return 0
	}
	var total time.Duration
	for i := 1; i < len(h.buf); i++ {
		total += h.buf[i].CreatedAt.Sub(h.buf[i-1].CreatedAt)
	}
	return total / time.Duration(len(h.buf)-1)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf = nil
}
