package services

import (
	"sync"

	"github.com/google/uuid"
)

// OrderWatcher fans out "orders of this user changed" signals to subscribers.
// Signals coalesce: a subscriber that has not drained its channel sees one pending signal.
type OrderWatcher struct {
	mu     sync.Mutex
	nextID int
	subs   map[uuid.UUID]map[int]chan struct{}
}

// NewOrderWatcher constructs an empty watcher.
func NewOrderWatcher() *OrderWatcher {
	return &OrderWatcher{subs: make(map[uuid.UUID]map[int]chan struct{})}
}

// Subscribe registers interest in userID. The returned cancel func must be called
// to release the subscription; it closes the channel.
func (w *OrderWatcher) Subscribe(userID uuid.UUID) (<-chan struct{}, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++

	ch := make(chan struct{}, 1)
	if w.subs[userID] == nil {
		w.subs[userID] = make(map[int]chan struct{})
	}
	w.subs[userID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.subs[userID], id)
			if len(w.subs[userID]) == 0 {
				delete(w.subs, userID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Notify signals every subscriber of userID without blocking.
func (w *OrderWatcher) Notify(userID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ch := range w.subs[userID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers reports how many subscriptions exist for userID.
func (w *OrderWatcher) Subscribers(userID uuid.UUID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs[userID])
}
