// Package storage holds pieces shared by the KV adapters.
package storage

import "sync"

// WatchHub fans key-change notifications out to subscribers. Both KV adapters
// embed one so Watch semantics stay identical regardless of the medium.
type WatchHub struct {
	mu       sync.Mutex
	nextID   int
	watchers map[string]map[int]func(string)
}

// Watch registers fn for key and returns an unsubscribe function. Calling the
// unsubscribe function more than once is harmless.
func (h *WatchHub) Watch(key string, fn func(value string)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.watchers == nil {
		h.watchers = make(map[string]map[int]func(string))
	}
	if h.watchers[key] == nil {
		h.watchers[key] = make(map[int]func(string))
	}
	id := h.nextID
	h.nextID++
	h.watchers[key][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.watchers[key], id)
	}
}

// Notify runs every watcher registered for key with value. Callbacks run
// synchronously on the caller's goroutine, outside the hub lock.
func (h *WatchHub) Notify(key, value string) {
	h.mu.Lock()
	fns := make([]func(string), 0, len(h.watchers[key]))
	for _, fn := range h.watchers[key] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}
