package slider

import "sync"

// Document is the page-wide event source. A release anywhere on the page must
// end a drag even when the pointer left the slider first.
type Document interface {
	// OnRelease registers fn for pointer/touch release and returns a func
	// that unregisters it.
	OnRelease(fn func()) (unregister func())
}

// Hub is a Document that fans a release out to every registered listener.
type Hub struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func()
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[int]func())}
}

// OnRelease implements Document.
func (h *Hub) OnRelease(fn func()) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Release dispatches a pointerup/touchend to all listeners.
func (h *Hub) Release() {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Listeners returns the number of registered listeners.
func (h *Hub) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Mount registers the slider's global release listener on doc. Mounting
// twice replaces the earlier registration.
func (s *Slider) Mount(doc Document) {
	if doc == nil {
		return
	}
	unregister := doc.OnRelease(s.DragEnd)
	s.mu.Lock()
	prev := s.unregister
	s.unregister = unregister
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Unmount releases the global listener and ends any drag in progress.
func (s *Slider) Unmount() {
	s.mu.Lock()
	unregister := s.unregister
	s.unregister = nil
	s.dragging = false
	s.mu.Unlock()
	if unregister != nil {
		unregister()
	}
}
