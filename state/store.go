package state

import "sync"

// Listener is called after the store swapped prev for next.
type Listener func(prev, next DeviceState)

// Store holds the last known DeviceState. Writers are the sync loop and the
// command dispatcher; everything else reads.
//
// Listeners are invoked one replacement at a time, so they observe changes
// in the order the replacements completed. A listener must not call Replace.
type Store struct {
	mu      sync.RWMutex
	current DeviceState

	notifyMu  sync.Mutex
	listeners []registeredListener
	nextID    int
}

type registeredListener struct {
	id int
	fn Listener
}

// NewStore returns a store holding the zero state.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) Get() DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in next when it differs from the current state and notifies
// listeners. It reports whether a change happened.
func (s *Store) Replace(next DeviceState) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.current
	if prev.Equal(next) {
		s.mu.Unlock()
		return false
	}
	s.current = next
	listeners := make([]registeredListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(prev, next)
	}
	return true
}

// OnChange registers fn and returns a function that removes it.
func (s *Store) OnChange(fn Listener) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, registeredListener{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}
