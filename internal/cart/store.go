package cart

import "sync"

type subscriber struct {
	id int
	fn func(State)
}

// Store serialises dispatches and notifies subscribers with the new state, in
// the order they subscribed.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   []subscriber
	nextID int
}

func NewStore(initial State) *Store {
	return &Store{state: initial.clone()}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) Dispatch(action Action) State {
	s.mu.Lock()
	s.state = action.apply(s.state.clone())
	next := s.state.clone()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next.clone())
	}
	return next
}

// Hydrate replaces the state without notifying subscribers.
func (s *Store) Hydrate(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.clone()
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}
