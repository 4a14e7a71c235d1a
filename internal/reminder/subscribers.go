package reminder

import (
	"sort"
	"sync"
)

// Subscribers is the in-memory set of chats that receive the global
// broadcast. It lives as long as the process.
type Subscribers struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func NewSubscribers() *Subscribers {
	return &Subscribers{ids: map[int64]struct{}{}}
}

// Add reports whether the chat was newly added.
func (s *Subscribers) Add(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[chatID]; ok {
		return false
	}
	s.ids[chatID] = struct{}{}
	return true
}

// Remove reports whether the chat was subscribed.
func (s *Subscribers) Remove(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[chatID]; !ok {
		return false
	}
	delete(s.ids, chatID)
	return true
}

func (s *Subscribers) Contains(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[chatID]
	return ok
}

func (s *Subscribers) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// List returns chat IDs in ascending order.
func (s *Subscribers) List() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
