package api

import (
	"sync"

	"github.com/spigell/talentscout/internal/pipeline"
)

// sessionStore keeps the most recent sessions in memory. Adding beyond the
// limit evicts the oldest.
type sessionStore struct {
	mu    sync.Mutex
	max   int
	order []string
	items map[string]*pipeline.Session
}

func newSessionStore(max int) *sessionStore {
	return &sessionStore{max: max, items: make(map[string]*pipeline.Session, max)}
}

func (s *sessionStore) put(id string, session *pipeline.Session) (evicted *pipeline.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		s.order = append(s.order, id)
	}
	s.items[id] = session

	if len(s.order) > s.max {
		oldest := s.order[0]
		s.order = s.order[1:]
		evicted = s.items[oldest]
		delete(s.items, oldest)
	}
	return evicted
}

func (s *sessionStore) get(id string) (*pipeline.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[id]
	return session, ok
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
