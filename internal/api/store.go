package api

import (
	"sync"
	"time"
)

const (
	DefaultHistorySize = 50
	defaultMaxSessions = 1024
)

type sessionHistory struct {
	records []Generation // oldest first
	touched time.Time
}

// HistoryStore keeps recent generations per browser session. Each session
// holds at most size records and the store evicts the least recently used
// session once maxSessions is reached.
type HistoryStore struct {
	mu          sync.Mutex
	size        int
	maxSessions int
	sessions    map[string]*sessionHistory
	clock       func() time.Time
}

func NewHistoryStore(size int) *HistoryStore {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &HistoryStore{
		size:        size,
		maxSessions: defaultMaxSessions,
		sessions:    make(map[string]*sessionHistory),
		clock:       time.Now,
	}
}

func (s *HistoryStore) Save(session string, gen Generation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[session]
	if !ok {
		if len(s.sessions) >= s.maxSessions {
			s.evictOldestLocked()
		}
		h = &sessionHistory{}
		s.sessions[session] = h
	}
	h.touched = s.clock()
	h.records = append(h.records, gen)
	if n := len(h.records); n > s.size {
		h.records = append(h.records[:0], h.records[n-s.size:]...)
	}
}

// List returns the session's records, newest first.
func (s *HistoryStore) List(session string) []Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[session]
	if !ok {
		return []Generation{}
	}
	out := make([]Generation, len(h.records))
	for i, rec := range h.records {
		out[len(out)-1-i] = rec
	}
	return out
}

func (s *HistoryStore) Get(session, id string) (Generation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[session]
	if !ok {
		return Generation{}, false
	}
	for _, rec := range h.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return Generation{}, false
}

func (s *HistoryStore) Delete(session, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[session]
	if !ok {
		return false
	}
	for i, rec := range h.records {
		if rec.ID == id {
			h.records = append(h.records[:i], h.records[i+1:]...)
			return true
		}
	}
	return false
}

func (s *HistoryStore) evictOldestLocked() {
	var (
		oldest string
		at     time.Time
	)
	for id, h := range s.sessions {
		if oldest == "" || h.touched.Before(at) {
			oldest, at = id, h.touched
		}
	}
	delete(s.sessions, oldest)
}
