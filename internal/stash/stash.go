// Package stash keeps the last CAPTCHA solved in each client session until
// the session navigates away, which is taken as proof the answer was right.
package stash

import (
	"sync"
	"time"
)

type Entry struct {
	Image      []byte
	Prediction string
	OriginURL  string
	Timestamp  time.Time
}

// Stash is a bounded map from session id to Entry. When full, the oldest
// entry is evicted to make room.
type Stash struct {
	mu      sync.Mutex
	max     int
	entries map[string]Entry
	now     func() time.Time
}

func New(max int) *Stash {
	if max < 1 {
		max = 1
	}
	return &Stash{max: max, entries: make(map[string]Entry), now: time.Now}
}

// Put stores e for session, replacing whatever was there.
func (s *Stash) Put(session string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	if _, ok := s.entries[session]; !ok && len(s.entries) >= s.max {
		s.evictOldest()
	}
	s.entries[session] = e
}

func (s *Stash) evictOldest() {
	var oldest string
	var oldestAt time.Time
	for session, e := range s.entries {
		if oldest == "" || e.Timestamp.Before(oldestAt) {
			oldest, oldestAt = session, e.Timestamp
		}
	}
	delete(s.entries, oldest)
}

func (s *Stash) Get(session string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[session]
	return e, ok
}

// Remove drops the entry of a closed session.
func (s *Stash) Remove(session string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[session]
	delete(s.entries, session)
	return e, ok
}

// Navigate reports that session loaded url. If the session has an entry
// captured on a different URL, the entry is removed and returned.
func (s *Stash) Navigate(session, url string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[session]
	if !ok || e.OriginURL == url {
		return Entry{}, false
	}
	delete(s.entries, session)
	return e, true
}

func (s *Stash) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
