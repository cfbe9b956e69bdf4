// Package homework keeps the homework notes captured through the bot.
package homework

import (
	"sort"
	"sync"
)

type Note struct {
	Subject string
	Text    string
}

// Store is a mutex-guarded subject -> note map, last write wins. It lives
// for the process lifetime; notes are not persisted.
type Store struct {
	mu    sync.RWMutex
	notes map[string]string
}

func NewStore() *Store {
	return &Store{notes: map[string]string{}}
}

func (s *Store) Set(subject, text string) {
	s.mu.Lock()
	s.notes[subject] = text
	s.mu.Unlock()
}

func (s *Store) Get(subject string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.notes[subject]
	return t, ok
}

// All returns every saved note sorted by subject.
func (s *Store) All() []Note {
	s.mu.RLock()
	out := make([]Note, 0, len(s.notes))
	for subj, text := range s.notes {
		out = append(out, Note{Subject: subj, Text: text})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}
