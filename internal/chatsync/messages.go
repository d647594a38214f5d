package chatsync

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// Position selects the end of the loaded window a message is appended to.
type Position int

const (
	// Newest appends after the newest loaded message (live traffic).
	Newest Position = iota
	// Oldest prepends before the oldest loaded message (backward pagination).
	Oldest
)

// MessageStore holds one chat's messages sorted ascending by id. Ids are
// unique within a store.
type MessageStore struct {
	mu   sync.RWMutex
	msgs []Message
}

// NewMessageStore builds a store from an unordered history page.
func NewMessageStore(history []Message) *MessageStore {
	s := &MessageStore{}
	for _, m := range history {
		s.insert(m)
	}
	return s
}

// Append stores m at the given end of the window and returns the stored copy.
// A message without an id is given the provisional id max+1. A message whose
// id falls inside the loaded window is placed at its sorted position; one that
// repeats a stored id replaces it.
func (s *MessageStore) Append(m Message, pos Position) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.maxID() + 1
	}
	n := len(s.msgs)
	switch {
	case pos == Newest && (n == 0 || m.ID > s.msgs[n-1].ID):
		s.msgs = append(s.msgs, m)
	case pos == Oldest && (n == 0 || m.ID < s.msgs[0].ID):
		s.msgs = slices.Insert(s.msgs, 0, m)
	default:
		s.insert(m)
	}
	return m
}

// insert places m at its sorted position. Callers hold mu or own s exclusively.
func (s *MessageStore) insert(m Message) {
	i := sort.Search(len(s.msgs), func(i int) bool { return s.msgs[i].ID >= m.ID })
	if i < len(s.msgs) && s.msgs[i].ID == m.ID {
		s.msgs[i] = m
		return
	}
	s.msgs = slices.Insert(s.msgs, i, m)
}

func (s *MessageStore) index(id int64) int {
	i := sort.Search(len(s.msgs), func(i int) bool { return s.msgs[i].ID >= id })
	if i < len(s.msgs) && s.msgs[i].ID == id {
		return i
	}
	return -1
}

// EditText replaces the text of message id. Missing ids report NotFound and
// leave the store untouched.
func (s *MessageStore) EditText(id int64, text string, editedAt time.Time) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return NotFound
	}
	s.msgs[i].Text = text
	s.msgs[i].EditedAt = editedAt
	return Applied
}

// Remove deletes message id. Missing ids report NotFound.
func (s *MessageStore) Remove(id int64) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return NotFound
	}
	s.msgs = slices.Delete(s.msgs, i, i+1)
	return Applied
}

// Get returns message id.
func (s *MessageStore) Get(id int64) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.index(id)
	if i < 0 {
		return Message{}, false
	}
	return s.msgs[i], true
}

// Snapshot returns a copy of the messages in ascending id order.
func (s *MessageStore) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.msgs)
}

// Len returns the number of loaded messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// MaxID returns the newest loaded id, or 0 when empty.
func (s *MessageStore) MaxID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxID()
}

func (s *MessageStore) maxID() int64 {
	if len(s.msgs) == 0 {
		return 0
	}
	return s.msgs[len(s.msgs)-1].ID
}

// Last returns the newest loaded message.
func (s *MessageStore) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.msgs) == 0 {
		return Message{}, false
	}
	return s.msgs[len(s.msgs)-1], true
}
