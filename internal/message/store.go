// Package message holds the local message log keyed by message id.
package message

import (
	"sort"
	"sync"

	"mini_chat/internal/model"

	"github.com/samber/lo"
)

type (
	Store struct {
		mu       sync.RWMutex
		messages map[string]*model.MessageRecord
	}
)

func NewStore() *Store {
	return &Store{
		messages: make(map[string]*model.MessageRecord),
	}
}

// Upsert inserts or replaces rec by id. A deleted record is terminal and is
// never replaced; Upsert reports whether the store changed.
func (s *Store) Upsert(rec *model.MessageRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.messages[rec.ID]; ok && cur.Status == model.StatusDeleted {
		return false
	}
	s.messages[rec.ID] = rec.Clone()
	return true
}

func (s *Store) Get(id string) (*model.MessageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.messages[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.messages[id]
	return ok
}

// SetStatus moves an existing, non-deleted record to status.
func (s *Store) SetStatus(id string, status model.MessageStatus) (*model.MessageRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.messages[id]
	if !ok || rec.Status == model.StatusDeleted {
		return nil, false
	}
	rec.Status = status
	return rec.Clone(), true
}

// MarkDeleted sets the terminal local-only deleted status. Absent ids are a no-op.
func (s *Store) MarkDeleted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.messages[id]
	if !ok {
		return false
	}
	rec.Status = model.StatusDeleted
	return true
}

// List returns every record ordered by timestamp, then id.
func (s *Store) List() []*model.MessageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(lo.Values(s.messages))
}

// ListForConversation excludes deleted records.
func (s *Store) ListForConversation(conversationID string) []*model.MessageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(lo.Filter(lo.Values(s.messages), func(rec *model.MessageRecord, _ int) bool {
		return rec.ConversationID == conversationID && rec.Status != model.StatusDeleted
	}))
}

// PurgeConversation drops every record of the conversation, deleted ones included.
func (s *Store) PurgeConversation(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.messages {
		if rec.ConversationID == conversationID {
			delete(s.messages, id)
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func sorted(recs []*model.MessageRecord) []*model.MessageRecord {
	out := lo.Map(recs, func(rec *model.MessageRecord, _ int) *model.MessageRecord {
		return rec.Clone()
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
