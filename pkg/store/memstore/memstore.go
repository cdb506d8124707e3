package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/florentina1509/dizidunya/pkg/store"
)

// Store keeps communities, users and messages in process memory.
type Store struct {
	mu          sync.RWMutex
	communities map[int64]struct{}
	users       map[int64]struct{}
	messages    map[int64][]store.ChatMessage
	now         func() time.Time
}

var _ store.MessageStore = (*Store)(nil)

func New(communities, users []int64) *Store {
	s := &Store{
		communities: make(map[int64]struct{}),
		users:       make(map[int64]struct{}),
		messages:    make(map[int64][]store.ChatMessage),
		now:         time.Now,
	}
	for _, id := range communities {
		s.communities[id] = struct{}{}
	}
	for _, id := range users {
		s.users[id] = struct{}{}
	}
	return s
}

func (s *Store) AddCommunity(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.communities[id] = struct{}{}
}

func (s *Store) AddUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = struct{}{}
}

// DeleteCommunity drops a community and its messages.
func (s *Store) DeleteCommunity(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.communities, id)
	delete(s.messages, id)
}

func (s *Store) PersistChatMessage(ctx context.Context, communityID, userID int64, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.communities[communityID]; !ok {
		return fmt.Errorf("community %d: %w", communityID, store.ErrNotFound)
	}
	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("user %d: %w", userID, store.ErrNotFound)
	}
	s.messages[communityID] = append(s.messages[communityID], store.ChatMessage{
		CommunityID: communityID,
		UserID:      userID,
		Content:     content,
		CreatedAt:   s.now(),
	})
	return nil
}

func (s *Store) CommunityExists(ctx context.Context, communityID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.communities[communityID]
	return ok, nil
}

// Messages returns a copy of the messages of a community, oldest first.
func (s *Store) Messages(communityID int64) []store.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.ChatMessage, len(s.messages[communityID]))
	copy(out, s.messages[communityID])
	return out
}
