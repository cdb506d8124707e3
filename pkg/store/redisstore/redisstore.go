// Package redisstore persists chat messages in Redis. The CRUD backend
// mirrors community and user ids into the keys "community:<id>" and
// "user:<id>"; messages are appended to "community:<id>:messages" as JSON.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/florentina1509/dizidunya/pkg/store"
)

type Store struct {
	rdb *redis.Client
	now func() time.Time
}

var _ store.MessageStore = (*Store)(nil)

type Options struct {
	Addr     string
	Password string
	DB       int
}

func New(opts Options) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}))
}

func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, now: time.Now}
}

func CommunityKey(id int64) string { return fmt.Sprintf("community:%d", id) }
func UserKey(id int64) string      { return fmt.Sprintf("user:%d", id) }
func MessagesKey(id int64) string  { return fmt.Sprintf("community:%d:messages", id) }

// Ping checks connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) PersistChatMessage(ctx context.Context, communityID, userID int64, content string) error {
	n, err := s.rdb.Exists(ctx, CommunityKey(communityID), UserKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("lookup community %d and user %d: %w", communityID, userID, err)
	}
	if n != 2 {
		return fmt.Errorf("community %d or user %d: %w", communityID, userID, store.ErrNotFound)
	}

	payload, err := json.Marshal(store.ChatMessage{
		CommunityID: communityID,
		UserID:      userID,
		Content:     content,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	if err := s.rdb.RPush(ctx, MessagesKey(communityID), payload).Err(); err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

func (s *Store) CommunityExists(ctx context.Context, communityID int64) (bool, error) {
	n, err := s.rdb.Exists(ctx, CommunityKey(communityID)).Result()
	if err != nil {
		return false, fmt.Errorf("lookup community %d: %w", communityID, err)
	}
	return n == 1, nil
}

// Messages reads back the stored history of a community.
func (s *Store) Messages(ctx context.Context, communityID int64) ([]store.ChatMessage, error) {
	raw, err := s.rdb.LRange(ctx, MessagesKey(communityID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read messages of community %d: %w", communityID, err)
	}
	out := make([]store.ChatMessage, 0, len(raw))
	for _, r := range raw {
		var m store.ChatMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode message of community %d: %w", communityID, err)
		}
		out = append(out, m)
	}
	return out, nil
}
