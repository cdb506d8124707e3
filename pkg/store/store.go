// Package store defines the persistence boundary for chat messages. The
// records themselves belong to the CRUD backend.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: record not found")

// ChatMessage is one persisted chat line.
type ChatMessage struct {
	CommunityID int64     `json:"community_id"`
	UserID      int64     `json:"user_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

type MessageStore interface {
	// PersistChatMessage stores a message after checking the community and
	// the user exist. It returns ErrNotFound when either is missing.
	PersistChatMessage(ctx context.Context, communityID, userID int64, content string) error
	CommunityExists(ctx context.Context, communityID int64) (bool, error)
}
