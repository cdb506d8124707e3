package state

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subscriber is the registry's view of a live client connection.
type Subscriber interface {
	ID() uuid.UUID
	// Send enqueues msg without blocking.
	Send(msg []byte) error
	Close(err error)
}

// representation of a single transport-layer connection.
type Connection struct {
	ID        uuid.UUID
	Owner     string // authenticated subject, or "ip:<addr>" for anonymous peers
	IPAddress string
	Transport Subscriber
	Topics    map[string]struct{}
	CreatedAt time.Time
}

const (
	TopicNotifications = "notifications"

	chatTopicPrefix = "chat_"
	userTopicPrefix = "user_"
)

// ChatTopic names the room of a community.
func ChatTopic(communityID int64) string {
	return chatTopicPrefix + strconv.FormatInt(communityID, 10)
}

// UserTopic names the private notification stream of a user.
func UserTopic(userID string) string {
	return userTopicPrefix + userID
}

func IsChatTopic(topic string) bool {
	return strings.HasPrefix(topic, chatTopicPrefix)
}
