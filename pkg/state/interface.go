package state

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrConnectionExists = errors.New("connection is already registered")
	ErrAlreadyInRoom    = errors.New("connection is already in a chat room")
	ErrInvalidTopic     = errors.New("topic name cannot be empty")
)

type Registry interface {
	// --- Connection Lifecycle ---
	RegisterConnection(sub Subscriber, owner, ipAddr string) (*Connection, error)
	// DeregisterConnection drops the connection and all of its topic memberships.
	DeregisterConnection(connID uuid.UUID) error
	GetConnection(connID uuid.UUID) (*Connection, bool)
	GetAllConnections() []*Connection

	// --- Owner accounting (connection limits) ---
	GetOwnerConnectionCount(owner string) int
	FindOldestOwnerConnection(owner string) (*Connection, bool)

	// --- Topic Membership ---
	// Register is idempotent. A connection may hold at most one chat topic.
	Register(sub Subscriber, topic string) error
	Unregister(sub Subscriber, topic string)
	// MembersOf returns a snapshot that stays valid while membership changes.
	MembersOf(topic string) []Subscriber
	TopicsOf(connID uuid.UUID) []string

	Stats() (topics, connections int)
}
