package statemanager

import (
	"log/slog"
	"sync"
	"time"

	"github.com/florentina1509/dizidunya/pkg/state"
	"github.com/google/uuid"
)

type InMemoryManager struct {
	conns  map[uuid.UUID]*state.Connection
	topics map[string]map[uuid.UUID]state.Subscriber
	owners map[string]map[uuid.UUID]*state.Connection

	mu sync.RWMutex

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		conns:  make(map[uuid.UUID]*state.Connection),
		topics: make(map[string]map[uuid.UUID]state.Subscriber),
		owners: make(map[string]map[uuid.UUID]*state.Connection),
		logger: logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Registry.
var _ state.Registry = (*InMemoryManager)(nil)

// --- Connection Lifecycle ---

func (m *InMemoryManager) RegisterConnection(sub state.Subscriber, owner, ipAddr string) (*state.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	connID := sub.ID()
	if _, exists := m.conns[connID]; exists {
		return nil, state.ErrConnectionExists
	}
	conn := m.trackLocked(sub, owner, ipAddr)
	m.logger.Debug("Connection registered", slog.String("connID", connID.String()), slog.String("owner", owner))
	return clone(conn), nil
}

func (m *InMemoryManager) trackLocked(sub state.Subscriber, owner, ipAddr string) *state.Connection {
	conn := &state.Connection{
		ID:        sub.ID(),
		Owner:     owner,
		IPAddress: ipAddr,
		Transport: sub,
		Topics:    make(map[string]struct{}),
		CreatedAt: time.Now(),
	}
	m.conns[conn.ID] = conn
	if owner != "" {
		byOwner, ok := m.owners[owner]
		if !ok {
			byOwner = make(map[uuid.UUID]*state.Connection)
			m.owners[owner] = byOwner
		}
		byOwner[conn.ID] = conn
	}
	return conn
}

func (m *InMemoryManager) DeregisterConnection(connID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		// connection is already deregistered
		return nil
	}
	for topic := range conn.Topics {
		m.removeMemberLocked(topic, connID)
	}
	delete(m.conns, connID)

	if byOwner, ok := m.owners[conn.Owner]; ok {
		delete(byOwner, connID)
		if len(byOwner) == 0 {
			delete(m.owners, conn.Owner)
		}
	}
	m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()), slog.Int("topics", len(conn.Topics)))
	return nil
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connID]
	if !ok {
		return nil, false
	}
	return clone(conn), true
}

func (m *InMemoryManager) GetAllConnections() []*state.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*state.Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, clone(c))
	}
	return conns
}

// --- Owner accounting ---

func (m *InMemoryManager) GetOwnerConnectionCount(owner string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.owners[owner])
}

func (m *InMemoryManager) FindOldestOwnerConnection(owner string) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var oldest *state.Connection
	for _, conn := range m.owners[owner] {
		if oldest == nil || conn.CreatedAt.Before(oldest.CreatedAt) {
			oldest = conn
		}
	}
	if oldest == nil {
		return nil, false // Owner has no connections.
	}
	return clone(oldest), true
}

// --- Topic Membership ---

func (m *InMemoryManager) Register(sub state.Subscriber, topic string) error {
	if topic == "" {
		return state.ErrInvalidTopic
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	connID := sub.ID()
	conn, ok := m.conns[connID]
	if !ok {
		conn = m.trackLocked(sub, "", "")
	}
	if _, already := conn.Topics[topic]; already {
		return nil
	}
	if state.IsChatTopic(topic) {
		for joined := range conn.Topics {
			if state.IsChatTopic(joined) {
				return state.ErrAlreadyInRoom
			}
		}
	}

	members, exists := m.topics[topic]
	if !exists {
		members = make(map[uuid.UUID]state.Subscriber)
		m.topics[topic] = members
	}
	members[connID] = sub
	conn.Topics[topic] = struct{}{}

	m.logger.Debug("Connection joined topic", slog.String("connID", connID.String()), slog.String("topic", topic), slog.Int("members", len(members)))
	return nil
}

func (m *InMemoryManager) Unregister(sub state.Subscriber, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	connID := sub.ID()
	if conn, ok := m.conns[connID]; ok {
		delete(conn.Topics, topic)
	}
	m.removeMemberLocked(topic, connID)
}

func (m *InMemoryManager) removeMemberLocked(topic string, connID uuid.UUID) {
	members, ok := m.topics[topic]
	if !ok {
		return
	}
	delete(members, connID)
	// For memory hygiene, remove the topic if it's now empty.
	if len(members) == 0 {
		delete(m.topics, topic)
		m.logger.Debug("Removed empty topic", slog.String("topic", topic))
	}
}

func (m *InMemoryManager) MembersOf(topic string) []state.Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.topics[topic]
	snapshot := make([]state.Subscriber, 0, len(members))
	for _, sub := range members {
		snapshot = append(snapshot, sub)
	}
	return snapshot
}

func (m *InMemoryManager) TopicsOf(connID uuid.UUID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil
	}
	topics := make([]string, 0, len(conn.Topics))
	for t := range conn.Topics {
		topics = append(topics, t)
	}
	return topics
}

func (m *InMemoryManager) Stats() (topics, connections int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics), len(m.conns)
}

func clone(c *state.Connection) *state.Connection {
	cp := *c
	cp.Topics = make(map[string]struct{}, len(c.Topics))
	for t := range c.Topics {
		cp.Topics[t] = struct{}{}
	}
	return &cp
}
