package router

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/florentina1509/dizidunya/pkg/protocol"
)

type mockConn struct {
	id   uuid.UUID
	sent [][]byte
	mu   sync.Mutex
}

func newMockConn() *mockConn { return &mockConn{id: uuid.New()} }

func (m *mockConn) ID() uuid.UUID { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}

func (m *mockConn) Close(error) {}

func (m *mockConn) getSent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, b := range m.sent {
		out[i] = string(b)
	}
	return out
}

type publishCall struct {
	topic string
	frame protocol.Frame
}

type mockPublisher struct {
	calls []publishCall
	mu    sync.Mutex
}

func (m *mockPublisher) Publish(topic string, frame protocol.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, publishCall{topic: topic, frame: frame})
}

func (m *mockPublisher) getCalls() []publishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishCall, len(m.calls))
	copy(out, m.calls)
	return out
}

type failingStore struct {
	calls int
}

func (f *failingStore) PersistChatMessage(context.Context, int64, int64, string) error {
	f.calls++
	return errors.New("database is down")
}

func (f *failingStore) CommunityExists(context.Context, int64) (bool, error) {
	return false, errors.New("database is down")
}
