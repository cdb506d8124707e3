package engine

import (
	"sync"

	"github.com/google/uuid"
)

type mockConn struct {
	id       uuid.UUID
	received [][]byte
	sendErr  error
	mu       sync.Mutex
}

func newMockConn() *mockConn { return &mockConn{id: uuid.New()} }

func (m *mockConn) ID() uuid.UUID { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) Close(error) {}

func (m *mockConn) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.received))
	copy(out, m.received)
	return out
}
