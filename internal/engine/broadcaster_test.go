package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florentina1509/dizidunya/pkg/logging"
	"github.com/florentina1509/dizidunya/pkg/protocol"
	"github.com/florentina1509/dizidunya/pkg/state"
	"github.com/florentina1509/dizidunya/pkg/state/statemanager"
	"github.com/florentina1509/dizidunya/pkg/transport"
)

func newTestBroadcaster() (*Broadcaster, *statemanager.InMemoryManager) {
	reg := statemanager.NewInMemoryManager(logging.Discard())
	return NewBroadcaster(logging.Discard(), reg), reg
}

func TestBroadcaster_Publish(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(*statemanager.InMemoryManager) map[string]*mockConn
		topic        string
		wantReceived map[string]int
	}{
		{
			name: "every member receives the frame",
			setup: func(r *statemanager.InMemoryManager) map[string]*mockConn {
				a, b := newMockConn(), newMockConn()
				require.NoError(t, r.Register(a, "chat_7"))
				require.NoError(t, r.Register(b, "chat_7"))
				return map[string]*mockConn{"a": a, "b": b}
			},
			topic:        "chat_7",
			wantReceived: map[string]int{"a": 1, "b": 1},
		},
		{
			name: "no cross-topic delivery",
			setup: func(r *statemanager.InMemoryManager) map[string]*mockConn {
				a, other := newMockConn(), newMockConn()
				require.NoError(t, r.Register(a, state.TopicNotifications))
				require.NoError(t, r.Register(other, "chat_7"))
				return map[string]*mockConn{"a": a, "other": other}
			},
			topic:        state.TopicNotifications,
			wantReceived: map[string]int{"a": 1, "other": 0},
		},
		{
			name: "failing member does not block siblings",
			setup: func(r *statemanager.InMemoryManager) map[string]*mockConn {
				broken := newMockConn()
				broken.sendErr = transport.ErrSendBufferFull
				gone := newMockConn()
				gone.sendErr = transport.ErrClosed
				ok := newMockConn()
				for _, c := range []*mockConn{broken, gone, ok} {
					require.NoError(t, r.Register(c, "chat_1"))
				}
				return map[string]*mockConn{"broken": broken, "gone": gone, "ok": ok}
			},
			topic:        "chat_1",
			wantReceived: map[string]int{"broken": 0, "gone": 0, "ok": 1},
		},
		{
			name: "empty topic is a no-op",
			setup: func(r *statemanager.InMemoryManager) map[string]*mockConn {
				return map[string]*mockConn{}
			},
			topic:        "chat_404",
			wantReceived: map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, reg := newTestBroadcaster()
			conns := tt.setup(reg)

			b.Publish(tt.topic, protocol.Notification{Message: "hello"})

			for name, want := range tt.wantReceived {
				assert.Len(t, conns[name].getReceived(), want, name)
			}
		})
	}
}

func TestBroadcaster_SameBytesToEveryMember(t *testing.T) {
	b, reg := newTestBroadcaster()
	a, c := newMockConn(), newMockConn()
	reg.Register(a, "chat_7")
	reg.Register(c, "chat_7")

	b.Publish("chat_7", protocol.ChatMessage{Message: "hi", Username: "alice", Timestamp: "12:30"})

	ra, rc := a.getReceived(), c.getReceived()
	require.Len(t, ra, 1)
	require.Len(t, rc, 1)
	assert.JSONEq(t, `{"message":"hi","username":"alice","timestamp":"12:30"}`, string(ra[0]))
	assert.Equal(t, ra[0], rc[0])
}

func TestBroadcaster_UnregisteredNotReached(t *testing.T) {
	b, reg := newTestBroadcaster()
	a := newMockConn()
	reg.Register(a, state.TopicNotifications)
	reg.Register(a, "chat_2")
	reg.DeregisterConnection(a.ID())

	b.Publish(state.TopicNotifications, protocol.Notification{Message: "x"})
	b.Publish("chat_2", protocol.Notification{Message: "y"})

	assert.Empty(t, a.getReceived())
}

func TestBroadcaster_ConcurrentPublish(t *testing.T) {
	b, reg := newTestBroadcaster()
	conns := make([]*mockConn, 20)
	for i := range conns {
		conns[i] = newMockConn()
		reg.Register(conns[i], state.TopicNotifications)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(state.TopicNotifications, protocol.Notification{Message: "n"})
		}()
	}
	// membership churn on an unrelated topic while publishing
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			extra := newMockConn()
			reg.Register(extra, "chat_9")
			reg.DeregisterConnection(extra.ID())
		}()
	}
	wg.Wait()

	for _, c := range conns {
		assert.Len(t, c.getReceived(), 50)
	}
}
