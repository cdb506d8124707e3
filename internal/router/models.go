package router

import (
	"sync/atomic"

	"github.com/florentina1509/dizidunya/pkg/protocol"
)

// SessionState is the lifecycle of one socket session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type sessionState struct {
	v atomic.Int32
}

func (s *sessionState) load() SessionState { return SessionState(s.v.Load()) }

func (s *sessionState) transition(from, to SessionState) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}

// Publisher fans a frame out to a topic.
type Publisher interface {
	Publish(topic string, frame protocol.Frame)
}
