package statemanager_test

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/florentina1509/dizidunya/pkg/state"
	"github.com/florentina1509/dizidunya/pkg/state/statemanager"
	"github.com/google/uuid"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestManager() *statemanager.InMemoryManager {
	return statemanager.NewInMemoryManager(newTestLogger())
}

type fakeSub struct {
	id     uuid.UUID
	mu     sync.Mutex
	closed error
}

func newSub() *fakeSub { return &fakeSub{id: uuid.New()} }

func (f *fakeSub) ID() uuid.UUID       { return f.id }
func (f *fakeSub) Send(_ []byte) error { return nil }
func (f *fakeSub) Close(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = err
}

func contains(subs []state.Subscriber, want state.Subscriber) bool {
	for _, s := range subs {
		if s.ID() == want.ID() {
			return true
		}
	}
	return false
}

// --- Connection Lifecycle Tests ---

func TestConnectionLifecycle(t *testing.T) {
	m := newTestManager()
	sub := newSub()

	stateConn, err := m.RegisterConnection(sub, "user-1", "127.0.0.1")
	if err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}
	if stateConn.ID != sub.ID() {
		t.Errorf("Registered connection ID mismatch")
	}

	if _, err := m.RegisterConnection(sub, "user-1", "127.0.0.1"); !errors.Is(err, state.ErrConnectionExists) {
		t.Errorf("Expected ErrConnectionExists on double register, got %v", err)
	}

	retrieved, found := m.GetConnection(sub.ID())
	if !found {
		t.Fatal("GetConnection failed to find registered connection")
	}
	if retrieved.Owner != "user-1" || retrieved.IPAddress != "127.0.0.1" {
		t.Errorf("Unexpected connection record: %+v", retrieved)
	}

	if err := m.DeregisterConnection(sub.ID()); err != nil {
		t.Fatalf("DeregisterConnection failed: %v", err)
	}
	if _, found := m.GetConnection(sub.ID()); found {
		t.Error("Found connection after it should have been deregistered")
	}
	// deregistering twice is harmless
	if err := m.DeregisterConnection(sub.ID()); err != nil {
		t.Errorf("Second DeregisterConnection returned error: %v", err)
	}
}

func TestOwnerConnectionCount(t *testing.T) {
	m := newTestManager()
	owner := "user-1"
	sub1, sub2 := newSub(), newSub()

	m.RegisterConnection(sub1, owner, "1.1.1.1")
	m.RegisterConnection(sub2, owner, "2.2.2.2")

	if count := m.GetOwnerConnectionCount(owner); count != 2 {
		t.Errorf("Expected connection count 2, got %d", count)
	}

	m.DeregisterConnection(sub1.ID())
	if count := m.GetOwnerConnectionCount(owner); count != 1 {
		t.Errorf("Expected connection count 1 after deregister, got %d", count)
	}
	if count := m.GetOwnerConnectionCount("nobody"); count != 0 {
		t.Errorf("Expected 0 connections for unknown owner, got %d", count)
	}
}

func TestFindOldestOwnerConnection(t *testing.T) {
	m := newTestManager()
	owner := "user-cycle"
	sub1, sub2 := newSub(), newSub()

	m.RegisterConnection(sub1, owner, "1.1.1.1")
	time.Sleep(5 * time.Millisecond) // Ensure timestamps are different
	m.RegisterConnection(sub2, owner, "2.2.2.2")

	oldest, found := m.FindOldestOwnerConnection(owner)
	if !found {
		t.Fatal("Expected to find oldest connection, but did not")
	}
	if oldest.ID != sub1.ID() {
		t.Errorf("Expected oldest connection ID to be %s, got %s", sub1.ID(), oldest.ID)
	}
	if _, found := m.FindOldestOwnerConnection("nobody"); found {
		t.Error("Expected no connection for unknown owner")
	}
}

// --- Topic Membership Tests ---

func TestRegisterAndUnregister(t *testing.T) {
	m := newTestManager()
	a, b := newSub(), newSub()
	topic := state.ChatTopic(7)

	if err := m.Register(a, topic); err != nil {
		t.Fatalf("Register a failed: %v", err)
	}
	if err := m.Register(b, topic); err != nil {
		t.Fatalf("Register b failed: %v", err)
	}
	// idempotent
	if err := m.Register(a, topic); err != nil {
		t.Fatalf("Re-register a failed: %v", err)
	}

	members := m.MembersOf(topic)
	if len(members) != 2 {
		t.Fatalf("Expected 2 members, got %d", len(members))
	}
	if !contains(members, a) || !contains(members, b) {
		t.Error("Expected both connections in topic")
	}

	m.Unregister(a, topic)
	members = m.MembersOf(topic)
	if len(members) != 1 || contains(members, a) {
		t.Fatalf("Expected only b after unregister, got %d members", len(members))
	}

	// unregistering an absent member is a no-op
	m.Unregister(a, topic)
	m.Unregister(a, "never-existed")

	// Test empty topic cleanup
	m.Unregister(b, topic)
	if topics, _ := m.Stats(); topics != 0 {
		t.Errorf("Expected empty topic to be removed, have %d topics", topics)
	}
	if members := m.MembersOf(topic); len(members) != 0 {
		t.Errorf("Expected no members for removed topic, got %d", len(members))
	}
}

func TestRegisterRejectsEmptyTopic(t *testing.T) {
	m := newTestManager()
	if err := m.Register(newSub(), ""); !errors.Is(err, state.ErrInvalidTopic) {
		t.Errorf("Expected ErrInvalidTopic, got %v", err)
	}
}

func TestSingleChatRoomPerConnection(t *testing.T) {
	m := newTestManager()
	sub := newSub()

	if err := m.Register(sub, state.ChatTopic(1)); err != nil {
		t.Fatalf("Register chat 1 failed: %v", err)
	}
	if err := m.Register(sub, state.ChatTopic(2)); !errors.Is(err, state.ErrAlreadyInRoom) {
		t.Errorf("Expected ErrAlreadyInRoom, got %v", err)
	}
	if err := m.Register(sub, state.TopicNotifications); err != nil {
		t.Errorf("Notifications membership should be independent of chat rooms: %v", err)
	}

	m.Unregister(sub, state.ChatTopic(1))
	if err := m.Register(sub, state.ChatTopic(2)); err != nil {
		t.Errorf("Register chat 2 after leaving chat 1 failed: %v", err)
	}
}

func TestDeregisterRemovesFromAllTopics(t *testing.T) {
	m := newTestManager()
	sub := newSub()
	m.RegisterConnection(sub, "u", "1.1.1.1")
	m.Register(sub, state.TopicNotifications)
	m.Register(sub, state.ChatTopic(3))

	topics := m.TopicsOf(sub.ID())
	if len(topics) != 2 {
		t.Fatalf("Expected 2 topics, got %v", topics)
	}

	m.DeregisterConnection(sub.ID())
	if contains(m.MembersOf(state.TopicNotifications), sub) {
		t.Error("Connection still in notifications after deregister")
	}
	if contains(m.MembersOf(state.ChatTopic(3)), sub) {
		t.Error("Connection still in chat room after deregister")
	}
	if topics := m.TopicsOf(sub.ID()); topics != nil {
		t.Errorf("Expected no topics for deregistered connection, got %v", topics)
	}
}

func TestMembersOfIsSnapshot(t *testing.T) {
	m := newTestManager()
	a, b := newSub(), newSub()
	m.Register(a, state.TopicNotifications)
	m.Register(b, state.TopicNotifications)

	snapshot := m.MembersOf(state.TopicNotifications)
	m.Unregister(a, state.TopicNotifications)

	if len(snapshot) != 2 {
		t.Errorf("Snapshot changed after membership mutation: %d members", len(snapshot))
	}
}

func TestGetConnectionReturnsCopy(t *testing.T) {
	m := newTestManager()
	sub := newSub()
	m.Register(sub, state.TopicNotifications)

	conn, _ := m.GetConnection(sub.ID())
	delete(conn.Topics, state.TopicNotifications)

	if len(m.TopicsOf(sub.ID())) != 1 {
		t.Error("Mutating a returned connection leaked into the registry")
	}
}

func TestRegistryConcurrency(t *testing.T) {
	m := newTestManager()
	numGoroutines := 100
	var wg sync.WaitGroup

	subs := make([]*fakeSub, numGoroutines)
	for i := range subs {
		subs[i] = newSub()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			topic := "topic" + strconv.Itoa(i%5)
			m.Register(subs[i], topic)
			m.Register(subs[i], state.TopicNotifications)
			m.MembersOf(topic)
		}(i)
	}
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.MembersOf(state.TopicNotifications)
			m.Stats()
		}(i)
	}
	wg.Wait()

	if n := len(m.MembersOf(state.TopicNotifications)); n != numGoroutines {
		t.Errorf("Expected %d notification members, got %d", numGoroutines, n)
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.DeregisterConnection(subs[i].ID())
		}(i)
	}
	wg.Wait()

	if topics, conns := m.Stats(); topics != 0 || conns != 0 {
		t.Errorf("Expected empty registry, got %d topics %d connections", topics, conns)
	}
}
