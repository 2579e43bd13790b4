package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/campuslink/realtime/internal/identity"
	"github.com/campuslink/realtime/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// memStore is an in-memory store.Store for hub and relay tests.
type memStore struct {
	mu        sync.Mutex
	users     map[string]*store.User
	messages  []*store.Message
	failSaves bool
}

func newMemStore(userIDs ...string) *memStore {
	s := &memStore{users: make(map[string]*store.User)}
	for _, id := range userIDs {
		s.users[id] = &store.User{ID: id, Name: id}
	}
	return s
}

func (s *memStore) CreateUser(_ context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *memStore) GetUser(_ context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (s *memStore) TouchLastActive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastActive = time.Now()
	}
	return nil
}

func (s *memStore) CreateMessage(_ context.Context, m *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves {
		return errors.New("store unavailable")
	}
	clone := *m
	s.messages = append(s.messages, &clone)
	return nil
}

func (s *memStore) GetMessage(_ context.Context, id string) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			clone := *m
			return &clone, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) ListMessages(_ context.Context, conversationID, viewerID string, limit int, _ *string) ([]*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Message
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.messages[i]
		if m.ConversationID == conversationID && m.VisibleTo(viewerID) {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *memStore) MarkConversationRead(_ context.Context, conversationID, readerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.ConversationID == conversationID && m.ReceiverID == readerID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (s *memStore) MarkDeletedForUser(_ context.Context, messageID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == messageID {
			for _, id := range m.DeletedFor {
				if id == userID {
					return nil
				}
			}
			m.DeletedFor = append(m.DeletedFor, userID)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *memStore) MarkDeletedForAll(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == messageID {
			m.DeletedForAll = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *memStore) Close() error { return nil }

func (s *memStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type testEnv struct {
	hub         *Hub
	sessions    *SessionTable
	presence    *PresenceRegistry
	broadcaster *Broadcaster
	relay       *Relay
	store       *memStore
}

func newTestEnv(t *testing.T, st *memStore, identCfg identity.Config) *testEnv {
	t.Helper()

	logger := testLogger()
	sessions := NewSessionTable()
	presence := NewPresenceRegistry()
	broadcaster := NewBroadcaster(logger, nil)
	relay := NewRelay(st, presence, sessions, broadcaster, logger)
	ident := identity.NewService(st, identCfg)
	hub := NewHub(sessions, presence, broadcaster, relay, ident, st, logger)

	return &testEnv{
		hub:         hub,
		sessions:    sessions,
		presence:    presence,
		broadcaster: broadcaster,
		relay:       relay,
		store:       st,
	}
}
