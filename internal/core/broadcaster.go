package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Bridge mirrors published topic events to an external pub/sub backend
// so multiple server processes can share broadcasts. Process-local
// operation needs no bridge; see the redisbridge package.
type Bridge interface {
	Publish(ctx context.Context, topic string, ev *Event)
}

// Broadcaster fans events out to every connection subscribed to a named
// topic. A single mutex serializes publishes, so subscribers on one
// topic see events in the order they were published.
type Broadcaster struct {
	mu          sync.Mutex
	topics      map[string]map[*Client]struct{}
	memberships map[*Client]map[string]struct{}
	bridge      Bridge
	log         *zerolog.Logger
}

// NewBroadcaster constructs a broadcaster. bridge may be nil.
func NewBroadcaster(logger *zerolog.Logger, bridge Bridge) *Broadcaster {
	return &Broadcaster{
		topics:      make(map[string]map[*Client]struct{}),
		memberships: make(map[*Client]map[string]struct{}),
		bridge:      bridge,
		log:         logger,
	}
}

// Join subscribes the client to a topic. Idempotent.
func (b *Broadcaster) Join(c *Client, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.topics[topic]
	if !ok {
		members = make(map[*Client]struct{})
		b.topics[topic] = members
	}
	members[c] = struct{}{}

	joined, ok := b.memberships[c]
	if !ok {
		joined = make(map[string]struct{})
		b.memberships[c] = joined
	}
	joined[topic] = struct{}{}
}

// Leave unsubscribes the client from a topic. Idempotent.
func (b *Broadcaster) Leave(c *Client, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(c, topic)
}

// DropClient removes every subscription held by the client. Called on
// connection teardown so later publishes never see the dead session.
func (b *Broadcaster) DropClient(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic := range b.memberships[c] {
		b.removeLocked(c, topic)
	}
	delete(b.memberships, c)
}

func (b *Broadcaster) removeLocked(c *Client, topic string) {
	if members, ok := b.topics[topic]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(b.topics, topic)
		}
	}
	if joined, ok := b.memberships[c]; ok {
		delete(joined, topic)
	}
}

// Subscribed reports whether the session is a member of the topic.
func (b *Broadcaster) Subscribed(topic, sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.topics[topic] {
		if c.SessionID == sessionID {
			return true
		}
	}
	return false
}

// Publish delivers the event to every subscriber of the topic, the
// origin included, and mirrors it to the bridge if one is configured.
func (b *Broadcaster) Publish(topic string, ev *Event) {
	b.publish(topic, nil, ev, true)
}

// PublishExcept delivers the event to every subscriber except origin.
// Used for typing indicators, which must not echo back to the sender.
func (b *Broadcaster) PublishExcept(topic string, origin *Client, ev *Event) {
	b.publish(topic, origin, ev, true)
}

// PublishLocal delivers to local subscribers only. The bridge
// subscriber uses it to re-broadcast remote events without looping.
func (b *Broadcaster) PublishLocal(topic string, ev *Event) {
	b.publish(topic, nil, ev, false)
}

func (b *Broadcaster) publish(topic string, origin *Client, ev *Event, mirror bool) {
	ev.Topic = topic

	b.mu.Lock()
	for c := range b.topics[topic] {
		if c == origin {
			continue
		}
		if !c.deliver(ev) {
			b.log.Warn().
				Str("session_id", c.SessionID).
				Str("topic", topic).
				Msg("dropping event for slow consumer")
		}
	}
	b.mu.Unlock()

	if mirror && b.bridge != nil {
		b.bridge.Publish(context.Background(), topic, ev)
	}
}
