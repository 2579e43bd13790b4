package core

import (
	"encoding/json"

	"github.com/campuslink/realtime/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventPresenceChanged notifies clients that a user went on/offline.
	EventPresenceChanged EventKind = iota
	// EventOnlineUsers delivers the full snapshot of online user ids.
	EventOnlineUsers
	// EventMessageReceived delivers a persisted message to a conversation topic.
	EventMessageReceived
	// EventNewMessageNotice tells an online receiver who is not in the
	// conversation topic that a message arrived.
	EventNewMessageNotice
	// EventTypingStatus shows or hides a typing indicator.
	EventTypingStatus
	// EventMessagesRead notifies that conversation messages were marked read.
	EventMessagesRead
	// EventMessageDeleted notifies that a message was soft-deleted.
	EventMessageDeleted
	// EventUpdate carries a platform live-update (new post, interest count)
	// published to the shared events topic.
	EventUpdate
	// EventSendError reports a handler-scoped failure to the originating
	// connection only.
	EventSendError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind

	Topic string

	// Presence
	User   string
	Online bool
	Users  []string

	// Messaging
	Message      *store.Message
	Conversation string
	MessageID    string
	Scope        DeleteScope
	IsTyping     bool

	// Platform live updates
	UpdateKind string
	Payload    json.RawMessage

	Error *CoreError
}
