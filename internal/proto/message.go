package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeAnnounce   = "announce"
	InboundTypeJoinTopic  = "join_topic"
	InboundTypeLeaveTopic = "leave_topic"
	InboundTypeSend       = "send_message"
	InboundTypeTyping     = "typing"
	InboundTypeMarkRead   = "mark_read"
	InboundTypeDelete     = "delete_message"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventPresenceChanged  = "presence_changed"
	EventOnlineUsers      = "online_users"
	EventMessageReceived  = "message_received"
	EventNewMessageNotice = "new_message_notice"
	EventTypingStatus     = "typing_status"
	EventMessagesRead     = "messages_read"
	EventMessageDeleted   = "message_deleted"
	EventUpdate           = "event_update"
)

// AnnounceData attaches a user identity to the connection. Token is
// only required when the server runs with a JWT secret configured.
type AnnounceData struct {
	User  string `json:"user"`
	Token string `json:"token,omitempty"`
}

// TopicData names the topic to join or leave.
type TopicData struct {
	Topic string `json:"topic"`
}

// AttachmentData describes one uploaded file on a message.
type AttachmentData struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	FileType string `json:"file_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// SendData is a chat message from the client.
type SendData struct {
	Conversation string           `json:"conversation_id,omitempty"`
	Sender       string           `json:"sender_id"`
	Receiver     string           `json:"receiver_id"`
	Body         string           `json:"body,omitempty"`
	Kind         string           `json:"kind,omitempty"`
	Attachments  []AttachmentData `json:"attachments,omitempty"`
}

// TypingData toggles the sender's typing indicator in a conversation.
type TypingData struct {
	Conversation string `json:"conversation_id"`
	User         string `json:"user_id"`
	IsTyping     bool   `json:"is_typing"`
}

// MarkReadData bulk-marks conversation messages addressed to User as read.
type MarkReadData struct {
	Conversation string `json:"conversation_id"`
	User         string `json:"user_id"`
}

// DeleteData soft-deletes a message with the given scope ("me" or "everyone").
type DeleteData struct {
	Conversation string `json:"conversation_id"`
	MessageID    string `json:"message_id"`
	Scope        string `json:"scope"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventPresence notifies that a user went on- or offline.
type EventPresence struct {
	User   string `json:"user_id"`
	Online bool   `json:"online"`
}

// EventOnlineSnapshot is the full list of online user ids.
type EventOnlineSnapshot struct {
	Users []string `json:"users"`
}

// EventChatMessage is the wire form of a persisted message.
type EventChatMessage struct {
	ID           string           `json:"id"`
	Conversation string           `json:"conversation_id"`
	Sender       string           `json:"sender_id"`
	Receiver     string           `json:"receiver_id"`
	Body         string           `json:"body,omitempty"`
	Kind         string           `json:"kind"`
	Attachments  []AttachmentData `json:"attachments,omitempty"`
	Read         bool             `json:"read"`
	TS           int64            `json:"ts"`
}

// EventNotice is the badge/toast payload for a receiver who is online
// but not subscribed to the conversation topic.
type EventNotice struct {
	Conversation string           `json:"conversation_id"`
	Sender       string           `json:"sender_id"`
	Message      EventChatMessage `json:"message"`
}

// EventTyping shows or hides a typing indicator.
type EventTyping struct {
	User     string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

// EventRead updates read ticks for a conversation.
type EventRead struct {
	Conversation string `json:"conversation_id"`
	User         string `json:"user_id"`
}

// EventDeleted removes or grays out a message in subscribed views.
type EventDeleted struct {
	MessageID string `json:"message_id"`
	Scope     string `json:"scope"`
}

// EventLiveUpdate carries a platform update published to the events topic.
type EventLiveUpdate struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Error describes a protocol- or handler-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
