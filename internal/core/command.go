package core

import "github.com/campuslink/realtime/internal/store"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandAnnounce attaches a user identity to the connection.
	CommandAnnounce CommandKind = iota
	// CommandJoinTopic subscribes the connection to a topic.
	CommandJoinTopic
	// CommandLeaveTopic unsubscribes the connection from a topic.
	CommandLeaveTopic
	// CommandSendMessage persists and delivers a chat message.
	CommandSendMessage
	// CommandTyping fans out a typing indicator to the conversation.
	CommandTyping
	// CommandMarkRead bulk-marks conversation messages as read.
	CommandMarkRead
	// CommandDeleteMessage soft-deletes a message.
	CommandDeleteMessage
)

// DeleteScope selects who a deletion applies to.
type DeleteScope string

const (
	// DeleteScopeMe hides the message from the requesting user only.
	DeleteScopeMe DeleteScope = "me"
	// DeleteScopeEveryone hides the message from both participants.
	DeleteScopeEveryone DeleteScope = "everyone"
)

// SendRequest carries the payload of a send-message command.
type SendRequest struct {
	ConversationID string
	SenderID       string
	ReceiverID     string
	Body           string
	Kind           store.MessageKind
	Attachments    []store.Attachment
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind

	// Announce
	User  string
	Token string

	// Join/leave
	Topic string

	// Send
	Send *SendRequest

	// Typing, mark-read, delete
	Conversation string
	MessageID    string
	Scope        DeleteScope
	IsTyping     bool
}
