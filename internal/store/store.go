package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User is an identity synced from the campus platform.
// The realtime service never creates accounts itself; records arrive
// through the provisioning API and are only read for identity checks.
type User struct {
	ID         string
	Name       string
	Banned     bool
	LastActive time.Time
	CreatedAt  time.Time
}

// MessageKind classifies message content.
type MessageKind string

const (
	MessageKindText     MessageKind = "text"
	MessageKindImage    MessageKind = "image"
	MessageKindFile     MessageKind = "file"
	MessageKindDocument MessageKind = "document"
)

// ValidKind reports whether k is one of the known message kinds.
func ValidKind(k MessageKind) bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindFile, MessageKindDocument:
		return true
	}
	return false
}

// Attachment describes a file attached to a message. Files themselves
// live in external object storage; only descriptors are kept here.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	FileType string `json:"file_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// Message is a persisted chat message between two users.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	ReceiverID     string
	Body           string
	Kind           MessageKind
	Attachments    []Attachment
	Read           bool
	DeletedForAll  bool
	DeletedFor     []string
	CreatedAt      time.Time
}

// VisibleTo reports whether the message should be shown to viewerID,
// taking soft-delete markers into account.
func (m *Message) VisibleTo(viewerID string) bool {
	if m.DeletedForAll {
		return false
	}
	for _, id := range m.DeletedFor {
		if id == viewerID {
			return false
		}
	}
	return true
}

// UserStore handles identity records.
type UserStore interface {
	// CreateUser inserts a user record synced from the platform.
	CreateUser(ctx context.Context, u *User) error

	// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, id string) (*User, error)

	// TouchLastActive stamps the user's last_active to now.
	TouchLastActive(ctx context.Context, id string) error
}

// MessageStore handles chat message persistence.
type MessageStore interface {
	// CreateMessage persists a new message.
	CreateMessage(ctx context.Context, m *Message) error

	// GetMessage retrieves a message by ID, including its per-user
	// deletion markers. Returns ErrNotFound if absent.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// ListMessages returns messages in a conversation visible to
	// viewerID, newest first. If beforeID is non-nil only messages
	// older than that message are returned. Limit caps the result.
	ListMessages(ctx context.Context, conversationID, viewerID string, limit int, beforeID *string) ([]*Message, error)

	// MarkConversationRead sets the read flag on all unread messages in
	// the conversation addressed to readerID. Returns the number of
	// rows updated; zero is not an error.
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)

	// MarkDeletedForUser adds a per-user soft-delete marker. Idempotent.
	MarkDeletedForUser(ctx context.Context, messageID, userID string) error

	// MarkDeletedForAll sets the global soft-delete marker.
	MarkDeletedForAll(ctx context.Context, messageID string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
