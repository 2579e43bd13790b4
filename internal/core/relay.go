package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campuslink/realtime/internal/store"
)

// Relay turns a send request into a durable record plus delivery
// attempts. Persistence always happens before delivery; a failed
// delivery never rolls back a saved message.
type Relay struct {
	messages    store.MessageStore
	presence    *PresenceRegistry
	sessions    *SessionTable
	broadcaster *Broadcaster
	log         *zerolog.Logger
}

// NewRelay constructs a message relay.
func NewRelay(messages store.MessageStore, presence *PresenceRegistry, sessions *SessionTable, broadcaster *Broadcaster, logger *zerolog.Logger) *Relay {
	return &Relay{
		messages:    messages,
		presence:    presence,
		sessions:    sessions,
		broadcaster: broadcaster,
		log:         logger,
	}
}

// Send validates and persists the message, then delivers it on two
// independent paths: a broadcast to the conversation topic, and a
// direct notice to the receiver's session if they are online but not
// subscribed to the topic. Both are fire-and-forget.
func (r *Relay) Send(ctx context.Context, req *SendRequest) (*store.Message, *CoreError) {
	if cerr := validateSend(req); cerr != nil {
		return nil, cerr
	}

	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: ConversationID(req.SenderID, req.ReceiverID),
		SenderID:       req.SenderID,
		ReceiverID:     req.ReceiverID,
		Body:           req.Body,
		Kind:           req.Kind,
		Attachments:    req.Attachments,
		CreatedAt:      time.Now().UTC(),
	}

	if err := r.messages.CreateMessage(ctx, msg); err != nil {
		r.log.Error().Err(err).
			Str("conversation", msg.ConversationID).
			Str("sender", msg.SenderID).
			Msg("persist message")
		return nil, coreError(ErrCodePersistence, "failed to save message")
	}

	r.broadcaster.Publish(msg.ConversationID, &Event{
		Kind:    EventMessageReceived,
		Message: msg,
	})

	if sessionID, online := r.presence.Lookup(msg.ReceiverID); online {
		if r.broadcaster.Subscribed(msg.ConversationID, sessionID) {
			return msg, nil
		}
		if receiver, ok := r.sessions.Get(sessionID); ok {
			if !receiver.deliver(&Event{
				Kind:         EventNewMessageNotice,
				Conversation: msg.ConversationID,
				User:         msg.SenderID,
				Message:      msg,
			}) {
				r.log.Warn().
					Str("session_id", sessionID).
					Str("receiver", msg.ReceiverID).
					Msg("dropping new-message notice for slow consumer")
			}
		}
	}

	return msg, nil
}

// MarkRead flags all unread messages in the conversation addressed to
// readerID and notifies the other participant's subscribed views.
// Nothing to update is not an error.
func (r *Relay) MarkRead(ctx context.Context, origin *Client, conversationID, readerID string) *CoreError {
	if conversationID == "" || readerID == "" {
		return coreError(ErrCodeValidation, "conversation and user are required")
	}

	n, err := r.messages.MarkConversationRead(ctx, conversationID, readerID)
	if err != nil {
		r.log.Error().Err(err).
			Str("conversation", conversationID).
			Str("reader", readerID).
			Msg("mark conversation read")
		return coreError(ErrCodePersistence, "failed to mark messages read")
	}

	r.log.Debug().
		Str("conversation", conversationID).
		Str("reader", readerID).
		Int64("updated", n).
		Msg("messages marked read")

	r.broadcaster.PublishExcept(conversationID, origin, &Event{
		Kind:         EventMessagesRead,
		Conversation: conversationID,
		User:         readerID,
	})
	return nil
}

// Delete applies a soft-delete marker and notifies subscribed views.
// The underlying record is retained in both scopes; only presentation
// changes. Deleting for everyone is restricted to the sender.
func (r *Relay) Delete(ctx context.Context, conversationID, messageID string, scope DeleteScope, byUserID string) *CoreError {
	if messageID == "" {
		return coreError(ErrCodeValidation, "message id is required")
	}

	msg, err := r.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return coreError(ErrCodeValidation, "message not found")
		}
		return coreError(ErrCodePersistence, "failed to load message")
	}
	if conversationID != "" && msg.ConversationID != conversationID {
		return coreError(ErrCodeValidation, "message does not belong to conversation")
	}

	switch scope {
	case DeleteScopeMe:
		err = r.messages.MarkDeletedForUser(ctx, messageID, byUserID)
	case DeleteScopeEveryone:
		if msg.SenderID != byUserID {
			return coreError(ErrCodeValidation, "only the sender can delete for everyone")
		}
		err = r.messages.MarkDeletedForAll(ctx, messageID)
	default:
		return coreError(ErrCodeValidation, fmt.Sprintf("unknown delete scope %q", scope))
	}
	if err != nil {
		r.log.Error().Err(err).Str("message_id", messageID).Msg("soft delete")
		return coreError(ErrCodePersistence, "failed to delete message")
	}

	r.broadcaster.Publish(msg.ConversationID, &Event{
		Kind:         EventMessageDeleted,
		Conversation: msg.ConversationID,
		MessageID:    messageID,
		Scope:        scope,
	})
	return nil
}

func validateSend(req *SendRequest) *CoreError {
	if req.SenderID == "" || req.ReceiverID == "" {
		return coreError(ErrCodeValidation, "sender and receiver are required")
	}
	if req.SenderID == req.ReceiverID {
		return coreError(ErrCodeValidation, "cannot message yourself")
	}
	if req.Kind == "" {
		req.Kind = store.MessageKindText
	}
	if !store.ValidKind(req.Kind) {
		return coreError(ErrCodeValidation, fmt.Sprintf("unknown message kind %q", req.Kind))
	}
	if req.Body == "" && len(req.Attachments) == 0 && req.Kind == store.MessageKindText {
		return coreError(ErrCodeValidation, "message body is empty")
	}
	if req.ConversationID != "" && req.ConversationID != ConversationID(req.SenderID, req.ReceiverID) {
		return coreError(ErrCodeValidation, "conversation id does not match participants")
	}
	return nil
}
