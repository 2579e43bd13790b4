package http

import (
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/store"
)

// ErrorResponse is the REST error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// APIHandler serves the internal REST endpoints the platform calls:
// online snapshot, conversation history, live-update publishing, and
// user provisioning.
type APIHandler struct {
	hub   *core.Hub
	store store.Store
	log   *zerolog.Logger
}

// NewAPIHandler builds the REST handler.
func NewAPIHandler(hub *core.Hub, st store.Store, logger *zerolog.Logger) *APIHandler {
	return &APIHandler{hub: hub, store: st, log: logger}
}

// OnlineUsers returns the current online-users snapshot.
func (h *APIHandler) OnlineUsers(c *gin.Context) {
	users := h.hub.OnlineUsers()
	c.JSON(stdhttp.StatusOK, gin.H{"count": len(users), "users": users})
}

type messageResponse struct {
	ID           string             `json:"id"`
	Conversation string             `json:"conversation_id"`
	Sender       string             `json:"sender_id"`
	Receiver     string             `json:"receiver_id"`
	Body         string             `json:"body,omitempty"`
	Kind         string             `json:"kind"`
	Attachments  []store.Attachment `json:"attachments,omitempty"`
	Read         bool               `json:"read"`
	TS           int64              `json:"ts"`
}

// ListMessages returns conversation history visible to the viewer,
// newest first, with optional before-id pagination.
func (h *APIHandler) ListMessages(c *gin.Context) {
	conversationID := c.Param("id")
	viewerID := c.Query("viewer")
	if viewerID == "" {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "viewer is required"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	var beforeID *string
	if raw := c.Query("before"); raw != "" {
		beforeID = &raw
	}

	messages, err := h.store.ListMessages(c.Request.Context(), conversationID, viewerID, limit, beforeID)
	if err != nil {
		h.log.Error().Err(err).Str("conversation", conversationID).Msg("list messages")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "failed to load messages"})
		return
	}

	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageResponse{
			ID:           m.ID,
			Conversation: m.ConversationID,
			Sender:       m.SenderID,
			Receiver:     m.ReceiverID,
			Body:         m.Body,
			Kind:         string(m.Kind),
			Attachments:  m.Attachments,
			Read:         m.Read,
			TS:           m.CreatedAt.Unix(),
		})
	}
	c.JSON(stdhttp.StatusOK, gin.H{"messages": out})
}

type publishEventRequest struct {
	Kind    string          `json:"kind" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

// PublishEvent pushes a platform live-update (new post, interest count)
// to every connection subscribed to the events topic.
func (h *APIHandler) PublishEvent(c *gin.Context) {
	var req publishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	h.hub.PublishUpdate(req.Kind, req.Payload)
	c.JSON(stdhttp.StatusAccepted, gin.H{"status": "published"})
}

type createUserRequest struct {
	ID     string `json:"id" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Banned bool   `json:"banned"`
}

// CreateUser provisions an identity record synced from the platform.
func (h *APIHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	u := &store.User{ID: req.ID, Name: req.Name, Banned: req.Banned}
	if err := h.store.CreateUser(c.Request.Context(), u); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.log.Error().Err(err).Str("user_id", req.ID).Msg("create user")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "failed to create user"})
		return
	}
	c.JSON(stdhttp.StatusCreated, gin.H{"id": u.ID})
}
