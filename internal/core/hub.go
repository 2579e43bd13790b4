package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/campuslink/realtime/internal/identity"
	"github.com/campuslink/realtime/internal/store"
)

// EventsTopic is the shared live-updates topic. Clients may join it
// anonymously to receive platform updates (new posts, interest counts).
const EventsTopic = "events"

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Hub drives the connection lifecycle: it owns client registration,
// identity announcement, topic membership and teardown, and routes
// commands to the relay and broadcaster. A single dispatcher goroutine
// processes lifecycle transitions and pure fan-out commands; commands
// that touch persistence run in their own goroutine so a stalled store
// call never blocks other connections.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand

	sessions    *SessionTable
	presence    *PresenceRegistry
	broadcaster *Broadcaster
	relay       *Relay
	identity    *identity.Service
	users       store.UserStore

	log *zerolog.Logger
}

// NewHub wires the hub with its collaborators.
func NewHub(sessions *SessionTable, presence *PresenceRegistry, broadcaster *Broadcaster, relay *Relay, ident *identity.Service, users store.UserStore, logger *zerolog.Logger) *Hub {
	return &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		commands:    make(chan clientCommand, 64),
		sessions:    sessions,
		presence:    presence,
		broadcaster: broadcaster,
		relay:       relay,
		identity:    ident,
		users:       users,
		log:         logger,
	}
}

// RegisterClient hands a freshly accepted connection to the dispatcher.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient triggers teardown for a connection. Safe to call
// more than once; teardown runs exactly once per session.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// OnlineUsers returns the current snapshot of online user ids.
func (h *Hub) OnlineUsers() []string {
	return h.presence.ListOnline()
}

// PublishUpdate pushes a platform live-update to the events topic.
// Called by the platform through the internal REST API.
func (h *Hub) PublishUpdate(kind string, payload json.RawMessage) {
	h.broadcaster.Publish(EventsTopic, &Event{
		Kind:       EventUpdate,
		UpdateKind: kind,
		Payload:    payload,
	})
}

// Run processes lifecycle and command events until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.sessions.Add(c)
			go h.pump(ctx, c)
			h.log.Debug().Str("session_id", c.SessionID).Msg("connection registered")

		case c := <-h.unregister:
			h.teardown(ctx, c)

		case cc := <-h.commands:
			h.handle(ctx, cc.client, cc.cmd)

		case <-ctx.Done():
			return
		}
	}
}

// pump forwards one connection's commands into the dispatcher.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for cmd := range c.Commands {
		select {
		case h.commands <- clientCommand{client: c, cmd: cmd}:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handle(ctx context.Context, c *Client, cmd *Command) {
	// Commands may still be in flight when a session tears down; they
	// must not resurrect registry or topic state for a dead connection.
	if _, ok := h.sessions.Get(c.SessionID); !ok {
		return
	}

	switch cmd.Kind {
	case CommandAnnounce:
		h.handleAnnounce(ctx, c, cmd)

	case CommandJoinTopic:
		h.broadcaster.Join(c, cmd.Topic)

	case CommandLeaveTopic:
		h.broadcaster.Leave(c, cmd.Topic)

	case CommandTyping:
		h.broadcaster.PublishExcept(cmd.Conversation, c, &Event{
			Kind:     EventTypingStatus,
			User:     cmd.User,
			IsTyping: cmd.IsTyping,
		})

	case CommandSendMessage:
		if cmd.Send == nil {
			h.log.Warn().Str("session_id", c.SessionID).Msg("send command without payload")
			return
		}
		if cerr := h.checkSender(c, cmd.Send.SenderID); cerr != nil {
			h.sendError(c, cerr)
			return
		}
		go func() {
			if _, cerr := h.relay.Send(ctx, cmd.Send); cerr != nil {
				h.sendError(c, cerr)
			}
		}()

	case CommandMarkRead:
		if cerr := h.checkSender(c, cmd.User); cerr != nil {
			h.sendError(c, cerr)
			return
		}
		go func() {
			if cerr := h.relay.MarkRead(ctx, c, cmd.Conversation, cmd.User); cerr != nil {
				h.sendError(c, cerr)
			}
		}()

	case CommandDeleteMessage:
		if c.UserID == "" {
			h.sendError(c, coreError(ErrCodeValidation, "announce identity before deleting messages"))
			return
		}
		byUser := c.UserID
		go func() {
			if cerr := h.relay.Delete(ctx, cmd.Conversation, cmd.MessageID, cmd.Scope, byUser); cerr != nil {
				h.sendError(c, cerr)
			}
		}()

	default:
		h.log.Warn().Int("kind", int(cmd.Kind)).Msg("unknown command kind")
	}
}

func (h *Hub) handleAnnounce(ctx context.Context, c *Client, cmd *Command) {
	if cmd.User == "" {
		h.log.Warn().Str("session_id", c.SessionID).Msg("announce without user id")
		return
	}

	if err := h.identity.Resolve(ctx, cmd.User); err != nil {
		code := ErrCodeUnknownUser
		if !errors.Is(err, identity.ErrUnknownUser) && !errors.Is(err, identity.ErrBanned) {
			code = ErrCodePersistence
		}
		h.sendError(c, coreError(code, err.Error()))
		return
	}
	if err := h.identity.VerifyAnnounce(cmd.User, cmd.Token); err != nil {
		h.sendError(c, coreError(ErrCodeIdentityMismatch, err.Error()))
		return
	}

	// Re-announcing a different identity releases the old one; the
	// registry must never keep an entry for an identity the
	// connection no longer carries.
	if c.UserID != "" && c.UserID != cmd.User {
		if h.presence.RecordOffline(c.UserID, c.SessionID) {
			h.log.Info().
				Str("session_id", c.SessionID).
				Str("user_id", c.UserID).
				Msg("user offline")
			h.broadcastAll(&Event{Kind: EventPresenceChanged, User: c.UserID, Online: false})
		}
	}

	c.UserID = cmd.User
	h.presence.RecordOnline(cmd.User, c.SessionID)
	h.touchLastActive(cmd.User)

	h.log.Info().
		Str("session_id", c.SessionID).
		Str("user_id", cmd.User).
		Msg("user online")

	h.broadcastAll(&Event{Kind: EventPresenceChanged, User: cmd.User, Online: true})
	h.broadcastAll(&Event{Kind: EventOnlineUsers, Users: h.presence.ListOnline()})
}

// teardown runs the disconnect sequence exactly once per session, even
// if the transport reports closure more than once.
func (h *Hub) teardown(_ context.Context, c *Client) {
	if !h.sessions.Remove(c.SessionID) {
		return
	}

	if c.UserID != "" {
		if h.presence.RecordOffline(c.UserID, c.SessionID) {
			h.log.Info().
				Str("session_id", c.SessionID).
				Str("user_id", c.UserID).
				Msg("user offline")
			h.broadcastAll(&Event{Kind: EventPresenceChanged, User: c.UserID, Online: false})
		}
		h.touchLastActive(c.UserID)
	}

	h.broadcaster.DropClient(c)
	h.log.Debug().Str("session_id", c.SessionID).Msg("connection closed")
}

// checkSender enforces the configurable trust policy. By default the
// payload identity is trusted as the upstream system does; in strict
// mode it must match the connection's announced identity.
func (h *Hub) checkSender(c *Client, claimed string) *CoreError {
	if !h.identity.Strict() {
		return nil
	}
	if c.UserID == "" || c.UserID != claimed {
		return coreError(ErrCodeIdentityMismatch, "sender does not match connection identity")
	}
	return nil
}

func (h *Hub) sendError(c *Client, cerr *CoreError) {
	if !c.deliver(&Event{Kind: EventSendError, Error: cerr}) {
		h.log.Warn().Str("session_id", c.SessionID).Msg("dropping error event for slow consumer")
	}
}

func (h *Hub) broadcastAll(ev *Event) {
	h.sessions.Each(func(c *Client) {
		if !c.deliver(ev) {
			h.log.Warn().Str("session_id", c.SessionID).Msg("dropping broadcast for slow consumer")
		}
	})
}

// touchLastActive stamps the user's liveness timestamp. Best-effort:
// failures are logged, never surfaced.
func (h *Hub) touchLastActive(userID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.users.TouchLastActive(ctx, userID); err != nil {
			h.log.Warn().Err(err).Str("user_id", userID).Msg("touch last_active")
		}
	}()
}
