package core

// Client is one live duplex session as seen by the core layer.
// UserID stays empty until the client announces its identity.
type Client struct {
	SessionID string
	UserID    string
	Commands  chan *Command
	Events    chan *Event
}

// NewClient constructs a client with initialized channels.
func NewClient(sessionID string) *Client {
	return &Client{
		SessionID: sessionID,
		Commands:  make(chan *Command, 8),
		Events:    make(chan *Event, 16),
	}
}

// deliver queues an event without blocking. Slow consumers lose events
// rather than stalling the sender.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
