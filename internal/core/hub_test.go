package core

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/campuslink/realtime/internal/identity"
)

func startHub(t *testing.T, env *testEnv) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go env.hub.Run(ctx)
}

func announce(c *Client, user string) {
	c.Commands <- &Command{Kind: CommandAnnounce, User: user}
}

func TestHubAnnounceBroadcastsPresence(t *testing.T) {
	env := newTestEnv(t, newMemStore("u1", "u2"), identity.Config{})
	startHub(t, env)

	a := NewClient("sa")
	b := NewClient("sb")
	env.hub.RegisterClient(a)
	env.hub.RegisterClient(b)

	announce(a, "u1")

	ev := mustEvent(t, b.Events, EventPresenceChanged)
	if ev.User != "u1" || !ev.Online {
		t.Fatalf("unexpected presence event: %+v", ev)
	}

	// The announcer sees its own presence event and snapshot too.
	mustEvent(t, a.Events, EventPresenceChanged)
	mustEvent(t, a.Events, EventOnlineUsers)

	announce(b, "u2")

	ev = mustEvent(t, a.Events, EventPresenceChanged)
	if ev.User != "u2" || !ev.Online {
		t.Fatalf("unexpected presence event: %+v", ev)
	}

	snapshot := mustEvent(t, a.Events, EventOnlineUsers)
	if !reflect.DeepEqual(snapshot.Users, []string{"u1", "u2"}) {
		t.Fatalf("unexpected snapshot: %v", snapshot.Users)
	}
}

func TestHubAnnounceUnknownUser(t *testing.T) {
	env := newTestEnv(t, newMemStore("u1"), identity.Config{})
	startHub(t, env)

	a := NewClient("sa")
	env.hub.RegisterClient(a)

	announce(a, "ghost")

	ev := mustEvent(t, a.Events, EventSendError)
	if ev.Error == nil || ev.Error.Code != ErrCodeUnknownUser {
		t.Fatalf("expected unknown_user error, got %+v", ev)
	}
	if _, online := env.presence.Lookup("ghost"); online {
		t.Fatal("failed announce must not record presence")
	}
}

func TestHubSendToSubscribedReceiver(t *testing.T) {
	env := newTestEnv(t, newMemStore("u1", "u2"), identity.Config{})
	startHub(t, env)

	a := NewClient("sa")
	b := NewClient("sb")
	env.hub.RegisterClient(a)
	env.hub.RegisterClient(b)
	announce(a, "u1")
	announce(b, "u2")

	conv := ConversationID("u1", "u2")
	b.Commands <- &Command{Kind: CommandJoinTopic, Topic: conv}

	// Wait until the join is processed before sending.
	waitFor(t, func() bool { return env.broadcaster.Subscribed(conv, "sb") })

	a.Commands <- &Command{Kind: CommandSendMessage, Send: &SendRequest{
		SenderID:   "u1",
		ReceiverID: "u2",
		Body:       "hi",
	}}

	ev := mustEvent(t, b.Events, EventMessageReceived)
	if ev.Message.Body != "hi" || ev.Message.SenderID != "u1" {
		t.Fatalf("unexpected delivery: %+v", ev.Message)
	}
	mustNoEvent(t, b.Events, EventNewMessageNotice, 100*time.Millisecond)
}

func TestHubSendNoticeToOnlineUnsubscribedReceiver(t *testing.T) {
	env := newTestEnv(t, newMemStore("u1", "u2"), identity.Config{})
	startHub(t, env)

	a := NewClient("sa")
	b := NewClient("sb")
	env.hub.RegisterClient(a)
	env.hub.RegisterClient(b)
	announce(a, "u1")
	announce(b, "u2")
	waitFor(t, func() bool {
		_, online := env.presence.Lookup("u2")
		return online
	})

	a.Commands <- &Command{Kind: CommandSendMessage, Send: &SendRequest{
		SenderID:   "u1",
		ReceiverID: "u2",
		Body:       "hi",
	}}

	ev := mustEvent(t, b.Events, EventNewMessageNotice)
	if ev.User != "u1" || ev.Message.Body != "hi" {
		t.Fatalf("unexpected notice: %+v", ev)
	}
}

func TestHubSendEmptyBodyReportsErrorToSenderOnly(t *testing.T) {
	env := newTestEnv(t, newMemStore("u1", "u2"), identity.Config{})
	startHub(t, env)

	a := NewClient("sa")
	b := NewClient("sb")
	env.hub.RegisterClient(a)
	env.hub.RegisterClient(b)
	announce(a, "u1")
	announce(b, "u2")

	a.Commands <- &Command{Kind: CommandSendMessage, Send: &SendRequest{
		SenderID:   "u1",
		ReceiverID: "u2",
	}}

	ev := mustEvent(t, a.Events, EventSendError)
	if ev.Error == nil || ev.Error.Code != ErrCodeValidation {
		t.Fatalf("expected validation error, got %+v", ev)
	}
	mustNoEvent(t, b.Events, EventSendError, 100*time.Millisecond)

	if env.store.savedCount() != 0 {
		t.Fatal("rejected send must not persist a record")
	}
}

func TestHubTypingNotEchoedToOrigin(t *testing.T) {
	env := newTestEnv(t, newMemStore("u1", "u2"), identity.Config{})
	startHub(t, env)

	a := NewClient("sa")
	b := NewClient("sb")
	env.hub.RegisterClient(a)
	env.hub.RegisterClient(b)

	conv := ConversationID("u1", "u2")
	a.Commands <- &Command{Kind: CommandJoinTopic, Topic: conv}
	b.Commands <- &Command{Kind: CommandJoinTopic, Topic: conv}
	waitFor(t, func() bool {
		return env.broadcaster.Subscribed(conv, "sa") && env.broadcaster.Subscribed(conv, "sb")
	})

	a.Commands <- &Command{Kind: CommandTyping, Conversation: conv, User: "u1", IsTyping: true}

	ev := mustEvent(t, b.Events, EventTypingStatus)
	if ev.User != "u1" || !ev.IsTyping {
		t.Fatalf("unexpected typing event: %+v", ev)
	}
	mustNoEvent(t, a.Events, EventTypingStatus, 100*time.Millisecond)
}

func TestHubDisconnectCleansUp(t *testing.T) {
	env := newTestEnv(t, newMemStore("u1", "u2"), identity.Config{})
	startHub(t, env)

	a := NewClient("sa")
	b := NewClient("sb")
	env.hub.RegisterClient(a)
	env.hub.RegisterClient(b)
	announce(a, "u1")
	announce(b, "u2")

	conv := ConversationID("u1", "u2")
	a.Commands <- &Command{Kind: CommandJoinTopic, Topic: conv}
	waitFor(t, func() bool { return env.broadcaster.Subscribed(conv, "sa") })

	env.hub.UnregisterClient(a)

	ev := mustEvent(t, b.Events, EventPresenceChanged)
	for ev.Online || ev.User != "u1" {
		ev = mustEvent(t, b.Events, EventPresenceChanged)
	}

	if _, online := env.presence.Lookup("u1"); online {
		t.Fatal("presence entry survived disconnect")
	}
	if env.broadcaster.Subscribed(conv, "sa") {
		t.Fatal("topic subscription survived disconnect")
	}

	// A second teardown for the same session must be a no-op.
	env.hub.UnregisterClient(a)
	mustNoEvent(t, b.Events, EventPresenceChanged, 100*time.Millisecond)
}

func TestHubReannounceReleasesPreviousIdentity(t *testing.T) {
	env := newTestEnv(t, newMemStore("u1", "u2"), identity.Config{})
	startHub(t, env)

	a := NewClient("sa")
	b := NewClient("sb")
	env.hub.RegisterClient(a)
	env.hub.RegisterClient(b)

	announce(a, "u1")
	waitFor(t, func() bool {
		_, online := env.presence.Lookup("u1")
		return online
	})

	// Switching identity on the same connection takes u1 offline.
	announce(a, "u2")

	ev := mustEvent(t, b.Events, EventPresenceChanged)
	for ev.Online || ev.User != "u1" {
		ev = mustEvent(t, b.Events, EventPresenceChanged)
	}
	if _, online := env.presence.Lookup("u1"); online {
		t.Fatal("old identity still registered after re-announce")
	}
	if sid, online := env.presence.Lookup("u2"); !online || sid != "sa" {
		t.Fatalf("expected u2 online on sa, got %q %v", sid, online)
	}

	// Disconnecting now leaves no entry for either identity.
	env.hub.UnregisterClient(a)
	waitFor(t, func() bool {
		_, online := env.presence.Lookup("u2")
		return !online
	})
	if _, online := env.presence.Lookup("u1"); online {
		t.Fatal("stale entry for released identity after disconnect")
	}
	if got := env.presence.ListOnline(); len(got) != 0 {
		t.Fatalf("expected empty snapshot, got %v", got)
	}
}

func TestHubStrictSenderMismatch(t *testing.T) {
	env := newTestEnv(t, newMemStore("u1", "u2"), identity.Config{StrictSender: true})
	startHub(t, env)

	a := NewClient("sa")
	env.hub.RegisterClient(a)
	announce(a, "u1")
	mustEvent(t, a.Events, EventOnlineUsers)

	a.Commands <- &Command{Kind: CommandSendMessage, Send: &SendRequest{
		SenderID:   "u2",
		ReceiverID: "u1",
		Body:       "spoofed",
	}}

	ev := mustEvent(t, a.Events, EventSendError)
	if ev.Error == nil || ev.Error.Code != ErrCodeIdentityMismatch {
		t.Fatalf("expected identity_mismatch, got %+v", ev)
	}
	if env.store.savedCount() != 0 {
		t.Fatal("spoofed send must not persist")
	}
}

func TestHubAnnounceTokenRequiredWhenConfigured(t *testing.T) {
	secret := []byte("test-secret")
	env := newTestEnv(t, newMemStore("u1"), identity.Config{JWTSecret: secret})
	startHub(t, env)

	a := NewClient("sa")
	env.hub.RegisterClient(a)

	announce(a, "u1") // no token
	ev := mustEvent(t, a.Events, EventSendError)
	if ev.Error == nil || ev.Error.Code != ErrCodeIdentityMismatch {
		t.Fatalf("expected identity_mismatch, got %+v", ev)
	}

	token, err := identity.GenerateToken(secret, "u1", nil)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	a.Commands <- &Command{Kind: CommandAnnounce, User: "u1", Token: token}
	mustEvent(t, a.Events, EventOnlineUsers)

	if sid, online := env.presence.Lookup("u1"); !online || sid != "sa" {
		t.Fatalf("expected u1 online on sa, got %q %v", sid, online)
	}
}

func TestHubEventsTopicAnonymousJoin(t *testing.T) {
	env := newTestEnv(t, newMemStore(), identity.Config{})
	startHub(t, env)

	// Never announces an identity; public topics are still available.
	a := NewClient("sa")
	env.hub.RegisterClient(a)
	a.Commands <- &Command{Kind: CommandJoinTopic, Topic: EventsTopic}
	waitFor(t, func() bool { return env.broadcaster.Subscribed(EventsTopic, "sa") })

	env.hub.PublishUpdate("new_post", []byte(`{"post_id":"p1"}`))

	ev := mustEvent(t, a.Events, EventUpdate)
	if ev.UpdateKind != "new_post" {
		t.Fatalf("unexpected update event: %+v", ev)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
