package core

import (
	"context"
	"testing"
	"time"
)

func TestHubGlobalBroadcast(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	seedUser(t, st, "bob")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	bob := joinClient(t, hub, "bob")

	hist := switchScope(t, alice, ScopeGlobal, "")
	if len(hist.Messages) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(hist.Messages))
	}
	switchScope(t, bob, ScopeGlobal, "")

	sendText(alice, "hi all")

	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventMessage)
		if ev.Message.Sender != "alice" || ev.Message.Text != "hi all" {
			t.Fatalf("unexpected message event: %+v", ev.Message)
		}
		if ev.Message.ID == 0 {
			t.Fatalf("expected assigned message id")
		}
		if ev.Scope.Kind != ScopeGlobal {
			t.Fatalf("expected global scope, got %+v", ev.Scope)
		}
	}
}

func TestHubDoubleJoinProducesError(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	alice.Commands <- &Command{Kind: CommandJoin, User: "alice"}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeInvalidState {
		t.Fatalf("expected invalid_state error, got %+v", ev)
	}
}

func TestHubSendWithoutJoinProducesError(t *testing.T) {
	st := newTestStore(t)
	hub := startHub(t, st)

	c := NewClient("anon")
	hub.RegisterClient(c)
	sendText(c, "hi")

	ev := mustEvent(t, c.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeInvalidState {
		t.Fatalf("expected invalid_state error, got %+v", ev)
	}
}

func TestHubSendWithoutScopeProducesError(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	sendText(alice, "hi")

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeInvalidState {
		t.Fatalf("expected invalid_state error, got %+v", ev)
	}
}

func TestHubPrivateSendRequiresAcceptedFriendship(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	seedUser(t, st, "bob")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	switchScope(t, alice, ScopePrivate, "bob")
	sendText(alice, "let me in")

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeForbidden {
		t.Fatalf("expected forbidden error, got %+v", ev)
	}

	msgs, err := st.ListPrivateMessages(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("list private messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("rejected message must not be persisted, got %d", len(msgs))
	}
}

func TestHubPrivateChat(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	seedUser(t, st, "bob")
	seedFriends(t, st, "alice", "bob")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	bob := joinClient(t, hub, "bob")
	switchScope(t, alice, ScopePrivate, "bob")
	switchScope(t, bob, ScopePrivate, "alice")

	sendText(bob, "hi alice")

	ev := mustEvent(t, alice.Events, EventMessage)
	if ev.Message.Sender != "bob" || ev.Message.Text != "hi alice" {
		t.Fatalf("unexpected message event: %+v", ev.Message)
	}
	if ev.Scope.Kind != ScopePrivate {
		t.Fatalf("expected private scope, got %+v", ev.Scope)
	}

	msgs, err := st.ListPrivateMessages(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("list private messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Receiver != "alice" {
		t.Fatalf("unexpected persisted messages: %+v", msgs)
	}
}

func TestHubHistoryPrecedesLiveMessages(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	seedUser(t, st, "bob")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	switchScope(t, alice, ScopeGlobal, "")
	sendText(alice, "x1")
	mustEvent(t, alice.Events, EventMessage)

	bob := joinClient(t, hub, "bob")
	hist := switchScope(t, bob, ScopeGlobal, "")
	if len(hist.Messages) != 1 || hist.Messages[0].Text != "x1" {
		t.Fatalf("unexpected history: %+v", hist.Messages)
	}

	sendText(alice, "x2")
	ev := mustEvent(t, bob.Events, EventMessage)
	if ev.Message.Text != "x2" {
		t.Fatalf("unexpected live message: %+v", ev.Message)
	}
	if ev.Message.ID <= hist.Messages[0].ID {
		t.Fatalf("live message id %d not after history id %d", ev.Message.ID, hist.Messages[0].ID)
	}
}

func TestHubGlobalOrderFollowsSequence(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	seedUser(t, st, "bob")
	seedUser(t, st, "carol")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	bob := joinClient(t, hub, "bob")
	carol := joinClient(t, hub, "carol")
	switchScope(t, alice, ScopeGlobal, "")
	switchScope(t, bob, ScopeGlobal, "")
	switchScope(t, carol, ScopeGlobal, "")

	sendText(alice, "x1")
	sendText(bob, "y1")
	sendText(alice, "x2")

	var lastID int64
	for i := 0; i < 3; i++ {
		ev := mustEvent(t, carol.Events, EventMessage)
		if ev.Message.ID <= lastID {
			t.Fatalf("message %d delivered out of order (id %d after %d)", i, ev.Message.ID, lastID)
		}
		lastID = ev.Message.ID
	}
}

func TestHubSwitchReplacesSubscription(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	seedUser(t, st, "bob")
	seedUser(t, st, "carol")
	seedFriends(t, st, "alice", "carol")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	bob := joinClient(t, hub, "bob")
	switchScope(t, alice, ScopeGlobal, "")
	switchScope(t, bob, ScopeGlobal, "")

	switchScope(t, alice, ScopePrivate, "carol")

	sendText(bob, "global only")
	mustEvent(t, bob.Events, EventMessage)
	mustNoEvent(t, alice.Events, EventMessage)
}

func TestHubSwitchToUnknownKindProducesError(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	alice.Commands <- &Command{Kind: CommandSwitchScope, ChatKind: "group", With: ""}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeValidation {
		t.Fatalf("expected validation error, got %+v", ev)
	}
}

func TestHubFriendsChangedPush(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	// The history round-trip guarantees the join was processed.
	switchScope(t, alice, ScopeGlobal, "")

	hub.NotifyFriendsChanged("alice", "bob")
	mustEvent(t, alice.Events, EventFriendsChanged)
}

func TestHubRenameSessionRekeysPrivateScope(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	seedUser(t, st, "bob")
	seedFriends(t, st, "alice", "bob")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	bob := joinClient(t, hub, "bob")
	switchScope(t, alice, ScopePrivate, "bob")
	switchScope(t, bob, ScopePrivate, "alice")

	if err := st.RenameUser(context.Background(), "alice", "alicia"); err != nil {
		t.Fatalf("rename user: %v", err)
	}
	hub.RenameSession("alice", "alicia")
	time.Sleep(50 * time.Millisecond)

	sendText(bob, "still you?")

	ev := mustEvent(t, alice.Events, EventMessage)
	if ev.Message.Sender != "bob" {
		t.Fatalf("unexpected message event: %+v", ev.Message)
	}
	if ev.With != "bob" {
		t.Fatalf("expected counterpart %q, got %q", "bob", ev.With)
	}

	msgs, err := st.ListPrivateMessages(context.Background(), "alicia", "bob")
	if err != nil {
		t.Fatalf("list private messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Receiver != "alicia" {
		t.Fatalf("expected message addressed to renamed user, got %+v", msgs)
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, "alice")
	seedUser(t, st, "bob")
	hub := startHub(t, st)

	alice := joinClient(t, hub, "alice")
	bob := joinClient(t, hub, "bob")
	switchScope(t, alice, ScopeGlobal, "")
	switchScope(t, bob, ScopeGlobal, "")

	hub.UnregisterClient(bob)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := <-bob.Events; !ok {
			break
		}
	}

	sendText(alice, "anyone there?")
	mustEvent(t, alice.Events, EventMessage)
}
