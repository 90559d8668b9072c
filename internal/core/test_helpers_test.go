package core

import (
	"context"
	"testing"
	"time"

	"github.com/richgram/richgram-server/internal/store"
	"github.com/richgram/richgram-server/internal/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func startHub(t *testing.T, st store.Store) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(st, nil)
	go hub.Run(ctx)
	return hub
}

func seedUser(t *testing.T, st store.Store, name string) {
	t.Helper()

	if _, err := st.CreateUser(context.Background(), name, "hash", ""); err != nil {
		t.Fatalf("failed to seed user %s: %v", name, err)
	}
}

func seedFriends(t *testing.T, st store.Store, a, b string) {
	t.Helper()

	ctx := context.Background()
	if _, err := st.CreateFriendship(ctx, a, b); err != nil {
		t.Fatalf("failed to seed friendship %s/%s: %v", a, b, err)
	}
	if err := st.UpdateFriendshipStatus(ctx, a, b, store.FriendshipAccepted); err != nil {
		t.Fatalf("failed to accept friendship %s/%s: %v", a, b, err)
	}
}

// joinClient registers a session and binds it to a username.
func joinClient(t *testing.T, hub *Hub, name string) *Client {
	t.Helper()

	c := NewClient("test-" + name)
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandJoin, User: name}
	return c
}

// switchScope requests a scope switch and waits for the history event,
// which also guarantees the hub has processed everything queued before.
func switchScope(t *testing.T, c *Client, kind ScopeKind, with string) *Event {
	t.Helper()

	c.Commands <- &Command{Kind: CommandSwitchScope, ChatKind: kind, With: with}
	return mustEvent(t, c.Events, EventHistory)
}

func sendText(c *Client, text string) {
	c.Commands <- &Command{Kind: CommandSend, Payload: Payload{Kind: store.MessageText, Text: text}}
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
