package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/richgram/richgram-server/internal/store"
)

// Hub is the channel router and session registry. All session commands,
// registrations and friendship notifications funnel into one goroutine,
// so message append order and fan-out order are the same for every scope
// and no subscription set is ever read mid-mutation.
type Hub struct {
	store store.Store
	log   zerolog.Logger

	register      chan *Client
	unregister    chan *Client
	commands      chan clientCommand
	friendChanges chan []string
	renames       chan [2]string
	done          chan struct{}

	clients     map[*Client]struct{}
	subscribers map[string]map[*Client]struct{}
	sessions    map[string]map[*Client]struct{}
}

type clientCommand struct {
	client *Client
	cmd    *Command
}

// NewHub constructs a hub backed by the given store. A nil logger is
// replaced with a no-op logger, which tests rely on.
func NewHub(st store.Store, logger *zerolog.Logger) *Hub {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Hub{
		store:         st,
		log:           lg,
		register:      make(chan *Client, 8),
		unregister:    make(chan *Client, 8),
		commands:      make(chan clientCommand, 64),
		friendChanges: make(chan []string, 16),
		renames:       make(chan [2]string, 4),
		done:          make(chan struct{}),
		clients:       make(map[*Client]struct{}),
		subscribers:   make(map[string]map[*Client]struct{}),
		sessions:      make(map[string]map[*Client]struct{}),
	}
}

// Run processes hub traffic until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			go h.pump(ctx, client)
		case client := <-h.unregister:
			h.removeClient(client)
		case cc := <-h.commands:
			if _, ok := h.clients[cc.client]; !ok {
				continue
			}
			h.handleCommand(ctx, cc.client, cc.cmd)
		case users := <-h.friendChanges:
			h.notifyFriendsChanged(users)
		case pair := <-h.renames:
			h.renameSessions(pair[0], pair[1])
		case <-ctx.Done():
			return
		}
	}
}

// RegisterClient adds a session to the hub.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient removes a session; safe to call at any point, and
// delivery to the session stops immediately after it is processed.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// NotifyFriendsChanged pushes a friends_changed event to every live
// session of the given users. The friends service calls this after each
// successful request/accept/decline.
func (h *Hub) NotifyFriendsChanged(users ...string) {
	select {
	case h.friendChanges <- users:
	case <-h.done:
	}
}

// RenameSession rebinds live sessions of oldName to newName, keeping
// their private-scope subscriptions pointed at the renamed identity.
func (h *Hub) RenameSession(oldName, newName string) {
	select {
	case h.renames <- [2]string{oldName, newName}:
	case <-h.done:
	}
}

// pump forwards one session's commands into the hub loop, preserving
// their order and never interleaving commands within a session.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if c.subscribed {
		h.unsubscribe(c)
	}
	if c.Name != "" {
		if set := h.sessions[c.Name]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.sessions, c.Name)
			}
		}
	}
	close(c.Events)
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoin:
		h.handleJoin(c, cmd.User)
	case CommandSwitchScope:
		h.handleSwitchScope(ctx, c, cmd.ChatKind, cmd.With)
	case CommandSend:
		h.handleSend(ctx, c, cmd.Payload)
	default:
		h.sendError(c, coreError(ErrCodeValidation, "unknown command"))
	}
}

func (h *Hub) handleJoin(c *Client, user string) {
	if c.joined() {
		h.sendError(c, coreError(ErrCodeInvalidState, ErrAlreadyJoined.Error()))
		return
	}
	if user == "" {
		h.sendError(c, coreError(ErrCodeValidation, "username is required"))
		return
	}
	c.Name = user
	set := h.sessions[user]
	if set == nil {
		set = make(map[*Client]struct{})
		h.sessions[user] = set
	}
	set[c] = struct{}{}
	h.log.Debug().Str("client_id", c.ID).Str("user", user).Msg("session joined")
}

func (h *Hub) handleSwitchScope(ctx context.Context, c *Client, kind ScopeKind, with string) {
	if !c.joined() {
		h.sendError(c, coreError(ErrCodeInvalidState, ErrNotJoined.Error()))
		return
	}

	scope, cerr := ResolveScope(kind, c.Name, with)
	if cerr != nil {
		h.sendError(c, cerr)
		return
	}

	history, err := h.loadHistory(ctx, scope)
	if err != nil {
		h.log.Error().Err(err).Str("scope", scope.Key()).Msg("load history")
		h.sendError(c, coreError(ErrCodeInternal, "failed to load history"))
		return
	}

	// The history event is queued before the session enters the
	// subscriber set, so it always precedes live fan-out for the new
	// scope: no gaps, no duplicated early messages.
	if c.subscribed {
		h.unsubscribe(c)
	}
	ev := &Event{Kind: EventHistory, Scope: scope, Messages: history}
	if scope.Kind == ScopePrivate {
		ev.With = scope.Other(c.Name)
	}
	h.send(c, ev)
	h.subscribe(c, scope)
}

func (h *Hub) handleSend(ctx context.Context, c *Client, payload Payload) {
	if !c.joined() {
		h.sendError(c, coreError(ErrCodeInvalidState, ErrNotJoined.Error()))
		return
	}
	if !c.subscribed {
		h.sendError(c, coreError(ErrCodeInvalidState, ErrNoActiveScope.Error()))
		return
	}
	if cerr := payload.Validate(); cerr != nil {
		h.sendError(c, cerr)
		return
	}

	scope := c.scope
	if scope.Kind == ScopePrivate {
		accepted, err := h.store.IsAccepted(ctx, scope.A, scope.B)
		if err != nil {
			h.log.Error().Err(err).Str("scope", scope.Key()).Msg("check friendship")
			h.sendError(c, coreError(ErrCodeInternal, "failed to check friendship"))
			return
		}
		if !accepted {
			h.sendError(c, coreError(ErrCodeForbidden, "you can only message accepted friends"))
			return
		}
	}

	rec := &store.Message{
		Sender:    c.Name,
		Kind:      payload.Kind,
		Body:      payload.Text,
		FileURL:   payload.FileURL,
		CreatedAt: time.Now().UTC(),
	}
	if scope.Kind == ScopePrivate {
		rec.Receiver = scope.Other(c.Name)
	}
	if err := h.store.AppendMessage(ctx, rec); err != nil {
		h.log.Error().Err(err).Str("sender", c.Name).Msg("append message")
		h.sendError(c, coreError(ErrCodeInternal, "failed to persist message"))
		return
	}

	msg := messageFromRecord(rec, scope)
	for sub := range h.subscribers[scope.Key()] {
		ev := &Event{Kind: EventMessage, Scope: scope, Message: msg}
		if scope.Kind == ScopePrivate {
			ev.With = scope.Other(sub.Name)
		}
		h.send(sub, ev)
	}
}

func (h *Hub) loadHistory(ctx context.Context, scope Scope) ([]Message, error) {
	var (
		records []*store.Message
		err     error
	)
	if scope.Kind == ScopeGlobal {
		records, err = h.store.ListGlobalMessages(ctx)
	} else {
		records, err = h.store.ListPrivateMessages(ctx, scope.A, scope.B)
	}
	if err != nil {
		return nil, err
	}

	history := make([]Message, 0, len(records))
	for _, rec := range records {
		history = append(history, messageFromRecord(rec, scope))
	}
	return history, nil
}

func (h *Hub) subscribe(c *Client, scope Scope) {
	key := scope.Key()
	set := h.subscribers[key]
	if set == nil {
		set = make(map[*Client]struct{})
		h.subscribers[key] = set
	}
	set[c] = struct{}{}
	c.subscribed = true
	c.scope = scope
}

func (h *Hub) unsubscribe(c *Client) {
	key := c.scope.Key()
	if set := h.subscribers[key]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subscribers, key)
		}
	}
	c.subscribed = false
	c.scope = Scope{}
}

func (h *Hub) notifyFriendsChanged(users []string) {
	for _, user := range users {
		for c := range h.sessions[user] {
			h.send(c, &Event{Kind: EventFriendsChanged})
		}
	}
}

// renameSessions moves live sessions to the new identity and re-keys any
// private subscription that referenced the old name, on either side of
// the pair.
func (h *Hub) renameSessions(oldName, newName string) {
	if set, ok := h.sessions[oldName]; ok {
		delete(h.sessions, oldName)
		h.sessions[newName] = set
		for c := range set {
			c.Name = newName
		}
	}

	for c := range h.clients {
		if !c.subscribed || c.scope.Kind != ScopePrivate {
			continue
		}
		if c.scope.A != oldName && c.scope.B != oldName {
			continue
		}
		other := c.scope.Other(oldName)
		h.unsubscribe(c)
		h.subscribe(c, PrivateScope(newName, other))
	}
}

func (h *Hub) sendError(c *Client, cerr *CoreError) {
	h.send(c, &Event{Kind: EventError, Error: cerr})
}

func (h *Hub) send(c *Client, event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer; one stuck session must not block
		// delivery to the rest.
		h.log.Warn().Str("client_id", c.ID).Msg("event dropped for slow consumer")
	}
}
