package core

// EventKind is a notification the hub emits to sessions.
type EventKind int

const (
	// EventHistory delivers the full message history of a scope right
	// after the session switches to it.
	EventHistory EventKind = iota
	// EventMessage delivers one fanned-out chat message.
	EventMessage
	// EventFriendsChanged tells the session its friend/request lists
	// changed and are worth re-fetching.
	EventFriendsChanged
	// EventError reports a domain error back to the session.
	EventError
)

// Event is sent to sessions to describe what happened.
type Event struct {
	Kind     EventKind
	Scope    Scope
	Message  Message
	Messages []Message // for EventHistory
	Error    *CoreError

	// With is the private-scope counterpart of the receiving session,
	// stamped by the hub at delivery time so it tracks live renames.
	// Empty for the global scope.
	With string
}
