package core

// CommandKind describes what the session wants to do.
type CommandKind int

const (
	// CommandJoin binds an authenticated username to the session.
	CommandJoin CommandKind = iota
	// CommandSwitchScope replaces the session's active chat, replaying
	// that chat's history first.
	CommandSwitchScope
	// CommandSend delivers a message to the session's active chat.
	CommandSend
)

// Command represents an action requested by a session.
type Command struct {
	Kind CommandKind

	// User is the identity to bind; set for CommandJoin. The transport
	// validates the token before handing the username to the hub.
	User string

	// ChatKind and With describe the requested scope for
	// CommandSwitchScope.
	ChatKind ScopeKind
	With     string

	// Payload carries the message for CommandSend.
	Payload Payload
}
