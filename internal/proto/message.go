package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin   = "join"
	InboundTypeSwitch = "switch"
	InboundTypeSend   = "send"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Event names carried in the Outbound envelope.
const (
	EventNameHistory        = "history"
	EventNameMessage        = "message"
	EventNameFriendsChanged = "friends_changed"
)

// JoinData announces the session's identity with a token obtained from
// /api/login or /api/register.
type JoinData struct {
	Token string `json:"token"`
}

// SwitchData requests switching the session's active chat. Kind is
// "global" or "private"; With names the counterpart for private chats.
type SwitchData struct {
	Kind string `json:"kind"`
	With string `json:"with,omitempty"`
}

// SendData is a chat message for the session's active chat. Kind is
// "text", "image" or "audio".
type SendData struct {
	Kind    string `json:"kind"`
	Text    string `json:"text,omitempty"`
	FileURL string `json:"file_url,omitempty"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is one delivered chat message.
type EventMessage struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	From    string `json:"from"`
	With    string `json:"with,omitempty"`
	Text    string `json:"text,omitempty"`
	FileURL string `json:"file_url,omitempty"`
	TS      int64  `json:"ts"`
}

// EventHistory delivers the full history of a chat on switch, oldest
// first, always before any live message for that chat.
type EventHistory struct {
	Kind     string         `json:"kind"`
	With     string         `json:"with,omitempty"`
	Messages []EventMessage `json:"messages"`
}

// EventFriendsChanged tells the client its friend and request lists are
// stale; it re-fetches over the REST API.
type EventFriendsChanged struct{}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
