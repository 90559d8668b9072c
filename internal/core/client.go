package core

// Client is a live session as seen by the hub. A session starts with no
// identity, binds one on join, and holds at most one scope subscription.
// Name, subscribed and scope are owned by the hub goroutine after
// registration; the transport only reads ID and uses the channels.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	Name       string
	subscribed bool
	scope      Scope
}

// NewClient constructs an unbound session with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
	}
}

func (c *Client) joined() bool {
	return c.Name != ""
}
