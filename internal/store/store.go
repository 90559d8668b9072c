package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by store implementations. Callers match them
// with errors.Is and translate to the API error taxonomy at the edge.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// User represents a registered account. The username is the public
// identifier everywhere else in the system; friendships and messages
// reference it directly.
type User struct {
	ID           int64
	Username     string
	AvatarURL    string
	PasswordHash string
	CreatedAt    time.Time
}

// FriendshipStatus defines the lifecycle state of a friendship record.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// Friendship is the single record for an unordered pair of users.
// Requester is the side that sent the request; once accepted the
// relationship is symmetric and the direction only matters historically.
type Friendship struct {
	ID        int64
	Requester string
	Addressee string
	Status    FriendshipStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageKind is the payload discriminator for a chat message.
type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
	MessageAudio MessageKind = "audio"
)

// Message is a persisted chat message. ID is assigned on append from a
// single monotonic counter shared by every scope, so append order across
// the whole system is totally defined. Receiver is empty for the global
// channel and the counterpart username for a private channel.
type Message struct {
	ID        int64
	Sender    string
	Receiver  string
	Kind      MessageKind
	Body      string
	FileURL   string
	CreatedAt time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser inserts a new user. Returns ErrConflict when the
	// username is taken.
	CreateUser(ctx context.Context, username, passwordHash, avatarURL string) (*User, error)

	// GetUserByUsername retrieves a user, or ErrNotFound.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers returns up to limit users whose username contains
	// query (case-insensitive), excluding the given username, ordered
	// by username.
	SearchUsers(ctx context.Context, query, excluding string, limit int) ([]*User, error)

	// RenameUser changes a username and cascades the new name through
	// friendships and messages in one transaction, so no record keeps a
	// reference to the old name. Returns ErrConflict when newName is
	// already taken and ErrNotFound when oldName does not exist.
	RenameUser(ctx context.Context, oldName, newName string) error

	// UpdateAvatar replaces the avatar URL for a user.
	UpdateAvatar(ctx context.Context, username, avatarURL string) error
}

// FriendshipStore handles the friendship graph.
type FriendshipStore interface {
	// CreateFriendship inserts a pending record with the given direction.
	CreateFriendship(ctx context.Context, requester, addressee string) (*Friendship, error)

	// GetFriendship finds the record for the unordered pair, or ErrNotFound.
	GetFriendship(ctx context.Context, a, b string) (*Friendship, error)

	// UpdateFriendshipStatus transitions the record with the exact
	// direction (requester -> addressee).
	UpdateFriendshipStatus(ctx context.Context, requester, addressee string, status FriendshipStatus) error

	// DeleteFriendship removes the record for the unordered pair.
	DeleteFriendship(ctx context.Context, a, b string) error

	// ListFriends returns the users with an accepted friendship with
	// username, on either side of the record.
	ListFriends(ctx context.Context, username string) ([]*User, error)

	// ListIncomingRequests returns the users with a pending request
	// addressed to username.
	ListIncomingRequests(ctx context.Context, username string) ([]*User, error)

	// IsAccepted reports whether the pair has an accepted friendship.
	IsAccepted(ctx context.Context, a, b string) (bool, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists a message and assigns its sequence number.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListGlobalMessages returns the full global history, oldest first.
	ListGlobalMessages(ctx context.Context) ([]*Message, error)

	// ListPrivateMessages returns the full history between a and b in
	// either direction, oldest first.
	ListPrivateMessages(ctx context.Context, a, b string) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	FriendshipStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
