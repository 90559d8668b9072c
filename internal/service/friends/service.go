package friends

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/richgram/richgram-server/internal/store"
)

// Common errors for friend operations.
var (
	ErrEmptyTarget          = errors.New("target username must not be empty")
	ErrSelfRequest          = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrRequestAlreadyExists = errors.New("friend request already exists")
	ErrRequestNotFound      = errors.New("friend request not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrUnknownAction        = errors.New("unknown action")
)

// Responding actions.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// Notifier is called with the usernames whose friend/request lists
// changed after a successful mutation. The hub uses it to push a
// friends_changed event to live sessions; a nil notifier disables push.
type Notifier func(users ...string)

// Service owns the friend-request state machine. All writes to the
// friendship graph go through mu, so accept/decline/send on one pair
// cannot race each other.
type Service struct {
	store  store.Store
	notify Notifier

	mu sync.Mutex
}

// New creates a friends service.
func New(st store.Store, notify Notifier) *Service {
	return &Service{
		store:  st,
		notify: notify,
	}
}

// SendRequest sends a friend request from one user to another. It fails
// when the target is unknown or when any record for the pair already
// exists, pending in either direction or accepted.
func (s *Service) SendRequest(ctx context.Context, from, to string) (*store.Friendship, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, ErrEmptyTarget
	}
	if to == from {
		return nil, ErrSelfRequest
	}

	if _, err := s.store.GetUserByUsername(ctx, to); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetFriendship(ctx, from, to)
	if err == nil {
		if existing.Status == store.FriendshipAccepted {
			return nil, ErrAlreadyFriends
		}
		return nil, ErrRequestAlreadyExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check friendship: %w", err)
	}

	friendship, err := s.store.CreateFriendship(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("create friend request: %w", err)
	}

	s.fireNotify(from, to)
	return friendship, nil
}

// Respond accepts or declines the pending request sent by from to user.
// Accept requires the pending record to still exist; repeating it after
// consumption fails with ErrRequestNotFound. Decline deletes the record
// and is a no-op when the record is already gone.
func (s *Service) Respond(ctx context.Context, user, from, action string) error {
	if action != ActionAccept && action != ActionDecline {
		return ErrUnknownAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetFriendship(ctx, from, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if action == ActionDecline {
				return nil
			}
			return ErrRequestNotFound
		}
		return fmt.Errorf("lookup request: %w", err)
	}

	// Must be pending and directed at the responding user.
	if existing.Status != store.FriendshipPending || existing.Requester != from || existing.Addressee != user {
		return ErrRequestNotFound
	}

	switch action {
	case ActionAccept:
		if err := s.store.UpdateFriendshipStatus(ctx, from, user, store.FriendshipAccepted); err != nil {
			return fmt.Errorf("accept request: %w", err)
		}
	case ActionDecline:
		if err := s.store.DeleteFriendship(ctx, from, user); err != nil {
			return fmt.Errorf("decline request: %w", err)
		}
	}

	s.fireNotify(user, from)
	return nil
}

// ListFriends returns all accepted friends for a user.
func (s *Service) ListFriends(ctx context.Context, user string) ([]*store.User, error) {
	users, err := s.store.ListFriends(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return users, nil
}

// ListIncomingRequests returns the users with a pending request to user.
func (s *Service) ListIncomingRequests(ctx context.Context, user string) ([]*store.User, error) {
	users, err := s.store.ListIncomingRequests(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	return users, nil
}

// IsAccepted reports whether two users are accepted friends.
func (s *Service) IsAccepted(ctx context.Context, a, b string) (bool, error) {
	return s.store.IsAccepted(ctx, a, b)
}

func (s *Service) fireNotify(users ...string) {
	if s.notify != nil {
		s.notify(users...)
	}
}
