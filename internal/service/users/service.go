package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richgram/richgram-server/internal/store"
)

// Common errors for user operations.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrInvalidUsername = errors.New("invalid username")
	ErrEmptyQuery      = errors.New("search query must not be empty")
	ErrNoChanges       = errors.New("nothing to update")
)

// searchLimit bounds the result set of a username search.
const searchLimit = 20

// SessionRenamer rebinds live chat sessions after a username change. The
// hub implements it.
type SessionRenamer interface {
	RenameSession(oldName, newName string)
}

// Service provides profile lookups, search and profile updates.
type Service struct {
	store   store.Store
	renamer SessionRenamer
}

// New creates a users service. renamer may be nil when no live sessions
// exist (tests).
func New(st store.Store, renamer SessionRenamer) *Service {
	return &Service{
		store:   st,
		renamer: renamer,
	}
}

// Profile returns the account for a username.
func (s *Service) Profile(ctx context.Context, username string) (*store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// Search returns up to searchLimit users matching query, excluding the
// caller.
func (s *Service) Search(ctx context.Context, query, caller string) ([]*store.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	users, err := s.store.SearchUsers(ctx, query, caller, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// UpdateProfile renames the account and/or replaces its avatar. A rename
// cascades through friendships and message history in one store
// transaction and then rebinds any live session, so no reference to the
// old name survives.
func (s *Service) UpdateProfile(ctx context.Context, current, newUsername, newAvatar string) (*store.User, error) {
	newUsername = strings.TrimSpace(newUsername)
	rename := newUsername != "" && newUsername != current
	if !rename && newAvatar == "" {
		return nil, ErrNoChanges
	}

	name := current
	if rename {
		if len(newUsername) < 3 || len(newUsername) > 32 {
			return nil, ErrInvalidUsername
		}
		if err := s.store.RenameUser(ctx, current, newUsername); err != nil {
			switch {
			case errors.Is(err, store.ErrConflict):
				return nil, ErrUsernameTaken
			case errors.Is(err, store.ErrNotFound):
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("rename user: %w", err)
		}
		if s.renamer != nil {
			s.renamer.RenameSession(current, newUsername)
		}
		name = newUsername
	}

	if newAvatar != "" {
		if err := s.store.UpdateAvatar(ctx, name, newAvatar); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("update avatar: %w", err)
		}
	}

	return s.Profile(ctx, name)
}
