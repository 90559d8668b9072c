package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/richgram/richgram-server/internal/core"
	"github.com/richgram/richgram-server/internal/service/users"
	"github.com/richgram/richgram-server/internal/store"
)

// UserHandlers provides HTTP handlers for profiles and user search.
type UserHandlers struct {
	users *users.Service
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(usersService *users.Service, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		users: usersService,
		log:   logger,
	}
}

// UserResponse represents a public user profile.
type UserResponse struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// UpdateProfileRequest represents the profile update request body. Both
// fields are optional but at least one must be set.
type UpdateProfileRequest struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

func userToResponse(u *store.User) UserResponse {
	return UserResponse{
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
	}
}

func usersToResponse(list []*store.User) []UserResponse {
	out := make([]UserResponse, 0, len(list))
	for _, u := range list {
		out = append(out, userToResponse(u))
	}
	return out
}

// Search handles user search by username substring.
// GET /api/users/search?q=<query>
func (h *UserHandlers) Search(c *gin.Context) {
	caller, ok := currentUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	found, err := h.users.Search(c.Request.Context(), c.Query("q"), caller)
	if err != nil {
		if errors.Is(err, users.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "search query must not be empty", Code: core.ErrCodeValidation})
			return
		}
		h.log.Error().Err(err).Msg("failed to search users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": usersToResponse(found)})
}

// Profile handles public profile lookup.
// GET /api/users/:username
func (h *UserHandlers) Profile(c *gin.Context) {
	user, err := h.users.Profile(c.Request.Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found", Code: core.ErrCodeNotFound})
			return
		}
		h.log.Error().Err(err).Msg("failed to load profile")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		return
	}

	c.JSON(http.StatusOK, userToResponse(user))
}

// UpdateProfile handles renames and avatar changes for the caller.
// PUT /api/users/profile
func (h *UserHandlers) UpdateProfile(c *gin.Context) {
	caller, ok := currentUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid profile update request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeValidation})
		return
	}

	updated, err := h.users.UpdateProfile(c.Request.Context(), caller, req.Username, req.AvatarURL)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrNoChanges), errors.Is(err, users.ErrInvalidUsername):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: core.ErrCodeValidation})
		case errors.Is(err, users.ErrUsernameTaken):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "username already taken", Code: core.ErrCodeConflict})
		case errors.Is(err, users.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found", Code: core.ErrCodeNotFound})
		default:
			h.log.Error().Err(err).Str("username", caller).Msg("failed to update profile")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		}
		return
	}

	h.log.Info().Str("username", updated.Username).Msg("profile updated")
	c.JSON(http.StatusOK, userToResponse(updated))
}
