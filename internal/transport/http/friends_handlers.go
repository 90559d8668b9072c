package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/richgram/richgram-server/internal/core"
	"github.com/richgram/richgram-server/internal/service/friends"
)

// FriendsHandlers provides HTTP handlers for the friendship graph.
type FriendsHandlers struct {
	friends *friends.Service
	log     *zerolog.Logger
}

// NewFriendsHandlers creates a new friends handlers instance.
func NewFriendsHandlers(friendsService *friends.Service, logger *zerolog.Logger) *FriendsHandlers {
	return &FriendsHandlers{
		friends: friendsService,
		log:     logger,
	}
}

// SendRequestRequest represents the friend request body.
type SendRequestRequest struct {
	Username string `json:"username" binding:"required"`
}

// RespondRequest represents the accept/decline request body.
type RespondRequest struct {
	Username string `json:"username" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

// List handles listing accepted friends for the caller.
// GET /api/friends
func (h *FriendsHandlers) List(c *gin.Context) {
	caller, ok := currentUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	list, err := h.friends.ListFriends(c.Request.Context(), caller)
	if err != nil {
		h.log.Error().Err(err).Str("username", caller).Msg("failed to list friends")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		return
	}

	c.JSON(http.StatusOK, gin.H{"friends": usersToResponse(list)})
}

// ListRequests handles listing incoming pending requests for the caller.
// GET /api/friends/requests
func (h *FriendsHandlers) ListRequests(c *gin.Context) {
	caller, ok := currentUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	list, err := h.friends.ListIncomingRequests(c.Request.Context(), caller)
	if err != nil {
		h.log.Error().Err(err).Str("username", caller).Msg("failed to list friend requests")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": usersToResponse(list)})
}

// SendRequest handles sending a friend request from the caller.
// POST /api/friends
func (h *FriendsHandlers) SendRequest(c *gin.Context) {
	caller, ok := currentUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid friend request body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeValidation})
		return
	}

	if _, err := h.friends.SendRequest(c.Request.Context(), caller, req.Username); err != nil {
		switch {
		case errors.Is(err, friends.ErrSelfRequest), errors.Is(err, friends.ErrEmptyTarget):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: core.ErrCodeValidation})
		case errors.Is(err, friends.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found", Code: core.ErrCodeNotFound})
		case errors.Is(err, friends.ErrAlreadyFriends), errors.Is(err, friends.ErrRequestAlreadyExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: core.ErrCodeConflict})
		default:
			h.log.Error().Err(err).Str("from", caller).Str("to", req.Username).Msg("failed to send friend request")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		}
		return
	}

	h.log.Info().Str("from", caller).Str("to", req.Username).Msg("friend request sent")
	c.JSON(http.StatusCreated, gin.H{"status": "pending"})
}

// Respond handles accepting or declining a pending request.
// PUT /api/friends/respond
func (h *FriendsHandlers) Respond(c *gin.Context) {
	caller, ok := currentUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid respond request body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeValidation})
		return
	}

	if err := h.friends.Respond(c.Request.Context(), caller, req.Username, req.Action); err != nil {
		switch {
		case errors.Is(err, friends.ErrUnknownAction):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: core.ErrCodeValidation})
		case errors.Is(err, friends.ErrRequestNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "friend request not found", Code: core.ErrCodeNotFound})
		default:
			h.log.Error().Err(err).Str("user", caller).Str("from", req.Username).Msg("failed to respond to friend request")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		}
		return
	}

	h.log.Info().
		Str("user", caller).
		Str("from", req.Username).
		Str("action", req.Action).
		Msg("friend request answered")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
