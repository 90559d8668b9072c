package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/richgram/richgram-server/internal/blob"
	"github.com/richgram/richgram-server/internal/core"
)

// UploadHandlers provides the file upload handler backing image and
// audio messages.
type UploadHandlers struct {
	blobs *blob.DiskStore
	log   *zerolog.Logger
}

// NewUploadHandlers creates a new upload handlers instance.
func NewUploadHandlers(blobs *blob.DiskStore, logger *zerolog.Logger) *UploadHandlers {
	return &UploadHandlers{
		blobs: blobs,
		log:   logger,
	}
}

// Upload accepts a multipart file, stores it and returns its URL. The
// URL is what clients put into image/audio message payloads.
// POST /api/upload
func (h *UploadHandlers) Upload(c *gin.Context) {
	caller, ok := currentUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing file field", Code: core.ErrCodeValidation})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		return
	}
	defer f.Close()

	url, err := h.blobs.Save(f)
	if err != nil {
		if errors.Is(err, blob.ErrUnsupportedType) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: core.ErrCodeValidation})
			return
		}
		h.log.Error().Err(err).Str("username", caller).Msg("failed to store upload")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		return
	}

	h.log.Info().Str("username", caller).Str("url", url).Msg("file uploaded")
	c.JSON(http.StatusCreated, gin.H{"file_url": url})
}
