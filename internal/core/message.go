package core

import (
	"strings"
	"time"

	"github.com/richgram/richgram-server/internal/store"
)

// Payload is the closed tagged variant a client may send: text with a
// body, or image/audio with an uploaded file URL.
type Payload struct {
	Kind    store.MessageKind
	Text    string
	FileURL string
}

// Validate rejects unknown tags and variant/field mismatches.
func (p Payload) Validate() *CoreError {
	switch p.Kind {
	case store.MessageText:
		if strings.TrimSpace(p.Text) == "" {
			return coreError(ErrCodeValidation, "text message must not be empty")
		}
	case store.MessageImage, store.MessageAudio:
		if strings.TrimSpace(p.FileURL) == "" {
			return coreError(ErrCodeValidation, "file_url is required for "+string(p.Kind)+" messages")
		}
	default:
		return coreError(ErrCodeValidation, "unknown message kind")
	}
	return nil
}

// Message is the domain model for a persisted chat message as delivered
// to subscribers.
type Message struct {
	ID        int64
	Sender    string
	Scope     Scope
	Kind      store.MessageKind
	Text      string
	FileURL   string
	CreatedAt time.Time
}

func messageFromRecord(rec *store.Message, scope Scope) Message {
	return Message{
		ID:        rec.ID,
		Sender:    rec.Sender,
		Scope:     scope,
		Kind:      rec.Kind,
		Text:      rec.Body,
		FileURL:   rec.FileURL,
		CreatedAt: rec.CreatedAt,
	}
}
