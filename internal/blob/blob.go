package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrUnsupportedType is returned for uploads that are neither images nor
// audio.
var ErrUnsupportedType = errors.New("unsupported file type")

// maxUploadBytes caps a single upload.
const maxUploadBytes = 10 << 20

// DiskStore is the blob collaborator: it accepts uploaded files, writes
// them under a local directory and hands back a relative URL. The chat
// core only ever relays that URL inside image/audio payloads.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates the upload directory if needed. baseURL is the
// path prefix the HTTP server serves the directory under, e.g. /uploads.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Save reads the upload, sniffs its content type, and stores it under a
// random name with the extension the sniffer reports. Only image/* and
// audio/* content is accepted.
func (s *DiskStore) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return "", fmt.Errorf("upload exceeds %d bytes", maxUploadBytes)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") && !strings.HasPrefix(mtype.String(), "audio/") {
		return "", fmt.Errorf("%s: %w", mtype.String(), ErrUnsupportedType)
	}

	name := uuid.NewString() + mtype.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return s.baseURL + "/" + name, nil
}
