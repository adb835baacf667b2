// Package storage keeps uploaded and generated audio on local disk and
// hands out URLs under a public prefix served by the API.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// ErrInvalidKey is returned for keys or URLs that would escape the root.
var ErrInvalidKey = errors.New("invalid blob key")

// LocalStore writes blobs under root and addresses them as publicURL/key.
type LocalStore struct {
	root      string
	publicURL string
	logger    *slog.Logger
}

var _ ports.BlobStore = (*LocalStore)(nil)

// NewLocalStore creates root if needed. publicURL is the prefix the HTTP
// layer serves root under, e.g. "/media".
func NewLocalStore(root, publicURL string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	return &LocalStore{
		root:      root,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger.With("component", "blob_store"),
	}, nil
}

// Root returns the directory blobs are written to.
func (s *LocalStore) Root() string {
	return s.root
}

// Put streams data to key atomically and returns its public URL.
func (s *LocalStore) Put(ctx context.Context, data io.Reader, mimeType, key string) (string, error) {
	finalPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return "", fmt.Errorf("creating blob directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(finalPath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp blob: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmpFile, contextReader{ctx: ctx, r: data})
	if err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("writing blob: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("closing temp blob: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming blob to %s: %w", key, err)
	}
	success = true

	s.logger.Debug("blob stored", "key", key, "mime_type", mimeType, "bytes", n)
	return s.publicURL + "/" + path.Clean(key), nil
}

// Open reads a blob back by the URL Put returned.
func (s *LocalStore) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	key, ok := strings.CutPrefix(url, s.publicURL+"/")
	if !ok {
		return nil, fmt.Errorf("%w: %s is not under %s", ErrInvalidKey, url, s.publicURL)
	}
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening blob %s: %w", key, err)
	}
	return f, nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
