package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), "/media/", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store
}

func TestLocalStore_PutOpen(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	url, err := store.Put(ctx, strings.NewReader("RIFF"), "audio/wav", "voice-messages/1777636800000-note.wav")
	require.NoError(t, err)
	assert.Equal(t, "/media/voice-messages/1777636800000-note.wav", url)

	_, err = os.Stat(filepath.Join(store.Root(), "voice-messages", "1777636800000-note.wav"))
	require.NoError(t, err)

	rc, err := store.Open(ctx, url)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))
}

func TestLocalStore_RejectsEscapes(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.Put(ctx, strings.NewReader("x"), "audio/wav", "../outside.wav")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = store.Open(ctx, "/media/../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = store.Open(ctx, "https://elsewhere.test/a.mp3")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStore_CancelledPutLeavesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := newStore(t)

	_, err := store.Put(ctx, strings.NewReader("data"), "audio/mpeg", "speech/1-a.mp3")
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(filepath.Join(store.Root(), "speech"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
