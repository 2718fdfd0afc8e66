package attachments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnetapp/carnet/internal/common"
	"github.com/carnetapp/carnet/internal/logging"
)

// fakeStorage is an in-memory blob.Storage for tests.
type fakeStorage struct {
	objects map[string][]byte
	fail    bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if f.fail {
		return "", errors.New("network down")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.objects[key] = data
	return key, nil
}

func (f *fakeStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.fail {
		return "", errors.New("network down")
	}
	if _, ok := f.objects[key]; !ok {
		return "", fs.ErrNotExist
	}
	return "https://blob.test/" + key + "?signed=1", nil
}

func (f *fakeStorage) Remove(ctx context.Context, key string) error {
	if f.fail {
		return errors.New("network down")
	}
	delete(f.objects, key)
	return nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newPipeline(t *testing.T, storage *fakeStorage) *Pipeline {
	t.Helper()
	p, err := NewPipeline(filepath.Join(t.TempDir(), "cache"), storage, time.Minute, testLogger())
	require.NoError(t, err)
	return p
}

func writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("image-bytes"), 0o600))
	return path
}

func TestCache_CopiesIntoCacheDir(t *testing.T) {
	p := newPipeline(t, newFakeStorage())
	src := writeSource(t, "photo.jpg")

	cached := p.Cache(context.Background(), src)

	assert.NotEqual(t, src, cached)
	assert.True(t, strings.HasSuffix(cached, "_photo.jpg"))
	data, err := os.ReadFile(cached)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
}

func TestCache_CollisionResistantNames(t *testing.T) {
	p := newPipeline(t, newFakeStorage())
	src := writeSource(t, "photo.jpg")

	a := p.Cache(context.Background(), src)
	b := p.Cache(context.Background(), src)
	assert.NotEqual(t, a, b)
}

func TestCache_FailureReturnsSourceUnchanged(t *testing.T) {
	p := newPipeline(t, newFakeStorage())
	missing := filepath.Join(t.TempDir(), "nope.jpg")

	got := p.Cache(context.Background(), missing)
	assert.Equal(t, missing, got)
}

func TestUpload_StoresUnderOwnerKey(t *testing.T) {
	storage := newFakeStorage()
	p := newPipeline(t, storage)
	src := writeSource(t, "invoice.jpg")

	remote := p.Upload(context.Background(), src, "user-1")

	require.NotEmpty(t, remote)
	assert.True(t, strings.HasPrefix(remote, "user-1/"))
	assert.True(t, strings.HasSuffix(remote, "_invoice.jpg"))
	assert.True(t, bytes.Equal(storage.objects[remote], []byte("image-bytes")))
}

func TestUpload_FailureYieldsEmptyPath(t *testing.T) {
	storage := newFakeStorage()
	storage.fail = true
	p := newPipeline(t, storage)
	src := writeSource(t, "invoice.jpg")

	assert.Empty(t, p.Upload(context.Background(), src, "user-1"))
}

func TestUpload_NoStorageConfigured(t *testing.T) {
	p, err := NewPipeline(filepath.Join(t.TempDir(), "cache"), nil, time.Minute, testLogger())
	require.NoError(t, err)
	assert.Empty(t, p.Upload(context.Background(), writeSource(t, "a.jpg"), "user-1"))
}

func TestResolveForDisplay_PrefersLocal(t *testing.T) {
	p := newPipeline(t, newFakeStorage())
	src := writeSource(t, "photo.jpg")

	got, err := p.ResolveForDisplay(context.Background(), src, "user-1/123_photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestResolveForDisplay_FallsBackToSignedURL(t *testing.T) {
	storage := newFakeStorage()
	storage.objects["user-1/123_photo.jpg"] = []byte("x")
	p := newPipeline(t, storage)

	got, err := p.ResolveForDisplay(context.Background(), "/gone/photo.jpg", "user-1/123_photo.jpg")
	require.NoError(t, err)
	assert.Contains(t, got, "signed=1")
}

func TestResolveForDisplay_Unavailable(t *testing.T) {
	p := newPipeline(t, newFakeStorage())

	_, err := p.ResolveForDisplay(context.Background(), "", "")
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestRemove_BestEffort(t *testing.T) {
	storage := newFakeStorage()
	storage.objects["k"] = []byte("x")
	p := newPipeline(t, storage)

	require.NoError(t, p.Remove(context.Background(), "k"))
	assert.Empty(t, storage.objects)

	storage.fail = true
	assert.Error(t, p.Remove(context.Background(), "other"))
}
