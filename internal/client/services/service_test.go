package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carnetapp/carnet/internal/blob"
	"github.com/carnetapp/carnet/internal/client/attachments"
	"github.com/carnetapp/carnet/internal/client/store"
	"github.com/carnetapp/carnet/internal/logging"
)

// fakeStorage is an in-memory blob.Storage.
type fakeStorage struct {
	objects map[string][]byte
	fail    bool
	removed []string

	// signHost lets a test point signed URLs at an httptest server.
	signHost string
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
	host := f.signHost
	if host == "" {
		host = "https://blob.test"
	}
	return host + "/" + key, nil
}

func (f *fakeStorage) Remove(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	if f.fail {
		return errors.New("network down")
	}
	delete(f.objects, key)
	return nil
}

var _ blob.Storage = (*fakeStorage)(nil)

type fixture struct {
	svc     *Service
	store   *store.Store
	storage *fakeStorage
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// newFixture wires a service against an in-memory store with deterministic
// clock and id sequence.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	storage := newFakeStorage()
	pipe, err := attachments.NewPipeline(filepath.Join(t.TempDir(), "cache"), storage, time.Minute, testLogger())
	require.NoError(t, err)

	svc := New(s, pipe, testLogger(), func() string { return "user-1" })

	var clock int64 = 1000
	svc.now = func() int64 { clock++; return clock }
	var seq int
	svc.newID = func() string { seq++; return fmt.Sprintf("id-%03d", seq) }

	return &fixture{svc: svc, store: s, storage: storage}
}

func (f *fixture) sourceFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("scan"), 0o600))
	return path
}

func countWhere(t *testing.T, s *store.Store, table, where string) int {
	t.Helper()
	var n int
	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	require.NoError(t, s.DB().QueryRowContext(context.Background(), q).Scan(&n))
	return n
}
