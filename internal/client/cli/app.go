// Package cli is the interactive front end: it wires the store, sync engine
// and mutation API together and drives them from a small REPL.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/carnetapp/carnet/internal/blob"
	"github.com/carnetapp/carnet/internal/client/attachments"
	"github.com/carnetapp/carnet/internal/client/auth"
	"github.com/carnetapp/carnet/internal/client/config"
	"github.com/carnetapp/carnet/internal/client/identity"
	"github.com/carnetapp/carnet/internal/client/services"
	"github.com/carnetapp/carnet/internal/client/state"
	"github.com/carnetapp/carnet/internal/client/store"
	"github.com/carnetapp/carnet/internal/client/sync"
	"github.com/carnetapp/carnet/internal/filex"
	"github.com/carnetapp/carnet/internal/logging"
	"github.com/carnetapp/carnet/internal/remote"
)

// App holds everything one CLI session needs.
type App struct {
	config *config.Config
	log    logging.Logger

	store  *store.Store
	state  *state.File
	guard  *identity.Guard
	svc    *services.Service
	engine *sync.Engine

	// user is the authenticated identity for this session, "" when
	// signed out.
	user string

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the local store and wires all components. The remote backend
// and blob storage are optional: without them the app runs fully offline.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if _, err := filex.EnsureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sf, err := state.Open(cfg.StateFile)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open state: %w", err)
	}

	var storage blob.Storage
	if cfg.S3Bucket != "" {
		s3, err := blob.NewS3Storage(ctx, blob.S3Config{
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3Endpoint,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("blob storage: %w", err)
		}
		storage = s3
	}

	pipe, err := attachments.NewPipeline(cfg.CacheDir, storage, cfg.SignedURLTTL, log)
	if err != nil {
		st.Close()
		return nil, err
	}

	app := &App{
		config: cfg,
		log:    log,
		store:  st,
		state:  sf,
		guard:  identity.NewGuard(st, sf, log),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
	app.svc = services.New(st, pipe, log, app.currentUser)

	if cfg.RemoteDSN != "" {
		rc, err := remote.NewPostgres(ctx, cfg.RemoteDSN)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("remote backend: %w", err)
		}
		app.engine = sync.New(st, rc, sf, pipe, app.guard, app.currentUser, log)
	}

	// Restore the previous session's identity from the stored token. When
	// no usable token is left, a surviving marker means the data belongs to
	// nobody we can verify and the guard wipes it.
	if token := sf.Token(); token != "" {
		if subject, err := auth.SubjectFromToken(token); err == nil {
			app.user = subject
		}
	}
	app.guard.Ensure(ctx, app.user)

	return app, nil
}

func (a *App) currentUser() string { return a.user }

func (a *App) isLoggedIn() bool { return a.user != "" }

func (a *App) Close() error {
	return a.store.Close()
}

// Run starts the interactive loop and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)
}

func (a *App) status() string {
	if a.user == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.user)
}
