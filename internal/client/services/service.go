// Package services implements the mutation API: the only path by which
// callers create, update and soft-delete records. Every mutation runs inside
// one atomic store transaction, validates its inputs first and marks the
// affected rows dirty for the next sync cycle.
package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/carnetapp/carnet/internal/client/attachments"
	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/client/store"
	"github.com/carnetapp/carnet/internal/common"
	"github.com/carnetapp/carnet/internal/logging"
)

// Service is the mutation API facade shared by all entity operations.
type Service struct {
	store  *store.Store
	attach *attachments.Pipeline
	log    logging.Logger

	// identity returns the current authenticated identity or "" when signed
	// out; used only to key best-effort attachment uploads.
	identity func() string

	// now and newID are injectable for tests.
	now   func() int64
	newID func() string
}

// New constructs the mutation API. attach may be nil when the caller never
// handles attachments (uploads then degrade to local-only).
func New(s *store.Store, attach *attachments.Pipeline, log logging.Logger, identity func() string) *Service {
	if identity == nil {
		identity = func() string { return "" }
	}
	return &Service{
		store:    s,
		attach:   attach,
		log:      log,
		identity: identity,
		now:      models.NowMillis,
		newID:    uuid.NewString,
	}
}

// Store exposes the underlying store for the query layer.
func (s *Service) Store() *store.Store { return s.store }

// validationError wraps a human-readable reason in common.ErrValidation so
// callers can match with errors.Is.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, fmt.Sprintf(format, args...))
}

// stampUpdate moves UpdatedAt forward, never backwards: local clocks can
// regress, the column may not.
func stampUpdate(m *models.SyncMeta, now int64) {
	if now <= m.UpdatedAt {
		now = m.UpdatedAt + 1
	}
	m.UpdatedAt = now
}
