// Package remote defines the boundary to the backend's relational API. The
// sync engine only ever talks to the Client interface; the Postgres
// implementation stands in for the hosted backend, the in-memory one backs
// tests.
package remote

import (
	"context"

	"github.com/carnetapp/carnet/internal/client/models"
)

// Client is the remote side of a sync cycle. Pull methods return every row
// of the owner changed strictly after since, tombstones included. Upserts
// and deletes are idempotent so a retried push converges. The backend
// records at as the row's change time: pulls order by the backend's clock,
// not the pushing device's, so a row pushed by one device is always visible
// to every other device's next pull.
type Client interface {
	PullVehicles(ctx context.Context, ownerID string, since int64) ([]models.Vehicle, error)
	PullLogs(ctx context.Context, ownerID string, since int64) ([]models.MaintenanceLog, error)
	PullDocuments(ctx context.Context, ownerID string, since int64) ([]models.Document, error)

	UpsertVehicles(ctx context.Context, rows []models.Vehicle, at int64) error
	UpsertLogs(ctx context.Context, rows []models.MaintenanceLog, at int64) error
	UpsertDocuments(ctx context.Context, rows []models.Document, at int64) error

	DeleteVehicles(ctx context.Context, ownerID string, ids []string, at int64) error
	DeleteLogs(ctx context.Context, ownerID string, ids []string, at int64) error
	DeleteDocuments(ctx context.Context, ownerID string, ids []string, at int64) error
}
