package documents

import (
	"context"

	"github.com/carnetapp/carnet/internal/client/models"
)

// Repository persists documents in the local store.
type Repository interface {
	Upsert(ctx context.Context, d *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListActive(ctx context.Context) ([]models.Document, error)
	ListActiveByVehicle(ctx context.Context, vehicleID string) ([]models.Document, error)
	ListActiveByLog(ctx context.Context, logID string) ([]models.Document, error)
	ListDirty(ctx context.Context) ([]models.Document, error)
	SoftDelete(ctx context.Context, id string, at int64) error
	SoftDeleteByVehicle(ctx context.Context, vehicleID string, at int64) error
	SoftDeleteByLog(ctx context.Context, logID string, at int64) error
	ClearDirty(ctx context.Context, refs []models.SyncRef) error
}
