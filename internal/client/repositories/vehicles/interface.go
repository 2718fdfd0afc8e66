package vehicles

import (
	"context"

	"github.com/carnetapp/carnet/internal/client/models"
)

// Repository persists vehicles in the local store. Listing methods exclude
// soft-deleted rows; GetByID returns tombstones too so sync and validation
// code can inspect them.
type Repository interface {
	Upsert(ctx context.Context, v *models.Vehicle) error
	GetByID(ctx context.Context, id string) (*models.Vehicle, error)
	ListActive(ctx context.Context) ([]models.Vehicle, error)
	ListDirty(ctx context.Context) ([]models.Vehicle, error)
	SoftDelete(ctx context.Context, id string, at int64) error
	ClearDirty(ctx context.Context, refs []models.SyncRef) error
}
