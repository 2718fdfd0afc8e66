package logs

import (
	"context"

	"github.com/carnetapp/carnet/internal/client/models"
)

// Repository persists maintenance logs in the local store.
type Repository interface {
	Upsert(ctx context.Context, l *models.MaintenanceLog) error
	GetByID(ctx context.Context, id string) (*models.MaintenanceLog, error)
	ListActiveByVehicle(ctx context.Context, vehicleID string) ([]models.MaintenanceLog, error)
	ListDirty(ctx context.Context) ([]models.MaintenanceLog, error)
	SoftDelete(ctx context.Context, id string, at int64) error
	SoftDeleteByVehicle(ctx context.Context, vehicleID string, at int64) error
	ClearDirty(ctx context.Context, refs []models.SyncRef) error
}
