package pages

import (
	"context"

	"github.com/carnetapp/carnet/internal/client/models"
)

// Repository persists document pages. Pages never leave the device on their
// own, but they keep the same soft-delete discipline as the other tables so
// a wipe or cascade treats them uniformly.
type Repository interface {
	Upsert(ctx context.Context, p *models.DocumentPage) error
	GetByID(ctx context.Context, id string) (*models.DocumentPage, error)
	ListActiveByDocument(ctx context.Context, documentID string) ([]models.DocumentPage, error)
	SoftDelete(ctx context.Context, id string, at int64) error
	SoftDeleteByDocument(ctx context.Context, documentID string, at int64) error
}
