package services

import (
	"context"

	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/client/repositories/documents"
	"github.com/carnetapp/carnet/internal/client/repositories/logs"
	"github.com/carnetapp/carnet/internal/client/repositories/pages"
	"github.com/carnetapp/carnet/internal/client/repositories/vehicles"
	"github.com/carnetapp/carnet/internal/client/store"
	"github.com/carnetapp/carnet/internal/common"
)

// VehicleInput carries the caller-supplied fields for a new vehicle.
type VehicleInput struct {
	Brand          string
	Model          string
	VIN            string
	Year           int
	CurrentMileage int
	DisplayOrder   int
}

// VehicleUpdate patches an existing vehicle; nil fields stay untouched.
type VehicleUpdate struct {
	Brand          *string
	Model          *string
	VIN            *string
	Year           *int
	CurrentMileage *int
	DisplayOrder   *int
}

// CreateVehicle validates and persists a new vehicle.
func (s *Service) CreateVehicle(ctx context.Context, in VehicleInput) (*models.Vehicle, error) {
	if in.Brand == "" {
		return nil, validationError("vehicle brand is required")
	}
	if in.Model == "" {
		return nil, validationError("vehicle model is required")
	}
	if in.CurrentMileage < 0 {
		return nil, validationError("vehicle mileage cannot be negative")
	}

	v := &models.Vehicle{
		Brand:          in.Brand,
		Model:          in.Model,
		VIN:            in.VIN,
		Year:           in.Year,
		CurrentMileage: in.CurrentMileage,
		DisplayOrder:   in.DisplayOrder,
	}
	v.ID = s.newID()
	now := s.now()
	v.CreatedAt = now
	v.UpdatedAt = now
	v.MarkChanged("brand", "model", "vin", "year", "current_mileage", "display_order")

	err := s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := vehicles.NewSQLiteRepository(tx).Upsert(ctx, v); err != nil {
			return err
		}
		tx.Touch(store.TableVehicles)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateVehicle applies the patch to a live vehicle.
func (s *Service) UpdateVehicle(ctx context.Context, id string, patch VehicleUpdate) (*models.Vehicle, error) {
	var updated *models.Vehicle

	err := s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		repo := vehicles.NewSQLiteRepository(tx)
		v, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if v.Deleted() {
			return validationError("vehicle %s is deleted", id)
		}

		if patch.Brand != nil {
			if *patch.Brand == "" {
				return validationError("vehicle brand is required")
			}
			v.Brand = *patch.Brand
			v.MarkChanged("brand")
		}
		if patch.Model != nil {
			if *patch.Model == "" {
				return validationError("vehicle model is required")
			}
			v.Model = *patch.Model
			v.MarkChanged("model")
		}
		if patch.VIN != nil {
			v.VIN = *patch.VIN
			v.MarkChanged("vin")
		}
		if patch.Year != nil {
			v.Year = *patch.Year
			v.MarkChanged("year")
		}
		if patch.CurrentMileage != nil {
			if *patch.CurrentMileage < 0 {
				return validationError("vehicle mileage cannot be negative")
			}
			v.CurrentMileage = *patch.CurrentMileage
			v.MarkChanged("current_mileage")
		}
		if patch.DisplayOrder != nil {
			v.DisplayOrder = *patch.DisplayOrder
			v.MarkChanged("display_order")
		}

		stampUpdate(&v.SyncMeta, s.now())
		if err := repo.Upsert(ctx, v); err != nil {
			return err
		}
		tx.Touch(store.TableVehicles)
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteVehicle soft-deletes the vehicle and cascades to its maintenance
// logs, its documents and their pages, all in one transaction.
func (s *Service) DeleteVehicle(ctx context.Context, id string) error {
	return s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		vehicleRepo := vehicles.NewSQLiteRepository(tx)
		v, err := vehicleRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if v.Deleted() {
			return nil
		}

		at := s.now()
		docRepo := documents.NewSQLiteRepository(tx)
		pageRepo := pages.NewSQLiteRepository(tx)

		docs, err := docRepo.ListActiveByVehicle(ctx, id)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if err := pageRepo.SoftDeleteByDocument(ctx, d.ID, at); err != nil {
				return err
			}
		}
		if err := logs.NewSQLiteRepository(tx).SoftDeleteByVehicle(ctx, id, at); err != nil {
			return err
		}
		if err := docRepo.SoftDeleteByVehicle(ctx, id, at); err != nil {
			return err
		}
		if err := vehicleRepo.SoftDelete(ctx, id, at); err != nil {
			return err
		}

		tx.Touch(store.TableVehicles, store.TableMaintenanceLogs,
			store.TableDocuments, store.TableDocumentPages)
		return nil
	})
}

// Vehicles returns all live vehicles in display order.
func (s *Service) Vehicles(ctx context.Context) ([]models.Vehicle, error) {
	return vehicles.NewSQLiteRepository(s.store.DB()).ListActive(ctx)
}

// Vehicle returns one live vehicle.
func (s *Service) Vehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	v, err := vehicles.NewSQLiteRepository(s.store.DB()).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Deleted() {
		return nil, common.ErrNotFound
	}
	return v, nil
}
