package services

import (
	"context"

	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/client/repositories/documents"
	"github.com/carnetapp/carnet/internal/client/repositories/logs"
	"github.com/carnetapp/carnet/internal/client/repositories/pages"
	"github.com/carnetapp/carnet/internal/client/repositories/vehicles"
	"github.com/carnetapp/carnet/internal/client/store"
)

// LogInput carries the caller-supplied fields for a new maintenance log.
type LogInput struct {
	VehicleID   string
	Title       string
	Category    models.LogCategory
	CostCents   int64
	Mileage     int
	ServiceDate int64
	Notes       string
}

// LogUpdate patches an existing log; nil fields stay untouched.
type LogUpdate struct {
	Title       *string
	Category    *models.LogCategory
	CostCents   *int64
	Mileage     *int
	ServiceDate *int64
	Notes       *string
}

func validateLogInput(in LogInput) error {
	if in.VehicleID == "" {
		return validationError("maintenance log requires a vehicle")
	}
	if in.Title == "" {
		return validationError("maintenance log title is required")
	}
	if !models.ValidLogCategory(in.Category) {
		return validationError("unknown log category %q", in.Category)
	}
	if in.CostCents < 0 {
		return validationError("maintenance log cost cannot be negative")
	}
	if in.Mileage < 0 {
		return validationError("maintenance log mileage cannot be negative")
	}
	if in.ServiceDate == 0 {
		return validationError("maintenance log service date is required")
	}
	return nil
}

// CreateLog validates and persists a new maintenance log. A reading above
// the owning vehicle's odometer raises the vehicle's mileage in the same
// transaction; it is never lowered.
func (s *Service) CreateLog(ctx context.Context, in LogInput) (*models.MaintenanceLog, error) {
	if err := validateLogInput(in); err != nil {
		return nil, err
	}

	l := &models.MaintenanceLog{
		VehicleID:   in.VehicleID,
		Title:       in.Title,
		Category:    in.Category,
		CostCents:   in.CostCents,
		Mileage:     in.Mileage,
		ServiceDate: in.ServiceDate,
		Notes:       in.Notes,
	}
	l.ID = s.newID()
	now := s.now()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.MarkChanged("vehicle_id", "title", "category", "cost_cents", "mileage", "service_date", "notes")

	err := s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		vehicleRepo := vehicles.NewSQLiteRepository(tx)
		v, err := vehicleRepo.GetByID(ctx, in.VehicleID)
		if err != nil {
			return validationError("maintenance log references unknown vehicle %s", in.VehicleID)
		}
		if v.Deleted() {
			return validationError("maintenance log references deleted vehicle %s", in.VehicleID)
		}

		if err := logs.NewSQLiteRepository(tx).Upsert(ctx, l); err != nil {
			return err
		}
		tx.Touch(store.TableMaintenanceLogs)

		if err := s.bumpMileage(ctx, tx, vehicleRepo, v, l.Mileage); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateLog applies the patch to a live log. Raising the reading can bump
// the vehicle's odometer; lowering a historical reading never rolls it back.
func (s *Service) UpdateLog(ctx context.Context, id string, patch LogUpdate) (*models.MaintenanceLog, error) {
	var updated *models.MaintenanceLog

	err := s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		repo := logs.NewSQLiteRepository(tx)
		l, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if l.Deleted() {
			return validationError("maintenance log %s is deleted", id)
		}

		if patch.Title != nil {
			if *patch.Title == "" {
				return validationError("maintenance log title is required")
			}
			l.Title = *patch.Title
			l.MarkChanged("title")
		}
		if patch.Category != nil {
			if !models.ValidLogCategory(*patch.Category) {
				return validationError("unknown log category %q", *patch.Category)
			}
			l.Category = *patch.Category
			l.MarkChanged("category")
		}
		if patch.CostCents != nil {
			if *patch.CostCents < 0 {
				return validationError("maintenance log cost cannot be negative")
			}
			l.CostCents = *patch.CostCents
			l.MarkChanged("cost_cents")
		}
		if patch.Mileage != nil {
			if *patch.Mileage < 0 {
				return validationError("maintenance log mileage cannot be negative")
			}
			l.Mileage = *patch.Mileage
			l.MarkChanged("mileage")
		}
		if patch.ServiceDate != nil {
			l.ServiceDate = *patch.ServiceDate
			l.MarkChanged("service_date")
		}
		if patch.Notes != nil {
			l.Notes = *patch.Notes
			l.MarkChanged("notes")
		}

		stampUpdate(&l.SyncMeta, s.now())
		if err := repo.Upsert(ctx, l); err != nil {
			return err
		}
		tx.Touch(store.TableMaintenanceLogs)

		if patch.Mileage != nil {
			vehicleRepo := vehicles.NewSQLiteRepository(tx)
			v, err := vehicleRepo.GetByID(ctx, l.VehicleID)
			if err != nil {
				return err
			}
			if err := s.bumpMileage(ctx, tx, vehicleRepo, v, l.Mileage); err != nil {
				return err
			}
		}

		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// bumpMileage raises the vehicle odometer to reading when strictly greater.
func (s *Service) bumpMileage(ctx context.Context, tx *store.Tx, repo *vehicles.SQLiteRepository,
	v *models.Vehicle, reading int) error {

	if reading <= v.CurrentMileage {
		return nil
	}
	v.CurrentMileage = reading
	v.MarkChanged("current_mileage")
	stampUpdate(&v.SyncMeta, s.now())
	if err := repo.Upsert(ctx, v); err != nil {
		return err
	}
	tx.Touch(store.TableVehicles)
	return nil
}

// DeleteLog soft-deletes the log and its invoice documents. Remote blobs of
// those documents are removed first, best-effort: a storage failure must not
// abort the deletion.
func (s *Service) DeleteLog(ctx context.Context, id string) error {
	return s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		repo := logs.NewSQLiteRepository(tx)
		l, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if l.Deleted() {
			return nil
		}

		at := s.now()
		docRepo := documents.NewSQLiteRepository(tx)
		pageRepo := pages.NewSQLiteRepository(tx)

		docs, err := docRepo.ListActiveByLog(ctx, id)
		if err != nil {
			return err
		}
		for _, d := range docs {
			s.removeDocumentBlobs(ctx, pageRepo, &d)
			if err := pageRepo.SoftDeleteByDocument(ctx, d.ID, at); err != nil {
				return err
			}
		}
		if err := docRepo.SoftDeleteByLog(ctx, id, at); err != nil {
			return err
		}
		if err := repo.SoftDelete(ctx, id, at); err != nil {
			return err
		}

		tx.Touch(store.TableMaintenanceLogs, store.TableDocuments, store.TableDocumentPages)
		return nil
	})
}

// removeDocumentBlobs deletes the document's remote blobs (cover and pages).
// Failures are logged by the pipeline and ignored here.
func (s *Service) removeDocumentBlobs(ctx context.Context, pageRepo pages.Repository, d *models.Document) {
	if s.attach == nil {
		return
	}
	if d.CoverRemotePath != "" {
		_ = s.attach.Remove(ctx, d.CoverRemotePath)
	}
	pp, err := pageRepo.ListActiveByDocument(ctx, d.ID)
	if err != nil {
		s.log.Warn(ctx, "listing pages for blob cleanup failed", "document", d.ID, "error", err)
		return
	}
	for _, p := range pp {
		if p.RemotePath != "" && p.RemotePath != d.CoverRemotePath {
			_ = s.attach.Remove(ctx, p.RemotePath)
		}
	}
}

// LogsForVehicle returns the vehicle's live logs, most recent first.
func (s *Service) LogsForVehicle(ctx context.Context, vehicleID string) ([]models.MaintenanceLog, error) {
	return logs.NewSQLiteRepository(s.store.DB()).ListActiveByVehicle(ctx, vehicleID)
}
