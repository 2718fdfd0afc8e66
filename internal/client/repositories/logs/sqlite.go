package logs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/common"
	"github.com/carnetapp/carnet/internal/dbx"
)

// SQLiteRepository implements Repository over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const logColumns = `id, vehicle_id, title, category, cost_cents, mileage, service_date, notes,
	created_at, updated_at, deleted_at, owner_id, dirty, changed_fields`

func (r *SQLiteRepository) Upsert(ctx context.Context, l *models.MaintenanceLog) error {
	query := `INSERT INTO maintenance_logs (` + logColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vehicle_id = excluded.vehicle_id,
			title = excluded.title,
			category = excluded.category,
			cost_cents = excluded.cost_cents,
			mileage = excluded.mileage,
			service_date = excluded.service_date,
			notes = excluded.notes,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			owner_id = excluded.owner_id,
			dirty = excluded.dirty,
			changed_fields = excluded.changed_fields
	`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.VehicleID, l.Title, l.Category, l.CostCents, l.Mileage, l.ServiceDate, l.Notes,
		l.CreatedAt, l.UpdatedAt, l.DeletedAt, l.OwnerID, l.Dirty, l.ChangedFields)
	if err != nil {
		return fmt.Errorf("failed to upsert maintenance log: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.MaintenanceLog, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM maintenance_logs WHERE id = ?`, id)

	l, err := scanLog(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get maintenance log: %w", err)
	}
	return l, nil
}

// ListActiveByVehicle returns the vehicle's non-deleted logs, most recent
// service first, ties broken by id.
func (r *SQLiteRepository) ListActiveByVehicle(ctx context.Context, vehicleID string) ([]models.MaintenanceLog, error) {
	return r.list(ctx,
		`SELECT `+logColumns+` FROM maintenance_logs
		WHERE vehicle_id = ? AND deleted_at = 0 ORDER BY service_date DESC, id`, vehicleID)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.MaintenanceLog, error) {
	return r.list(ctx,
		`SELECT `+logColumns+` FROM maintenance_logs WHERE dirty = 1 ORDER BY id`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.MaintenanceLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select maintenance logs: %w", err)
	}
	defer rows.Close()

	var result []models.MaintenanceLog
	for rows.Next() {
		l, err := scanLog(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, at int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE maintenance_logs SET deleted_at = ?, updated_at = ?, dirty = 1 WHERE id = ? AND deleted_at = 0`,
		at, at, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete maintenance log: %w", err)
	}
	return nil
}

// SoftDeleteByVehicle tombstones every live log of the vehicle; used by the
// vehicle cascade.
func (r *SQLiteRepository) SoftDeleteByVehicle(ctx context.Context, vehicleID string, at int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE maintenance_logs SET deleted_at = ?, updated_at = ?, dirty = 1 WHERE vehicle_id = ? AND deleted_at = 0`,
		at, at, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to cascade-delete maintenance logs: %w", err)
	}
	return nil
}

// ClearDirty resets change tracking for the pushed rows, skipping any row
// whose updated_at moved past the push snapshot.
func (r *SQLiteRepository) ClearDirty(ctx context.Context, refs []models.SyncRef) error {
	for _, ref := range refs {
		_, err := r.db.ExecContext(ctx,
			`UPDATE maintenance_logs SET dirty = 0, changed_fields = '' WHERE id = ? AND updated_at <= ?`,
			ref.ID, ref.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to clear dirty maintenance log: %w", err)
		}
	}
	return nil
}

func scanLog(scan func(dest ...any) error) (*models.MaintenanceLog, error) {
	var l models.MaintenanceLog
	err := scan(&l.ID, &l.VehicleID, &l.Title, &l.Category, &l.CostCents, &l.Mileage,
		&l.ServiceDate, &l.Notes,
		&l.CreatedAt, &l.UpdatedAt, &l.DeletedAt, &l.OwnerID, &l.Dirty, &l.ChangedFields)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
