package remote

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/dbx"
	"github.com/carnetapp/carnet/internal/remote/migrations"
)

// Postgres implements Client against the backend's Postgres database.
// Every statement is scoped by owner_id so one user can never read or
// write another user's rows.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens the database at dsn and brings the schema up to date.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) PullVehicles(ctx context.Context, ownerID string, since int64) ([]models.Vehicle, error) {
	query := `SELECT id, owner_id, brand, model, vin, year, current_mileage, display_order,
		created_at, updated_at, deleted_at
		FROM vehicles WHERE owner_id = $1 AND updated_at > $2 ORDER BY updated_at, id`

	rows, err := p.db.QueryContext(ctx, query, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("pull vehicles: %w", err)
	}
	defer rows.Close()

	var out []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Brand, &v.Model, &v.VIN, &v.Year,
			&v.CurrentMileage, &v.DisplayOrder, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) PullLogs(ctx context.Context, ownerID string, since int64) ([]models.MaintenanceLog, error) {
	query := `SELECT id, owner_id, vehicle_id, title, category, cost_cents, mileage,
		service_date, notes, created_at, updated_at, deleted_at
		FROM maintenance_logs WHERE owner_id = $1 AND updated_at > $2 ORDER BY updated_at, id`

	rows, err := p.db.QueryContext(ctx, query, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("pull logs: %w", err)
	}
	defer rows.Close()

	var out []models.MaintenanceLog
	for rows.Next() {
		var l models.MaintenanceLog
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.VehicleID, &l.Title, &l.Category,
			&l.CostCents, &l.Mileage, &l.ServiceDate, &l.Notes,
			&l.CreatedAt, &l.UpdatedAt, &l.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p *Postgres) PullDocuments(ctx context.Context, ownerID string, since int64) ([]models.Document, error) {
	query := `SELECT id, owner_id, type, owner_kind, vehicle_id, log_id, reference,
		expiry_date, cover_remote_path, created_at, updated_at, deleted_at
		FROM documents WHERE owner_id = $1 AND updated_at > $2 ORDER BY updated_at, id`

	rows, err := p.db.QueryContext(ctx, query, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("pull documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		var kind string
		var vehicleID, logID string
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Type, &kind, &vehicleID, &logID,
			&d.Reference, &d.ExpiryDate, &d.CoverRemotePath,
			&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Owner = ownerFromColumns(kind, vehicleID, logID)
		out = append(out, d)
	}
	return out, rows.Err()
}

func ownerFromColumns(kind, vehicleID, logID string) models.DocumentOwner {
	switch models.OwnerKind(kind) {
	case models.OwnerVehicle:
		return models.VehicleOwned(vehicleID)
	case models.OwnerLog:
		return models.LogOwned(logID)
	default:
		return models.UserOwned()
	}
}

func (p *Postgres) UpsertVehicles(ctx context.Context, rows []models.Vehicle, at int64) error {
	if len(rows) == 0 {
		return nil
	}
	query := `INSERT INTO vehicles
		(id, owner_id, brand, model, vin, year, current_mileage, display_order,
		 created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
		 brand = EXCLUDED.brand, model = EXCLUDED.model, vin = EXCLUDED.vin,
		 year = EXCLUDED.year, current_mileage = EXCLUDED.current_mileage,
		 display_order = EXCLUDED.display_order,
		 updated_at = EXCLUDED.updated_at, deleted_at = EXCLUDED.deleted_at
		WHERE vehicles.owner_id = EXCLUDED.owner_id`

	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, v := range rows {
			if _, err := tx.ExecContext(ctx, query, v.ID, v.OwnerID, v.Brand, v.Model,
				v.VIN, v.Year, v.CurrentMileage, v.DisplayOrder,
				v.CreatedAt, at, v.DeletedAt); err != nil {
				return fmt.Errorf("upsert vehicle %s: %w", v.ID, err)
			}
		}
		return nil
	})
}

func (p *Postgres) UpsertLogs(ctx context.Context, rows []models.MaintenanceLog, at int64) error {
	if len(rows) == 0 {
		return nil
	}
	query := `INSERT INTO maintenance_logs
		(id, owner_id, vehicle_id, title, category, cost_cents, mileage,
		 service_date, notes, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
		 vehicle_id = EXCLUDED.vehicle_id, title = EXCLUDED.title,
		 category = EXCLUDED.category, cost_cents = EXCLUDED.cost_cents,
		 mileage = EXCLUDED.mileage, service_date = EXCLUDED.service_date,
		 notes = EXCLUDED.notes,
		 updated_at = EXCLUDED.updated_at, deleted_at = EXCLUDED.deleted_at
		WHERE maintenance_logs.owner_id = EXCLUDED.owner_id`

	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, l := range rows {
			if _, err := tx.ExecContext(ctx, query, l.ID, l.OwnerID, l.VehicleID, l.Title,
				l.Category, l.CostCents, l.Mileage, l.ServiceDate, l.Notes,
				l.CreatedAt, at, l.DeletedAt); err != nil {
				return fmt.Errorf("upsert log %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

func (p *Postgres) UpsertDocuments(ctx context.Context, rows []models.Document, at int64) error {
	if len(rows) == 0 {
		return nil
	}
	query := `INSERT INTO documents
		(id, owner_id, type, owner_kind, vehicle_id, log_id, reference,
		 expiry_date, cover_remote_path, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
		 type = EXCLUDED.type, owner_kind = EXCLUDED.owner_kind,
		 vehicle_id = EXCLUDED.vehicle_id, log_id = EXCLUDED.log_id,
		 reference = EXCLUDED.reference, expiry_date = EXCLUDED.expiry_date,
		 cover_remote_path = EXCLUDED.cover_remote_path,
		 updated_at = EXCLUDED.updated_at, deleted_at = EXCLUDED.deleted_at
		WHERE documents.owner_id = EXCLUDED.owner_id`

	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, d := range rows {
			vehicleID, logID := "", ""
			switch d.Owner.Kind {
			case models.OwnerVehicle:
				vehicleID = d.Owner.ID
			case models.OwnerLog:
				logID = d.Owner.ID
			}
			if _, err := tx.ExecContext(ctx, query, d.ID, d.OwnerID, d.Type, d.Owner.Kind,
				vehicleID, logID, d.Reference, d.ExpiryDate, d.CoverRemotePath,
				d.CreatedAt, at, d.DeletedAt); err != nil {
				return fmt.Errorf("upsert document %s: %w", d.ID, err)
			}
		}
		return nil
	})
}

func (p *Postgres) DeleteVehicles(ctx context.Context, ownerID string, ids []string, at int64) error {
	return p.tombstone(ctx, "vehicles", ownerID, ids, at)
}

func (p *Postgres) DeleteLogs(ctx context.Context, ownerID string, ids []string, at int64) error {
	return p.tombstone(ctx, "maintenance_logs", ownerID, ids, at)
}

func (p *Postgres) DeleteDocuments(ctx context.Context, ownerID string, ids []string, at int64) error {
	return p.tombstone(ctx, "documents", ownerID, ids, at)
}

// tombstone marks rows deleted instead of removing them so other devices
// observe the delete on their next pull. Already-deleted rows keep their
// original tombstone time.
func (p *Postgres) tombstone(ctx context.Context, table, ownerID string, ids []string, at int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET deleted_at = $1, updated_at = $2
		WHERE owner_id = $3 AND id = ANY($4) AND deleted_at = 0`, table)

	if _, err := p.db.ExecContext(ctx, query, at, at, ownerID, ids); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}
