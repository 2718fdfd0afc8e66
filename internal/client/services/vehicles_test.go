package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/common"
)

func TestCreateVehicle_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateVehicle(ctx, VehicleInput{Model: "CB500F"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.CreateVehicle(ctx, VehicleInput{Brand: "Honda"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.CreateVehicle(ctx, VehicleInput{Brand: "Honda", Model: "CB500F", CurrentMileage: -1})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCreateVehicle_MarksDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateVehicle(ctx, VehicleInput{Brand: "Honda", Model: "CB500F", CurrentMileage: 10000})
	require.NoError(t, err)

	assert.True(t, v.Dirty)
	assert.Contains(t, v.ChangedFields, "brand")
	assert.Equal(t, v.CreatedAt, v.UpdatedAt)

	got, err := f.svc.Vehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Honda", got.Brand)
	assert.True(t, got.Dirty)
}

func TestUpdateVehicle_PatchesAndStamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateVehicle(ctx, VehicleInput{Brand: "Honda", Model: "CB500F"})
	require.NoError(t, err)
	created := v.CreatedAt

	vin := "JH2PC4500XM200020"
	updated, err := f.svc.UpdateVehicle(ctx, v.ID, VehicleUpdate{VIN: &vin})
	require.NoError(t, err)

	assert.Equal(t, vin, updated.VIN)
	assert.Equal(t, created, updated.CreatedAt, "created_at is append-only")
	assert.Greater(t, updated.UpdatedAt, created)
	assert.Contains(t, updated.ChangedFields, "vin")
}

func TestUpdateVehicle_UnknownOrDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	brand := "Yamaha"
	_, err := f.svc.UpdateVehicle(ctx, "missing", VehicleUpdate{Brand: &brand})
	assert.ErrorIs(t, err, common.ErrNotFound)

	v, err := f.svc.CreateVehicle(ctx, VehicleInput{Brand: "Honda", Model: "CB500F"})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteVehicle(ctx, v.ID))

	_, err = f.svc.UpdateVehicle(ctx, v.ID, VehicleUpdate{Brand: &brand})
	assert.ErrorIs(t, err, common.ErrValidation)
}

// Cascade completeness: a vehicle with N logs and M documents leaves exactly
// N+M+1 soft-deleted records and no live rows referencing the vehicle.
func TestDeleteVehicle_CascadeCompleteness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateVehicle(ctx, VehicleInput{Brand: "Honda", Model: "CB500F", CurrentMileage: 10000})
	require.NoError(t, err)

	const nLogs = 3
	for i := 0; i < nLogs; i++ {
		_, err := f.svc.CreateLog(ctx, LogInput{
			VehicleID:   v.ID,
			Title:       "Service",
			Category:    models.LogCategoryPeriodic,
			Mileage:     10000 + i,
			ServiceDate: 1700000000000,
		})
		require.NoError(t, err)
	}

	const nDocs = 2
	for i := 0; i < nDocs; i++ {
		_, err := f.svc.CreateDocument(ctx, DocumentInput{
			Type:  models.DocumentTypeInsurance,
			Owner: models.VehicleOwned(v.ID),
			Pages: []PageSource{{SourcePath: f.sourceFile(t, "p.jpg")}},
		})
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.DeleteVehicle(ctx, v.ID))

	deleted := countWhere(t, f.store, "vehicles", "deleted_at != 0") +
		countWhere(t, f.store, "maintenance_logs", "deleted_at != 0") +
		countWhere(t, f.store, "documents", "deleted_at != 0")
	assert.Equal(t, nLogs+nDocs+1, deleted)

	assert.Zero(t, countWhere(t, f.store, "maintenance_logs", "deleted_at = 0 AND vehicle_id = '"+v.ID+"'"))
	assert.Zero(t, countWhere(t, f.store, "documents", "deleted_at = 0 AND vehicle_id = '"+v.ID+"'"))
	assert.Zero(t, countWhere(t, f.store, "document_pages", "deleted_at = 0"))

	_, err = f.svc.Vehicle(ctx, v.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteVehicle_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.CreateVehicle(ctx, VehicleInput{Brand: "Honda", Model: "CB500F"})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteVehicle(ctx, v.ID))
	require.NoError(t, f.svc.DeleteVehicle(ctx, v.ID))

	assert.Equal(t, 1, countWhere(t, f.store, "vehicles", "deleted_at != 0"))
}
