package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/common"
)

const day = int64(1700000000000)

func createVehicle(t *testing.T, f *fixture, mileage int) *models.Vehicle {
	t.Helper()
	v, err := f.svc.CreateVehicle(context.Background(), VehicleInput{
		Brand: "Honda", Model: "CB500F", CurrentMileage: mileage,
	})
	require.NoError(t, err)
	return v
}

func TestCreateLog_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := createVehicle(t, f, 10000)

	cases := []struct {
		name string
		in   LogInput
	}{
		{"missing vehicle", LogInput{Title: "Oil", Category: models.LogCategoryPeriodic, ServiceDate: day}},
		{"missing title", LogInput{VehicleID: v.ID, Category: models.LogCategoryPeriodic, ServiceDate: day}},
		{"bad category", LogInput{VehicleID: v.ID, Title: "Oil", Category: "detailing", ServiceDate: day}},
		{"negative cost", LogInput{VehicleID: v.ID, Title: "Oil", Category: models.LogCategoryPeriodic, CostCents: -1, ServiceDate: day}},
		{"missing date", LogInput{VehicleID: v.ID, Title: "Oil", Category: models.LogCategoryPeriodic}},
		{"unknown vehicle", LogInput{VehicleID: "ghost", Title: "Oil", Category: models.LogCategoryPeriodic, ServiceDate: day}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateLog(ctx, tc.in)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestCreateLog_RejectsDeletedVehicle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := createVehicle(t, f, 10000)
	require.NoError(t, f.svc.DeleteVehicle(ctx, v.ID))

	_, err := f.svc.CreateLog(ctx, LogInput{
		VehicleID: v.ID, Title: "Oil", Category: models.LogCategoryPeriodic, ServiceDate: day,
	})
	assert.ErrorIs(t, err, common.ErrValidation)
}

// The CB500F scenario: an oil change at 10500 km raises the odometer and
// leaves exactly one dirty maintenance log.
func TestCreateLog_Scenario_OilChangeBumpsMileage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := createVehicle(t, f, 10000)

	_, err := f.svc.CreateLog(ctx, LogInput{
		VehicleID:   v.ID,
		Title:       "Oil change",
		Category:    models.LogCategoryPeriodic,
		CostCents:   8000,
		Mileage:     10500,
		ServiceDate: day,
	})
	require.NoError(t, err)

	got, err := f.svc.Vehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 10500, got.CurrentMileage)

	assert.Equal(t, 1, countWhere(t, f.store, "maintenance_logs", "dirty = 1"))
}

// Mileage monotonicity: for readings applied in any order the vehicle ends
// at max(readings..., initial).
func TestCreateLog_MileageMonotonicity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := createVehicle(t, f, 9000)

	for _, m := range []int{10500, 9500, 12000, 8000, 11000} {
		_, err := f.svc.CreateLog(ctx, LogInput{
			VehicleID: v.ID, Title: "Service", Category: models.LogCategoryRepair,
			Mileage: m, ServiceDate: day,
		})
		require.NoError(t, err)
	}

	got, err := f.svc.Vehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 12000, got.CurrentMileage)
}

func TestUpdateLog_LoweringNeverRollsBackOdometer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := createVehicle(t, f, 10000)

	l, err := f.svc.CreateLog(ctx, LogInput{
		VehicleID: v.ID, Title: "Chain", Category: models.LogCategoryRepair,
		Mileage: 12000, ServiceDate: day,
	})
	require.NoError(t, err)

	lower := 9000
	_, err = f.svc.UpdateLog(ctx, l.ID, LogUpdate{Mileage: &lower})
	require.NoError(t, err)

	got, err := f.svc.Vehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 12000, got.CurrentMileage, "odometer never lowered automatically")

	higher := 13000
	_, err = f.svc.UpdateLog(ctx, l.ID, LogUpdate{Mileage: &higher})
	require.NoError(t, err)

	got, err = f.svc.Vehicle(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 13000, got.CurrentMileage)
}

func TestDeleteLog_CascadesDocumentsAndBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := createVehicle(t, f, 10000)

	l, err := f.svc.CreateLog(ctx, LogInput{
		VehicleID: v.ID, Title: "Fork seals", Category: models.LogCategoryRepair,
		Mileage: 10000, ServiceDate: day,
	})
	require.NoError(t, err)

	d, err := f.svc.CreateDocument(ctx, DocumentInput{
		Type:  models.DocumentTypeInvoice,
		Owner: models.LogOwned(l.ID),
		Pages: []PageSource{{SourcePath: f.sourceFile(t, "invoice.jpg")}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, d.CoverRemotePath, "fixture uploads succeed")

	require.NoError(t, f.svc.DeleteLog(ctx, l.ID))

	assert.NotEmpty(t, f.storage.removed, "remote blob delete attempted")
	assert.Equal(t, 1, countWhere(t, f.store, "maintenance_logs", "deleted_at != 0"))
	assert.Equal(t, 1, countWhere(t, f.store, "documents", "deleted_at != 0"))
	assert.Zero(t, countWhere(t, f.store, "document_pages", "deleted_at = 0"))
}

func TestDeleteLog_BlobFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := createVehicle(t, f, 10000)

	l, err := f.svc.CreateLog(ctx, LogInput{
		VehicleID: v.ID, Title: "Brakes", Category: models.LogCategoryRepair,
		Mileage: 10000, ServiceDate: day,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateDocument(ctx, DocumentInput{
		Type:  models.DocumentTypeInvoice,
		Owner: models.LogOwned(l.ID),
		Pages: []PageSource{{SourcePath: f.sourceFile(t, "invoice.jpg")}},
	})
	require.NoError(t, err)

	f.storage.fail = true
	require.NoError(t, f.svc.DeleteLog(ctx, l.ID), "blob failure must not abort log deletion")
	assert.Equal(t, 1, countWhere(t, f.store, "maintenance_logs", "deleted_at != 0"))
}
