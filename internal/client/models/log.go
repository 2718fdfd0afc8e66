package models

// LogCategory classifies a maintenance log entry.
type LogCategory string

const (
	LogCategoryPeriodic     LogCategory = "periodic"
	LogCategoryRepair       LogCategory = "repair"
	LogCategoryModification LogCategory = "modification"
)

// ValidLogCategory reports whether c is one of the closed category set.
func ValidLogCategory(c LogCategory) bool {
	switch c {
	case LogCategoryPeriodic, LogCategoryRepair, LogCategoryModification:
		return true
	}
	return false
}

// MaintenanceLog records one service performed on a vehicle.
type MaintenanceLog struct {
	SyncMeta

	// VehicleID references the owning vehicle and is required.
	VehicleID string

	Title    string
	Category LogCategory

	// CostCents is the monetary cost in cents, never negative.
	CostCents int64

	// Mileage is the odometer reading at the time of service.
	Mileage int

	// ServiceDate is the service day as epoch milliseconds.
	ServiceDate int64

	Notes string
}
