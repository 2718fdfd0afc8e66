package models

// Vehicle is the root entity. It owns maintenance logs and documents.
type Vehicle struct {
	SyncMeta

	Brand string
	Model string

	// VIN is optional; "" means not recorded.
	VIN string
	// Year is the manufacture year; 0 means unknown.
	Year int

	// CurrentMileage is the odometer reading. It only ever moves forward:
	// a maintenance log with a higher reading raises it, nothing lowers it
	// automatically.
	CurrentMileage int

	// DisplayOrder drives manual list ordering in the UI.
	DisplayOrder int
}
