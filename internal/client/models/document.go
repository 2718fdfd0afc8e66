package models

// DocumentType classifies a document.
type DocumentType string

const (
	DocumentTypeRegistration            DocumentType = "registration"
	DocumentTypeInsurance               DocumentType = "insurance"
	DocumentTypeInvoice                 DocumentType = "invoice"
	DocumentTypeLicense                 DocumentType = "license"
	DocumentTypeTechnicalControl        DocumentType = "technical_control"
	DocumentTypeCertificateOfConformity DocumentType = "certificate_of_conformity"
	DocumentTypeOther                   DocumentType = "other"
)

// ValidDocumentType reports whether t is one of the closed type set.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypeRegistration, DocumentTypeInsurance, DocumentTypeInvoice,
		DocumentTypeLicense, DocumentTypeTechnicalControl,
		DocumentTypeCertificateOfConformity, DocumentTypeOther:
		return true
	}
	return false
}

// OwnerKind tags the ownership variant of a document.
type OwnerKind string

const (
	// OwnerUser marks a user-level document shared across all vehicles of
	// the identity (e.g. a driving license).
	OwnerUser OwnerKind = "user"
	// OwnerVehicle attaches the document to one vehicle.
	OwnerVehicle OwnerKind = "vehicle"
	// OwnerLog attaches the document to one maintenance log (an invoice).
	OwnerLog OwnerKind = "log"
)

// DocumentOwner is a tagged variant: a document belongs to a vehicle, to a
// maintenance log, or to the user directly. Modelling it this way keeps the
// illegal combinations of two nullable foreign keys unrepresentable.
type DocumentOwner struct {
	Kind OwnerKind
	// ID is the vehicle or log identifier; empty for OwnerUser.
	ID string
}

func UserOwned() DocumentOwner             { return DocumentOwner{Kind: OwnerUser} }
func VehicleOwned(id string) DocumentOwner { return DocumentOwner{Kind: OwnerVehicle, ID: id} }
func LogOwned(id string) DocumentOwner     { return DocumentOwner{Kind: OwnerLog, ID: id} }

// Valid reports whether the variant is internally consistent.
func (o DocumentOwner) Valid() bool {
	switch o.Kind {
	case OwnerUser:
		return o.ID == ""
	case OwnerVehicle, OwnerLog:
		return o.ID != ""
	}
	return false
}

// Document is a scanned paper (registration, insurance, invoice, ...) made
// of ordered pages. Cover fields mirror the first page for cheap previews.
type Document struct {
	SyncMeta

	Type  DocumentType
	Owner DocumentOwner

	// Reference is an optional human-readable identifier (policy number,
	// invoice number, ...).
	Reference string

	// ExpiryDate is epoch milliseconds; 0 means no expiry.
	ExpiryDate int64

	// CoverCachePath / CoverRemotePath mirror page 0's paths.
	CoverCachePath  string
	CoverRemotePath string
}
