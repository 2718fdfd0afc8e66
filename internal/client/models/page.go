package models

// DocumentPage is one scanned page of a document. Pages are a local concept:
// they are seeded at creation time and never pulled or pushed independently
// of their document, so they are never marked dirty; only their timestamps
// and tombstones are maintained.
type DocumentPage struct {
	SyncMeta

	// DocumentID references the owning document and is required.
	DocumentID string

	// CachePath is the local cache file and is required.
	CachePath string
	// RemotePath is set once the page has been uploaded to blob storage.
	RemotePath string

	// PageIndex orders pages within a document, contiguous from 0. The page
	// at index 0 is the one mirrored onto the document's cover fields.
	PageIndex int

	// Width/Height are pixel dimensions; 0 means unknown.
	Width  int
	Height int
}
