package services

import (
	"context"
	"os"

	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/client/repositories/documents"
	"github.com/carnetapp/carnet/internal/client/repositories/logs"
	"github.com/carnetapp/carnet/internal/client/repositories/pages"
	"github.com/carnetapp/carnet/internal/client/repositories/vehicles"
	"github.com/carnetapp/carnet/internal/client/store"
	"github.com/carnetapp/carnet/internal/common"
)

// PageSource points at a caller-supplied file to become one document page.
type PageSource struct {
	SourcePath string
	Width      int
	Height     int
}

// DocumentInput carries the caller-supplied fields for a new document.
type DocumentInput struct {
	Type       models.DocumentType
	Owner      models.DocumentOwner
	Reference  string
	ExpiryDate int64
	Pages      []PageSource
}

// DocumentUpdate patches an existing document; nil fields stay untouched.
type DocumentUpdate struct {
	Reference  *string
	ExpiryDate *int64
}

func (s *Service) validateDocumentInput(ctx context.Context, tx *store.Tx, in DocumentInput) error {
	if !models.ValidDocumentType(in.Type) {
		return validationError("unknown document type %q", in.Type)
	}
	if !in.Owner.Valid() {
		return validationError("invalid document ownership")
	}
	// A license is user-level by definition: it must not be pinned to one
	// vehicle or log.
	if in.Type == models.DocumentTypeLicense && in.Owner.Kind != models.OwnerUser {
		return validationError("license documents are user-level")
	}
	if in.Type != models.DocumentTypeLicense && in.Owner.Kind == models.OwnerUser {
		return validationError("%s documents must be attached to a vehicle or log", in.Type)
	}

	switch in.Owner.Kind {
	case models.OwnerVehicle:
		v, err := vehicles.NewSQLiteRepository(tx).GetByID(ctx, in.Owner.ID)
		if err != nil || v.Deleted() {
			return validationError("document references unknown vehicle %s", in.Owner.ID)
		}
	case models.OwnerLog:
		l, err := logs.NewSQLiteRepository(tx).GetByID(ctx, in.Owner.ID)
		if err != nil || l.Deleted() {
			return validationError("document references unknown maintenance log %s", in.Owner.ID)
		}
	}
	return nil
}

// CreateDocument validates and persists a new document with its pages. Page
// files are first copied into the local cache; uploads to blob storage are
// best-effort and backfilled afterwards.
func (s *Service) CreateDocument(ctx context.Context, in DocumentInput) (*models.Document, error) {
	if len(in.Pages) == 0 {
		return nil, validationError("document needs at least one page")
	}

	d := &models.Document{
		Type:       in.Type,
		Owner:      in.Owner,
		Reference:  in.Reference,
		ExpiryDate: in.ExpiryDate,
	}
	d.ID = s.newID()
	now := s.now()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.MarkChanged("type", "owner_kind", "vehicle_id", "log_id", "reference", "expiry_date")

	// Caching happens outside the transaction: it is filesystem work and
	// degrades to the source path on failure.
	newPages := make([]*models.DocumentPage, len(in.Pages))
	for i, src := range in.Pages {
		cached := src.SourcePath
		if s.attach != nil {
			cached = s.attach.Cache(ctx, src.SourcePath)
		}
		p := &models.DocumentPage{
			DocumentID: d.ID,
			CachePath:  cached,
			PageIndex:  i,
			Width:      src.Width,
			Height:     src.Height,
		}
		p.ID = s.newID()
		p.CreatedAt = now
		p.UpdatedAt = now
		newPages[i] = p
	}
	d.CoverCachePath = newPages[0].CachePath
	d.MarkChanged("cover_cache_path")

	err := s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := s.validateDocumentInput(ctx, tx, in); err != nil {
			return err
		}
		if err := documents.NewSQLiteRepository(tx).Upsert(ctx, d); err != nil {
			return err
		}
		pageRepo := pages.NewSQLiteRepository(tx)
		for _, p := range newPages {
			if err := pageRepo.Upsert(ctx, p); err != nil {
				return err
			}
		}
		tx.Touch(store.TableDocuments, store.TableDocumentPages)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.uploadPages(ctx, d, newPages)
	return d, nil
}

// uploadPages pushes the cached pages to blob storage and records the
// remote paths. Best-effort: a failed upload leaves the remote path empty
// for a later sync pass to backfill.
func (s *Service) uploadPages(ctx context.Context, d *models.Document, newPages []*models.DocumentPage) {
	owner := s.identity()
	if s.attach == nil || owner == "" {
		return
	}

	uploaded := make(map[string]string, len(newPages))
	for _, p := range newPages {
		if remote := s.attach.Upload(ctx, p.CachePath, owner); remote != "" {
			uploaded[p.ID] = remote
		}
	}
	if len(uploaded) == 0 {
		return
	}

	err := s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		pageRepo := pages.NewSQLiteRepository(tx)
		docRepo := documents.NewSQLiteRepository(tx)
		now := s.now()

		for _, p := range newPages {
			remote, ok := uploaded[p.ID]
			if !ok {
				continue
			}
			p.RemotePath = remote
			stampUpdate(&p.SyncMeta, now)
			if err := pageRepo.Upsert(ctx, p); err != nil {
				return err
			}
			if p.PageIndex == 0 {
				d.CoverRemotePath = remote
				d.MarkChanged("cover_remote_path")
				stampUpdate(&d.SyncMeta, now)
				if err := docRepo.Upsert(ctx, d); err != nil {
					return err
				}
				tx.Touch(store.TableDocuments)
			}
		}
		tx.Touch(store.TableDocumentPages)
		return nil
	})
	if err != nil {
		s.log.Warn(ctx, "recording uploaded page paths failed", "document", d.ID, "error", err)
	}
}

// UpdateDocument applies the patch to a live document.
func (s *Service) UpdateDocument(ctx context.Context, id string, patch DocumentUpdate) (*models.Document, error) {
	var updated *models.Document

	err := s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		repo := documents.NewSQLiteRepository(tx)
		d, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if d.Deleted() {
			return validationError("document %s is deleted", id)
		}

		if patch.Reference != nil {
			d.Reference = *patch.Reference
			d.MarkChanged("reference")
		}
		if patch.ExpiryDate != nil {
			d.ExpiryDate = *patch.ExpiryDate
			d.MarkChanged("expiry_date")
		}

		stampUpdate(&d.SyncMeta, s.now())
		if err := repo.Upsert(ctx, d); err != nil {
			return err
		}
		tx.Touch(store.TableDocuments)
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDocument soft-deletes the document and its pages, removing remote
// blobs best-effort first.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	return s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		repo := documents.NewSQLiteRepository(tx)
		d, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if d.Deleted() {
			return nil
		}

		at := s.now()
		pageRepo := pages.NewSQLiteRepository(tx)
		s.removeDocumentBlobs(ctx, pageRepo, d)

		if err := pageRepo.SoftDeleteByDocument(ctx, id, at); err != nil {
			return err
		}
		if err := repo.SoftDelete(ctx, id, at); err != nil {
			return err
		}
		tx.Touch(store.TableDocuments, store.TableDocumentPages)
		return nil
	})
}

// AddPage appends a page at the end of the document's page sequence.
func (s *Service) AddPage(ctx context.Context, documentID string, src PageSource) (*models.DocumentPage, error) {
	cached := src.SourcePath
	if s.attach != nil {
		cached = s.attach.Cache(ctx, src.SourcePath)
	}

	p := &models.DocumentPage{
		DocumentID: documentID,
		CachePath:  cached,
		Width:      src.Width,
		Height:     src.Height,
	}
	p.ID = s.newID()
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	err := s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		docRepo := documents.NewSQLiteRepository(tx)
		d, err := docRepo.GetByID(ctx, documentID)
		if err != nil {
			return err
		}
		if d.Deleted() {
			return validationError("document %s is deleted", documentID)
		}

		pageRepo := pages.NewSQLiteRepository(tx)
		existing, err := pageRepo.ListActiveByDocument(ctx, documentID)
		if err != nil {
			return err
		}
		p.PageIndex = len(existing)

		if err := pageRepo.Upsert(ctx, p); err != nil {
			return err
		}
		tx.Touch(store.TableDocumentPages)

		// First page of an empty document becomes the cover.
		if p.PageIndex == 0 {
			d.CoverCachePath = p.CachePath
			d.MarkChanged("cover_cache_path")
			stampUpdate(&d.SyncMeta, s.now())
			if err := docRepo.Upsert(ctx, d); err != nil {
				return err
			}
			tx.Touch(store.TableDocuments)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePage tombstones one page, closes the index gap so the remaining
// indices stay contiguous from 0, and re-mirrors the cover when page 0
// changed.
func (s *Service) DeletePage(ctx context.Context, pageID string) error {
	return s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		pageRepo := pages.NewSQLiteRepository(tx)
		p, err := pageRepo.GetByID(ctx, pageID)
		if err != nil {
			return err
		}
		if p.Deleted() {
			return nil
		}

		at := s.now()
		if s.attach != nil && p.RemotePath != "" {
			_ = s.attach.Remove(ctx, p.RemotePath)
		}
		if err := pageRepo.SoftDelete(ctx, pageID, at); err != nil {
			return err
		}
		tx.Touch(store.TableDocumentPages)

		return s.renumberPages(ctx, tx, p.DocumentID)
	})
}

// ReorderPages rewrites the page sequence to match orderedIDs, which must be
// a permutation of the document's live pages.
func (s *Service) ReorderPages(ctx context.Context, documentID string, orderedIDs []string) error {
	return s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		pageRepo := pages.NewSQLiteRepository(tx)
		existing, err := pageRepo.ListActiveByDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if len(orderedIDs) != len(existing) {
			return validationError("page reorder must include every page exactly once")
		}

		byID := make(map[string]*models.DocumentPage, len(existing))
		for i := range existing {
			byID[existing[i].ID] = &existing[i]
		}

		now := s.now()
		for index, id := range orderedIDs {
			p, ok := byID[id]
			if !ok {
				return validationError("page %s does not belong to document %s", id, documentID)
			}
			delete(byID, id)
			if p.PageIndex == index {
				continue
			}
			p.PageIndex = index
			stampUpdate(&p.SyncMeta, now)
			if err := pageRepo.Upsert(ctx, p); err != nil {
				return err
			}
		}
		tx.Touch(store.TableDocumentPages)

		return s.mirrorCover(ctx, tx, documentID)
	})
}

// renumberPages restores contiguous indices from 0 and refreshes the cover.
func (s *Service) renumberPages(ctx context.Context, tx *store.Tx, documentID string) error {
	pageRepo := pages.NewSQLiteRepository(tx)
	remaining, err := pageRepo.ListActiveByDocument(ctx, documentID)
	if err != nil {
		return err
	}

	now := s.now()
	for i := range remaining {
		p := &remaining[i]
		if p.PageIndex == i {
			continue
		}
		p.PageIndex = i
		stampUpdate(&p.SyncMeta, now)
		if err := pageRepo.Upsert(ctx, p); err != nil {
			return err
		}
	}

	return s.mirrorCover(ctx, tx, documentID)
}

// mirrorCover copies page 0's paths onto the document's cover fields.
func (s *Service) mirrorCover(ctx context.Context, tx *store.Tx, documentID string) error {
	docRepo := documents.NewSQLiteRepository(tx)
	d, err := docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	remaining, err := pages.NewSQLiteRepository(tx).ListActiveByDocument(ctx, documentID)
	if err != nil {
		return err
	}

	coverCache, coverRemote := "", ""
	if len(remaining) > 0 {
		coverCache = remaining[0].CachePath
		coverRemote = remaining[0].RemotePath
	}
	if d.CoverCachePath == coverCache && d.CoverRemotePath == coverRemote {
		return nil
	}

	d.CoverCachePath = coverCache
	d.CoverRemotePath = coverRemote
	d.MarkChanged("cover_cache_path", "cover_remote_path")
	stampUpdate(&d.SyncMeta, s.now())
	if err := docRepo.Upsert(ctx, d); err != nil {
		return err
	}
	tx.Touch(store.TableDocuments)
	return nil
}

// DocumentsForVehicle returns the vehicle's live documents.
func (s *Service) DocumentsForVehicle(ctx context.Context, vehicleID string) ([]models.Document, error) {
	return documents.NewSQLiteRepository(s.store.DB()).ListActiveByVehicle(ctx, vehicleID)
}

// PagesForDocument returns the document's live pages in page order.
func (s *Service) PagesForDocument(ctx context.Context, documentID string) ([]models.DocumentPage, error) {
	return pages.NewSQLiteRepository(s.store.DB()).ListActiveByDocument(ctx, documentID)
}

// ResolvePage returns a readable local file for the page, downloading it
// from blob storage when only the remote copy exists. Pages created on
// another device arrive through sync with a remote path and no cache file;
// resolving one pins it locally. The refreshed cache path is stored without
// dirtying the page, cache paths never leave the device.
func (s *Service) ResolvePage(ctx context.Context, pageID string) (string, error) {
	p, err := pages.NewSQLiteRepository(s.store.DB()).GetByID(ctx, pageID)
	if err != nil {
		return "", err
	}
	if p.Deleted() {
		return "", common.ErrNotFound
	}

	if p.CachePath != "" {
		if _, err := os.Stat(p.CachePath); err == nil {
			return p.CachePath, nil
		}
	}
	if s.attach == nil {
		return "", common.ErrUnavailable
	}

	local, err := s.attach.Materialize(ctx, p.RemotePath)
	if err != nil {
		return "", err
	}

	p.CachePath = local
	err = s.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := pages.NewSQLiteRepository(tx).Upsert(ctx, p); err != nil {
			return err
		}
		tx.Touch(store.TableDocumentPages)
		return nil
	})
	if err != nil {
		return "", err
	}
	return local, nil
}
