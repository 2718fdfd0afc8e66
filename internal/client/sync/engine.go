// Package sync reconciles the local store with the remote backend: pull
// remote changes since the checkpoint, merge them locally, push local dirty
// rows, then advance the checkpoint. Every step is idempotent so a failed
// cycle is simply retried from the old checkpoint.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/carnetapp/carnet/internal/client/attachments"
	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/client/repositories/documents"
	"github.com/carnetapp/carnet/internal/client/repositories/logs"
	"github.com/carnetapp/carnet/internal/client/repositories/pages"
	"github.com/carnetapp/carnet/internal/client/repositories/vehicles"
	"github.com/carnetapp/carnet/internal/client/state"
	"github.com/carnetapp/carnet/internal/client/store"
	"github.com/carnetapp/carnet/internal/common"
	"github.com/carnetapp/carnet/internal/logging"
	"github.com/carnetapp/carnet/internal/remote"
)

// Phase names the engine's current position in a cycle.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhasePulling     Phase = "pulling"
	PhaseReconciling Phase = "reconciling"
	PhasePushing     Phase = "pushing"
	PhaseFailed      Phase = "failed"
)

// CycleResult records the outcome of one sync cycle.
type CycleResult struct {
	StartedAt  int64
	FinishedAt int64

	Pulled int
	Pushed int

	// Err is the step error that aborted the cycle, nil on success.
	Err error
}

// WipeChecker reports whether an identity wipe is running. The engine skips
// cycles while it is.
type WipeChecker interface {
	WipeInProgress() bool
}

// Engine drives sync cycles. Exactly one cycle runs at a time; a second
// trigger coalesces into common.ErrSyncBusy.
type Engine struct {
	store    *store.Store
	remote   remote.Client
	state    *state.File
	attach   *attachments.Pipeline
	wipes    WipeChecker
	identity func() string
	log      logging.Logger
	now      func() int64

	running atomic.Bool

	mu    sync.Mutex
	phase Phase
	last  *CycleResult
}

// New wires an engine. identity returns the authenticated user, "" when
// signed out. attach may be nil when blob storage is not configured.
func New(st *store.Store, rc remote.Client, sf *state.File, attach *attachments.Pipeline,
	wipes WipeChecker, identity func() string, log logging.Logger) *Engine {
	return &Engine{
		store:    st,
		remote:   rc,
		state:    sf,
		attach:   attach,
		wipes:    wipes,
		identity: identity,
		log:      log,
		now:      models.NowMillis,
		phase:    PhaseIdle,
	}
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// LastResult returns the most recent cycle's outcome, nil before the first.
func (e *Engine) LastResult() *CycleResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

// Run executes one full cycle. It returns common.ErrSyncBusy when a cycle
// is already running and common.ErrWipeInProgress while an identity wipe
// runs. Step failures abort the cycle without advancing the checkpoint and
// are reported in the result, not as a run error.
func (e *Engine) Run(ctx context.Context) (*CycleResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, common.ErrSyncBusy
	}
	defer e.running.Store(false)

	if e.wipes != nil && e.wipes.WipeInProgress() {
		return nil, common.ErrWipeInProgress
	}
	owner := e.identity()
	if owner == "" {
		return nil, fmt.Errorf("%w: sync requires a signed-in identity", common.ErrValidation)
	}

	res := &CycleResult{StartedAt: e.now()}
	res.Err = e.cycle(ctx, owner, res)
	res.FinishedAt = e.now()

	e.mu.Lock()
	e.last = res
	if res.Err != nil {
		e.phase = PhaseFailed
	} else {
		e.phase = PhaseIdle
	}
	e.mu.Unlock()

	if res.Err != nil {
		e.log.Warn(ctx, "sync cycle failed", "error", res.Err)
	} else {
		e.log.Info(ctx, "sync cycle completed", "pulled", res.Pulled, "pushed", res.Pushed)
	}
	return res, nil
}

func (e *Engine) cycle(ctx context.Context, owner string, res *CycleResult) error {
	since := e.state.Checkpoint()

	e.setPhase(PhasePulling)
	pulled, err := e.pull(ctx, owner, since)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	res.Pulled = len(pulled.vehicles) + len(pulled.logs) + len(pulled.documents)

	e.setPhase(PhaseReconciling)
	if err := e.reconcile(ctx, since, pulled); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	e.setPhase(PhasePushing)
	pushed, err := e.push(ctx, owner, res.StartedAt)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	res.Pushed = pushed

	if err := e.state.SetCheckpoint(res.StartedAt); err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	return nil
}

type pullSet struct {
	vehicles  []models.Vehicle
	logs      []models.MaintenanceLog
	documents []models.Document
}

func (e *Engine) pull(ctx context.Context, owner string, since int64) (*pullSet, error) {
	set := &pullSet{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := e.remote.PullVehicles(ctx, owner, since)
		set.vehicles = rows
		return err
	})
	g.Go(func() error {
		rows, err := e.remote.PullLogs(ctx, owner, since)
		set.logs = rows
		return err
	})
	g.Go(func() error {
		rows, err := e.remote.PullDocuments(ctx, owner, since)
		set.documents = rows
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}

// reconcile merges the pulled rows into the local store. Remote rows either
// did not exist before the checkpoint (inserted as-is), changed since
// (overwritten unless a local un-pushed edit is in flight), or carry a
// tombstone (soft-deleted locally, idempotent).
func (e *Engine) reconcile(ctx context.Context, since int64, set *pullSet) error {
	return e.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := e.reconcileVehicles(ctx, tx, since, set.vehicles); err != nil {
			return err
		}
		if err := e.reconcileLogs(ctx, tx, since, set.logs); err != nil {
			return err
		}
		return e.reconcileDocuments(ctx, tx, since, set.documents)
	})
}

func (e *Engine) reconcileVehicles(ctx context.Context, tx *store.Tx, since int64, rows []models.Vehicle) error {
	if len(rows) == 0 {
		return nil
	}
	repo := vehicles.NewSQLiteRepository(tx)
	for i := range rows {
		r := rows[i]
		local, err := repo.GetByID(ctx, r.ID)
		switch {
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return err
		case r.Deleted():
			// Delete wins even over a dirty local copy.
		case err == nil && !r.Deleted() && r.CreatedAt <= since && local.Dirty:
			// Stale remote snapshot from before this device's pending
			// edit: the local edit wins until it is pushed.
			continue
		}
		r.ClearDirty()
		if err := repo.Upsert(ctx, &r); err != nil {
			return err
		}
	}
	tx.Touch(store.TableVehicles)
	return nil
}

func (e *Engine) reconcileLogs(ctx context.Context, tx *store.Tx, since int64, rows []models.MaintenanceLog) error {
	if len(rows) == 0 {
		return nil
	}
	repo := logs.NewSQLiteRepository(tx)
	for i := range rows {
		r := rows[i]
		local, err := repo.GetByID(ctx, r.ID)
		switch {
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return err
		case err == nil && !r.Deleted() && r.CreatedAt <= since && local.Dirty:
			continue
		}
		r.ClearDirty()
		if err := repo.Upsert(ctx, &r); err != nil {
			return err
		}
	}
	tx.Touch(store.TableMaintenanceLogs)
	return nil
}

func (e *Engine) reconcileDocuments(ctx context.Context, tx *store.Tx, since int64, rows []models.Document) error {
	if len(rows) == 0 {
		return nil
	}
	repo := documents.NewSQLiteRepository(tx)
	pageRepo := pages.NewSQLiteRepository(tx)
	for i := range rows {
		r := rows[i]
		local, err := repo.GetByID(ctx, r.ID)
		switch {
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return err
		case err == nil && !r.Deleted() && r.CreatedAt <= since && local.Dirty:
			continue
		}
		if err == nil {
			// Cache paths never travel; keep what this device has.
			r.CoverCachePath = local.CoverCachePath
		}
		r.ClearDirty()
		if err := repo.Upsert(ctx, &r); err != nil {
			return err
		}
		if r.Deleted() {
			// Pages are a local-only sub-resource; a remote document
			// tombstone cascades to them here.
			if err := pageRepo.SoftDeleteByDocument(ctx, r.ID, r.DeletedAt); err != nil {
				return err
			}
			tx.Touch(store.TableDocumentPages)
		}
	}
	tx.Touch(store.TableDocuments)
	return nil
}

// push sends local dirty rows to the backend: tombstones first in reverse
// dependency order, then live rows in forward dependency order, every row
// stamped with the authenticated owner. On success the pushed rows' dirty
// flags are cleared in one transaction.
func (e *Engine) push(ctx context.Context, owner string, at int64) (int, error) {
	var dirtyVehicles []models.Vehicle
	var dirtyLogs []models.MaintenanceLog
	var dirtyDocs []models.Document

	err := e.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		var err error
		if dirtyVehicles, err = vehicles.NewSQLiteRepository(tx).ListDirty(ctx); err != nil {
			return err
		}
		if dirtyLogs, err = logs.NewSQLiteRepository(tx).ListDirty(ctx); err != nil {
			return err
		}
		dirtyDocs, err = documents.NewSQLiteRepository(tx).ListDirty(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}

	e.backfillCovers(ctx, owner, dirtyDocs)

	var delVehicles, delLogs, delDocs []string
	var liveVehicles []models.Vehicle
	var liveLogs []models.MaintenanceLog
	var liveDocs []models.Document

	for i := range dirtyVehicles {
		dirtyVehicles[i].OwnerID = owner
		if dirtyVehicles[i].Deleted() {
			delVehicles = append(delVehicles, dirtyVehicles[i].ID)
		} else {
			liveVehicles = append(liveVehicles, dirtyVehicles[i])
		}
	}
	for i := range dirtyLogs {
		dirtyLogs[i].OwnerID = owner
		if dirtyLogs[i].Deleted() {
			delLogs = append(delLogs, dirtyLogs[i].ID)
		} else {
			liveLogs = append(liveLogs, dirtyLogs[i])
		}
	}
	for i := range dirtyDocs {
		dirtyDocs[i].OwnerID = owner
		if dirtyDocs[i].Deleted() {
			delDocs = append(delDocs, dirtyDocs[i].ID)
		} else {
			liveDocs = append(liveDocs, dirtyDocs[i])
		}
	}

	if err := e.remote.DeleteDocuments(ctx, owner, delDocs, at); err != nil {
		return 0, err
	}
	if err := e.remote.DeleteLogs(ctx, owner, delLogs, at); err != nil {
		return 0, err
	}
	if err := e.remote.DeleteVehicles(ctx, owner, delVehicles, at); err != nil {
		return 0, err
	}

	if err := e.remote.UpsertVehicles(ctx, liveVehicles, at); err != nil {
		return 0, err
	}
	if err := e.remote.UpsertLogs(ctx, liveLogs, at); err != nil {
		return 0, err
	}
	if err := e.remote.UpsertDocuments(ctx, liveDocs, at); err != nil {
		return 0, err
	}

	pushed := len(dirtyVehicles) + len(dirtyLogs) + len(dirtyDocs)
	if pushed == 0 {
		return 0, nil
	}

	// Clearing keys on the snapshot's updated_at: an edit committed while
	// the push was in flight keeps its dirty flag and goes out next cycle.
	err = e.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := vehicles.NewSQLiteRepository(tx).ClearDirty(ctx, refsOf(dirtyVehicles, func(v models.Vehicle) models.SyncRef { return models.SyncRef{ID: v.ID, UpdatedAt: v.UpdatedAt} })); err != nil {
			return err
		}
		if err := logs.NewSQLiteRepository(tx).ClearDirty(ctx, refsOf(dirtyLogs, func(l models.MaintenanceLog) models.SyncRef { return models.SyncRef{ID: l.ID, UpdatedAt: l.UpdatedAt} })); err != nil {
			return err
		}
		if err := documents.NewSQLiteRepository(tx).ClearDirty(ctx, refsOf(dirtyDocs, func(d models.Document) models.SyncRef { return models.SyncRef{ID: d.ID, UpdatedAt: d.UpdatedAt} })); err != nil {
			return err
		}
		tx.Touch(store.TableVehicles, store.TableMaintenanceLogs, store.TableDocuments)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pushed, nil
}

// backfillCovers uploads cover files that were cached but never made it to
// blob storage, so the pushed document rows carry a remote path. Upload
// failures just leave the path empty for the next cycle.
func (e *Engine) backfillCovers(ctx context.Context, owner string, docs []models.Document) {
	if e.attach == nil {
		return
	}
	for i := range docs {
		d := &docs[i]
		if d.Deleted() || d.CoverRemotePath != "" || d.CoverCachePath == "" {
			continue
		}
		remotePath := e.attach.Upload(ctx, d.CoverCachePath, owner)
		if remotePath == "" {
			continue
		}
		d.CoverRemotePath = remotePath
		d.MarkChanged("cover_remote_path")

		err := e.store.Transact(ctx, func(ctx context.Context, tx *store.Tx) error {
			if err := documents.NewSQLiteRepository(tx).Upsert(ctx, d); err != nil {
				return err
			}
			tx.Touch(store.TableDocuments)
			return nil
		})
		if err != nil {
			e.log.Warn(ctx, "recording backfilled cover failed", "document", d.ID, "error", err)
		}
	}
}

func refsOf[T any](rows []T, ref func(T) models.SyncRef) []models.SyncRef {
	out := make([]models.SyncRef, len(rows))
	for i, r := range rows {
		out[i] = ref(r)
	}
	return out
}
