package remote

import (
	"context"
	"sync"

	"github.com/carnetapp/carnet/internal/client/models"
)

// InMemory implements Client with plain maps. It backs engine tests and
// serves as the reference behavior for the boundary: owner scoping,
// tombstoned deletes, idempotent writes.
type InMemory struct {
	mu        sync.Mutex
	vehicles  map[string]models.Vehicle
	logs      map[string]models.MaintenanceLog
	documents map[string]models.Document

	// Err, when set, is returned by every call. Tests use it to simulate an
	// unreachable backend.
	Err error
}

func NewInMemory() *InMemory {
	return &InMemory{
		vehicles:  make(map[string]models.Vehicle),
		logs:      make(map[string]models.MaintenanceLog),
		documents: make(map[string]models.Document),
	}
}

func (m *InMemory) PullVehicles(ctx context.Context, ownerID string, since int64) ([]models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Vehicle
	for _, v := range m.vehicles {
		if v.OwnerID == ownerID && v.UpdatedAt > since {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *InMemory) PullLogs(ctx context.Context, ownerID string, since int64) ([]models.MaintenanceLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.MaintenanceLog
	for _, l := range m.logs {
		if l.OwnerID == ownerID && l.UpdatedAt > since {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *InMemory) PullDocuments(ctx context.Context, ownerID string, since int64) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Document
	for _, d := range m.documents {
		if d.OwnerID == ownerID && d.UpdatedAt > since {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *InMemory) UpsertVehicles(ctx context.Context, rows []models.Vehicle, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, v := range rows {
		v.ClearDirty()
		v.UpdatedAt = at
		m.vehicles[v.ID] = v
	}
	return nil
}

func (m *InMemory) UpsertLogs(ctx context.Context, rows []models.MaintenanceLog, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, l := range rows {
		l.ClearDirty()
		l.UpdatedAt = at
		m.logs[l.ID] = l
	}
	return nil
}

func (m *InMemory) UpsertDocuments(ctx context.Context, rows []models.Document, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, d := range rows {
		d.ClearDirty()
		d.UpdatedAt = at
		d.CoverCachePath = ""
		m.documents[d.ID] = d
	}
	return nil
}

func (m *InMemory) DeleteVehicles(ctx context.Context, ownerID string, ids []string, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, id := range ids {
		v, ok := m.vehicles[id]
		if !ok || v.OwnerID != ownerID || v.Deleted() {
			continue
		}
		v.DeletedAt = at
		v.UpdatedAt = at
		m.vehicles[id] = v
	}
	return nil
}

func (m *InMemory) DeleteLogs(ctx context.Context, ownerID string, ids []string, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, id := range ids {
		l, ok := m.logs[id]
		if !ok || l.OwnerID != ownerID || l.Deleted() {
			continue
		}
		l.DeletedAt = at
		l.UpdatedAt = at
		m.logs[id] = l
	}
	return nil
}

func (m *InMemory) DeleteDocuments(ctx context.Context, ownerID string, ids []string, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, id := range ids {
		d, ok := m.documents[id]
		if !ok || d.OwnerID != ownerID || d.Deleted() {
			continue
		}
		d.DeletedAt = at
		d.UpdatedAt = at
		m.documents[id] = d
	}
	return nil
}

// Vehicle returns the stored row, for test assertions.
func (m *InMemory) Vehicle(id string) (models.Vehicle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	return v, ok
}

// Log returns the stored row, for test assertions.
func (m *InMemory) Log(id string) (models.MaintenanceLog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	return l, ok
}

// Document returns the stored row, for test assertions.
func (m *InMemory) Document(id string) (models.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	return d, ok
}
