// Package models defines the client-side entities persisted in the local
// store and reconciled with the remote backend.
package models

import (
	"sort"
	"strings"
	"time"
)

// SyncMeta carries the columns every synced entity shares.
//
// Timestamps are epoch milliseconds. DeletedAt == 0 means the row is live;
// a non-zero value is the soft-delete (tombstone) time. OwnerID is stamped
// by the push phase and trusted from pulls. Dirty and ChangedFields are
// local-only: they are never sent to the backend and are cleared together
// when a sync cycle pushes the record.
type SyncMeta struct {
	ID        string
	CreatedAt int64
	UpdatedAt int64
	DeletedAt int64
	OwnerID   string

	Dirty         bool
	ChangedFields string
}

// Deleted reports whether the record carries a tombstone.
func (m *SyncMeta) Deleted() bool { return m.DeletedAt != 0 }

// MarkChanged sets the dirty flag and unions fields into ChangedFields,
// keeping the set sorted and comma-separated.
func (m *SyncMeta) MarkChanged(fields ...string) {
	m.Dirty = true
	set := make(map[string]struct{})
	if m.ChangedFields != "" {
		for _, f := range strings.Split(m.ChangedFields, ",") {
			set[f] = struct{}{}
		}
	}
	for _, f := range fields {
		set[f] = struct{}{}
	}
	merged := make([]string, 0, len(set))
	for f := range set {
		merged = append(merged, f)
	}
	sort.Strings(merged)
	m.ChangedFields = strings.Join(merged, ",")
}

// ClearDirty resets the local change tracking after a successful push.
func (m *SyncMeta) ClearDirty() {
	m.Dirty = false
	m.ChangedFields = ""
}

// SyncRef identifies one row as it looked when a push snapshot was taken.
// Clearing dirty flags keys on both fields so an edit committed after the
// snapshot (with a newer UpdatedAt) keeps its flag and is pushed next cycle.
type SyncRef struct {
	ID        string
	UpdatedAt int64
}

// NowMillis returns the current time as epoch milliseconds.
func NowMillis() int64 { return time.Now().UnixMilli() }
