// Package state persists the few values that must survive outside the
// local database: the sync checkpoint and the identity marker. Keeping
// them out of the store lets an identity wipe clear every table without
// losing track of who the data belonged to.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/carnetapp/carnet/internal/filex"
)

type document struct {
	LastSyncedAt int64  `json:"lastSyncedAt"`
	Identity     string `json:"identity,omitempty"`
	Token        string `json:"token,omitempty"`
}

// File is a small file-backed slot store. Every setter rewrites the whole
// file atomically, so a crash mid-write leaves the previous content intact.
type File struct {
	path string

	mu  sync.Mutex
	doc document
}

// Open loads the state file at path, creating parent directories as needed.
// A missing file starts empty.
func Open(path string) (*File, error) {
	if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	f := &File{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &f.doc); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	return f, nil
}

func (f *File) save() error {
	data, err := json.MarshalIndent(&f.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return filex.WriteFileAtomic(f.path, data, 0o600)
}

// Checkpoint returns the timestamp of the last fully completed sync cycle,
// 0 if none has completed yet.
func (f *File) Checkpoint() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.LastSyncedAt
}

// SetCheckpoint durably records at as the last completed cycle start.
func (f *File) SetCheckpoint(at int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.doc.LastSyncedAt
	f.doc.LastSyncedAt = at
	if err := f.save(); err != nil {
		f.doc.LastSyncedAt = prev
		return err
	}
	return nil
}

// Identity returns the recorded identity marker, "" if none.
func (f *File) Identity() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Identity
}

// SetIdentity durably records id as the data owner.
func (f *File) SetIdentity(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.doc
	f.doc.Identity = id
	if err := f.save(); err != nil {
		f.doc = prev
		return err
	}
	return nil
}

// Token returns the stored access token, "" if none.
func (f *File) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Token
}

// SetToken durably stores the access token so the next session restores the
// same identity without a fresh login.
func (f *File) SetToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.doc
	f.doc.Token = token
	if err := f.save(); err != nil {
		f.doc = prev
		return err
	}
	return nil
}

// Reset clears the identity marker, token and checkpoint together. Used
// after a wipe so the next session starts from a clean slate.
func (f *File) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.doc
	f.doc = document{}
	if err := f.save(); err != nil {
		f.doc = prev
		return err
	}
	return nil
}
