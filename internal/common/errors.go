// Package common defines shared constants and sentinel errors used across
// the carnet engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Mutation API errors. ErrValidation covers missing required fields and
	// referential-integrity violations; the transaction is rolled back and
	// nothing is persisted.
	ErrValidation = errors.New("validation error")

	// Store concurrency errors.
	ErrStoreBusy = errors.New("store busy")

	// Sync engine errors. ErrSyncBusy means a cycle is already running and
	// the trigger was coalesced. ErrWipeInProgress means an identity wipe is
	// underway and the cycle was skipped.
	ErrSyncBusy       = errors.New("sync already in progress")
	ErrWipeInProgress = errors.New("identity wipe in progress")

	// Attachment errors. ErrUnavailable means neither the local cache nor
	// remote storage could produce a displayable source.
	ErrUnavailable = errors.New("attachment unavailable")
)
