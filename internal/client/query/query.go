// Package query implements composable predicate queries over the local
// store: point-in-time snapshots and live subscriptions that re-deliver a
// fresh snapshot after every committed transaction touching the observed
// tables.
//
// Row counts here are small (hundreds, not millions), so a notification
// re-runs the fetch and re-sorts rather than diffing incrementally.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/carnetapp/carnet/internal/client/store"
)

// Predicate filters rows. A nil Predicate keeps everything.
type Predicate[T any] func(T) bool

// And combines predicates; all must match.
func And[T any](preds ...Predicate[T]) Predicate[T] {
	return func(v T) bool {
		for _, p := range preds {
			if p != nil && !p(v) {
				return false
			}
		}
		return true
	}
}

// Or matches when at least one predicate matches.
func Or[T any](preds ...Predicate[T]) Predicate[T] {
	return func(v T) bool {
		for _, p := range preds {
			if p != nil && p(v) {
				return true
			}
		}
		return false
	}
}

// Spec describes one live or one-shot query.
type Spec[T any] struct {
	// Fetch loads the candidate rows (repositories already exclude
	// soft-deleted rows from their listing queries).
	Fetch func(ctx context.Context) ([]T, error)
	// Tables the fetch reads from; drives observation.
	Tables []store.Table
	// Where filters rows; nil keeps all.
	Where Predicate[T]
	// Less orders the result; nil keeps fetch order. Ties are always broken
	// by ID so iteration order is deterministic across snapshots.
	Less func(a, b T) bool
	// ID extracts the row identifier used for tie-breaking.
	ID func(T) string
}

// Snapshot materializes the query once.
func Snapshot[T any](ctx context.Context, spec Spec[T]) ([]T, error) {
	rows, err := spec.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("query fetch: %w", err)
	}

	out := rows
	if spec.Where != nil {
		out = make([]T, 0, len(rows))
		for _, row := range rows {
			if spec.Where(row) {
				out = append(out, row)
			}
		}
	}

	if spec.Less != nil {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if spec.Less(a, b) {
				return true
			}
			if spec.Less(b, a) {
				return false
			}
			if spec.ID == nil {
				return false
			}
			return spec.ID(a) < spec.ID(b)
		})
	}

	return out, nil
}

// Subscription is a live query handle. Cancel stops deliveries; it is safe
// to call more than once.
type Subscription struct {
	cancel func()
}

func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Observe delivers an initial snapshot, then re-evaluates and re-delivers
// synchronously after every committed transaction that touches the spec's
// tables, until the subscription is cancelled. A fetch error after
// subscription is reported through onError (which may be nil).
func Observe[T any](ctx context.Context, n *store.Notifier, spec Spec[T],
	deliver func([]T), onError func(error)) (*Subscription, error) {

	snap, err := Snapshot(ctx, spec)
	if err != nil {
		return nil, err
	}

	cancel := n.Subscribe(spec.Tables, func() {
		rows, err := Snapshot(ctx, spec)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		deliver(rows)
	})

	deliver(snap)
	return &Subscription{cancel: cancel}, nil
}
