// Package identity keeps the local data set bound to exactly one user.
// Whenever the authenticated identity and the durable marker disagree, the
// local store holds somebody else's data and gets wiped before the new
// identity is recorded.
package identity

import (
	"context"
	"sync/atomic"

	"github.com/carnetapp/carnet/internal/client/state"
	"github.com/carnetapp/carnet/internal/client/store"
	"github.com/carnetapp/carnet/internal/logging"
)

// Guard reconciles the authenticated identity with the durable marker.
type Guard struct {
	store  *store.Store
	state  *state.File
	log    logging.Logger
	wiping atomic.Bool
}

func NewGuard(st *store.Store, sf *state.File, log logging.Logger) *Guard {
	return &Guard{store: st, state: sf, log: log}
}

// WipeInProgress reports whether a wipe is currently running. The sync
// engine refuses to start a cycle while this is true.
func (g *Guard) WipeInProgress() bool {
	return g.wiping.Load()
}

// Identity returns the currently recorded identity marker, "" if none.
func (g *Guard) Identity() string {
	return g.state.Identity()
}

// Ensure brings the marker in line with the authenticated identity id.
// First login records, a differing identity wipes then records, a marker
// without an identity wipes and clears. Wipe failures are logged and do not
// block the session.
func (g *Guard) Ensure(ctx context.Context, id string) {
	marker := g.state.Identity()

	switch {
	case id == "" && marker == "":
		return
	case id == marker:
		return
	case id == "":
		// Ghost marker: data on disk belongs to a user who is no longer
		// signed in.
		g.wipe(ctx, "stale identity marker")
	case marker == "":
		g.log.Info(ctx, "recording first identity", "identity", id)
		if err := g.state.SetIdentity(id); err != nil {
			g.log.Warn(ctx, "recording identity failed", "error", err)
		}
	default:
		g.log.Info(ctx, "identity switched, wiping local data",
			"previous", marker, "identity", id)
		g.wipe(ctx, "identity switch")
		if err := g.state.SetIdentity(id); err != nil {
			g.log.Warn(ctx, "recording identity failed", "error", err)
		}
	}
}

// SignOut wipes the local data set and clears the marker.
func (g *Guard) SignOut(ctx context.Context) {
	g.wipe(ctx, "sign-out")
}

func (g *Guard) wipe(ctx context.Context, reason string) {
	g.wiping.Store(true)
	defer g.wiping.Store(false)

	if err := g.store.Wipe(ctx); err != nil {
		g.log.Warn(ctx, "local data wipe failed", "reason", reason, "error", err)
	}
	if err := g.state.Reset(); err != nil {
		g.log.Warn(ctx, "clearing identity marker failed", "reason", reason, "error", err)
	}
}
