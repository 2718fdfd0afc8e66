package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/carnetapp/carnet/internal/client/auth"
)

// getSimpleText and getToken are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getToken = GetToken

// Login prompts for an access token, extracts the user identity from it and
// hands the identity to the guard.
//
// The guard decides what happens to local data: first login on a fresh
// install adopts it, logging in as the same user keeps it, and logging in as
// a different user wipes it first. The token is persisted so the next CLI
// session can restore the identity without prompting again.
func (a *App) Login(ctx context.Context) error {
	token, err := getToken(a.out)
	if err != nil {
		return err
	}

	subject, err := auth.SubjectFromToken(token)
	if err != nil {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	a.guard.Ensure(ctx, subject)
	if err := a.state.SetToken(token); err != nil {
		return err
	}
	a.user = subject

	fmt.Fprintf(a.out, "Logged in as %s\n", subject)
	return nil
}

// Logout signs the user out and wipes local data. The stored token is
// cleared so the next session starts anonymous instead of tripping over a
// stale marker.
func (a *App) Logout(ctx context.Context) error {
	if a.user == "" {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}

	a.guard.SignOut(ctx)
	if err := a.state.SetToken(""); err != nil {
		return err
	}
	a.user = ""

	fmt.Fprintln(a.out, "Logged out, local data removed")
	return nil
}
