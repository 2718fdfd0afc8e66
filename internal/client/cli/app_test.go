package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnetapp/carnet/internal/client/attachments"
	"github.com/carnetapp/carnet/internal/client/config"
	"github.com/carnetapp/carnet/internal/client/identity"
	"github.com/carnetapp/carnet/internal/client/models"
	"github.com/carnetapp/carnet/internal/client/services"
	"github.com/carnetapp/carnet/internal/client/state"
	"github.com/carnetapp/carnet/internal/client/store"
	"github.com/carnetapp/carnet/internal/logging"
)

// newTestApp wires an App against an in-memory store with no remote
// backend, the way a fresh offline install would look.
func newTestApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sf, err := state.Open(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	pipe, err := attachments.NewPipeline(filepath.Join(t.TempDir(), "cache"), nil, time.Minute, log)
	require.NoError(t, err)

	a := &App{
		config: &config.Config{SyncTimeout: time.Second},
		log:    log,
		store:  st,
		state:  sf,
		guard:  identity.NewGuard(st, sf, log),
		reader: bufio.NewReader(bytes.NewReader(nil)),
		out:    io.Discard,
	}
	a.svc = services.New(st, pipe, log, a.currentUser)
	return a
}

func signedToken(t *testing.T, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: subject})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func stubToken(t *testing.T, token string) {
	t.Helper()
	orig := getToken
	getToken = func(_ io.Writer) (string, error) { return token, nil }
	t.Cleanup(func() { getToken = orig })
}

func stubText(t *testing.T, answers ...string) {
	t.Helper()
	orig := getSimpleText
	i := 0
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if i >= len(answers) {
			t.Fatalf("unexpected prompt #%d", i)
		}
		s := answers[i]
		i++
		return s, nil
	}
	t.Cleanup(func() { getSimpleText = orig })
}

func TestLogin_SetsIdentityAndPersistsToken(t *testing.T) {
	a := newTestApp(t)
	token := signedToken(t, "user-1")
	stubToken(t, token)

	require.NoError(t, a.Login(context.Background()))

	assert.Equal(t, "user-1", a.user)
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, token, a.state.Token())
	assert.Equal(t, "user-1", a.state.Identity())
}

func TestLogin_GarbageTokenFails(t *testing.T) {
	a := newTestApp(t)
	stubToken(t, "not-a-jwt")

	require.Error(t, a.Login(context.Background()))
	assert.Empty(t, a.user)
	assert.Empty(t, a.state.Token())
}

func TestLogout_WipesLocalData(t *testing.T) {
	a := newTestApp(t)
	stubToken(t, signedToken(t, "user-1"))
	require.NoError(t, a.Login(context.Background()))

	stubText(t, "Honda", "CB500F", "", "2019", "12000")
	require.NoError(t, a.AddVehicle(context.Background()))
	vs, err := a.svc.Vehicles(context.Background())
	require.NoError(t, err)
	require.Len(t, vs, 1)

	require.NoError(t, a.Logout(context.Background()))

	assert.Empty(t, a.user)
	assert.Empty(t, a.state.Token())
	assert.Empty(t, a.state.Identity())
	vs, err = a.svc.Vehicles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vs, "local data wiped on sign-out")
}

func TestLogout_WhenNotLoggedInIsANoop(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.Logout(context.Background()))
}

func TestAddVehicleAndList(t *testing.T) {
	a := newTestApp(t)

	stubText(t, "Toyota", "Corolla", "JTDBU4EE9A9123456", "2021", "43000")
	require.NoError(t, a.AddVehicle(context.Background()))

	var out bytes.Buffer
	a.out = &out
	require.NoError(t, a.Vehicles(context.Background()))
	assert.Contains(t, out.String(), "Toyota Corolla (2021)")
	assert.Contains(t, out.String(), "43000 km")
}

func TestAddLogAndList(t *testing.T) {
	a := newTestApp(t)

	stubText(t, "Honda", "CB500F", "", "2019", "12000")
	require.NoError(t, a.AddVehicle(context.Background()))
	vs, err := a.svc.Vehicles(context.Background())
	require.NoError(t, err)
	require.Len(t, vs, 1)

	stubText(t, "Oil change", "periodic", "49.99", "12500", "2026-03-01", "5W-30")
	require.NoError(t, a.AddLog(context.Background(), []string{vs[0].ID}))

	var out bytes.Buffer
	a.out = &out
	require.NoError(t, a.Logs(context.Background(), []string{vs[0].ID}))
	assert.Contains(t, out.String(), "Oil change")
	assert.Contains(t, out.String(), "2026-03-01")
	assert.Contains(t, out.String(), "49.99")
}

func TestLogs_CategoryFilter(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	stubText(t, "Honda", "CB500F", "", "2019", "12000")
	require.NoError(t, a.AddVehicle(ctx))
	vs, err := a.svc.Vehicles(ctx)
	require.NoError(t, err)
	require.Len(t, vs, 1)

	_, err = a.svc.CreateLog(ctx, services.LogInput{
		VehicleID: vs[0].ID, Title: "Oil change", Category: models.LogCategoryPeriodic,
		Mileage: 12500, ServiceDate: 1756000000000,
	})
	require.NoError(t, err)
	_, err = a.svc.CreateLog(ctx, services.LogInput{
		VehicleID: vs[0].ID, Title: "Brake pads", Category: models.LogCategoryRepair,
		Mileage: 12600, ServiceDate: 1756100000000,
	})
	require.NoError(t, err)

	var out bytes.Buffer
	a.out = &out
	require.NoError(t, a.Logs(ctx, []string{vs[0].ID, "repair"}))
	assert.Contains(t, out.String(), "Brake pads")
	assert.NotContains(t, out.String(), "Oil change")
}

func TestDeleteVehicle_UnknownIDIsReported(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	a.out = &out
	require.NoError(t, a.DeleteVehicle(context.Background(), []string{"nope"}))
	assert.Contains(t, out.String(), "No such vehicle")
}

func TestSync_WithoutRemoteIsOffline(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	a.out = &out
	require.NoError(t, a.Sync(context.Background()))
	assert.Contains(t, out.String(), "offline")
}

func TestStatus_Offline(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	a.out = &out
	require.NoError(t, a.Status(context.Background()))
	assert.Contains(t, out.String(), "not logged in")
	assert.Contains(t, out.String(), "offline")
}
