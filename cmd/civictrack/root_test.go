package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitesh/civictrack/internal/db"
	"github.com/nitesh/civictrack/internal/store"
	"github.com/nitesh/civictrack/pkg/models"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"serve", "migrate", "location", "distance", "nearby"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}

	sub := make(map[string]bool)
	for _, c := range locationCmd.Commands() {
		sub[c.Name()] = true
	}
	assert.True(t, sub["set"] && sub["show"] && sub["clear"])
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

// setupEnv points config at a temp SQLite database, location file and a
// geocoder that never matches.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	gc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(gc.Close)

	dbPath := filepath.Join(dir, "civictrack.db")
	t.Setenv("CIVICTRACK_STORE_DRIVER", "sqlite")
	t.Setenv("CIVICTRACK_STORE_DATABASE_URL", dbPath)
	t.Setenv("CIVICTRACK_LOCATION_FILE", filepath.Join(dir, "storage.json"))
	t.Setenv("CIVICTRACK_GEOCODE_BASE_URL", gc.URL)
	t.Setenv("CIVICTRACK_LOG_LEVEL", "error")
	return dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestDistanceCommand(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "distance", "0", "0", "0", "0.01")
	require.NoError(t, err)
	assert.Equal(t, "1.1 km\n", out)

	_, err = execute(t, "distance", "0", "0", "north", "0")
	assert.Error(t, err)
}

func TestLocationAndNearbyCommands(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := execute(t, "location", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "no saved location")

	_, err = execute(t, "migrate")
	require.NoError(t, err)

	_, err = execute(t, "nearby")
	assert.Error(t, err, "nearby requires a saved location")

	out, err = execute(t, "location", "set", "--lat", "0", "--lon", "0")
	require.NoError(t, err)
	assert.Contains(t, out, `"isManual": false`)

	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, dbPath, db.DefaultOptions)
	require.NoError(t, err)
	lat, near, far := 0.0, 0.01, 1.0
	s := store.NewSQLStore(conn)
	require.NoError(t, s.Create(ctx, &models.Issue{Title: "Cracked curb", Category: models.CategoryRoad, Latitude: &lat, Longitude: &near}))
	require.NoError(t, s.Create(ctx, &models.Issue{Title: "Far away", Category: models.CategoryRoad, Latitude: &lat, Longitude: &far}))
	require.NoError(t, conn.Close())

	out, err = execute(t, "nearby", "--radius", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Cracked curb")
	assert.Contains(t, out, "1.1 km")
	assert.NotContains(t, out, "Far away")

	_, err = execute(t, "nearby", "--radius", "7")
	assert.Error(t, err)

	out, err = execute(t, "location", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "location cleared")

	out, err = execute(t, "location", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "no saved location")
}
