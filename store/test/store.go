package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cce-project/relay/internal/profile"
	"github.com/cce-project/relay/store"
	"github.com/cce-project/relay/store/db"
)

// NewTestingStore opens a migrated store for the driver named by RELAY_TEST_DRIVER.
// SQLite in a temp dir is used unless a container driver is requested.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	p := getTestingProfile(ctx, t)
	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	s := store.New(driver, p)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func getTestingProfile(ctx context.Context, t *testing.T) *profile.Profile {
	t.Helper()
	dir := t.TempDir()
	p := &profile.Profile{
		Mode:   "dev",
		Data:   dir,
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "relay_test.db"),
	}
	switch os.Getenv("RELAY_TEST_DRIVER") {
	case "postgres":
		p.Driver = "postgres"
		p.DSN = startPostgres(ctx, t)
	case "mysql":
		p.Driver = "mysql"
		p.DSN = startMySQL(ctx, t)
	}
	require.NoError(t, p.Validate())
	return p
}
