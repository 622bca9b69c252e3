//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"attesto/internal/platform/database"
	"attesto/migrations"
	"attesto/pkg/testutil/containers"
)

func TestMigrateIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()

	version, err := database.Migrate(ctx, pg.DB, migrations.FS)
	require.NoError(t, err)
	require.EqualValues(t, 3, version)

	var tables int
	require.NoError(t, pg.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('wallets', 'identity_dids', 'credentials')`,
	).Scan(&tables))
	require.Equal(t, 3, tables)

	// The pool survives the migrator releasing its connection.
	require.NoError(t, pg.DB.PingContext(ctx))
}
