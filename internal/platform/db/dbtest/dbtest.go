// Package dbtest opens the integration database for store tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"refpay/internal/platform/db"
)

// migrationLock serializes migrations when several test binaries share one
// database.
const migrationLock = 7_301_884

// Open connects to TEST_DATABASE_URL and applies the embedded migrations.
// The test is skipped when the variable is unset.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()
	_, err = conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLock)
	require.NoError(t, err)
	defer func() { _, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLock) }()

	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

// Unique returns prefix with a random suffix so tests sharing a database do
// not collide on natural keys.
func Unique(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
