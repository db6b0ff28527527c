package pg_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/resilientcore/resilientcore/adapters/pg"
	"github.com/resilientcore/resilientcore/lock"
	"github.com/resilientcore/resilientcore/locktest"
)

func requirePool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("RESILIENTCORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RESILIENTCORE_TEST_POSTGRES_DSN not set; skipping Postgres adapter conformance")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestAdapterConformance(t *testing.T) {
	pool := requirePool(t)

	locktest.RunAdapterConformance(t, func(t *testing.T) lock.Adapter {
		a := pg.NewAdapter(pool, pg.WithTable("resilientcore_locks_conformance"))
		require.NoError(t, a.EnsureSchema(context.Background()))
		_, err := pool.Exec(context.Background(), `TRUNCATE TABLE public.resilientcore_locks_conformance`)
		require.NoError(t, err)
		return a
	})
}
