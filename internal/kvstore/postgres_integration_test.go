//go:build integration

package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgresScopesRecordsByClient(t *testing.T) {
	ctx := context.Background()
	connStr, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	kiosk, err := OpenPostgres(ctx, connStr, "kiosk-1")
	require.NoError(t, err)
	defer kiosk.Close()

	other, err := OpenPostgres(ctx, connStr, "kiosk-2")
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, kiosk.Put(ctx, "liftcoach_offline_queue_v1", []byte(`[{"action":"ping"}]`)))
	require.NoError(t, kiosk.Put(ctx, "liftcoach_offline_queue_v1", []byte(`[]`)))

	got, ok, err := kiosk.Get(ctx, "liftcoach_offline_queue_v1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `[]`, string(got))

	_, ok, err = other.Get(ctx, "liftcoach_offline_queue_v1")
	require.NoError(t, err)
	require.False(t, ok)
}

func setupPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("liftcoach"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	return connStr, func() { _ = pg.Terminate(ctx) }
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
