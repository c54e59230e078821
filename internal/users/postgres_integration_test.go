//go:build integration

package users

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "fxgate_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	host, _ := pgContainer.Host(ctx)
	port, _ := pgContainer.MappedPort(ctx, "5432")
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/fxgate_test?sslmode=disable", host, port.Port())

	m, err := migrate.New("file://../../migrations", dsn)
	require.NoError(t, err)
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestPostgresRepository(t *testing.T) {
	pool := setupPostgres(t)
	svc := NewService(NewPostgresRepository(pool), WithSecretHasher(fakeHash))
	ctx := context.Background()

	require.NoError(t, svc.Ping(ctx))

	t.Run("register and look up", func(t *testing.T) {
		user, err := svc.Register(ctx, "pg-alice", "pw")
		require.NoError(t, err)
		assert.Positive(t, user.ID)
		assert.Equal(t, 10, user.Credits)

		found, err := svc.FindByAPIKey(ctx, user.APIKey)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, user.ID, found.ID)
		assert.Equal(t, "hashed:pw", found.PasswordHash)
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := svc.Register(ctx, "pg-alice", "other")
		assert.ErrorIs(t, err, ErrDuplicateUsername)
	})

	t.Run("missing user returns nil", func(t *testing.T) {
		u, err := svc.FindByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("decrement floors at zero", func(t *testing.T) {
		_, err := svc.Register(ctx, "pg-bob", "pw")
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 15; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.DecrementCredits(ctx, "pg-bob")
			}()
		}
		wg.Wait()

		u, err := svc.FindByUsername(ctx, "pg-bob")
		require.NoError(t, err)
		assert.Equal(t, 0, u.Credits)
	})

	t.Run("update and delete", func(t *testing.T) {
		inactive := false
		u, err := svc.Update(ctx, "pg-alice", UpdateRequest{IsActive: &inactive})
		require.NoError(t, err)
		assert.False(t, u.IsActive)

		require.NoError(t, svc.Delete(ctx, "pg-alice"))
		assert.ErrorIs(t, svc.Delete(ctx, "pg-alice"), ErrUserNotFound)

		_, err = svc.Update(ctx, "pg-alice", UpdateRequest{IsActive: &inactive})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("list in insertion order", func(t *testing.T) {
		all, err := svc.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "pg-bob", all[0].Username)
	})
}
