//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbridge/backend/internal/domain/shared"
	"github.com/ledgerbridge/backend/internal/domain/transfer"
	"github.com/ledgerbridge/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const migrationsDir = "../../../migrations"

// setupPostgres starts a throwaway PostgreSQL, applies migrations/ and
// returns a GORM handle configured like NewDatabase
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledgerbridge_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// the migrator closes its connection, so it gets its own
	migrationDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(migrationDB, migrationsDir, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestPostgres_TransferQueue(t *testing.T) {
	db := setupPostgres(t)
	repo := NewGormTransferQueueRepository(db)
	tx := NewTxManager(db)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("partial unique index rejects a second active entry", func(t *testing.T) {
		first := newContactEntry(t, tenantID, "contact-1")
		require.NoError(t, repo.Create(ctx, first))

		err := repo.Create(ctx, newContactEntry(t, tenantID, "contact-1"))
		assert.ErrorIs(t, err, transfer.ErrDuplicateActiveEntry)

		require.NoError(t, first.Reject("reviewer", "stale", ""))
		require.NoError(t, repo.Update(ctx, first))
		assert.NoError(t, repo.Create(ctx, newContactEntry(t, tenantID, "contact-1")))
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		entry := newInvoiceEntry(t, tenantID, "inv-1")
		require.NoError(t, repo.Create(ctx, entry))

		a, err := repo.FindByID(ctx, tenantID, entry.ID)
		require.NoError(t, err)
		b, err := repo.FindByID(ctx, tenantID, entry.ID)
		require.NoError(t, err)

		require.NoError(t, a.Approve("alice", ""))
		require.NoError(t, repo.Update(ctx, a))
		require.NoError(t, b.Reject("bob", "duplicate", ""))
		assert.ErrorIs(t, repo.Update(ctx, b), shared.ErrConcurrencyConflict)
	})

	t.Run("rolled back transaction leaves no entry", func(t *testing.T) {
		entry := newContactEntry(t, tenantID, "contact-rollback")
		err := tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := repo.Create(ctx, entry); err != nil {
				return err
			}
			return shared.ErrInvalidState
		})
		require.ErrorIs(t, err, shared.ErrInvalidState)

		_, err = repo.FindByID(ctx, tenantID, entry.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("summary counts by status", func(t *testing.T) {
		stats, err := repo.Stats(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.ByStatus[transfer.StatusRejected])
		assert.Equal(t, int64(1), stats.ByStatus[transfer.StatusApproved])
		assert.NotNil(t, stats.OldestPendingAt)
	})
}
