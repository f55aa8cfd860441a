// Integration tests for migration management; they require a live
// PostgreSQL instance reachable via INTEGRATION_TEST_DB_URL.
//
//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RxGraph-Intelligence/internal/infrastructure/database/postgres"
)

const testMigrationsPath = "file://../../../../migrations"

func getTestDBURL(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("INTEGRATION_TEST_DB_URL")
	if dbURL == "" {
		t.Skip("INTEGRATION_TEST_DB_URL not set; skipping integration test")
	}

	return dbURL
}

func TestRunMigrations_AppliesAllMigrations(t *testing.T) {
	dbURL := getTestDBURL(t)

	require.NoError(t, postgres.ResetDatabase(dbURL, testMigrationsPath))
	require.NoError(t, postgres.RunMigrations(dbURL, testMigrationsPath))

	version, dirty, err := postgres.MigrationStatus(dbURL, testMigrationsPath)
	require.NoError(t, err)
	assert.False(t, dirty, "migration state should not be dirty")
	assert.Greater(t, version, uint(0))
}

func TestRunMigrations_NoChangeWhenAlreadyUpToDate(t *testing.T) {
	dbURL := getTestDBURL(t)

	require.NoError(t, postgres.RunMigrations(dbURL, testMigrationsPath))

	// Running again is a no-op, not an error.
	require.NoError(t, postgres.RunMigrations(dbURL, testMigrationsPath))
}

func TestRollbackMigration_RollsBackSpecifiedSteps(t *testing.T) {
	dbURL := getTestDBURL(t)

	require.NoError(t, postgres.ResetDatabase(dbURL, testMigrationsPath))

	initialVersion, _, err := postgres.MigrationStatus(dbURL, testMigrationsPath)
	require.NoError(t, err)

	require.NoError(t, postgres.RollbackMigration(dbURL, testMigrationsPath, 1))

	newVersion, dirty, err := postgres.MigrationStatus(dbURL, testMigrationsPath)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, initialVersion-1, newVersion)
}

func TestRollbackMigration_FailsWhenStepsIsZero(t *testing.T) {
	dbURL := getTestDBURL(t)

	err := postgres.RollbackMigration(dbURL, testMigrationsPath, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps must be greater than 0")
}

func TestMigrationStatus_ReturnsZeroWhenNoMigrationsApplied(t *testing.T) {
	dbURL := getTestDBURL(t)

	m, err := migrate.New(testMigrationsPath, dbURL)
	require.NoError(t, err)
	defer m.Close()
	_ = m.Down()

	version, dirty, err := postgres.MigrationStatus(dbURL, testMigrationsPath)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(0), version)
}

func TestResetDatabase_DropsAndRecreatesSchema(t *testing.T) {
	dbURL := getTestDBURL(t)

	require.NoError(t, postgres.RunMigrations(dbURL, testMigrationsPath))
	require.NoError(t, postgres.ResetDatabase(dbURL, testMigrationsPath))

	version, dirty, err := postgres.MigrationStatus(dbURL, testMigrationsPath)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Greater(t, version, uint(0))
}

func TestForceMigrationVersion_SetsVersionManually(t *testing.T) {
	dbURL := getTestDBURL(t)

	require.NoError(t, postgres.ResetDatabase(dbURL, testMigrationsPath))
	require.NoError(t, postgres.ForceMigrationVersion(dbURL, testMigrationsPath, 1))

	version, dirty, err := postgres.MigrationStatus(dbURL, testMigrationsPath)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestRunMigrations_CreatesExtractionsTable(t *testing.T) {
	dbURL := getTestDBURL(t)

	require.NoError(t, postgres.ResetDatabase(dbURL, testMigrationsPath))

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	defer pool.Close()

	var exists bool
	query := `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_name = 'extractions'
	)`
	require.NoError(t, pool.QueryRow(ctx, query).Scan(&exists))
	assert.True(t, exists, "extractions table should exist after migrations")
}
