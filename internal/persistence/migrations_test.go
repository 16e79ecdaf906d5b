package persistence

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func migrationFS() fstest.MapFS {
	return fstest.MapFS{
		"0001_users.sql":   {Data: []byte("CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY);")},
		"0002_tickets.sql": {Data: []byte("CREATE TABLE IF NOT EXISTS tickets (id TEXT PRIMARY KEY);")},
		"README.md":        {Data: []byte("not a migration")},
	}
}

func newMigrationMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	return mock
}

func TestRunMigrations_SkipsAppliedFiles(t *testing.T) {
	fsys := migrationFS()
	mock := newMigrationMock(t)

	mock.ExpectQuery("SELECT version, checksum FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"version", "checksum"}).
			AddRow("0001_users.sql", migrationChecksum(fsys["0001_users.sql"].Data)))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tickets").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("0002_tickets.sql", migrationChecksum(fsys["0002_tickets.sql"].Data)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, fsys, zap.NewNop()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_RejectsEditedMigration(t *testing.T) {
	mock := newMigrationMock(t)

	mock.ExpectQuery("SELECT version, checksum FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"version", "checksum"}).
			AddRow("0001_users.sql", migrationChecksum([]byte("CREATE TABLE users ();"))))

	err := RunMigrations(context.Background(), mock, migrationFS(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_users.sql changed after it was applied")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_FailedFileIsNotRecorded(t *testing.T) {
	mock := newMigrationMock(t)

	mock.ExpectQuery("SELECT version, checksum FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"version", "checksum"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
		WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err := RunMigrations(context.Background(), mock, migrationFS(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 0001_users.sql")
	require.NoError(t, mock.ExpectationsWereMet())
}
