package repository

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestUpdateSkills_Normalizes(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec("UPDATE users SET skills").
		WithArgs([]string{"go", "postgres"}, "m-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateSkills(context.Background(), "m-1", []string{" Go", "POSTGRES", "go", ""}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRole_MissingUser(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec("UPDATE users SET role").
		WithArgs("admin", "nobody").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.Error(t, repo.UpdateRole(context.Background(), "nobody", "admin"))
	require.NoError(t, mock.ExpectationsWereMet())
}
