package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoticeRepo_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewNoticeRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM notices WHERE id = ?").WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "restricted", "created_at"}).
			AddRow(42, "DMCA notice", true, testNow))

	n, err := repo.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n.ID)
	assert.Equal(t, "DMCA notice", n.Title)
	assert.True(t, n.Restricted)

	mock.ExpectQuery("SELECT (.+) FROM notices WHERE id = ?").WithArgs(uint64(43)).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByID(context.Background(), 43)
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}
