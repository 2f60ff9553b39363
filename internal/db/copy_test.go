package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "wines", []string{"name", "price"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"wines"}, []string{"name", "price"}).WillReturnResult(3)

	rows := [][]any{{"Barolo", 85.0}, {"Chianti", 28.0}, {"Soave", 22.0}}
	n, err := CopyFrom(context.Background(), mock, "wines", []string{"name", "price"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"wines"}, []string{"name", "price"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"Barolo", 85.0}}
	_, err = CopyFrom(context.Background(), mock, "wines", []string{"name", "price"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO wines")
	assert.NoError(t, mock.ExpectationsWereMet())
}
