package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm translated", gorm.ErrDuplicatedKey, true},
		{"pg code", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"lib/pq code", fmt.Errorf("migrate: %w", &pq.Error{Code: "23505"}), true},
		{"sqlite text", errors.New("UNIQUE constraint failed: rooms.room_id"), true},
		{"mysql text", errors.New("Error 1062: Duplicate entry"), true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateKeyErr(tc.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "55P03"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestDialect(t *testing.T) {
	for _, typ := range []string{"postgres", "mysql", "sqlite"} {
		d, err := Dialect(Config{Type: typ})
		assert.NoError(t, err)
		assert.NotNil(t, d)
	}
	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)
}
