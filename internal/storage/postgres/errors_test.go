package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateKeyError(t *testing.T) {
	uniqueViolation := &pgconn.PgError{Code: pgErrUniqueViolation}

	assert.False(t, isDuplicateKeyError(nil))
	assert.False(t, isDuplicateKeyError(errors.New("connection reset")))
	assert.False(t, isDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isDuplicateKeyError(uniqueViolation))
	assert.True(t, isDuplicateKeyError(fmt.Errorf("insert transfer record: %w", uniqueViolation)))
}

func TestIsNotFoundError(t *testing.T) {
	assert.False(t, isNotFoundError(nil))
	assert.False(t, isNotFoundError(errors.New("connection reset")))
	assert.True(t, isNotFoundError(pgx.ErrNoRows))
	assert.True(t, isNotFoundError(fmt.Errorf("get by tx hash: %w", pgx.ErrNoRows)))
}
