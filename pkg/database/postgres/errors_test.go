package pg

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCheckNoRows(t *testing.T) {
	notFound := errors.New("not found")
	assert.Equal(t, notFound, CheckNoRows(sql.ErrNoRows, notFound))

	other := errors.New("other")
	assert.Equal(t, other, CheckNoRows(other, notFound))
	assert.NoError(t, CheckNoRows(nil, notFound))
}

func TestIsRetryable(t *testing.T) {
	for _, code := range []string{
		pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected,
		pgerrcode.LockNotAvailable,
	} {
		assert.True(t, IsRetryable(&pgconn.PgError{Code: code}))
		assert.True(t, IsRetryable(pkgerrors.Wrap(&pgconn.PgError{Code: code}, "wrapped")))
	}

	assert.False(t, IsRetryable(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	assert.False(t, IsRetryable(errors.New("other")))
	assert.False(t, IsRetryable(nil))
}
