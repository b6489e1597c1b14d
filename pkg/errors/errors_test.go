package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("redis down")
	err := Wrap(CodeDependency, cause, "load cart")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_ERROR: load cart: redis down", err.Error())
	assert.Equal(t, CodeDependency, CodeOf(fmt.Errorf("outer: %w", err)))
	assert.True(t, IsRetryable(err))
}

func TestCodeOfUntyped(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
	assert.Equal(t, CodeInternal, CodeOf(nil))
	assert.False(t, IsCode(nil, CodeValidation))
	assert.True(t, IsCode(Newf(CodeValidation, "bad %s", "qty"), CodeValidation))
	assert.False(t, IsRetryable(New(CodeConflict, "dup")))
}

func TestMetadataTable(t *testing.T) {
	meta := MetadataFor(Code("UNKNOWN"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
	assert.False(t, meta.ExposeMessage)

	forbidden := MetadataFor(CodeForbidden)
	assert.Equal(t, http.StatusForbidden, forbidden.HTTPStatus)
	assert.True(t, forbidden.DetailsAllowed)
	assert.True(t, forbidden.ExposeMessage)
	assert.Equal(t, http.StatusServiceUnavailable, MetadataFor(CodeDependency).HTTPStatus)
}

func TestPostgresReadsBothDrivers(t *testing.T) {
	pgx := fmt.Errorf("insert: %w", &pgconn.PgError{Code: PGUniqueViolation, ConstraintName: "profiles_email_key", TableName: "profiles"})
	info, ok := Postgres(pgx)
	require.True(t, ok)
	assert.Equal(t, PGUniqueViolation, info.Code)
	assert.Equal(t, "profiles_email_key", info.Constraint)

	info, ok = Postgres(&pq.Error{Code: PGForeignKeyViolation, Constraint: "orders_profile_id_fkey"})
	require.True(t, ok)
	assert.Equal(t, PGForeignKeyViolation, info.Code)

	_, ok = Postgres(stdErrors.New("plain"))
	assert.False(t, ok)
}

func TestLogFields(t *testing.T) {
	err := Wrap(CodeConflict, &pgconn.PgError{Code: PGUniqueViolation, ConstraintName: "c"}, "dup")
	fields := LogFields(err)
	assert.Equal(t, CodeConflict, fields["error_code"])
	assert.Equal(t, PGUniqueViolation, fields["pg_code"])
	assert.Equal(t, "c", fields["pg_constraint"])
	assert.Len(t, fields["error_chain"], 2)
	assert.Nil(t, LogFields(nil))
}
