package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the storefront reacts to.
const (
	PGUniqueViolation     = "23505"
	PGForeignKeyViolation = "23503"
	PGCheckViolation      = "23514"
)

// PGInfo is the driver-neutral part of a Postgres error.
type PGInfo struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// Postgres extracts PGInfo from a pgx or lib/pq error anywhere in err's chain.
func Postgres(err error) (PGInfo, bool) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return PGInfo{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return PGInfo{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return PGInfo{}, false
}

// LogFields flattens err into structured log fields: its code, the wrapped
// chain and any Postgres diagnostics.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{"error_code": CodeOf(err)}
	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	fields["error_chain"] = chain
	if pg, ok := Postgres(err); ok {
		fields["pg_code"] = pg.Code
		if pg.Constraint != "" {
			fields["pg_constraint"] = pg.Constraint
		}
		if pg.Table != "" {
			fields["pg_table"] = pg.Table
		}
		if pg.Detail != "" {
			fields["pg_detail"] = pg.Detail
		}
	}
	return fields
}
