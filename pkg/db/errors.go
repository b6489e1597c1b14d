package db

import (
	"strings"

	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
)

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraint is set the violation must name it. SQLite errors only carry
// text, so they are matched on the message.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.Postgres(err); ok {
		return pg.Code == pkgerrors.PGUniqueViolation && (constraint == "" || pg.Constraint == constraint)
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraint == "" || strings.Contains(msg, constraint)
}
