// ABOUTME: Error taxonomy for the token store
// ABOUTME: Sentinel errors plus the constraint-violation classifier

package store

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when no usable store location exists.
var ErrNotFound = errors.New("store not found")

// ErrConstraint is returned when an insert violates a uniqueness or
// integrity constraint (duplicate token id or label, guard triggers).
var ErrConstraint = errors.New("constraint violation")

// ErrTooManyRows is returned when the token table holds more rows than the
// store-wide ceiling allows.
var ErrTooManyRows = errors.New("too many rows")

// isConstraintViolation reports whether err is a SQLite constraint failure.
// Guard triggers surface through RAISE(FAIL, ...) which the driver reports
// as a constraint error as well.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed") ||
		strings.Contains(errStr, "Maximum token count") ||
		strings.Contains(errStr, "Maximum object count")
}
