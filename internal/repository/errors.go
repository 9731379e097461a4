// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as handlers
// to distinguish between different failure scenarios without inspecting
// driver errors.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a referenced record does not exist.
// Handlers translate it into an HTTP 404 (or 401 for credential lookups).
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with an existing row, such
// as a duplicate signup or saving the same CVE twice.
var ErrConflict = errors.New("conflict")

// ErrEmailExists and ErrAlreadySaved refine ErrConflict; errors.Is matches
// both the refinement and ErrConflict.
var (
	ErrEmailExists  = fmt.Errorf("%w: email already exists", ErrConflict)
	ErrAlreadySaved = fmt.Errorf("%w: already saved", ErrConflict)
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique-constraint violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
