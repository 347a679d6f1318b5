// Package repository implements MySQL persistence for venues, units,
// sport prices and reservations, plus an in-memory catalog seeded from a
// JSON file.  Repository errors are expressed with the apperror taxonomy
// so handlers never see driver errors for expected failures.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/turf-reservation/internal/apperror"
)

// MySQL server error numbers the repositories react to.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// isLockContention reports whether err means the row locks of a competing
// transaction won.  InnoDB aborts one of two racing creates this way.
func isLockContention(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == errLockWaitTimeout || me.Number == errDeadlock
}

// conflictOnContention turns lock contention on the create path into the
// ConflictError a losing caller must receive.
func conflictOnContention(err error, c *apperror.ConflictError) error {
	if isLockContention(err) {
		return c
	}
	return err
}
