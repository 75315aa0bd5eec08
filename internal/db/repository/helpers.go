// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"querylens/internal/domain"
)

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// mapDBError folds driver-level errors into the domain taxonomy, naming
// the resource the statement was operating on.
func mapDBError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return &domain.NotFoundError{Message: resource + " not found"}
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return &domain.ConflictError{Message: resource + " already exists"}
	default:
		return err
	}
}
