// Package repositories provides SQLite persistence for missions and their per-track checkpoints.
package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/aether/internal/shared"
)

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// expectRows returns a wrapped [shared.ErrNotFound] when result touched no rows.
func expectRows(result sql.Result, what, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, what, id)
	}
	return nil
}
