package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
)

// CheckpointRepository stores the last known status of every track in a mission.
//
// Save upserts on (mission_id, track_index), so repeating a checkpoint never duplicates rows.
type CheckpointRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCheckpointRepository creates a new CheckpointRepository with the given database connection
func NewCheckpointRepository(db *sql.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db, now: time.Now}
}

// Save writes the status of every track in a single transaction.
func (r *CheckpointRepository) Save(ctx context.Context, missionID string, tracks []models.Track) error {
	if missionID == "" {
		return fmt.Errorf("%w: mission id is required", shared.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO checkpoints (mission_id, track_index, artist, title, status, match_url, output_path, size_bytes, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mission_id, track_index) DO UPDATE SET
			artist = excluded.artist,
			title = excluded.title,
			status = excluded.status,
			match_url = excluded.match_url,
			output_path = excluded.output_path,
			size_bytes = excluded.size_bytes,
			error = excluded.error,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare checkpoint: %w", err)
	}
	defer stmt.Close()

	now := r.now()
	for _, t := range tracks {
		url := ""
		if c := t.Resolved(); c != nil {
			url = c.URL
		}
		if _, err := stmt.ExecContext(ctx,
			missionID,
			t.Index,
			t.Artist,
			t.Title,
			t.Status.String(),
			url,
			t.OutputPath,
			t.SizeBytes,
			t.Error,
			now,
		); err != nil {
			return fmt.Errorf("failed to checkpoint track %d: %w", t.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// List returns the checkpoints of a mission ordered by track index.
func (r *CheckpointRepository) List(ctx context.Context, missionID string) ([]models.Checkpoint, error) {
	query := `
		SELECT mission_id, track_index, artist, title, status, match_url, output_path, size_bytes, error, updated_at
		FROM checkpoints
		WHERE mission_id = ?
		ORDER BY track_index ASC
	`

	rows, err := r.db.QueryContext(ctx, query, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var out []models.Checkpoint
	for rows.Next() {
		var (
			cp     models.Checkpoint
			status string
		)
		if err := rows.Scan(
			&cp.MissionID,
			&cp.Index,
			&cp.Artist,
			&cp.Title,
			&status,
			&cp.MatchURL,
			&cp.OutputPath,
			&cp.SizeBytes,
			&cp.Error,
			&cp.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}

		if cp.Status, err = models.ParseStatus(status); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Counts returns the number of checkpointed tracks per status for a mission.
func (r *CheckpointRepository) Counts(ctx context.Context, missionID string) (map[models.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM checkpoints
		WHERE mission_id = ?
		GROUP BY status
	`, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count checkpoints: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint count: %w", err)
		}
		status, err := models.ParseStatus(name)
		if err != nil {
			return nil, err
		}
		counts[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}
