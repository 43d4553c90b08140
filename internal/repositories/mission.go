package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/aether/internal/models"
	"github.com/desertthunder/aether/internal/shared"
)

// MissionRepository records one row per ingestion run.
type MissionRepository struct {
	db *sql.DB
}

// NewMissionRepository creates a new MissionRepository with the given database connection
func NewMissionRepository(db *sql.DB) *MissionRepository {
	return &MissionRepository{db: db}
}

// Begin inserts the row of a mission that has just started.
func (r *MissionRepository) Begin(ctx context.Context, m models.MissionRecord) error {
	if m.ID == "" {
		return fmt.Errorf("%w: mission id is required", shared.ErrInvalidInput)
	}
	if m.Status == "" {
		m.Status = models.MissionRunning
	}
	if m.StartedAt.IsZero() {
		m.StartedAt = time.Now()
	}

	query := `
		INSERT INTO missions (id, source, library, engine, status, total, complete, no_match, failed, already_archived, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.Source,
		m.Library,
		m.Engine,
		m.Status,
		m.Stats.Total,
		m.Stats.Complete,
		m.Stats.NoMatch,
		m.Stats.Failed,
		m.Stats.AlreadyArchived,
		m.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mission: %w", err)
	}
	return nil
}

// Finish stores the final status and counters of a mission.
func (r *MissionRepository) Finish(ctx context.Context, m models.MissionRecord) error {
	finished := time.Now()
	if m.FinishedAt != nil {
		finished = *m.FinishedAt
	}

	query := `
		UPDATE missions
		SET status = ?, total = ?, complete = ?, no_match = ?, failed = ?, already_archived = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		m.Status,
		m.Stats.Total,
		m.Stats.Complete,
		m.Stats.NoMatch,
		m.Stats.Failed,
		m.Stats.AlreadyArchived,
		finished,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update mission: %w", err)
	}
	return expectRows(result, "mission", m.ID)
}

// Get retrieves a mission by ID
func (r *MissionRepository) Get(ctx context.Context, id string) (*models.MissionRecord, error) {
	query := `
		SELECT id, source, library, engine, status, total, complete, no_match, failed, already_archived, started_at, finished_at
		FROM missions
		WHERE id = ?
	`

	m, err := scanMission(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: mission %s", shared.ErrNotFound, id)
	}
	return m, err
}

// List returns the most recent missions first. A limit of zero or less returns every mission.
func (r *MissionRepository) List(ctx context.Context, limit int) ([]*models.MissionRecord, error) {
	query := `
		SELECT id, source, library, engine, status, total, complete, no_match, failed, already_archived, started_at, finished_at
		FROM missions
		ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query missions: %w", err)
	}
	defer rows.Close()

	var missions []*models.MissionRecord
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return missions, nil
}

func scanMission(row scanner) (*models.MissionRecord, error) {
	var (
		m        models.MissionRecord
		finished sql.NullTime
	)

	err := row.Scan(
		&m.ID,
		&m.Source,
		&m.Library,
		&m.Engine,
		&m.Status,
		&m.Stats.Total,
		&m.Stats.Complete,
		&m.Stats.NoMatch,
		&m.Stats.Failed,
		&m.Stats.AlreadyArchived,
		&m.StartedAt,
		&finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mission: %w", err)
	}

	if finished.Valid {
		m.FinishedAt = &finished.Time
	}
	return &m, nil
}
