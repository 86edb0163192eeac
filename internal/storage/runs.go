package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hoanghai1803/pushkit/internal/models"
)

// StartRun records a job invocation as running and returns its ID.
func (s *Store) StartRun(ctx context.Context, job, argument string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (job, argument, status, started_at) VALUES (?, ?, ?, ?)`,
		job, argument, models.RunRunning, formatTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("starting run of %q: %w", job, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting run id: %w", err)
	}
	return id, nil
}

// FinishRun stores the outcome of a run. A run can only be finished once;
// finishing it again returns ErrNotFound.
func (s *Store) FinishRun(ctx context.Context, id int64, status, errMsg string, sent int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, sent = ?, finished_at = ?
		 WHERE id = ? AND finished_at IS NULL`,
		status, errMsg, sent, formatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %d: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `id, job, argument, status, error, sent, started_at, finished_at`

func scanRun(scan func(dest ...any) error) (models.RunRecord, error) {
	var (
		r          models.RunRecord
		startedAt  string
		finishedAt sql.NullString
	)
	if err := scan(&r.ID, &r.Job, &r.Argument, &r.Status, &r.Error, &r.Sent, &startedAt, &finishedAt); err != nil {
		return r, err
	}
	r.StartedAt = parseTime(startedAt)
	r.FinishedAt = parseTimePtr(finishedAt)
	return r, nil
}

// GetRun returns one run. Returns ErrNotFound if it does not exist.
func (s *Store) GetRun(ctx context.Context, id int64) (*models.RunRecord, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %d: %w", id, err)
	}
	return &r, nil
}

// RecentRuns returns the latest runs, newest first. An empty job matches
// every job.
func (s *Store) RecentRuns(ctx context.Context, job string, limit int) ([]models.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+`
		 FROM runs
		 WHERE ? = '' OR job = ?
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`, job, job, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	out := []models.RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}
	return out, nil
}
