package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type RunRow struct {
	ID                string
	Trigger           string
	StartedAt         time.Time
	FinishedAt        sql.NullTime
	Status            string
	LowPriceFrequency sql.NullFloat64
}

type StageRow struct {
	RunID     string
	Stage     string
	Status    string
	Records   int
	Output    string
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

// StartRun journals a new pipeline run and returns its id.
func (d *Database) StartRun(ctx context.Context, trigger string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO run (id, triggered_by, started_at, status)
		VALUES (?, ?, ?, ?)`,
		id, trigger, formatTime(startedAt), StatusRunning)
	if err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}
	return id, nil
}

func (d *Database) SaveStage(ctx context.Context, r StageRow) error {
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO run_stage (run_id, stage, status, records, output, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Stage, r.Status, r.Records, r.Output, r.Error, r.Duration.Milliseconds(), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving stage %s: %w", r.Stage, err)
	}
	return nil
}

func (d *Database) FinishRun(ctx context.Context, id string, finishedAt time.Time, status string, lowPriceFrequency sql.NullFloat64) error {
	res, err := d.write.ExecContext(ctx, `
		UPDATE run SET finished_at = ?, status = ?, low_price_frequency = ?
		WHERE id = ?`,
		formatTime(finishedAt), status, lowPriceFrequency, id)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// GetRuns returns the latest runs, newest first.
func (d *Database) GetRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit < 1 {
		limit = 10
	}

	rows, err := d.read.QueryContext(ctx, `
		SELECT id, triggered_by, started_at, finished_at, status, low_price_frequency
		FROM run
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching runs: %w", err)
	}
	defer rows.Close()

	var result []RunRow
	for rows.Next() {
		var r RunRow
		var started string
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.Trigger, &started, &finished, &r.Status, &r.LowPriceFrequency); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, err
			}
			r.FinishedAt = sql.NullTime{Time: t, Valid: true}
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading run rows: %w", err)
	}

	return result, nil
}

// GetStages returns the stages of a run in execution order.
func (d *Database) GetStages(ctx context.Context, runID string) ([]StageRow, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT run_id, stage, status, records, output, error, duration_ms, created_at
		FROM run_stage
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("fetching stages: %w", err)
	}
	defer rows.Close()

	var result []StageRow
	for rows.Next() {
		var r StageRow
		var ms int64
		var created string
		if err := rows.Scan(&r.RunID, &r.Stage, &r.Status, &r.Records, &r.Output, &r.Error, &ms, &created); err != nil {
			return nil, fmt.Errorf("scanning stage: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading stage rows: %w", err)
	}

	return result, nil
}

// PurgeRuns deletes runs started before the given time, their stages and
// log entries included.
func (d *Database) PurgeRuns(ctx context.Context, before time.Time) error {
	d.logger.Debug("purging runs")
	if err := d.purgeRunLog(ctx, before); err != nil {
		return err
	}
	res, err := d.write.ExecContext(ctx, `DELETE FROM run WHERE started_at < ?`, formatTime(before))
	if err != nil {
		return fmt.Errorf("purging runs: %w", err)
	}
	d.rowsAffected(res, "run")
	return nil
}
