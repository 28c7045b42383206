package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// LogEntryRow is a persisted log record. RunID is set for records emitted
// while a pipeline run was in progress.
type LogEntryRow struct {
	Timestamp time.Time
	Level     int
	Message   string
	Attrs     string
	RunID     string
}

type LogFilter struct {
	MinLevel slog.Level
	RunID    string
}

func (d *Database) SaveLogEntry(ctx context.Context, r LogEntryRow) error {
	_, err := d.write.ExecContext(ctx,
		`INSERT INTO log (timestamp, level, message, attrs, run_id) VALUES (?, ?, ?, ?, ?)`,
		formatTime(r.Timestamp), r.Level, r.Message, r.Attrs, r.RunID)
	if err != nil {
		return fmt.Errorf("saving log entry: %w", err)
	}
	return nil
}

// GetLogEntries returns up to limit entries matching f, newest first.
func (d *Database) GetLogEntries(ctx context.Context, f LogFilter, limit int) ([]LogEntryRow, error) {
	if limit < 1 {
		limit = 10
	}

	where := []string{"level >= ?"}
	args := []any{int(f.MinLevel)}
	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	args = append(args, limit)

	rows, err := d.read.QueryContext(ctx, `
		SELECT timestamp, level, message, attrs, run_id
		FROM log
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching log entries: %w", err)
	}
	defer rows.Close()

	var entries []LogEntryRow
	for rows.Next() {
		var r LogEntryRow
		var ts string
		if err := rows.Scan(&ts, &r.Level, &r.Message, &r.Attrs, &r.RunID); err != nil {
			return nil, err
		}
		// RFC3339 also reads the second-precision stamps of schema version 1.
		if r.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("parsing log timestamp: %w", err)
		}
		entries = append(entries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading log rows: %w", err)
	}

	return entries, nil
}

// PurgeLog keeps the newest maxLogEntries entries.
func (d *Database) PurgeLog(ctx context.Context, maxLogEntries int) error {
	d.logger.Debug("purging log")
	res, err := d.write.ExecContext(ctx, `
		DELETE FROM log WHERE id <= (SELECT id FROM log ORDER BY id DESC LIMIT 1 OFFSET ?)`, maxLogEntries)
	if err != nil {
		return fmt.Errorf("purging log: %w", err)
	}
	d.rowsAffected(res, "log")
	return nil
}

// purgeRunLog drops the entries of runs started before the given time.
func (d *Database) purgeRunLog(ctx context.Context, before time.Time) error {
	res, err := d.write.ExecContext(ctx, `
		DELETE FROM log WHERE run_id IN (SELECT id FROM run WHERE started_at < ?)`, formatTime(before))
	if err != nil {
		return fmt.Errorf("purging run log: %w", err)
	}
	d.rowsAffected(res, "log")
	return nil
}
