package db

import (
	"database/sql"
	"time"
)

// TaskRecord is the persisted form of a background task. Status is stored as
// its wire name; the task package owns the enum.
type TaskRecord struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Progress   float64    `json:"progress"`
	Detail     string     `json:"detail"`
	Error      string     `json:"error,omitempty"`
	Result     string     `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SaveTask inserts or replaces a task record.
func (d *DB) SaveTask(rec TaskRecord) error {
	_, err := d.sql.Exec(`
		INSERT INTO tasks (id, status, progress, detail, error, result, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			detail = excluded.detail,
			error = excluded.error,
			result = excluded.result,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		rec.ID, rec.Status, rec.Progress, rec.Detail, rec.Error, rec.Result,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		formatNullableTime(rec.StartedAt), formatNullableTime(rec.FinishedAt),
	)
	return err
}

// GetTask loads one task record by id. The bool reports existence.
func (d *DB) GetTask(id string) (TaskRecord, bool) {
	row := d.sql.QueryRow(`
		SELECT id, status, progress, detail, error, result, created_at, started_at, finished_at
		FROM tasks WHERE id = ?`, id)
	rec, err := scanTask(row)
	if err != nil {
		return TaskRecord{}, false
	}
	return rec, true
}

// RecentTasks returns up to limit task records, newest first.
func (d *DB) RecentTasks(limit int) ([]TaskRecord, error) {
	rows, err := d.sql.Query(`
		SELECT id, status, progress, detail, error, result, created_at, started_at, finished_at
		FROM tasks ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (TaskRecord, error) {
	var rec TaskRecord
	var createdAt string
	var startedAt, finishedAt sql.NullString
	if err := row.Scan(&rec.ID, &rec.Status, &rec.Progress, &rec.Detail,
		&rec.Error, &rec.Result, &createdAt, &startedAt, &finishedAt); err != nil {
		return TaskRecord{}, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.StartedAt = parseNullableTime(startedAt)
	rec.FinishedAt = parseNullableTime(finishedAt)
	return rec, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
