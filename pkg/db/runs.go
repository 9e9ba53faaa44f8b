package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Run is one dataset processed by one invocation.
type Run struct {
	ID         int64
	RunID      string
	Dataset    string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Error      string
	Metrics    string
	Workers    int
	Total      int
	Accepted   int
	FileSize   int64
	Skips      map[string]int
}

// RunResult is what a finished dataset run reports back to the ledger.
type RunResult struct {
	Status     string
	Error      string
	Total      int
	Accepted   int
	FileSize   int64
	Skips      map[string]int
	FinishedAt time.Time
}

// StartRun records a dataset run as running and returns its row id.
func (db *DB) StartRun(runID, dataset, metrics string, workers int, startedAt time.Time) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO runs (run_id, dataset, started_at, status, metrics, workers)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, dataset, startedAt.UTC().Format(time.RFC3339Nano), StatusRunning, metrics, workers)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return result.LastInsertId()
}

// FinishRun stores the outcome and skip counts of a run.
func (db *DB) FinishRun(id int64, res RunResult) error {
	finished := res.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(`
		UPDATE runs
		SET finished_at = ?, status = ?, error = ?, total_documents = ?,
		    accepted_documents = ?, file_size = ?
		WHERE run_row_id = ?
	`, finished.UTC().Format(time.RFC3339Nano), res.Status, NewNullString(res.Error),
		res.Total, res.Accepted, res.FileSize, id)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d not found", id)
	}

	for reason, count := range res.Skips {
		if _, err := tx.Exec(`
			INSERT INTO run_skips (run_row_id, reason, count) VALUES (?, ?, ?)
			ON CONFLICT(run_row_id, reason) DO UPDATE SET count = excluded.count
		`, id, reason, count); err != nil {
			return fmt.Errorf("failed to insert skip count: %w", err)
		}
	}

	return tx.Commit()
}

// ListRuns retrieves runs ordered by most recent first. An empty dataset
// matches all datasets.
func (db *DB) ListRuns(limit int, dataset string, failedOnly bool) ([]Run, error) {
	query := `
		SELECT run_row_id, run_id, dataset, started_at, finished_at, status, error,
		       metrics, workers, total_documents, accepted_documents, file_size
		FROM runs
	`

	var conditions []string
	var args []interface{}
	if dataset != "" {
		conditions = append(conditions, "dataset = ?")
		args = append(args, dataset)
	}
	if failedOnly {
		conditions = append(conditions, "status = ?")
		args = append(args, StatusFailed)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC, run_row_id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var finished, errMsg, metrics sql.NullString
		if err := rows.Scan(&r.ID, &r.RunID, &r.Dataset, &started, &finished, &r.Status, &errMsg,
			&metrics, &r.Workers, &r.Total, &r.Accepted, &r.FileSize); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished.Valid {
			r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		r.Error = errMsg.String
		r.Metrics = metrics.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	_ = rows.Close()

	for i := range runs {
		skips, err := db.GetRunSkips(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Skips = skips
	}
	return runs, nil
}

// GetRunSkips returns the per-reason skip counts of a run.
func (db *DB) GetRunSkips(id int64) (map[string]int, error) {
	rows, err := db.Query("SELECT reason, count FROM run_skips WHERE run_row_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query skips: %w", err)
	}
	defer rows.Close()

	skips := map[string]int{}
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("failed to scan skip: %w", err)
		}
		skips[reason] = count
	}
	return skips, rows.Err()
}

// NewNullString converts a string to sql.NullString
func NewNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
