package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Suriyanand/financial-document-analyzer/internal/jobs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is the durable job store. A single connection plus WAL keeps
// every write atomic with respect to concurrent readers.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO analysis_jobs (
			id, input_ref, query, status, submitted_at
		) VALUES (?, ?, ?, ?, ?)`,
		job.ID,
		job.InputRef,
		job.Query,
		string(job.Status),
		job.SubmittedAt,
	)
	return err
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*jobs.Job, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, input_ref, query, status, result_json, error_kind, error_message, submitted_at, started_at, completed_at
		 FROM analysis_jobs
		 WHERE id = ?`,
		jobID,
	)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return job, true, nil
}

// MarkRunning is guarded on the pending state so a duplicate dispatch is a
// reported no-op instead of a second execution.
func (s *SQLiteStore) MarkRunning(ctx context.Context, jobID string, startedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE analysis_jobs
		 SET status = ?, started_at = ?
		 WHERE id = ? AND status = ?`,
		string(jobs.StatusRunning),
		startedAt.UTC(),
		jobID,
		string(jobs.StatusPending),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateTerminal writes status, payload and timestamp in one statement,
// guarded on the running state. Late or duplicate completion reports hit
// the guard and affect zero rows.
func (s *SQLiteStore) UpdateTerminal(ctx context.Context, jobID string, status jobs.Status, result *jobs.AnalysisResult, jobErr *jobs.JobError, completedAt time.Time) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("status %q is not terminal", status)
	}
	if (status == jobs.StatusCompleted) != (result != nil) {
		return false, fmt.Errorf("completed status requires a result and nothing else")
	}
	if (status == jobs.StatusFailed) != (jobErr != nil) {
		return false, fmt.Errorf("failed status requires an error and nothing else")
	}

	var resultJSON sql.NullString
	if result != nil {
		payload, err := json.Marshal(result)
		if err != nil {
			return false, fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = sql.NullString{String: string(payload), Valid: true}
	}
	var errorKind, errorMessage sql.NullString
	if jobErr != nil {
		errorKind = sql.NullString{String: string(jobErr.Kind), Valid: true}
		errorMessage = sql.NullString{String: jobErr.Message, Valid: true}
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE analysis_jobs
		 SET status = ?, result_json = ?, error_kind = ?, error_message = ?, completed_at = ?
		 WHERE id = ? AND status = ?`,
		string(status),
		resultJSON,
		errorKind,
		errorMessage,
		completedAt.UTC(),
		jobID,
		string(jobs.StatusRunning),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteStore) ResetToPending(ctx context.Context, jobID string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE analysis_jobs
		 SET status = ?, started_at = NULL
		 WHERE id = ? AND status = ?`,
		string(jobs.StatusPending),
		jobID,
		string(jobs.StatusRunning),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM analysis_jobs WHERE id = ?`, jobID)
	return err
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, input_ref, query, status, result_json, error_kind, error_message, submitted_at, started_at, completed_at
		 FROM analysis_jobs
		 ORDER BY submitted_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*jobs.Job, error) {
	var item jobs.Job
	var status string
	var resultJSON, errorKind, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&item.ID,
		&item.InputRef,
		&item.Query,
		&status,
		&resultJSON,
		&errorKind,
		&errorMessage,
		&item.SubmittedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	item.Status = jobs.Status(status)
	if resultJSON.Valid {
		var result jobs.AnalysisResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("unmarshal result for job %s: %w", item.ID, err)
		}
		item.Result = &result
	}
	if errorKind.Valid {
		item.Error = &jobs.JobError{
			Kind:    jobs.ErrorKind(errorKind.String),
			Message: errorMessage.String,
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		item.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		item.CompletedAt = &t
	}
	return &item, nil
}
