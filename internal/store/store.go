// Package store persists the run audit trail in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

type Store struct {
	DB *sql.DB
}

// Run statuses persisted for the audit trail.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run is one audited orchestration run.
type Run struct {
	ID          string          `json:"id"`
	Intent      string          `json:"intent"`
	Status      string          `json:"status"`
	Message     string          `json:"message"`
	Answer      *string         `json:"answer,omitempty"`
	ArtifactURL *string         `json:"artifact_url,omitempty"`
	Error       *string         `json:"error,omitempty"`
	ToolEvents  json.RawMessage `json:"tool_events,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	DurationMS  *int64          `json:"duration_ms,omitempty"`
}

// New constructs the Store from environment configuration.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// CreateRun inserts a running row for a new request.
func (s *Store) CreateRun(ctx context.Context, id, intent, message string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO runs (id, intent, status, message) VALUES ($1,$2,$3,$4)`,
		id, intent, RunStatusRunning, message)
	return err
}

// RunUpdate carries the final fields written when a run completes.
type RunUpdate struct {
	Status      string
	Answer      *string
	ArtifactURL *string
	Error       *string
	ToolEvents  json.RawMessage
	DurationMS  int64
}

// FinishRun records the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, id string, upd RunUpdate) error {
	if id == "" {
		return fmt.Errorf("run id must be provided")
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status=$2, answer=$3, artifact_url=$4, error=$5, tool_events=$6, duration_ms=$7, finished_at=NOW() WHERE id=$1`,
		id, upd.Status, upd.Answer, upd.ArtifactURL, upd.Error, upd.ToolEvents, upd.DurationMS)
	return err
}

// GetRun loads a single run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, bool, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, intent, status, message, answer, artifact_url, error, tool_events, started_at, finished_at, duration_ms FROM runs WHERE id=$1`, id)
	var r Run
	var toolEvents []byte
	if err := row.Scan(&r.ID, &r.Intent, &r.Status, &r.Message, &r.Answer, &r.ArtifactURL, &r.Error, &toolEvents, &r.StartedAt, &r.FinishedAt, &r.DurationMS); err != nil {
		if err == sql.ErrNoRows {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	r.ToolEvents = append(json.RawMessage{}, toolEvents...)
	return r, true, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, intent, status, message, error, started_at, finished_at, duration_ms FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Intent, &r.Status, &r.Message, &r.Error, &r.StartedAt, &r.FinishedAt, &r.DurationMS); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRunsBefore deletes runs started before the cutoff and returns
// the number of rows removed.
func (s *Store) PruneRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, fmt.Errorf("cutoff must be provided")
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
