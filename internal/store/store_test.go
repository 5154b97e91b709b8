package store

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

func TestCreateRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO runs (id, intent, status, message) VALUES ($1,$2,$3,$4)`)).
		WithArgs("run-1", "calculation", RunStatusRunning, "Calculate DSCR").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.CreateRun(context.Background(), "run-1", "calculation", "Calculate DSCR"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFinishRun(t *testing.T) {
	st, mock := newMockStore(t)

	answer := "DSCR = 2,500,000 / 1,800,000 = 1.39x"
	events := json.RawMessage(`[{"tool":"calculate","status":"succeeded"}]`)
	mock.ExpectExec(`UPDATE runs SET status=\$2, answer=\$3, artifact_url=\$4, error=\$5, tool_events=\$6, duration_ms=\$7, finished_at=NOW\(\) WHERE id=\$1`).
		WithArgs("run-1", RunStatusSucceeded, &answer, nil, nil, events, int64(1234)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.FinishRun(context.Background(), "run-1", RunUpdate{
		Status:     RunStatusSucceeded,
		Answer:     &answer,
		ToolEvents: events,
		DurationMS: 1234,
	})
	if err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFinishRunRequiresID(t *testing.T) {
	st := &Store{}
	if err := st.FinishRun(context.Background(), "", RunUpdate{Status: RunStatusFailed}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestGetRunNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, intent, status, message, answer, artifact_url, error, tool_events, started_at, finished_at, duration_ms FROM runs WHERE id=\$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, found, err := st.GetRun(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if found {
		t.Fatal("expected not found")
	}
}

func TestListRuns(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "intent", "status", "message", "error", "started_at", "finished_at", "duration_ms"}).
		AddRow("run-2", "general", RunStatusSucceeded, "hello", nil, now, nil, nil).
		AddRow("run-1", "pre_screen", RunStatusFailed, "analyze", "synthesis_failure", now.Add(-time.Hour), nil, nil)
	mock.ExpectQuery(`SELECT id, intent, status, message, error, started_at, finished_at, duration_ms FROM runs ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(rows)

	runs, err := st.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-2" || runs[1].Intent != "pre_screen" {
		t.Fatalf("unexpected rows: %+v", runs)
	}
}

func TestPruneRunsBefore(t *testing.T) {
	st, mock := newMockStore(t)
	cutoff := time.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectExec(`DELETE FROM runs WHERE started_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := st.PruneRunsBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("PruneRunsBefore: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("deleted = %d, want 7", deleted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPruneRunsBeforeZeroCutoff(t *testing.T) {
	st := &Store{}
	if _, err := st.PruneRunsBefore(context.Background(), time.Time{}); err == nil {
		t.Fatal("expected error for zero cutoff")
	}
}
