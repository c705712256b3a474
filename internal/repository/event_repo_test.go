package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"laundry_notifier/internal/models"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestEventAppend_Success_WithDefaults(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	repo := NewEventSQLite(db)

	// Generated id and timestamp are unknown; match shape and the fixed args.
	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO cycle_events (id, occurred_at, appliance, type, message, meta)
		VALUES (?, ?, ?, ?, ?, ?)
	`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(),
			"washer", models.EventCycleFinished, "cycle finished",
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Append(testCtx(t), models.CycleEvent{
		// EventID empty -> repo generates
		// OccurredAt zero -> repo sets UTC now
		Appliance:   "washer",
		Type:        "  cycle_finished ",
		Description: "cycle finished",
		Metadata:    map[string]any{"power": 1.0},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestEventAppend_DBError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	repo := NewEventSQLite(db)

	mock.ExpectExec("INSERT INTO cycle_events").
		WillReturnError(errors.New("down"))

	err = repo.Append(testCtx(t), models.CycleEvent{
		Appliance:   "dryer",
		Type:        "error",
		Description: "x",
	})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestEventList_FiltersByApplianceAndType(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	repo := NewEventSQLite(db)

	occurred := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "occurred_at", "appliance", "type", "message", "meta"}).
		AddRow("ev-1", occurred, "washer", models.EventCycleFinished, "cycle finished", `{"power":1}`)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, occurred_at, appliance, type, message, meta FROM cycle_events WHERE appliance = ? AND type = ? ORDER BY occurred_at ASC`,
	)).
		WithArgs("washer", models.EventCycleFinished).
		WillReturnRows(rows)

	events, err := repo.List(testCtx(t), time.Time{}, time.Time{}, "washer", "cycle_finished")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.EventID != "ev-1" || ev.Appliance != "washer" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Metadata == nil {
		t.Error("metadata should be decoded")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestEventList_NoFilters(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	repo := NewEventSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, occurred_at, appliance, type, message, meta FROM cycle_events ORDER BY occurred_at ASC`,
	)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "occurred_at", "appliance", "type", "message", "meta"}))

	events, err := repo.List(testCtx(t), time.Time{}, time.Time{}, "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0", len(events))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}
