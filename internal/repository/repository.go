package repository

import (
	"context"
	"database/sql"
	"time"

	"laundry_notifier/internal/models"
)

// BaselineRepo persists learned per-appliance power baselines.
// Writes are whole-file and all-appliances-at-once; partial baselines
// are never persisted.
type BaselineRepo interface {
	// SaveAll atomically replaces the stored baselines with the given set.
	SaveAll(ctx context.Context, baselines map[string]models.Baseline) error
	// Load returns the baseline for one appliance name.
	// A missing or malformed section is an error.
	Load(ctx context.Context, name string) (models.Baseline, error)
}

// EventRepo is the append-only cycle history.
type EventRepo interface {
	Append(ctx context.Context, e models.CycleEvent) error
	List(ctx context.Context, from, to time.Time, appliance, typ string) ([]models.CycleEvent, error)
}

type Repository struct {
	Baselines BaselineRepo
	Events    EventRepo
}

// NewRepository wires the concrete stores: an INI file for baselines
// and SQLite for the cycle history.
func NewRepository(db *sql.DB, baselinePath string) *Repository {
	return &Repository{
		Baselines: NewBaselineINI(baselinePath),
		Events:    NewEventSQLite(db),
	}
}
