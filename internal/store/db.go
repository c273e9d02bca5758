// Package store persists sweep runs in SQLite.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// DB represents the run database.
type DB interface {
	Close() error
	Migrate(ctx context.Context) error
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	GetRunRows(ctx context.Context, runID string) ([]Row, error)
	ListRuns(ctx context.Context, query RunsQuery) (*RunsList, error)
	DeleteRun(ctx context.Context, id string) error
}

// RunsQuery represents query parameters for listing runs.
type RunsQuery struct {
	ClientSeed string `json:"client_seed,omitempty"`
	Page       int    `json:"page"`
	PerPage    int    `json:"perPage"`
}

// RunsList is one page of runs, newest first.
type RunsList struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"totalCount"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// Run is the persisted aggregate of one sweep. Only the hash of the server
// seed is kept.
type Run struct {
	ID             string    `json:"id"`
	ServerSeedHash string    `json:"server_seed_hash"`
	ClientSeed     string    `json:"client_seed"`
	Samples        int       `json:"samples"`
	Configurations int       `json:"configurations"`
	SAW            Stat      `json:"selfavoiding"`
	TotalTrials    uint64    `json:"total_trials"`
	DurationMs     int64     `json:"duration_ms"`
	EngineVersion  string    `json:"engine_version"`
	CreatedAt      time.Time `json:"created_at"`

	// Rows is written by SaveRun and filled by GetRun.
	Rows []Row `json:"rows,omitempty"`
}

// Stat is the stored form of a sampling summary.
type Stat struct {
	Sum  float64 `json:"sum"`
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Row is one step count of a stored sweep. Position keeps the emitted order.
type Row struct {
	RunID        string `json:"run_id"`
	Position     int    `json:"position"`
	Steps        int    `json:"steps"`
	Simple       Stat   `json:"simple"`
	NonReversing Stat   `json:"nonreversing"`
}
