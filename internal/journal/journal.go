// Package journal defines the append-only archive of executed simulation
// steps. A record is written after every step a session plays; the archive
// is write-only from the service's perspective and exists for later
// inspection, not for resuming sessions.
package journal

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRecordInvalid indicates a record missing required fields.
	ErrRecordInvalid = errors.New("record is missing required fields")
	// ErrDuplicateRecord indicates an append reusing an existing record id.
	ErrDuplicateRecord = errors.New("record id already exists")
	// ErrFilterInvalid indicates a query filter that cannot be applied.
	ErrFilterInvalid = errors.New("filter is invalid")
)

// DefaultLimit bounds List results when the query does not set one.
const DefaultLimit = 100

// Record captures one executed step: which session played which option at
// which depth, and the guarantees violated right afterwards.
type Record struct {
	ID        string
	SessionID string
	Scenario  string
	StepIndex int
	Option    string
	Violated  []string
	TakenAt   time.Time
}

// Query selects journal records. Filter is an AIP-160 expression over
// session_id, scenario, step_index, option, violated_count, and taken_at;
// an empty filter selects everything. Limit caps the result, DefaultLimit
// when zero.
type Query struct {
	Filter string
	Limit  int
}

// Store persists journal records. Append never reorders: List returns
// records in append order, oldest first.
type Store interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, q Query) ([]Record, error)
}
