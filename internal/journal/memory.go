package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streamlogic/tslsim/internal/journal/filter"
)

// MemoryStore keeps records in process memory. It is the store of choice
// when no journal path is configured; records vanish with the process.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	ids     map[string]struct{}
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]struct{})}
}

// Append stores a copy of the record in arrival order.
func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	if rec.ID == "" || rec.SessionID == "" || rec.Scenario == "" {
		return ErrRecordInvalid
	}

	rec.Violated = append([]string(nil), rec.Violated...)
	if rec.TakenAt.IsZero() {
		rec.TakenAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[rec.ID]; ok {
		return ErrDuplicateRecord
	}
	s.ids[rec.ID] = struct{}{}
	s.records = append(s.records, rec)
	return nil
}

// List returns matching records oldest first, up to the query limit.
func (s *MemoryStore) List(_ context.Context, q Query) ([]Record, error) {
	parsed, err := filter.Parse(q.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFilterInvalid, err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for _, rec := range s.records {
		ok, err := filter.Evaluate(parsed, resolverFor(rec))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFilterInvalid, err)
		}
		if !ok {
			continue
		}
		out = append(out, cloneRecord(rec))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// resolverFor exposes a record's filterable fields by name. Timestamps
// resolve to milliseconds since the Unix epoch to match filter literals.
func resolverFor(rec Record) filter.Resolver {
	return func(name string) (any, bool) {
		switch name {
		case "session_id":
			return rec.SessionID, true
		case "scenario":
			return rec.Scenario, true
		case "step_index":
			return int64(rec.StepIndex), true
		case "option":
			return rec.Option, true
		case "violated_count":
			return int64(len(rec.Violated)), true
		case "taken_at":
			return rec.TakenAt.UTC().UnixMilli(), true
		default:
			return nil, false
		}
	}
}

func cloneRecord(rec Record) Record {
	rec.Violated = append([]string(nil), rec.Violated...)
	return rec
}
