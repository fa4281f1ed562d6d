package domain

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/streamlogic/tslsim/internal/journal"
	apperrors "github.com/streamlogic/tslsim/internal/platform/errors"
)

func seedJournal(t *testing.T, store journal.Store) {
	t.Helper()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := journal.Record{
			ID:        fmt.Sprintf("rec-%d", i),
			SessionID: "s-1",
			Scenario:  "heater",
			StepIndex: i,
			Option:    "[heater <- turnOn]",
			TakenAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if i == 2 {
			rec.SessionID = "s-2"
			rec.Scenario = "echo"
			rec.Option = "[signal <- high]"
		}
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append record %d: %v", i, err)
		}
	}
}

func TestSimLogHandler(t *testing.T) {
	store := journal.NewMemoryStore()
	seedJournal(t, store)
	handler := SimLogHandler(store)

	t.Run("all records", func(t *testing.T) {
		_, result, err := handler(context.Background(), &mcp.CallToolRequest{}, SimLogInput{})
		if err != nil {
			t.Fatalf("sim log: %v", err)
		}
		if len(result.Records) != 3 {
			t.Fatalf("records = %d, want 3", len(result.Records))
		}
		first := result.Records[0]
		if first.ID != "rec-0" || first.SessionID != "s-1" || first.StepIndex != 0 {
			t.Errorf("first record = %+v", first)
		}
		if first.TakenAt != "2026-03-10T09:00:00Z" {
			t.Errorf("taken_at = %q", first.TakenAt)
		}
	})

	t.Run("session shortcut", func(t *testing.T) {
		_, result, err := handler(context.Background(), &mcp.CallToolRequest{}, SimLogInput{SessionID: "s-2"})
		if err != nil {
			t.Fatalf("sim log: %v", err)
		}
		if len(result.Records) != 1 || result.Records[0].Scenario != "echo" {
			t.Fatalf("records = %+v", result.Records)
		}
	})

	t.Run("filter", func(t *testing.T) {
		_, result, err := handler(context.Background(), &mcp.CallToolRequest{}, SimLogInput{Filter: `step_index >= 1`})
		if err != nil {
			t.Fatalf("sim log: %v", err)
		}
		if len(result.Records) != 2 {
			t.Fatalf("records = %d, want 2", len(result.Records))
		}
	})

	t.Run("session and filter combine", func(t *testing.T) {
		_, result, err := handler(context.Background(), &mcp.CallToolRequest{}, SimLogInput{
			SessionID: "s-1",
			Filter:    `step_index >= 1`,
		})
		if err != nil {
			t.Fatalf("sim log: %v", err)
		}
		if len(result.Records) != 1 || result.Records[0].ID != "rec-1" {
			t.Fatalf("records = %+v", result.Records)
		}
	})

	t.Run("limit", func(t *testing.T) {
		_, result, err := handler(context.Background(), &mcp.CallToolRequest{}, SimLogInput{Limit: 1})
		if err != nil {
			t.Fatalf("sim log: %v", err)
		}
		if len(result.Records) != 1 || result.Records[0].ID != "rec-0" {
			t.Fatalf("records = %+v", result.Records)
		}
	})
}

func TestSimLogHandler_InvalidFilter(t *testing.T) {
	store := journal.NewMemoryStore()
	handler := SimLogHandler(store)

	_, _, err := handler(context.Background(), &mcp.CallToolRequest{}, SimLogInput{Filter: "nonsense ==="})
	if err == nil {
		t.Fatal("expected error for invalid filter")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeJournalFilterInvalid {
		t.Errorf("code = %s, want %s", code, apperrors.CodeJournalFilterInvalid)
	}
}

func TestSimLogHandler_StoreDown(t *testing.T) {
	handler := SimLogHandler(failingStore{})

	_, _, err := handler(context.Background(), &mcp.CallToolRequest{}, SimLogInput{})
	if err == nil {
		t.Fatal("expected error when the journal cannot serve")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeJournalUnavailable {
		t.Errorf("code = %s, want %s", code, apperrors.CodeJournalUnavailable)
	}
}

func TestSimLogHandler_NotConfigured(t *testing.T) {
	handler := SimLogHandler(nil)

	_, _, err := handler(context.Background(), &mcp.CallToolRequest{}, SimLogInput{})
	if err == nil {
		t.Fatal("expected error for missing journal store")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeJournalUnavailable {
		t.Errorf("code = %s, want %s", code, apperrors.CodeJournalUnavailable)
	}
}

func TestLogFilter(t *testing.T) {
	tests := []struct {
		name  string
		input SimLogInput
		want  string
	}{
		{name: "empty", input: SimLogInput{}, want: ""},
		{name: "filter only", input: SimLogInput{Filter: `scenario = "heater"`}, want: `scenario = "heater"`},
		{name: "session only", input: SimLogInput{SessionID: "s-1"}, want: `session_id = "s-1"`},
		{
			name:  "both",
			input: SimLogInput{SessionID: "s-1", Filter: `step_index >= 1`},
			want:  `session_id = "s-1" AND (step_index >= 1)`,
		},
		{name: "whitespace trimmed", input: SimLogInput{SessionID: " s-1 ", Filter: "  "}, want: `session_id = "s-1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := logFilter(tt.input); got != tt.want {
				t.Errorf("logFilter(%+v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
