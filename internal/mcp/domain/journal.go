package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/streamlogic/tslsim/internal/journal"
	apperrors "github.com/streamlogic/tslsim/internal/platform/errors"
)

// SimLogInput represents the MCP tool input for querying the step journal.
type SimLogInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"restrict the listing to one session"`
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over session_id, scenario, option, step_index, violated_count, and taken_at"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of records to return"`
}

// RecordView represents one archived step.
type RecordView struct {
	ID        string   `json:"id" jsonschema:"record identifier"`
	SessionID string   `json:"session_id" jsonschema:"session the step belongs to"`
	Scenario  string   `json:"scenario" jsonschema:"scenario the session ran"`
	StepIndex int      `json:"step_index" jsonschema:"zero-based index of the step"`
	Option    string   `json:"option" jsonschema:"canonical rendering of the played move"`
	Violated  []string `json:"violated" jsonschema:"guarantees violated after the step"`
	TakenAt   string   `json:"taken_at" jsonschema:"RFC3339 timestamp when the step was played"`
}

// SimLogResult represents the MCP tool output for journal queries.
type SimLogResult struct {
	Records []RecordView `json:"records" jsonschema:"archived steps in the order they were played"`
}

// SimLogTool defines the MCP tool schema for querying the step journal.
func SimLogTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sim_log",
		Description: "Lists archived steps across sessions, optionally narrowed by an AIP-160 filter",
	}
}

// SimLogHandler queries the step journal.
func SimLogHandler(store journal.Store) mcp.ToolHandlerFor[SimLogInput, SimLogResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SimLogInput) (*mcp.CallToolResult, SimLogResult, error) {
		if store == nil {
			return nil, SimLogResult{}, apperrors.New(apperrors.CodeJournalUnavailable, "journal store is not configured")
		}

		runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		records, err := store.List(runCtx, journal.Query{
			Filter: logFilter(input),
			Limit:  input.Limit,
		})
		if err != nil {
			if errors.Is(err, journal.ErrFilterInvalid) {
				return nil, SimLogResult{}, apperrors.Wrap(apperrors.CodeJournalFilterInvalid, "list journal records", err)
			}
			return nil, SimLogResult{}, apperrors.Wrap(apperrors.CodeJournalUnavailable, "list journal records", err)
		}

		result := SimLogResult{}
		for _, rec := range records {
			result.Records = append(result.Records, recordView(rec))
		}
		return nil, result, nil
	}
}

// logFilter combines the session shortcut with the caller's filter. Both at
// once narrow to the session first.
func logFilter(input SimLogInput) string {
	filter := strings.TrimSpace(input.Filter)
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return filter
	}
	clause := fmt.Sprintf("session_id = %q", sessionID)
	if filter == "" {
		return clause
	}
	return clause + " AND (" + filter + ")"
}

func recordView(rec journal.Record) RecordView {
	return RecordView{
		ID:        rec.ID,
		SessionID: rec.SessionID,
		Scenario:  rec.Scenario,
		StepIndex: rec.StepIndex,
		Option:    rec.Option,
		Violated:  rec.Violated,
		TakenAt:   rec.TakenAt.Format(time.RFC3339),
	}
}
