package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/streamlogic/tslsim/internal/journal"
	apperrors "github.com/streamlogic/tslsim/internal/platform/errors"
	"github.com/streamlogic/tslsim/internal/scenario"
	"github.com/streamlogic/tslsim/internal/session"
)

// newTestStack builds the in-memory dependency set the handlers run against
// in production, minus the transport.
func newTestStack() (*session.Manager, *journal.MemoryStore) {
	return session.NewManager(scenario.Default()), journal.NewMemoryStore()
}

func startHeater(t *testing.T, manager *session.Manager) session.Session {
	t.Helper()
	started, err := manager.Start("heater")
	if err != nil {
		t.Fatalf("start heater: %v", err)
	}
	return started
}

type failingStore struct{}

func (failingStore) Append(context.Context, journal.Record) error {
	return errors.New("journal is down")
}

func (failingStore) List(context.Context, journal.Query) ([]journal.Record, error) {
	return nil, errors.New("journal is down")
}

func TestSimStartHandler(t *testing.T) {
	manager, _ := newTestStack()
	handler := SimStartHandler(manager)

	_, view, err := handler(context.Background(), &mcp.CallToolRequest{}, SimStartInput{Scenario: "heater"})
	if err != nil {
		t.Fatalf("sim start: %v", err)
	}
	if view.SessionID == "" {
		t.Error("session id is empty")
	}
	if view.Scenario != "heater" {
		t.Errorf("scenario = %q, want heater", view.Scenario)
	}
	if view.Steps != 0 {
		t.Errorf("steps = %d, want 0", view.Steps)
	}
	if len(view.Violated) != 0 {
		t.Errorf("violated = %v, want none", view.Violated)
	}
	if len(view.Obligations) != 1 {
		t.Errorf("obligations = %d, want 1", len(view.Obligations))
	}
}

func TestSimStartHandler_UnknownScenario(t *testing.T) {
	manager, _ := newTestStack()
	handler := SimStartHandler(manager)

	_, _, err := handler(context.Background(), &mcp.CallToolRequest{}, SimStartInput{Scenario: "missing"})
	if err == nil {
		t.Fatal("expected error for unknown scenario")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeScenarioUnknown {
		t.Errorf("code = %s, want %s", code, apperrors.CodeScenarioUnknown)
	}
}

func TestSimOptionsHandler(t *testing.T) {
	manager, _ := newTestStack()
	started := startHeater(t, manager)
	handler := SimOptionsHandler(manager)

	_, result, err := handler(context.Background(), &mcp.CallToolRequest{}, SimOptionsInput{SessionID: started.ID})
	if err != nil {
		t.Fatalf("sim options: %v", err)
	}
	if result.SessionID != started.ID {
		t.Errorf("session id = %q, want %q", result.SessionID, started.ID)
	}
	if len(result.Options) != 2 {
		t.Fatalf("options = %d, want 2", len(result.Options))
	}

	turnOn := result.Options[0]
	if turnOn.Index != 0 || turnOn.Display != "[heater <- turnOn]" {
		t.Errorf("option 0 = %+v", turnOn)
	}
	if len(turnOn.Violated) != 0 {
		t.Errorf("turnOn violates %v, want nothing", turnOn.Violated)
	}
	if len(turnOn.Evaluation) != 1 || turnOn.Evaluation[0].Predicate != "tooCold" || !turnOn.Evaluation[0].Value {
		t.Errorf("turnOn evaluation = %v", turnOn.Evaluation)
	}

	turnOff := result.Options[1]
	if turnOff.Display != "[heater <- turnOff]" {
		t.Errorf("option 1 = %+v", turnOff)
	}
	if len(turnOff.Violated) == 0 {
		t.Error("turnOff while tooCold should violate the heating guarantee")
	}
}

func TestSimOptionsHandler_SessionMissing(t *testing.T) {
	manager, _ := newTestStack()
	handler := SimOptionsHandler(manager)

	_, _, err := handler(context.Background(), &mcp.CallToolRequest{}, SimOptionsInput{SessionID: "nope"})
	if err == nil {
		t.Fatal("expected error for unknown session")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeSessionNotFound {
		t.Errorf("code = %s, want %s", code, apperrors.CodeSessionNotFound)
	}
}

func TestSimStepHandler(t *testing.T) {
	manager, store := newTestStack()
	started := startHeater(t, manager)
	handler := SimStepHandler(manager, store)

	_, result, err := handler(context.Background(), &mcp.CallToolRequest{}, SimStepInput{SessionID: started.ID, OptionIndex: 0})
	if err != nil {
		t.Fatalf("sim step: %v", err)
	}
	if result.StepIndex != 0 {
		t.Errorf("step index = %d, want 0", result.StepIndex)
	}
	if result.Option != "[heater <- turnOn]" {
		t.Errorf("option = %q", result.Option)
	}
	if len(result.Violated) != 0 {
		t.Errorf("violated = %v, want none", result.Violated)
	}

	current, err := manager.Get(started.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if current.Sim.Steps() != 1 {
		t.Errorf("steps = %d, want 1", current.Sim.Steps())
	}

	records, err := store.List(context.Background(), journal.Query{})
	if err != nil {
		t.Fatalf("list journal: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("journal records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.SessionID != started.ID || rec.Scenario != "heater" || rec.StepIndex != 0 {
		t.Errorf("record = %+v", rec)
	}
	if rec.Option != "[heater <- turnOn]" {
		t.Errorf("record option = %q", rec.Option)
	}
	if rec.TakenAt.IsZero() {
		t.Error("record taken_at is zero")
	}
}

func TestSimStepHandler_ViolationIsReportedAndJournaled(t *testing.T) {
	manager, store := newTestStack()
	started := startHeater(t, manager)
	handler := SimStepHandler(manager, store)

	_, result, err := handler(context.Background(), &mcp.CallToolRequest{}, SimStepInput{SessionID: started.ID, OptionIndex: 1})
	if err != nil {
		t.Fatalf("sim step: %v", err)
	}
	if len(result.Violated) == 0 {
		t.Fatal("turnOff while tooCold should violate")
	}

	records, err := store.List(context.Background(), journal.Query{Filter: "violated_count > 0"})
	if err != nil {
		t.Fatalf("list journal: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("violating records = %d, want 1", len(records))
	}
}

func TestSimStepHandler_OptionOutOfRange(t *testing.T) {
	manager, store := newTestStack()
	started := startHeater(t, manager)
	handler := SimStepHandler(manager, store)

	_, _, err := handler(context.Background(), &mcp.CallToolRequest{}, SimStepInput{SessionID: started.ID, OptionIndex: 7})
	if err == nil {
		t.Fatal("expected error for out-of-range option")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeOptionOutOfRange {
		t.Errorf("code = %s, want %s", code, apperrors.CodeOptionOutOfRange)
	}

	current, err := manager.Get(started.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if current.Sim.Steps() != 0 {
		t.Errorf("steps = %d, want 0 after rejected step", current.Sim.Steps())
	}
	records, err := store.List(context.Background(), journal.Query{})
	if err != nil {
		t.Fatalf("list journal: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("journal records = %d, want 0", len(records))
	}
}

func TestSimStepHandler_JournalFailureDoesNotFailStep(t *testing.T) {
	manager, _ := newTestStack()
	started := startHeater(t, manager)
	handler := SimStepHandler(manager, failingStore{})

	_, result, err := handler(context.Background(), &mcp.CallToolRequest{}, SimStepInput{SessionID: started.ID, OptionIndex: 0})
	if err != nil {
		t.Fatalf("sim step: %v", err)
	}
	if result.StepIndex != 0 {
		t.Errorf("step index = %d, want 0", result.StepIndex)
	}
}

func TestSimStepHandler_WithoutJournal(t *testing.T) {
	manager, _ := newTestStack()
	started := startHeater(t, manager)
	handler := SimStepHandler(manager, nil)

	if _, _, err := handler(context.Background(), &mcp.CallToolRequest{}, SimStepInput{SessionID: started.ID, OptionIndex: 0}); err != nil {
		t.Fatalf("sim step: %v", err)
	}
}

func TestSimRewindHandler(t *testing.T) {
	manager, store := newTestStack()
	started := startHeater(t, manager)
	step := SimStepHandler(manager, store)
	rewind := SimRewindHandler(manager)

	if _, _, err := step(context.Background(), &mcp.CallToolRequest{}, SimStepInput{SessionID: started.ID, OptionIndex: 0}); err != nil {
		t.Fatalf("sim step: %v", err)
	}

	_, view, err := rewind(context.Background(), &mcp.CallToolRequest{}, SimRewindInput{SessionID: started.ID})
	if err != nil {
		t.Fatalf("sim rewind: %v", err)
	}
	if view.Steps != 0 {
		t.Errorf("steps = %d, want 0", view.Steps)
	}

	// Rewinding the initial state is a no-op, not an error.
	_, view, err = rewind(context.Background(), &mcp.CallToolRequest{}, SimRewindInput{SessionID: started.ID})
	if err != nil {
		t.Fatalf("rewind at depth 0: %v", err)
	}
	if view.Steps != 0 {
		t.Errorf("steps = %d, want 0", view.Steps)
	}
}

func TestSimStatusHandler(t *testing.T) {
	manager, store := newTestStack()
	started := startHeater(t, manager)
	step := SimStepHandler(manager, store)
	status := SimStatusHandler(manager)

	for i := 0; i < 2; i++ {
		if _, _, err := step(context.Background(), &mcp.CallToolRequest{}, SimStepInput{SessionID: started.ID, OptionIndex: 0}); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	_, result, err := status(context.Background(), &mcp.CallToolRequest{}, SimStatusInput{SessionID: started.ID})
	if err != nil {
		t.Fatalf("sim status: %v", err)
	}
	if result.Steps != 2 {
		t.Errorf("steps = %d, want 2", result.Steps)
	}
	if len(result.Log) != 2 {
		t.Fatalf("log entries = %d, want 2", len(result.Log))
	}
	if result.Log[0].Step != 0 || result.Log[1].Step != 1 {
		t.Errorf("log steps = %d, %d", result.Log[0].Step, result.Log[1].Step)
	}
	if result.Log[0].Option != "[heater <- turnOn]" {
		t.Errorf("log option = %q", result.Log[0].Option)
	}
	if _, err := time.Parse(time.RFC3339, result.CreatedAt); err != nil {
		t.Errorf("created_at %q: %v", result.CreatedAt, err)
	}
	if _, err := time.Parse(time.RFC3339, result.LastUsed); err != nil {
		t.Errorf("last_used %q: %v", result.LastUsed, err)
	}
}

func TestSimStopHandler(t *testing.T) {
	manager, _ := newTestStack()
	started := startHeater(t, manager)
	handler := SimStopHandler(manager)

	_, result, err := handler(context.Background(), &mcp.CallToolRequest{}, SimStopInput{SessionID: started.ID})
	if err != nil {
		t.Fatalf("sim stop: %v", err)
	}
	if !result.Stopped || result.SessionID != started.ID {
		t.Errorf("result = %+v", result)
	}

	_, _, err = handler(context.Background(), &mcp.CallToolRequest{}, SimStopInput{SessionID: started.ID})
	if err == nil {
		t.Fatal("expected error for stopped session")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeSessionNotFound {
		t.Errorf("code = %s, want %s", code, apperrors.CodeSessionNotFound)
	}
}

func TestSimHandlers_NotConfigured(t *testing.T) {
	ctx := context.Background()
	req := &mcp.CallToolRequest{}

	if _, _, err := SimStartHandler(nil)(ctx, req, SimStartInput{Scenario: "heater"}); err == nil {
		t.Error("sim start with nil manager should fail")
	}
	if _, _, err := SimOptionsHandler(nil)(ctx, req, SimOptionsInput{SessionID: "x"}); err == nil {
		t.Error("sim options with nil manager should fail")
	}
	if _, _, err := SimStepHandler(nil, nil)(ctx, req, SimStepInput{SessionID: "x"}); err == nil {
		t.Error("sim step with nil manager should fail")
	}
	if _, _, err := SimRewindHandler(nil)(ctx, req, SimRewindInput{SessionID: "x"}); err == nil {
		t.Error("sim rewind with nil manager should fail")
	}
	if _, _, err := SimStatusHandler(nil)(ctx, req, SimStatusInput{SessionID: "x"}); err == nil {
		t.Error("sim status with nil manager should fail")
	}
	if _, _, err := SimStopHandler(nil)(ctx, req, SimStopInput{SessionID: "x"}); err == nil {
		t.Error("sim stop with nil manager should fail")
	}
}
