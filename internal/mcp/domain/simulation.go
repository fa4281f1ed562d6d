package domain

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/streamlogic/tslsim/internal/journal"
	"github.com/streamlogic/tslsim/internal/logic"
	apperrors "github.com/streamlogic/tslsim/internal/platform/errors"
	"github.com/streamlogic/tslsim/internal/platform/id"
	"github.com/streamlogic/tslsim/internal/session"
	"github.com/streamlogic/tslsim/internal/sim"
	"github.com/streamlogic/tslsim/internal/spec"
	"github.com/streamlogic/tslsim/internal/trace"
)

// SessionManager covers the session operations the simulation tools drive.
// *session.Manager satisfies it.
type SessionManager interface {
	Start(name string) (session.Session, error)
	Get(sessionID string) (session.Session, error)
	Apply(sessionID string, fn func(sim.SystemSimulation[string]) (sim.SystemSimulation[string], error)) (session.Session, error)
	Stop(sessionID string) error
}

// UpdateView is one cell assignment inside a rendered option.
type UpdateView struct {
	Cell string `json:"cell" jsonschema:"cell receiving the value"`
	Term string `json:"term" jsonschema:"signal term written to the cell"`
}

// PredicateView is the boolean one predicate exposed.
type PredicateView struct {
	Predicate string `json:"predicate" jsonschema:"predicate name"`
	Value     bool   `json:"value" jsonschema:"boolean the circuit exposed"`
}

// OptionView is one playable move together with its consequences.
type OptionView struct {
	Index      int             `json:"index" jsonschema:"position in the current option enumeration"`
	Display    string          `json:"display" jsonschema:"canonical rendering of the move"`
	Updates    []UpdateView    `json:"updates" jsonschema:"one update per declared cell"`
	Violated   []string        `json:"violated" jsonschema:"guarantees the move would violate"`
	Evaluation []PredicateView `json:"evaluation" jsonschema:"predicate values the move would expose"`
}

// ObligationView pairs a pending formula with the guarantee it derives from.
type ObligationView struct {
	Pending   string `json:"pending" jsonschema:"formula still awaiting satisfaction"`
	Guarantee string `json:"guarantee" jsonschema:"guarantee the pending formula derives from"`
}

// SessionView is the state the session tools report back.
type SessionView struct {
	SessionID   string           `json:"session_id" jsonschema:"session identifier"`
	Scenario    string           `json:"scenario" jsonschema:"scenario the session runs"`
	Steps       int              `json:"steps" jsonschema:"number of steps played so far"`
	Violated    []string         `json:"violated" jsonschema:"guarantees violated so far"`
	Obligations []ObligationView `json:"obligations" jsonschema:"formulas still pending at the current depth"`
}

// LogEntryView is one played move in a session's replay log.
type LogEntryView struct {
	Step       int             `json:"step" jsonschema:"zero-based step index"`
	Option     string          `json:"option" jsonschema:"canonical rendering of the move"`
	Evaluation []PredicateView `json:"evaluation" jsonschema:"predicate values the move exposed"`
}

// SimStartInput represents the MCP tool input for starting a session.
type SimStartInput struct {
	Scenario string `json:"scenario" jsonschema:"name of the scenario to start"`
}

// SimOptionsInput represents the MCP tool input for option enumeration.
type SimOptionsInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
}

// SimOptionsResult represents the MCP tool output for option enumeration.
type SimOptionsResult struct {
	SessionID string       `json:"session_id" jsonschema:"session identifier"`
	Options   []OptionView `json:"options" jsonschema:"playable moves in enumeration order"`
}

// SimStepInput represents the MCP tool input for executing one step.
type SimStepInput struct {
	SessionID   string `json:"session_id" jsonschema:"session identifier"`
	OptionIndex int    `json:"option_index" jsonschema:"index into the current option enumeration"`
}

// SimStepResult represents the MCP tool output for one executed step.
type SimStepResult struct {
	SessionID   string           `json:"session_id" jsonschema:"session identifier"`
	Scenario    string           `json:"scenario" jsonschema:"scenario the session runs"`
	StepIndex   int              `json:"step_index" jsonschema:"zero-based index of the executed step"`
	Option      string           `json:"option" jsonschema:"canonical rendering of the executed move"`
	Evaluation  []PredicateView  `json:"evaluation" jsonschema:"predicate values the step exposed"`
	Violated    []string         `json:"violated" jsonschema:"guarantees violated after the step"`
	Obligations []ObligationView `json:"obligations" jsonschema:"formulas still pending after the step"`
}

// SimRewindInput represents the MCP tool input for rewinding one step.
type SimRewindInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
}

// SimStatusInput represents the MCP tool input for session status.
type SimStatusInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
}

// SimStatusResult represents the MCP tool output for session status.
type SimStatusResult struct {
	SessionID   string           `json:"session_id" jsonschema:"session identifier"`
	Scenario    string           `json:"scenario" jsonschema:"scenario the session runs"`
	Steps       int              `json:"steps" jsonschema:"number of steps played so far"`
	CreatedAt   string           `json:"created_at" jsonschema:"RFC3339 timestamp when the session started"`
	LastUsed    string           `json:"last_used" jsonschema:"RFC3339 timestamp of the last activity"`
	Violated    []string         `json:"violated" jsonschema:"guarantees violated so far"`
	Obligations []ObligationView `json:"obligations" jsonschema:"formulas still pending at the current depth"`
	Log         []LogEntryView   `json:"log" jsonschema:"played moves oldest first"`
}

// SimStopInput represents the MCP tool input for stopping a session.
type SimStopInput struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
}

// SimStopResult represents the MCP tool output for stopping a session.
type SimStopResult struct {
	SessionID string `json:"session_id" jsonschema:"session identifier"`
	Stopped   bool   `json:"stopped" jsonschema:"whether the session was removed"`
}

// SimStartTool defines the MCP tool schema for starting a session.
func SimStartTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sim_start",
		Description: "Starts an interactive simulation session for a scenario",
	}
}

// SimOptionsTool defines the MCP tool schema for option enumeration.
func SimOptionsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sim_options",
		Description: "Enumerates the system moves playable from the current state, with the consequences of each",
	}
}

// SimStepTool defines the MCP tool schema for executing one step.
func SimStepTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sim_step",
		Description: "Plays one option by its index in the current enumeration and advances the session",
	}
}

// SimRewindTool defines the MCP tool schema for rewinding one step.
func SimRewindTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sim_rewind",
		Description: "Undoes the most recent step of a session",
	}
}

// SimStatusTool defines the MCP tool schema for session status.
func SimStatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sim_status",
		Description: "Reports a session's progress, violations, pending obligations, and replay log",
	}
}

// SimStopTool defines the MCP tool schema for stopping a session.
func SimStopTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sim_stop",
		Description: "Stops a session and discards its state",
	}
}

// SimStartHandler starts a session for the named scenario.
func SimStartHandler(manager SessionManager) mcp.ToolHandlerFor[SimStartInput, SessionView] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input SimStartInput) (*mcp.CallToolResult, SessionView, error) {
		if manager == nil {
			return nil, SessionView{}, fmt.Errorf("session manager is not configured")
		}

		started, err := manager.Start(input.Scenario)
		if err != nil {
			return nil, SessionView{}, fmt.Errorf("sim start failed: %w", err)
		}
		return nil, sessionView(started), nil
	}
}

// SimOptionsHandler enumerates the playable moves of a session.
func SimOptionsHandler(manager SessionManager) mcp.ToolHandlerFor[SimOptionsInput, SimOptionsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SimOptionsInput) (*mcp.CallToolResult, SimOptionsResult, error) {
		if manager == nil {
			return nil, SimOptionsResult{}, fmt.Errorf("session manager is not configured")
		}

		runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		current, err := manager.Get(input.SessionID)
		if err != nil {
			return nil, SimOptionsResult{}, fmt.Errorf("sim options failed: %w", err)
		}
		choices, err := current.Sim.Options(runCtx)
		if err != nil {
			return nil, SimOptionsResult{}, fmt.Errorf("sim options failed: %w", err)
		}

		result := SimOptionsResult{
			SessionID: current.ID,
			Options:   optionViews(current.Sim.Specification(), choices),
		}
		return nil, result, nil
	}
}

// SimStepHandler plays one option and archives the step in the journal.
// Journaling is advisory: a failed write is logged and never fails the step
// that produced it.
func SimStepHandler(manager SessionManager, store journal.Store) mcp.ToolHandlerFor[SimStepInput, SimStepResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SimStepInput) (*mcp.CallToolResult, SimStepResult, error) {
		if manager == nil {
			return nil, SimStepResult{}, fmt.Errorf("session manager is not configured")
		}

		runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		var played sim.SystemOption[string]
		var evaluation []sim.PredicateEvaluation[string]
		updated, err := manager.Apply(input.SessionID, func(current sim.SystemSimulation[string]) (sim.SystemSimulation[string], error) {
			choices, err := current.Options(runCtx)
			if err != nil {
				return current, err
			}
			if input.OptionIndex < 0 || input.OptionIndex >= len(choices) {
				return current, apperrors.New(apperrors.CodeOptionOutOfRange,
					fmt.Sprintf("option index %d is out of range, the session has %d options", input.OptionIndex, len(choices)))
			}
			played = choices[input.OptionIndex].Option
			next, eval := current.Step(played)
			evaluation = eval
			return next, nil
		})
		if err != nil {
			return nil, SimStepResult{}, fmt.Errorf("sim step failed: %w", err)
		}

		snapshot := updated.Sim
		sp := snapshot.Specification()
		result := SimStepResult{
			SessionID:   updated.ID,
			Scenario:    updated.Scenario,
			StepIndex:   snapshot.Steps() - 1,
			Option:      played.String(),
			Evaluation:  predicateViews(evaluation),
			Violated:    formulaViews(sp, snapshot.Violated()),
			Obligations: obligationViews(sp, snapshot.Obligations()),
		}

		journalStep(ctx, store, result)
		return nil, result, nil
	}
}

// SimRewindHandler undoes the most recent step of a session.
func SimRewindHandler(manager SessionManager) mcp.ToolHandlerFor[SimRewindInput, SessionView] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input SimRewindInput) (*mcp.CallToolResult, SessionView, error) {
		if manager == nil {
			return nil, SessionView{}, fmt.Errorf("session manager is not configured")
		}

		updated, err := manager.Apply(input.SessionID, func(current sim.SystemSimulation[string]) (sim.SystemSimulation[string], error) {
			return current.Rewind(), nil
		})
		if err != nil {
			return nil, SessionView{}, fmt.Errorf("sim rewind failed: %w", err)
		}
		return nil, sessionView(updated), nil
	}
}

// SimStatusHandler reports a session's current state.
func SimStatusHandler(manager SessionManager) mcp.ToolHandlerFor[SimStatusInput, SimStatusResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input SimStatusInput) (*mcp.CallToolResult, SimStatusResult, error) {
		if manager == nil {
			return nil, SimStatusResult{}, fmt.Errorf("session manager is not configured")
		}

		current, err := manager.Get(input.SessionID)
		if err != nil {
			return nil, SimStatusResult{}, fmt.Errorf("sim status failed: %w", err)
		}

		snapshot := current.Sim
		sp := snapshot.Specification()
		result := SimStatusResult{
			SessionID:   current.ID,
			Scenario:    current.Scenario,
			Steps:       snapshot.Steps(),
			CreatedAt:   current.CreatedAt.Format(time.RFC3339),
			LastUsed:    current.LastUsed.Format(time.RFC3339),
			Violated:    formulaViews(sp, snapshot.Violated()),
			Obligations: obligationViews(sp, snapshot.Obligations()),
			Log:         logViews(snapshot.Log()),
		}
		return nil, result, nil
	}
}

// SimStopHandler stops a session.
func SimStopHandler(manager SessionManager) mcp.ToolHandlerFor[SimStopInput, SimStopResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input SimStopInput) (*mcp.CallToolResult, SimStopResult, error) {
		if manager == nil {
			return nil, SimStopResult{}, fmt.Errorf("session manager is not configured")
		}

		if err := manager.Stop(input.SessionID); err != nil {
			return nil, SimStopResult{}, fmt.Errorf("sim stop failed: %w", err)
		}
		return nil, SimStopResult{SessionID: input.SessionID, Stopped: true}, nil
	}
}

// journalStep archives one executed step.
func journalStep(ctx context.Context, store journal.Store, step SimStepResult) {
	if store == nil {
		return
	}

	recordID, err := id.NewID()
	if err != nil {
		log.Printf("journal step %d of session %s: %v", step.StepIndex, step.SessionID, err)
		return
	}
	rec := journal.Record{
		ID:        recordID,
		SessionID: step.SessionID,
		Scenario:  step.Scenario,
		StepIndex: step.StepIndex,
		Option:    step.Option,
		Violated:  step.Violated,
	}
	if err := store.Append(ctx, rec); err != nil {
		log.Printf("journal step %d of session %s: %v", step.StepIndex, step.SessionID, err)
	}
}

func sessionView(s session.Session) SessionView {
	snapshot := s.Sim
	sp := snapshot.Specification()
	return SessionView{
		SessionID:   s.ID,
		Scenario:    s.Scenario,
		Steps:       snapshot.Steps(),
		Violated:    formulaViews(sp, snapshot.Violated()),
		Obligations: obligationViews(sp, snapshot.Obligations()),
	}
}

func optionViews(sp spec.Specification[string], choices []sim.Choice[string]) []OptionView {
	views := make([]OptionView, len(choices))
	for i, c := range choices {
		views[i] = OptionView{
			Index:      i,
			Display:    c.Option.String(),
			Updates:    updateViews(c.Option),
			Violated:   formulaViews(sp, c.Violated),
			Evaluation: predicateViews(c.Evaluation),
		}
	}
	return views
}

func updateViews(option sim.SystemOption[string]) []UpdateView {
	views := make([]UpdateView, len(option.Updates))
	for i, u := range option.Updates {
		views[i] = UpdateView{Cell: u.Cell, Term: u.Term.Name}
	}
	return views
}

func predicateViews(evaluation []sim.PredicateEvaluation[string]) []PredicateView {
	views := make([]PredicateView, len(evaluation))
	for i, pe := range evaluation {
		views[i] = PredicateView{Predicate: pe.Predicate.Name, Value: pe.Value}
	}
	return views
}

func formulaViews(sp spec.Specification[string], formulas []logic.Formula[string]) []string {
	views := make([]string, len(formulas))
	for i, f := range formulas {
		views[i] = sp.Describe(f)
	}
	return views
}

func obligationViews(sp spec.Specification[string], obligations []trace.Obligation[string]) []ObligationView {
	views := make([]ObligationView, len(obligations))
	for i, ob := range obligations {
		views[i] = ObligationView{
			Pending:   sp.Describe(ob.Pending),
			Guarantee: sp.Describe(ob.Guarantee),
		}
	}
	return views
}

func logViews(entries []sim.LogEntry[string]) []LogEntryView {
	views := make([]LogEntryView, len(entries))
	for i, e := range entries {
		views[i] = LogEntryView{
			Step:       i,
			Option:     e.Option.String(),
			Evaluation: predicateViews(e.Evaluation),
		}
	}
	return views
}
