// Package sim plays a candidate system against an adversarial
// counter-strategy circuit, tracking live which specification guarantees
// hold. A SystemSimulation is an immutable snapshot: Step and Rewind return
// new simulations sharing structure with the old one, so callers can branch
// and undo freely by keeping earlier snapshots around.
package sim

import (
	"context"
	"fmt"
	"strings"

	"github.com/streamlogic/tslsim/internal/circuit"
	"github.com/streamlogic/tslsim/internal/logic"
	"github.com/streamlogic/tslsim/internal/spec"
	"github.com/streamlogic/tslsim/internal/stack"
	"github.com/streamlogic/tslsim/internal/trace"
)

// CellUpdate assigns one signal term to one cell.
type CellUpdate[C comparable] struct {
	Cell C
	Term logic.SignalTerm[C]
}

// SystemOption is a complete system move: exactly one update per declared
// cell, in declaration order. Cells with no declared update choices hold
// their own value.
type SystemOption[C comparable] struct {
	Updates []CellUpdate[C]
}

// String renders the option canonically, one update per cell in
// declaration order.
func (o SystemOption[C]) String() string {
	parts := make([]string, len(o.Updates))
	for i, u := range o.Updates {
		parts[i] = fmt.Sprintf("[%v <- %s]", u.Cell, u.Term.Name)
	}
	return strings.Join(parts, " ")
}

// PredicateEvaluation is the boolean the circuit exposed for one output
// predicate during a step.
type PredicateEvaluation[C comparable] struct {
	Predicate logic.PredicateTerm[C]
	Value     bool
}

// Choice is one playable move together with its consequences: the
// guarantees it would violate and the predicate evaluation it would expose.
type Choice[C comparable] struct {
	Option     SystemOption[C]
	Violated   []logic.Formula[C]
	Evaluation []PredicateEvaluation[C]
}

// LogEntry records one played move and the predicate evaluation it
// produced.
type LogEntry[C comparable] struct {
	Option     SystemOption[C]
	Evaluation []PredicateEvaluation[C]
}

// AlignmentError names every cell and predicate the specification
// references but the circuit does not declare. It is reported as data so
// the caller can reject the pairing with a full diagnostic instead of
// faulting mid-session.
type AlignmentError[C comparable] struct {
	Cells      []C
	Predicates []logic.PredicateTerm[C]
}

func (e *AlignmentError[C]) Error() string {
	var parts []string
	if len(e.Cells) > 0 {
		names := make([]string, len(e.Cells))
		for i, c := range e.Cells {
			names[i] = fmt.Sprintf("%v", c)
		}
		parts = append(parts, "cells not driven by the circuit: "+strings.Join(names, ", "))
	}
	if len(e.Predicates) > 0 {
		names := make([]string, len(e.Predicates))
		for i, p := range e.Predicates {
			names[i] = p.Name
		}
		parts = append(parts, "predicates not exposed by the circuit: "+strings.Join(names, ", "))
	}
	return "sim: specification and circuit disagree: " + strings.Join(parts, "; ")
}

// SystemSimulation pairs a counter-strategy circuit with a specification
// and tracks the play so far: a stack of circuit states one deeper than the
// steps taken (the initial state is its permanent floor), the obligation
// trace, and a replay log.
type SystemSimulation[C comparable] struct {
	circuit circuit.Circuit[C]
	spec    spec.Specification[C]
	states  *stack.Stack[circuit.State]
	trace   trace.FiniteTrace[C]
	log     *stack.Stack[LogEntry[C]]
}

// New validates the circuit, checks that the specification only references
// cells and predicates the circuit declares, and returns the initial
// snapshot. Rejecting misaligned pairs up front is what lets Step treat a
// failed lookup as caller misuse later on.
func New[C comparable](c circuit.Circuit[C], s spec.Specification[C]) (SystemSimulation[C], error) {
	if err := c.Validate(); err != nil {
		return SystemSimulation[C]{}, err
	}
	var states *stack.Stack[circuit.State]
	sim := SystemSimulation[C]{
		circuit: c,
		spec:    s,
		states:  states.Push(c.InitialState()),
		trace:   trace.EmptyTrace[C](s.Assumptions, s.Guarantees),
	}
	if mismatch := sim.Sanitize(); mismatch != nil {
		return SystemSimulation[C]{}, mismatch
	}
	return sim, nil
}

// Sanitize compares the cells and predicates referenced anywhere in the
// specification against the circuit's declared cells and output predicates.
// It returns nil when every reference is covered, otherwise a structured
// description naming every offending reference.
func (s SystemSimulation[C]) Sanitize() *AlignmentError[C] {
	cells, preds := s.spec.References()

	declared := make(map[C]bool, len(s.circuit.Cells))
	for _, c := range s.circuit.Cells {
		declared[c] = true
	}
	exposed := make(map[string]bool, len(s.circuit.Outputs))
	for _, out := range s.circuit.Outputs {
		exposed[out.Predicate.Name] = true
	}

	var mismatch AlignmentError[C]
	for _, c := range cells {
		if !declared[c] {
			mismatch.Cells = append(mismatch.Cells, c)
		}
	}
	for _, p := range preds {
		if !exposed[p.Name] {
			mismatch.Predicates = append(mismatch.Predicates, p)
		}
	}
	if len(mismatch.Cells) == 0 && len(mismatch.Predicates) == 0 {
		return nil
	}
	return &mismatch
}

// Options enumerates every complete system move and plays each one against
// the current snapshot, reporting the violations and predicate evaluations
// it would produce. A move picks exactly one declared update per cell;
// cells with no declared choices hold their own value. The enumeration is
// exponential in the number of cells with multiple choices, which is the
// engine's sole scaling limit; ctx bounds the wall-clock work.
func (s SystemSimulation[C]) Options(ctx context.Context) ([]Choice[C], error) {
	options, err := s.enumerate(ctx)
	if err != nil {
		return nil, err
	}
	choices := make([]Choice[C], 0, len(options))
	for _, opt := range options {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, evaluation := s.Step(opt)
		choices = append(choices, Choice[C]{
			Option:     opt,
			Violated:   next.Violated(),
			Evaluation: evaluation,
		})
	}
	return choices, nil
}

func (s SystemSimulation[C]) enumerate(ctx context.Context) ([]SystemOption[C], error) {
	choices := make(map[C][]logic.SignalTerm[C], len(s.circuit.Cells))
	for _, in := range s.circuit.Inputs {
		choices[in.Cell] = append(choices[in.Cell], in.Term)
	}

	total := 1
	for _, c := range s.circuit.Cells {
		if n := len(choices[c]); n > 0 {
			total *= n
		}
	}

	options := make([]SystemOption[C], 0, total)
	var build func(i int, acc []CellUpdate[C]) error
	build = func(i int, acc []CellUpdate[C]) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == len(s.circuit.Cells) {
			options = append(options, SystemOption[C]{Updates: append([]CellUpdate[C]{}, acc...)})
			return nil
		}
		cell := s.circuit.Cells[i]
		terms := choices[cell]
		if len(terms) == 0 {
			return build(i+1, append(acc, CellUpdate[C]{Cell: cell, Term: logic.Hold(cell)}))
		}
		for _, t := range terms {
			if err := build(i+1, append(acc, CellUpdate[C]{Cell: cell, Term: t})); err != nil {
				return err
			}
		}
		return nil
	}
	if err := build(0, nil); err != nil {
		return nil, err
	}
	return options, nil
}

// Step plays one complete system move: it feeds the circuit the input
// assignment the option induces, records the resulting observation on the
// trace, and returns the advanced snapshot along with the predicate
// evaluation the circuit exposed.
//
// Step panics when the option leaves a declared input cell unassigned or
// assigns one twice. Both mean the option was built by hand rather than
// taken from Options, or Sanitize was skipped.
func (s SystemSimulation[C]) Step(option SystemOption[C]) (SystemSimulation[C], []PredicateEvaluation[C]) {
	chosen := make(map[C]logic.SignalTerm[C], len(option.Updates))
	for _, u := range option.Updates {
		if _, dup := chosen[u.Cell]; dup {
			panic(fmt.Sprintf("sim: option assigns cell %v twice", u.Cell))
		}
		chosen[u.Cell] = u.Term
	}

	inputs := make([]bool, len(s.circuit.Inputs))
	for i, in := range s.circuit.Inputs {
		term, ok := chosen[in.Cell]
		if !ok {
			panic(fmt.Sprintf("sim: option leaves cell %v unassigned", in.Cell))
		}
		inputs[i] = term.Equal(in.Term)
	}

	current, ok := s.states.Peek()
	if !ok {
		panic("sim: state stack is empty")
	}
	next, outs := s.circuit.SimStep(current, inputs)

	evals := make(map[string]bool, len(s.circuit.Outputs))
	evaluation := make([]PredicateEvaluation[C], len(s.circuit.Outputs))
	for i, out := range s.circuit.Outputs {
		evals[out.Predicate.Name] = outs[i]
		evaluation[i] = PredicateEvaluation[C]{Predicate: out.Predicate, Value: outs[i]}
	}

	advanced := SystemSimulation[C]{
		circuit: s.circuit,
		spec:    s.spec,
		states:  s.states.Push(next),
		trace:   s.trace.Append(logic.NewObservation(chosen, evals)),
		log:     s.log.Push(LogEntry[C]{Option: option, Evaluation: evaluation}),
	}
	return advanced, evaluation
}

// Rewind undoes the most recent step. The initial circuit state is the
// stack's permanent floor, so rewinding a fresh simulation is a no-op.
func (s SystemSimulation[C]) Rewind() SystemSimulation[C] {
	if s.states.Depth() <= 1 {
		return s
	}
	return SystemSimulation[C]{
		circuit: s.circuit,
		spec:    s.spec,
		states:  s.states.Pop(),
		trace:   s.trace.Rewind(),
		log:     s.log.Pop(),
	}
}

// Log returns the interaction history oldest-first.
func (s SystemSimulation[C]) Log() []LogEntry[C] {
	return s.log.Oldest()
}

// Steps reports how many moves have been played.
func (s SystemSimulation[C]) Steps() int {
	return s.trace.Depth()
}

// Violated lists the guarantees falsified at the current depth.
func (s SystemSimulation[C]) Violated() []logic.Formula[C] {
	return s.trace.Violated()
}

// Obligations returns the formulas still pending at the current depth.
func (s SystemSimulation[C]) Obligations() []trace.Obligation[C] {
	return s.trace.NextObligations()
}

// State returns the circuit state the next step will start from.
func (s SystemSimulation[C]) State() circuit.State {
	st, ok := s.states.Peek()
	if !ok {
		panic("sim: state stack is empty")
	}
	return st
}

// Specification returns the specification the simulation plays against.
func (s SystemSimulation[C]) Specification() spec.Specification[C] {
	return s.spec
}
