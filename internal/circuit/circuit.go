// Package circuit models a counter-strategy as a sequential Boolean
// circuit: update-labeled input lines, predicate-labeled output wires,
// latches carrying state across cycles, and AND gates. The structural
// description is immutable; per-cycle state lives in a State value that is
// replaced, never mutated, by each step.
package circuit

import (
	"errors"
	"fmt"

	"github.com/streamlogic/tslsim/internal/logic"
)

// Polarity selects whether a wire carries its source value or its negation.
type Polarity int

const (
	Positive Polarity = iota
	Negative
)

// SourceKind identifies what a wire reads from.
type SourceKind int

const (
	// SourceConst reads constant true; negate for constant false.
	SourceConst SourceKind = iota
	SourceInput
	SourceLatch
	SourceGate
)

// Wire reads one value from a source, optionally negated. Index selects the
// input, latch, or gate; it is ignored for constants.
type Wire struct {
	Kind     SourceKind
	Index    int
	Polarity Polarity
}

// ConstWire returns a wire carrying the given constant.
func ConstWire(v bool) Wire {
	if v {
		return Wire{Kind: SourceConst}
	}
	return Wire{Kind: SourceConst, Polarity: Negative}
}

// InputWire reads input line index.
func InputWire(index int) Wire { return Wire{Kind: SourceInput, Index: index} }

// LatchWire reads the current value of latch index.
func LatchWire(index int) Wire { return Wire{Kind: SourceLatch, Index: index} }

// GateWire reads the output of gate index.
func GateWire(index int) Wire { return Wire{Kind: SourceGate, Index: index} }

// Negate flips the wire's polarity.
func (w Wire) Negate() Wire {
	if w.Polarity == Positive {
		w.Polarity = Negative
	} else {
		w.Polarity = Positive
	}
	return w
}

// Input declares one system-controlled update line. The line goes high for
// a step exactly when the chosen option updates Cell with Term.
type Input[C comparable] struct {
	Cell C
	Term logic.SignalTerm[C]
}

// Output exposes a predicate evaluation on a wire.
type Output[C comparable] struct {
	Predicate logic.PredicateTerm[C]
	Wire      Wire
}

// Gate is a conjunction of its fan-in wires. An empty fan-in is constant
// true.
type Gate struct {
	Fanin []Wire
}

// Latch holds one bit across cycles. Its current value is read from State;
// Next computes the value loaded for the following cycle. Init is the
// power-on value.
type Latch struct {
	Init bool
	Next Wire
}

// Circuit is the immutable structural description of a counter-strategy.
// Cells is the declared cell universe: it must cover every input line's
// cell and may additionally declare cells without any update line, which
// the simulation treats as held each step.
type Circuit[C comparable] struct {
	Cells   []C
	Inputs  []Input[C]
	Outputs []Output[C]
	Latches []Latch
	Gates   []Gate
}

// State carries one cycle's latch values. Steps replace it wholesale.
type State []bool

// InitialState returns the power-on latch values.
func (c Circuit[C]) InitialState() State {
	s := make(State, len(c.Latches))
	for i, l := range c.Latches {
		s[i] = l.Init
	}
	return s
}

// SimStep advances the circuit one cycle. Latch reads resolve against the
// old state first, then gates evaluate on demand from inputs and latches;
// the returned state holds each latch's Next wire and the returned slice
// holds each declared output, both against this cycle's values. SimStep is
// a pure function of its two arguments.
//
// The circuit must have passed Validate and the argument lengths must
// match the declarations; anything else is a caller bug and panics.
func (c Circuit[C]) SimStep(state State, inputs []bool) (State, []bool) {
	if len(state) != len(c.Latches) {
		panic(fmt.Sprintf("circuit: state has %d values, circuit declares %d latches", len(state), len(c.Latches)))
	}
	if len(inputs) != len(c.Inputs) {
		panic(fmt.Sprintf("circuit: input has %d values, circuit declares %d lines", len(inputs), len(c.Inputs)))
	}

	const (
		unknown = iota
		low
		high
	)
	memo := make([]uint8, len(c.Gates))

	var gate func(i int) bool
	wireValue := func(w Wire) bool {
		var v bool
		switch w.Kind {
		case SourceConst:
			v = true
		case SourceInput:
			v = inputs[w.Index]
		case SourceLatch:
			v = state[w.Index]
		case SourceGate:
			v = gate(w.Index)
		default:
			panic("circuit: unknown wire source")
		}
		if w.Polarity == Negative {
			v = !v
		}
		return v
	}
	gate = func(i int) bool {
		switch memo[i] {
		case low:
			return false
		case high:
			return true
		}
		v := true
		for _, w := range c.Gates[i].Fanin {
			if !wireValue(w) {
				v = false
				break
			}
		}
		if v {
			memo[i] = high
		} else {
			memo[i] = low
		}
		return v
	}

	next := make(State, len(c.Latches))
	for i, l := range c.Latches {
		next[i] = wireValue(l.Next)
	}
	outputs := make([]bool, len(c.Outputs))
	for i, o := range c.Outputs {
		outputs[i] = wireValue(o.Wire)
	}
	return next, outputs
}

var (
	ErrDanglingWire      = errors.New("circuit: wire references an undeclared source")
	ErrCombinationalLoop = errors.New("circuit: combinational loop through gates")
	ErrDuplicateCell     = errors.New("circuit: duplicate cell declaration")
	ErrDuplicateInput    = errors.New("circuit: duplicate input declaration")
	ErrDuplicateOutput   = errors.New("circuit: duplicate output predicate")
	ErrUndeclaredCell    = errors.New("circuit: input cell missing from declared cells")
)

// Validate checks the structural description once, before any stepping:
// every wire must reference a declared source, input and output labels must
// be unique, input cells must be declared, and no combinational loop may
// run through the gates. SimStep assumes a validated circuit.
func (c Circuit[C]) Validate() error {
	declared := make(map[C]bool, len(c.Cells))
	for _, cell := range c.Cells {
		if declared[cell] {
			return fmt.Errorf("cell %v: %w", cell, ErrDuplicateCell)
		}
		declared[cell] = true
	}

	seenInputs := make(map[string]bool, len(c.Inputs))
	for i, in := range c.Inputs {
		if !declared[in.Cell] {
			return fmt.Errorf("input %d [%v <- %s]: %w", i, in.Cell, in.Term.Name, ErrUndeclaredCell)
		}
		key := fmt.Sprintf("[%v <- %s]", in.Cell, in.Term.Name)
		if seenInputs[key] {
			return fmt.Errorf("input %d %s: %w", i, key, ErrDuplicateInput)
		}
		seenInputs[key] = true
	}

	seenOutputs := make(map[string]bool, len(c.Outputs))
	for i, out := range c.Outputs {
		if seenOutputs[out.Predicate.Name] {
			return fmt.Errorf("output %d %q: %w", i, out.Predicate.Name, ErrDuplicateOutput)
		}
		seenOutputs[out.Predicate.Name] = true
		if err := c.checkWire(out.Wire); err != nil {
			return fmt.Errorf("output %d %q: %w", i, out.Predicate.Name, err)
		}
	}
	for i, l := range c.Latches {
		if err := c.checkWire(l.Next); err != nil {
			return fmt.Errorf("latch %d: %w", i, err)
		}
	}
	for i, g := range c.Gates {
		for j, w := range g.Fanin {
			if err := c.checkWire(w); err != nil {
				return fmt.Errorf("gate %d fanin %d: %w", i, j, err)
			}
		}
	}

	return c.checkLoops()
}

func (c Circuit[C]) checkWire(w Wire) error {
	switch w.Kind {
	case SourceConst:
		return nil
	case SourceInput:
		if w.Index < 0 || w.Index >= len(c.Inputs) {
			return fmt.Errorf("input %d of %d: %w", w.Index, len(c.Inputs), ErrDanglingWire)
		}
	case SourceLatch:
		if w.Index < 0 || w.Index >= len(c.Latches) {
			return fmt.Errorf("latch %d of %d: %w", w.Index, len(c.Latches), ErrDanglingWire)
		}
	case SourceGate:
		if w.Index < 0 || w.Index >= len(c.Gates) {
			return fmt.Errorf("gate %d of %d: %w", w.Index, len(c.Gates), ErrDanglingWire)
		}
	default:
		return fmt.Errorf("source kind %d: %w", w.Kind, ErrDanglingWire)
	}
	return nil
}

func (c Circuit[C]) checkLoops() error {
	const (
		white = iota
		gray
		black
	)
	colors := make([]uint8, len(c.Gates))
	var visit func(i int) error
	visit = func(i int) error {
		switch colors[i] {
		case gray:
			return fmt.Errorf("gate %d: %w", i, ErrCombinationalLoop)
		case black:
			return nil
		}
		colors[i] = gray
		for _, w := range c.Gates[i].Fanin {
			if w.Kind == SourceGate {
				if err := visit(w.Index); err != nil {
					return err
				}
			}
		}
		colors[i] = black
		return nil
	}
	for i := range c.Gates {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}
