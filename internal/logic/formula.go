package logic

import (
	"fmt"
	"strings"
)

// Formula is an immutable temporal stream logic expression over cells of
// type C. The set of variants is closed; exhaustive type switches over it
// are safe. Formulas must be compared through String, not ==, because the
// n-ary variants carry slices.
//
// The String rendering is canonical: two formulas are structurally equal
// exactly when their strings are equal. This requires that distinct
// predicate and signal terms carry distinct names, and that distinct cell
// values of type C render distinctly under %v.
type Formula[C comparable] interface {
	fmt.Stringer

	// isFormula seals the sum type.
	isFormula()
}

// True is the constant true formula.
type True[C comparable] struct{}

// False is the constant false formula.
type False[C comparable] struct{}

// Check evaluates a predicate term against the newest observation.
type Check[C comparable] struct {
	Predicate PredicateTerm[C]
}

// Update holds exactly when the newest observation updated Cell with Signal.
type Update[C comparable] struct {
	Cell   C
	Signal SignalTerm[C]
}

// Not negates its operand.
type Not[C comparable] struct {
	Operand Formula[C]
}

// And is an ordered n-ary conjunction. The order of operands affects only
// display, never truth.
type And[C comparable] struct {
	Operands []Formula[C]
}

// Or is an ordered n-ary disjunction.
type Or[C comparable] struct {
	Operands []Formula[C]
}

// Next defers its operand by one step.
type Next[C comparable] struct {
	Operand Formula[C]
}

// Previous evaluates its operand one step in the past.
type Previous[C comparable] struct {
	Operand Formula[C]
}

// Historically holds when its operand held at every step so far.
type Historically[C comparable] struct {
	Operand Formula[C]
}

// Once holds when its operand held at some step so far.
type Once[C comparable] struct {
	Operand Formula[C]
}

// Triggered is the past-time dual of Release: Right must have held since
// the last step at which Left held, or throughout the whole history.
type Triggered[C comparable] struct {
	Left  Formula[C]
	Right Formula[C]
}

// Since holds when Right held at some past step and Left has held ever since.
type Since[C comparable] struct {
	Left  Formula[C]
	Right Formula[C]
}

// Globally requires its operand at every step from now on.
type Globally[C comparable] struct {
	Operand Formula[C]
}

// Finally requires its operand at some step from now on.
type Finally[C comparable] struct {
	Operand Formula[C]
}

// Until requires Right eventually, with Left holding at every step before.
type Until[C comparable] struct {
	Left  Formula[C]
	Right Formula[C]
}

// Weak is the weak-until operator. Its one-step unfolding deliberately
// matches Until, see Unfold.
type Weak[C comparable] struct {
	Left  Formula[C]
	Right Formula[C]
}

// Release requires Right until and including the step at which Left first
// holds, or forever if Left never does.
type Release[C comparable] struct {
	Left  Formula[C]
	Right Formula[C]
}

// Implies is material implication.
type Implies[C comparable] struct {
	Left  Formula[C]
	Right Formula[C]
}

// Equiv is material equivalence.
type Equiv[C comparable] struct {
	Left  Formula[C]
	Right Formula[C]
}

func (True[C]) isFormula()         {}
func (False[C]) isFormula()        {}
func (Check[C]) isFormula()        {}
func (Update[C]) isFormula()       {}
func (Not[C]) isFormula()          {}
func (And[C]) isFormula()          {}
func (Or[C]) isFormula()           {}
func (Next[C]) isFormula()         {}
func (Previous[C]) isFormula()     {}
func (Historically[C]) isFormula() {}
func (Once[C]) isFormula()         {}
func (Triggered[C]) isFormula()    {}
func (Since[C]) isFormula()        {}
func (Globally[C]) isFormula()     {}
func (Finally[C]) isFormula()      {}
func (Until[C]) isFormula()        {}
func (Weak[C]) isFormula()         {}
func (Release[C]) isFormula()      {}
func (Implies[C]) isFormula()      {}
func (Equiv[C]) isFormula()        {}

func (True[C]) String() string  { return "true" }
func (False[C]) String() string { return "false" }

func (f Check[C]) String() string {
	return f.Predicate.Name
}

func (f Update[C]) String() string {
	return fmt.Sprintf("[%v <- %s]", f.Cell, f.Signal.Name)
}

func (f Not[C]) String() string          { return unary[C]("!", f.Operand) }
func (f Next[C]) String() string         { return unary[C]("X", f.Operand) }
func (f Previous[C]) String() string     { return unary[C]("Y", f.Operand) }
func (f Historically[C]) String() string { return unary[C]("H", f.Operand) }
func (f Once[C]) String() string         { return unary[C]("O", f.Operand) }
func (f Globally[C]) String() string     { return unary[C]("G", f.Operand) }
func (f Finally[C]) String() string      { return unary[C]("F", f.Operand) }

func (f And[C]) String() string       { return nary[C]("&&", f.Operands) }
func (f Or[C]) String() string        { return nary[C]("||", f.Operands) }
func (f Triggered[C]) String() string { return binary[C]("T", f.Left, f.Right) }
func (f Since[C]) String() string     { return binary[C]("S", f.Left, f.Right) }
func (f Until[C]) String() string     { return binary[C]("U", f.Left, f.Right) }
func (f Weak[C]) String() string      { return binary[C]("W", f.Left, f.Right) }
func (f Release[C]) String() string   { return binary[C]("R", f.Left, f.Right) }
func (f Implies[C]) String() string   { return binary[C]("->", f.Left, f.Right) }
func (f Equiv[C]) String() string     { return binary[C]("<->", f.Left, f.Right) }

func unary[C comparable](op string, operand Formula[C]) string {
	return "(" + op + " " + operand.String() + ")"
}

func binary[C comparable](op string, left, right Formula[C]) string {
	return "(" + op + " " + left.String() + " " + right.String() + ")"
}

func nary[C comparable](op string, operands []Formula[C]) string {
	if len(operands) == 0 {
		return "(" + op + ")"
	}
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(op)
	for _, operand := range operands {
		b.WriteString(" ")
		b.WriteString(operand.String())
	}
	b.WriteString(")")
	return b.String()
}
