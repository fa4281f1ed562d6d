// Package trace tracks temporal proof obligations against a rewindable,
// newest-first observation history. A FiniteTrace is an immutable snapshot:
// Append and Rewind return new traces sharing structure with the old one,
// so callers can hold onto any number of earlier snapshots and branch from
// them freely.
package trace

import (
	"github.com/streamlogic/tslsim/internal/logic"
	"github.com/streamlogic/tslsim/internal/stack"
)

// Obligation pairs a formula still pending satisfaction at the current
// depth with the original guarantee it derives from.
type Obligation[C comparable] struct {
	Pending   logic.Formula[C]
	Guarantee logic.Formula[C]
}

// FiniteTrace pairs a stack of observations with a stack of obligation
// levels. The obligation stack is always exactly one level deeper than the
// observation stack: its bottom level is seeded at construction and is
// never popped.
type FiniteTrace[C comparable] struct {
	observations *stack.Stack[logic.Observation[C]]
	obligations  *stack.Stack[[]Obligation[C]]
}

// EmptyTrace seeds a trace's bottom obligation level: every guarantee g
// becomes the pending formula Implies(And(assumptions), g) unfolded against
// the empty history, paired with g itself.
func EmptyTrace[C comparable](assumptions, guarantees []logic.Formula[C]) FiniteTrace[C] {
	seed := make([]Obligation[C], len(guarantees))
	for i, g := range guarantees {
		pending, _ := logic.Unfold[C](nil, logic.Cache[C]{}, logic.Implies[C]{
			Left:  logic.And[C]{Operands: append([]logic.Formula[C]{}, assumptions...)},
			Right: g,
		})
		seed[i] = Obligation[C]{Pending: pending, Guarantee: g}
	}
	var obligations *stack.Stack[[]Obligation[C]]
	return FiniteTrace[C]{obligations: obligations.Push(seed)}
}

// Append pushes one observation and derives the next obligation level by
// unfolding every pending formula against the grown history. Each pending
// formula gets a fresh cache: the history suffix changed, so no earlier
// cache entry is valid.
func (t FiniteTrace[C]) Append(obs logic.Observation[C]) FiniteTrace[C] {
	observations := t.observations.Push(obs)
	history := logic.History[C](observations.Newest())
	top := t.NextObligations()
	next := make([]Obligation[C], len(top))
	for i, ob := range top {
		pending, _ := logic.Unfold(history, logic.Cache[C]{}, ob.Pending)
		next[i] = Obligation[C]{Pending: pending, Guarantee: ob.Guarantee}
	}
	return FiniteTrace[C]{observations: observations, obligations: t.obligations.Push(next)}
}

// Rewind drops the newest observation and its obligation level. Rewinding
// an empty trace is a no-op; the seeded bottom level is never popped.
func (t FiniteTrace[C]) Rewind() FiniteTrace[C] {
	if t.observations == nil {
		return t
	}
	return FiniteTrace[C]{observations: t.observations.Pop(), obligations: t.obligations.Pop()}
}

// NextObligations returns the current obligation level. An empty obligation
// stack means the trace was built outside EmptyTrace and panics.
func (t FiniteTrace[C]) NextObligations() []Obligation[C] {
	level, ok := t.obligations.Peek()
	if !ok {
		panic("trace: obligation stack is empty")
	}
	out := make([]Obligation[C], len(level))
	copy(out, level)
	return out
}

// Violated returns the guarantee behind every pending obligation that has
// simplified to false at the current depth.
func (t FiniteTrace[C]) Violated() []logic.Formula[C] {
	var out []logic.Formula[C]
	for _, ob := range t.NextObligations() {
		if _, ok := logic.Simplify[C](ob.Pending).(logic.False[C]); ok {
			out = append(out, ob.Guarantee)
		}
	}
	return out
}

// Depth reports how many observations the trace currently holds.
func (t FiniteTrace[C]) Depth() int {
	return t.observations.Depth()
}

// History returns the observations newest-first.
func (t FiniteTrace[C]) History() logic.History[C] {
	return logic.History[C](t.observations.Newest())
}
