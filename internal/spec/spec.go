// Package spec groups the temporal assumptions and guarantees a circuit is
// simulated against, together with display names for the cells they mention.
package spec

import (
	"fmt"
	"strings"

	"github.com/streamlogic/tslsim/internal/logic"
)

// SymbolTable maps cells to human-readable names. Cells without an entry
// render through the fmt package.
type SymbolTable[C comparable] map[C]string

// Name returns the display name for a cell.
func (st SymbolTable[C]) Name(c C) string {
	if name, ok := st[c]; ok {
		return name
	}
	return fmt.Sprintf("%v", c)
}

// Specification is a set of temporal formulas split into environment
// assumptions and system guarantees. Assumptions describe what the
// environment is trusted to do; guarantees are the obligations the system
// must keep whenever the assumptions hold.
type Specification[C comparable] struct {
	Assumptions []logic.Formula[C]
	Guarantees  []logic.Formula[C]
	Symbols     SymbolTable[C]
}

// Combined folds the specification into the single formula
// (assumptions -> guarantees), conjoining each side.
func (s Specification[C]) Combined() logic.Formula[C] {
	return logic.Implies[C]{
		Left:  logic.And[C]{Operands: append([]logic.Formula[C]{}, s.Assumptions...)},
		Right: logic.And[C]{Operands: append([]logic.Formula[C]{}, s.Guarantees...)},
	}
}

// References reports every cell and predicate mentioned anywhere in the
// specification, in first-appearance order.
func (s Specification[C]) References() ([]C, []logic.PredicateTerm[C]) {
	return logic.References[C](s.Combined())
}

// Describe renders a formula with the specification's symbol table.
func (s Specification[C]) Describe(f logic.Formula[C]) string {
	return logic.Format(f, s.Symbols.Name)
}

// Summary renders the whole specification as one line per formula, prefixed
// with its role. Useful for logs and tool responses.
func (s Specification[C]) Summary() string {
	var b strings.Builder
	for _, a := range s.Assumptions {
		fmt.Fprintf(&b, "assume %s\n", s.Describe(a))
	}
	for _, g := range s.Guarantees {
		fmt.Fprintf(&b, "guarantee %s\n", s.Describe(g))
	}
	return b.String()
}
