package logic

import "fmt"

// PredicateTerm is an atomic boolean expression over cells. The core treats
// it as opaque: it is identified by its canonical Name and carries the
// cells it mentions so interface alignment checks can collect references.
// Distinct terms must carry distinct names.
type PredicateTerm[C comparable] struct {
	Name  string
	Cells []C
}

func (p PredicateTerm[C]) String() string { return p.Name }

// Equal reports whether both terms denote the same predicate.
func (p PredicateTerm[C]) Equal(o PredicateTerm[C]) bool { return p.Name == o.Name }

// SignalTerm is an atomic value expression a cell can be updated with. Like
// PredicateTerm it is opaque beyond its canonical Name and mentioned cells.
type SignalTerm[C comparable] struct {
	Name  string
	Cells []C
}

func (s SignalTerm[C]) String() string { return s.Name }

// Equal reports whether both terms denote the same signal.
func (s SignalTerm[C]) Equal(o SignalTerm[C]) bool { return s.Name == o.Name }

// Hold is the identity signal term for a cell: updating the cell with its
// own current value. Its canonical name is the cell's %v rendering.
func Hold[C comparable](cell C) SignalTerm[C] {
	return SignalTerm[C]{Name: fmt.Sprintf("%v", cell), Cells: []C{cell}}
}

// Observation records one step's evidence: which signal each cell was
// updated with, and how each exposed predicate evaluated. Both mappings are
// partial. An Observation is immutable after construction.
type Observation[C comparable] struct {
	updates map[C]SignalTerm[C]
	evals   map[string]bool
}

// NewObservation copies both mappings into a fresh Observation. The evals
// map is keyed by predicate term name.
func NewObservation[C comparable](updates map[C]SignalTerm[C], evals map[string]bool) Observation[C] {
	u := make(map[C]SignalTerm[C], len(updates))
	for c, s := range updates {
		u[c] = s
	}
	e := make(map[string]bool, len(evals))
	for name, v := range evals {
		e[name] = v
	}
	return Observation[C]{updates: u, evals: e}
}

// UpdatedWith returns the signal term the cell was updated with, if any.
func (o Observation[C]) UpdatedWith(cell C) (SignalTerm[C], bool) {
	s, ok := o.updates[cell]
	return s, ok
}

// Holds returns the recorded evaluation of the predicate term, if any.
func (o Observation[C]) Holds(p PredicateTerm[C]) (bool, bool) {
	v, ok := o.evals[p.Name]
	return v, ok
}

// History is a newest-first sequence of observations. history[0] is the
// most recent step and history[1:] the remaining past.
type History[C comparable] []Observation[C]
