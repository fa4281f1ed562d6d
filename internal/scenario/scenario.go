// Package scenario catalogs ready-to-play pairings of a counter-strategy
// circuit with a temporal specification. Scenarios are the unit a session
// starts from; every catalog entry is validated on construction so a
// session can never begin misaligned.
package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/streamlogic/tslsim/internal/circuit"
	"github.com/streamlogic/tslsim/internal/sim"
	"github.com/streamlogic/tslsim/internal/spec"
)

// ErrUnknownScenario is returned when a catalog lookup misses.
var ErrUnknownScenario = errors.New("scenario: unknown scenario")

// Scenario is a named, playable pairing of circuit and specification.
// Cells are identified by their display names.
type Scenario struct {
	Name        string
	Description string
	Circuit     circuit.Circuit[string]
	Spec        spec.Specification[string]
}

// Start builds the initial simulation snapshot for the scenario.
func (s Scenario) Start() (sim.SystemSimulation[string], error) {
	return sim.New(s.Circuit, s.Spec)
}

// Describe renders the scenario's interface and specification as text, one
// declaration per line.
func (s Scenario) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s\n", s.Name)
	if s.Description != "" {
		fmt.Fprintf(&b, "%s\n", s.Description)
	}
	for _, cell := range s.Circuit.Cells {
		var terms []string
		for _, in := range s.Circuit.Inputs {
			if in.Cell == cell {
				terms = append(terms, in.Term.Name)
			}
		}
		if len(terms) == 0 {
			fmt.Fprintf(&b, "cell %s (holds its value)\n", cell)
			continue
		}
		fmt.Fprintf(&b, "cell %s updates: %s\n", cell, strings.Join(terms, ", "))
	}
	for _, out := range s.Circuit.Outputs {
		fmt.Fprintf(&b, "predicate %s\n", out.Predicate.Name)
	}
	b.WriteString(s.Spec.Summary())
	return b.String()
}

// Catalog is an ordered, validated collection of scenarios.
type Catalog struct {
	byName map[string]Scenario
	order  []string
}

// NewCatalog validates every scenario by building its initial simulation
// and rejects the whole catalog on the first failure.
func NewCatalog(scenarios ...Scenario) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Scenario, len(scenarios))}
	for _, s := range scenarios {
		if s.Name == "" {
			return nil, errors.New("scenario: scenario without a name")
		}
		if _, dup := c.byName[s.Name]; dup {
			return nil, fmt.Errorf("scenario: duplicate scenario %q", s.Name)
		}
		if _, err := s.Start(); err != nil {
			return nil, fmt.Errorf("scenario: %q does not validate: %w", s.Name, err)
		}
		c.byName[s.Name] = s
		c.order = append(c.order, s.Name)
	}
	return c, nil
}

// List returns the scenarios in registration order.
func (c *Catalog) List() []Scenario {
	out := make([]Scenario, len(c.order))
	for i, name := range c.order {
		out[i] = c.byName[name]
	}
	return out
}

// Get looks a scenario up by name.
func (c *Catalog) Get(name string) (Scenario, error) {
	s, ok := c.byName[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return s, nil
}
