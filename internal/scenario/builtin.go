package scenario

import (
	"github.com/streamlogic/tslsim/internal/circuit"
	"github.com/streamlogic/tslsim/internal/logic"
	"github.com/streamlogic/tslsim/internal/spec"
)

func check(name string) logic.Formula[string] {
	return logic.Check[string]{Predicate: logic.PredicateTerm[string]{Name: name}}
}

func update(cell, term string) logic.Formula[string] {
	return logic.Update[string]{Cell: cell, Signal: logic.SignalTerm[string]{Name: term}}
}

func implies(l, r logic.Formula[string]) logic.Formula[string] {
	return logic.Implies[string]{Left: l, Right: r}
}

func input(cell, term string) circuit.Input[string] {
	return circuit.Input[string]{Cell: cell, Term: logic.SignalTerm[string]{Name: term}}
}

func output(pred string, w circuit.Wire) circuit.Output[string] {
	return circuit.Output[string]{Predicate: logic.PredicateTerm[string]{Name: pred}, Wire: w}
}

// TrafficLight alternates a carWaiting sensor every step; the system must
// answer a waiting car with green and an empty crossing with red.
func TrafficLight() Scenario {
	return Scenario{
		Name:        "traffic-light",
		Description: "serve the alternating carWaiting sensor with the matching lamp color",
		Circuit: circuit.Circuit[string]{
			Cells:   []string{"lamp"},
			Inputs:  []circuit.Input[string]{input("lamp", "red"), input("lamp", "green")},
			Outputs: []circuit.Output[string]{output("carWaiting", circuit.LatchWire(0))},
			Latches: []circuit.Latch{{Init: false, Next: circuit.LatchWire(0).Negate()}},
		},
		Spec: spec.Specification[string]{
			Guarantees: []logic.Formula[string]{
				logic.Globally[string]{Operand: implies(check("carWaiting"), update("lamp", "green"))},
				logic.Globally[string]{Operand: implies(logic.Not[string]{Operand: check("carWaiting")}, update("lamp", "red"))},
			},
		},
	}
}

// Heater starts too cold; turning the heater on warms the room for the
// following step. The environment is trusted to warm up after every turnOn,
// and the system must heat whenever it is too cold.
func Heater() Scenario {
	turnOnWarms := logic.Historically[string]{Operand: implies(
		logic.Previous[string]{Operand: update("heater", "turnOn")},
		logic.Not[string]{Operand: check("tooCold")},
	)}
	return Scenario{
		Name:        "heater",
		Description: "keep the room warm: tooCold demands turnOn, and heating works by assumption",
		Circuit: circuit.Circuit[string]{
			Cells:   []string{"heater"},
			Inputs:  []circuit.Input[string]{input("heater", "turnOn"), input("heater", "turnOff")},
			Outputs: []circuit.Output[string]{output("tooCold", circuit.LatchWire(0))},
			Latches: []circuit.Latch{{Init: true, Next: circuit.InputWire(0).Negate()}},
		},
		Spec: spec.Specification[string]{
			Assumptions: []logic.Formula[string]{turnOnWarms},
			Guarantees: []logic.Formula[string]{
				logic.Globally[string]{Operand: implies(check("tooCold"), update("heater", "turnOn"))},
			},
		},
	}
}

// Echo exposes isHigh as a mirror of the high update in the same step, so
// the equivalence between choosing high and observing isHigh always holds.
func Echo() Scenario {
	return Scenario{
		Name:        "echo",
		Description: "a warmup: the isHigh predicate mirrors the high update within the step",
		Circuit: circuit.Circuit[string]{
			Cells:   []string{"signal"},
			Inputs:  []circuit.Input[string]{input("signal", "high"), input("signal", "low")},
			Outputs: []circuit.Output[string]{output("isHigh", circuit.InputWire(0))},
		},
		Spec: spec.Specification[string]{
			Guarantees: []logic.Formula[string]{
				logic.Globally[string]{Operand: logic.Equiv[string]{
					Left:  update("signal", "high"),
					Right: check("isHigh"),
				}},
			},
		},
	}
}

// Handshake grants one step after a request is asserted. The system must
// keep asserting until granted; dropping the request early violates.
func Handshake() Scenario {
	return Scenario{
		Name:        "handshake",
		Description: "assert the request until the grant arrives",
		Circuit: circuit.Circuit[string]{
			Cells:   []string{"req"},
			Inputs:  []circuit.Input[string]{input("req", "assert"), input("req", "drop")},
			Outputs: []circuit.Output[string]{output("granted", circuit.LatchWire(0))},
			Latches: []circuit.Latch{{Init: false, Next: circuit.InputWire(0)}},
		},
		Spec: spec.Specification[string]{
			Guarantees: []logic.Formula[string]{
				logic.Until[string]{Left: update("req", "assert"), Right: check("granted")},
			},
		},
	}
}

// Default returns the built-in catalog. Built-ins are validated like any
// other scenario; a broken one is a programming error and panics.
func Default() *Catalog {
	c, err := NewCatalog(TrafficLight(), Heater(), Echo(), Handshake())
	if err != nil {
		panic(err)
	}
	return c
}
