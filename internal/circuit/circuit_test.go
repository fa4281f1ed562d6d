package circuit

import (
	"errors"
	"testing"

	"github.com/streamlogic/tslsim/internal/logic"
)

func declInput(cell, term string) Input[string] {
	return Input[string]{Cell: cell, Term: logic.SignalTerm[string]{Name: term}}
}

func declOutput(pred string, w Wire) Output[string] {
	return Output[string]{Predicate: logic.PredicateTerm[string]{Name: pred}, Wire: w}
}

// TestSimStepToggleLatch drives the smallest stateful circuit: a latch fed
// by its own negation, exposed on an output.
func TestSimStepToggleLatch(t *testing.T) {
	c := Circuit[string]{
		Cells:   []string{"x"},
		Inputs:  []Input[string]{declInput("x", "one")},
		Outputs: []Output[string]{declOutput("tick", LatchWire(0))},
		Latches: []Latch{{Init: false, Next: LatchWire(0).Negate()}},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate returned %v", err)
	}

	state := c.InitialState()
	want := []bool{false, true, false, true}
	for i, w := range want {
		var outs []bool
		state, outs = c.SimStep(state, []bool{false})
		if outs[0] != w {
			t.Fatalf("step %d output = %v, want %v", i+1, outs[0], w)
		}
	}
}

// TestSimStepLatchesReadOldState ensures outputs and latch loads both see
// the pre-step latch values, never the freshly computed ones.
func TestSimStepLatchesReadOldState(t *testing.T) {
	// Latch 0 records the input; latch 1 copies latch 0, so it lags one
	// extra cycle behind the input.
	c := Circuit[string]{
		Cells:  []string{"x"},
		Inputs: []Input[string]{declInput("x", "one")},
		Outputs: []Output[string]{
			declOutput("sawNow", InputWire(0)),
			declOutput("sawPrev", LatchWire(0)),
			declOutput("sawPrevPrev", LatchWire(1)),
		},
		Latches: []Latch{
			{Init: false, Next: InputWire(0)},
			{Init: false, Next: LatchWire(0)},
		},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate returned %v", err)
	}

	state := c.InitialState()
	feed := []bool{true, false, false}
	wantPrev := []bool{false, true, false}
	wantPrevPrev := []bool{false, false, true}
	for i, in := range feed {
		var outs []bool
		state, outs = c.SimStep(state, []bool{in})
		if outs[0] != in {
			t.Fatalf("step %d sawNow = %v, want %v", i+1, outs[0], in)
		}
		if outs[1] != wantPrev[i] {
			t.Fatalf("step %d sawPrev = %v, want %v", i+1, outs[1], wantPrev[i])
		}
		if outs[2] != wantPrevPrev[i] {
			t.Fatalf("step %d sawPrevPrev = %v, want %v", i+1, outs[2], wantPrevPrev[i])
		}
	}
}

// TestSimStepGatesAndPolarity checks conjunction, negation, constants, and
// gate fan-in through other gates.
func TestSimStepGatesAndPolarity(t *testing.T) {
	// gate0 = in0 && !in1; gate1 = gate0 && true
	c := Circuit[string]{
		Cells: []string{"a", "b"},
		Inputs: []Input[string]{
			declInput("a", "set"),
			declInput("b", "set"),
		},
		Outputs: []Output[string]{
			declOutput("both", GateWire(1)),
			declOutput("neither", GateWire(0).Negate()),
			declOutput("alwaysOn", ConstWire(true)),
			declOutput("alwaysOff", ConstWire(false)),
			declOutput("emptyGate", GateWire(2)),
		},
		Gates: []Gate{
			{Fanin: []Wire{InputWire(0), InputWire(1).Negate()}},
			{Fanin: []Wire{GateWire(0), ConstWire(true)}},
			{},
		},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate returned %v", err)
	}

	tcs := []struct {
		in   []bool
		want []bool
	}{
		{[]bool{true, false}, []bool{true, false, true, false, true}},
		{[]bool{true, true}, []bool{false, true, true, false, true}},
		{[]bool{false, false}, []bool{false, true, true, false, true}},
	}
	for _, tc := range tcs {
		_, outs := c.SimStep(c.InitialState(), tc.in)
		for i := range tc.want {
			if outs[i] != tc.want[i] {
				t.Fatalf("inputs %v: output %d = %v, want %v", tc.in, i, outs[i], tc.want[i])
			}
		}
	}
}

// TestSimStepDeterministic replays the same arguments and expects identical
// results every time.
func TestSimStepDeterministic(t *testing.T) {
	c := Circuit[string]{
		Cells:  []string{"x"},
		Inputs: []Input[string]{declInput("x", "one"), declInput("x", "zero")},
		Outputs: []Output[string]{
			declOutput("p", GateWire(0)),
			declOutput("q", LatchWire(0).Negate()),
		},
		Latches: []Latch{{Init: true, Next: GateWire(0)}},
		Gates:   []Gate{{Fanin: []Wire{InputWire(0), LatchWire(0)}}},
	}
	state := State{true}
	inputs := []bool{true, false}

	firstState, firstOuts := c.SimStep(state, inputs)
	for i := 0; i < 20; i++ {
		nextState, outs := c.SimStep(state, inputs)
		for j := range firstState {
			if nextState[j] != firstState[j] {
				t.Fatalf("run %d state = %v, want %v", i, nextState, firstState)
			}
		}
		for j := range firstOuts {
			if outs[j] != firstOuts[j] {
				t.Fatalf("run %d outputs = %v, want %v", i, outs, firstOuts)
			}
		}
	}
}

// TestValidateRejections walks every structural defect Validate guards.
func TestValidateRejections(t *testing.T) {
	valid := func() Circuit[string] {
		return Circuit[string]{
			Cells:   []string{"x"},
			Inputs:  []Input[string]{declInput("x", "one")},
			Outputs: []Output[string]{declOutput("p", InputWire(0))},
			Latches: []Latch{{Next: InputWire(0)}},
			Gates:   []Gate{{Fanin: []Wire{InputWire(0)}}},
		}
	}

	tcs := []struct {
		name    string
		mutate  func(*Circuit[string])
		wantErr error
	}{
		{
			"dangling input wire",
			func(c *Circuit[string]) { c.Outputs[0].Wire = InputWire(3) },
			ErrDanglingWire,
		},
		{
			"dangling latch wire",
			func(c *Circuit[string]) { c.Latches[0].Next = LatchWire(1) },
			ErrDanglingWire,
		},
		{
			"dangling gate wire",
			func(c *Circuit[string]) { c.Gates[0].Fanin = []Wire{GateWire(7)} },
			ErrDanglingWire,
		},
		{
			"combinational loop",
			func(c *Circuit[string]) {
				c.Gates = []Gate{
					{Fanin: []Wire{GateWire(1)}},
					{Fanin: []Wire{GateWire(0)}},
				}
			},
			ErrCombinationalLoop,
		},
		{
			"self loop",
			func(c *Circuit[string]) { c.Gates[0].Fanin = []Wire{GateWire(0)} },
			ErrCombinationalLoop,
		},
		{
			"duplicate cell",
			func(c *Circuit[string]) { c.Cells = []string{"x", "x"} },
			ErrDuplicateCell,
		},
		{
			"duplicate input pair",
			func(c *Circuit[string]) { c.Inputs = append(c.Inputs, declInput("x", "one")) },
			ErrDuplicateInput,
		},
		{
			"undeclared input cell",
			func(c *Circuit[string]) { c.Inputs = append(c.Inputs, declInput("y", "one")) },
			ErrUndeclaredCell,
		},
		{
			"duplicate output predicate",
			func(c *Circuit[string]) { c.Outputs = append(c.Outputs, declOutput("p", InputWire(0))) },
			ErrDuplicateOutput,
		},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("baseline circuit invalid: %v", err)
	}
	for _, tc := range tcs {
		c := valid()
		tc.mutate(&c)
		err := c.Validate()
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: Validate = %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

// TestSimStepPanicsOnArity ensures mismatched state or input widths fail
// loudly instead of producing garbage.
func TestSimStepPanicsOnArity(t *testing.T) {
	c := Circuit[string]{
		Cells:   []string{"x"},
		Inputs:  []Input[string]{declInput("x", "one")},
		Latches: []Latch{{Next: InputWire(0)}},
	}

	assertPanics := func(name string, fn func()) {
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}
	assertPanics("short state", func() { c.SimStep(State{}, []bool{true}) })
	assertPanics("short inputs", func() { c.SimStep(State{false}, nil) })
}

// TestInitialState reads power-on values straight from the latch
// declarations.
func TestInitialState(t *testing.T) {
	c := Circuit[string]{
		Latches: []Latch{
			{Init: true, Next: ConstWire(true)},
			{Init: false, Next: ConstWire(true)},
			{Init: true, Next: ConstWire(true)},
		},
	}
	got := c.InitialState()
	want := State{true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("InitialState = %v, want %v", got, want)
		}
	}
}
