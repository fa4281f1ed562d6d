//go:build scenario

package sim

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scriptTypeName = "script"

// Script is a parsed simulation script: an ordered list of session actions
// and assertions built by the Lua DSL.
type Script struct {
	Name  string
	Steps []Step
}

// Step is one scripted action or assertion. Text carries the scenario name
// or option pattern, Count the option index or expected quantity.
type Step struct {
	Kind  string
	Text  string
	Count int
}

func loadScriptFromFile(path string) (*Script, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	registerScriptType(state)
	registerScriptConstructor(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("script must return Script")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	script, ok := ud.(*Script)
	if !ok || script == nil {
		return nil, fmt.Errorf("script returned invalid Script")
	}
	if strings.TrimSpace(script.Name) == "" {
		script.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return script, nil
}

func registerScriptType(state *lua.State) {
	lua.NewMetaTable(state, scriptTypeName)
	state.NewTable()
	lua.SetFunctions(state, scriptMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScriptConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, scriptConstructor, 0)
	state.SetGlobal("Script")
}

var scriptConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scriptNew},
}

func scriptNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	script := &Script{Name: name}
	state.PushUserData(script)
	lua.SetMetaTableNamed(state, scriptTypeName)
	return 1
}

var scriptMethods = []lua.RegistryFunction{
	{Name: "start", Function: scriptStart},
	{Name: "step", Function: scriptStep},
	{Name: "step_matching", Function: scriptStepMatching},
	{Name: "rewind", Function: scriptRewind},
	{Name: "stop", Function: scriptStop},
	{Name: "expect_options", Function: scriptExpectOptions},
	{Name: "expect_steps", Function: scriptExpectSteps},
	{Name: "expect_violations", Function: scriptExpectViolations},
}

func scriptStart(state *lua.State) int {
	script := checkScript(state)
	name := lua.CheckString(state, 2)
	appendScriptStep(script, Step{Kind: "start", Text: name})
	return 0
}

// scriptStep plays an option by position. Lua scripts index options from 1.
func scriptStep(state *lua.State) int {
	script := checkScript(state)
	index := lua.CheckInteger(state, 2)
	if index < 1 {
		lua.ArgumentError(state, 2, "option index starts at 1")
		return 0
	}
	appendScriptStep(script, Step{Kind: "step", Count: index})
	return 0
}

func scriptStepMatching(state *lua.State) int {
	script := checkScript(state)
	pattern := lua.CheckString(state, 2)
	appendScriptStep(script, Step{Kind: "step_matching", Text: pattern})
	return 0
}

func scriptRewind(state *lua.State) int {
	script := checkScript(state)
	count := lua.OptInteger(state, 2, 1)
	if count < 1 {
		lua.ArgumentError(state, 2, "rewind count starts at 1")
		return 0
	}
	appendScriptStep(script, Step{Kind: "rewind", Count: count})
	return 0
}

func scriptStop(state *lua.State) int {
	script := checkScript(state)
	appendScriptStep(script, Step{Kind: "stop"})
	return 0
}

func scriptExpectOptions(state *lua.State) int {
	script := checkScript(state)
	count := lua.CheckInteger(state, 2)
	appendScriptStep(script, Step{Kind: "expect_options", Count: count})
	return 0
}

func scriptExpectSteps(state *lua.State) int {
	script := checkScript(state)
	count := lua.CheckInteger(state, 2)
	appendScriptStep(script, Step{Kind: "expect_steps", Count: count})
	return 0
}

func scriptExpectViolations(state *lua.State) int {
	script := checkScript(state)
	count := lua.CheckInteger(state, 2)
	appendScriptStep(script, Step{Kind: "expect_violations", Count: count})
	return 0
}

func checkScript(state *lua.State) *Script {
	ud := lua.CheckUserData(state, 1, scriptTypeName)
	if script, ok := ud.(*Script); ok && script != nil {
		return script
	}
	lua.ArgumentError(state, 1, "script expected")
	return nil
}

func appendScriptStep(script *Script, step Step) {
	if script == nil {
		return
	}
	script.Steps = append(script.Steps, step)
}
