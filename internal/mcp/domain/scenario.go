package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/streamlogic/tslsim/internal/scenario"
)

// scenarioURIPrefix is the scheme every scenario resource lives under.
const scenarioURIPrefix = "tsl://scenario/"

// ScenarioSource lists and resolves the scenarios sessions can start from.
// *scenario.Catalog satisfies it.
type ScenarioSource interface {
	List() []scenario.Scenario
	Get(name string) (scenario.Scenario, error)
}

// ScenarioListInput represents the MCP tool input for scenario listing.
type ScenarioListInput struct{}

// ScenarioEntry represents one playable scenario in a listing.
type ScenarioEntry struct {
	Name        string   `json:"name" jsonschema:"scenario name"`
	Description string   `json:"description" jsonschema:"what the scenario models"`
	Cells       []string `json:"cells" jsonschema:"cells the circuit declares"`
	Predicates  []string `json:"predicates" jsonschema:"predicates the circuit exposes"`
	URI         string   `json:"uri" jsonschema:"resource URI with the full scenario description"`
}

// ScenarioListResult represents the MCP tool output for scenario listing.
type ScenarioListResult struct {
	Scenarios []ScenarioEntry `json:"scenarios" jsonschema:"playable scenarios in catalog order"`
}

// ScenarioCellPayload describes one cell and its declared update terms.
type ScenarioCellPayload struct {
	Name    string   `json:"name"`
	Updates []string `json:"updates"`
}

// ScenarioPayload represents the MCP resource payload for one scenario.
type ScenarioPayload struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Cells       []ScenarioCellPayload `json:"cells"`
	Predicates  []string              `json:"predicates"`
	Assumptions []string              `json:"assumptions"`
	Guarantees  []string              `json:"guarantees"`
	Display     string                `json:"display"`
}

// ScenarioListTool defines the MCP tool schema for listing scenarios.
func ScenarioListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "scenario_list",
		Description: "Lists the scenarios a simulation session can start from",
	}
}

// ScenarioResource defines the readable resource for one scenario.
func ScenarioResource(sc scenario.Scenario) *mcp.Resource {
	return &mcp.Resource{
		Name:        "scenario_" + sc.Name,
		Title:       sc.Name,
		Description: "Cells, predicates, and specification of the scenario",
		MIMEType:    "application/json",
		URI:         ScenarioURI(sc.Name),
	}
}

// ScenarioURI returns the canonical resource URI for a scenario name.
func ScenarioURI(name string) string {
	return scenarioURIPrefix + name
}

// ScenarioListHandler lists the catalog.
func ScenarioListHandler(source ScenarioSource) mcp.ToolHandlerFor[ScenarioListInput, ScenarioListResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ ScenarioListInput) (*mcp.CallToolResult, ScenarioListResult, error) {
		if source == nil {
			return nil, ScenarioListResult{}, fmt.Errorf("scenario source is not configured")
		}

		result := ScenarioListResult{}
		for _, sc := range source.List() {
			result.Scenarios = append(result.Scenarios, scenarioEntry(sc))
		}
		return nil, result, nil
	}
}

// ScenarioResourceHandler serves one scenario's full description.
func ScenarioResourceHandler(source ScenarioSource, name string) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if source == nil {
			return nil, fmt.Errorf("scenario source is not configured")
		}

		uri := ScenarioURI(name)
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}

		sc, err := source.Get(name)
		if err != nil {
			return nil, fmt.Errorf("read scenario %q: %w", name, err)
		}

		data, err := json.MarshalIndent(scenarioPayload(sc), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal scenario %q: %w", name, err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

func scenarioEntry(sc scenario.Scenario) ScenarioEntry {
	entry := ScenarioEntry{
		Name:        sc.Name,
		Description: sc.Description,
		URI:         ScenarioURI(sc.Name),
	}
	entry.Cells = append(entry.Cells, sc.Circuit.Cells...)
	for _, out := range sc.Circuit.Outputs {
		entry.Predicates = append(entry.Predicates, out.Predicate.Name)
	}
	return entry
}

func scenarioPayload(sc scenario.Scenario) ScenarioPayload {
	payload := ScenarioPayload{
		Name:        sc.Name,
		Description: sc.Description,
		Display:     sc.Describe(),
	}
	for _, cell := range sc.Circuit.Cells {
		cp := ScenarioCellPayload{Name: cell}
		for _, in := range sc.Circuit.Inputs {
			if in.Cell == cell {
				cp.Updates = append(cp.Updates, in.Term.Name)
			}
		}
		payload.Cells = append(payload.Cells, cp)
	}
	for _, out := range sc.Circuit.Outputs {
		payload.Predicates = append(payload.Predicates, out.Predicate.Name)
	}
	for _, a := range sc.Spec.Assumptions {
		payload.Assumptions = append(payload.Assumptions, sc.Spec.Describe(a))
	}
	for _, g := range sc.Spec.Guarantees {
		payload.Guarantees = append(payload.Guarantees, sc.Spec.Describe(g))
	}
	return payload
}
