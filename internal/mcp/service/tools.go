package service

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/streamlogic/tslsim/internal/journal"
	"github.com/streamlogic/tslsim/internal/mcp/domain"
	apperrors "github.com/streamlogic/tslsim/internal/platform/errors"
	"github.com/streamlogic/tslsim/internal/scenario"
	"github.com/streamlogic/tslsim/internal/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("tslsim/mcp")

// addTool registers a tool with its handler wrapped in a span named after
// the tool. Handler errors are recorded with their domain error category.
func addTool[In, Out any](mcpServer *mcp.Server, tool *mcp.Tool, handler mcp.ToolHandlerFor[In, Out]) {
	traced := func(ctx context.Context, req *mcp.CallToolRequest, input In) (*mcp.CallToolResult, Out, error) {
		ctx, span := tracer.Start(ctx, "mcp."+tool.Name)
		defer span.End()

		result, out, err := handler(ctx, req, input)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.category", apperrors.CodeOf(err).Category().String()))
			span.SetStatus(codes.Error, err.Error())
		}
		return result, out, err
	}
	mcp.AddTool(mcpServer, tool, traced)
}

func registerScenarioTools(mcpServer *mcp.Server, catalog *scenario.Catalog) {
	addTool(mcpServer, domain.ScenarioListTool(), domain.ScenarioListHandler(catalog))
}

func registerSimulationTools(mcpServer *mcp.Server, sessions *session.Manager, store journal.Store) {
	addTool(mcpServer, domain.SimStartTool(), domain.SimStartHandler(sessions))
	addTool(mcpServer, domain.SimOptionsTool(), domain.SimOptionsHandler(sessions))
	addTool(mcpServer, domain.SimStepTool(), domain.SimStepHandler(sessions, store))
	addTool(mcpServer, domain.SimRewindTool(), domain.SimRewindHandler(sessions))
	addTool(mcpServer, domain.SimStatusTool(), domain.SimStatusHandler(sessions))
	addTool(mcpServer, domain.SimStopTool(), domain.SimStopHandler(sessions))
}

func registerJournalTools(mcpServer *mcp.Server, store journal.Store) {
	addTool(mcpServer, domain.SimLogTool(), domain.SimLogHandler(store))
}

// registerScenarioResources registers one readable resource per scenario.
func registerScenarioResources(mcpServer *mcp.Server, catalog *scenario.Catalog) {
	for _, sc := range catalog.List() {
		mcpServer.AddResource(domain.ScenarioResource(sc), domain.ScenarioResourceHandler(catalog, sc.Name))
	}
}
