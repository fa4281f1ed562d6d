// Package service hosts the MCP server that exposes the simulation engine
// to MCP clients over stdio or HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/streamlogic/tslsim/internal/journal"
	"github.com/streamlogic/tslsim/internal/scenario"
	"github.com/streamlogic/tslsim/internal/session"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "TSL Simulation MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over HTTP with SSE streaming.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	Transport TransportKind
	HTTPAddr  string // HTTP bind address, http transport only. Defaults to localhost:8081.
}

// Server hosts the MCP server over the in-process simulation stack.
type Server struct {
	mcpServer *mcp.Server
}

// New creates a configured MCP server over the scenario catalog, session
// manager, and step journal. The journal may be nil; sim_step then skips
// archiving and sim_log reports the journal as unavailable.
func New(catalog *scenario.Catalog, sessions *session.Manager, store journal.Store) (*Server, error) {
	if catalog == nil {
		return nil, fmt.Errorf("scenario catalog is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		CompletionHandler: completionHandler(catalog),
	})

	registerScenarioTools(mcpServer, catalog)
	registerSimulationTools(mcpServer, sessions, store)
	registerJournalTools(mcpServer, store)
	registerScenarioResources(mcpServer, catalog)

	return &Server{mcpServer: mcpServer}, nil
}

// completionHandler offers the catalog's scenario names for completion
// requests, filtered by the prefix typed so far. The only completable
// reference is the scenario resource template's name variable.
func completionHandler(catalog *scenario.Catalog) func(context.Context, *mcp.CompleteRequest) (*mcp.CompleteResult, error) {
	return func(_ context.Context, req *mcp.CompleteRequest) (*mcp.CompleteResult, error) {
		var prefix string
		if req != nil && req.Params != nil {
			prefix = req.Params.Argument.Value
		}
		names := []string{}
		for _, sc := range catalog.List() {
			if strings.HasPrefix(sc.Name, prefix) {
				names = append(names, sc.Name)
			}
		}
		return &mcp.CompleteResult{
			Completion: mcp.CompletionResultDetails{
				Values: names,
			},
		}, nil
	}
}

// Run creates and serves the MCP server until the context ends.
func Run(ctx context.Context, cfg Config, catalog *scenario.Catalog, sessions *session.Manager, store journal.Store) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	server, err := New(catalog, sessions, store)
	if err != nil {
		return err
	}

	switch cfg.Transport {
	case TransportStdio:
		return server.Serve(ctx)
	case TransportHTTP:
		httpAddr := cfg.HTTPAddr
		if httpAddr == "" {
			httpAddr = "localhost:8081"
		}
		return NewHTTPTransport(httpAddr, server.mcpServer).Start(ctx)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport starts the MCP server using the provided transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
