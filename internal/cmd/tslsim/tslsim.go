// Package tslsim parses simulator command flags and starts the MCP service.
package tslsim

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/streamlogic/tslsim/internal/journal"
	"github.com/streamlogic/tslsim/internal/journal/sqlite"
	"github.com/streamlogic/tslsim/internal/mcp/service"
	entrypoint "github.com/streamlogic/tslsim/internal/platform/cmd"
	"github.com/streamlogic/tslsim/internal/scenario"
	"github.com/streamlogic/tslsim/internal/session"
)

const (
	// sessionSweepInterval is how often idle sessions are reaped.
	sessionSweepInterval = 5 * time.Minute
	// sessionMaxIdle is how long a session may sit untouched before the
	// sweeper drops it.
	sessionMaxIdle = time.Hour
)

// Config holds simulator command configuration.
type Config struct {
	Transport   string `env:"TSLSIM_TRANSPORT" envDefault:"stdio"`
	HTTPAddr    string `env:"TSLSIM_HTTP_ADDR" envDefault:"localhost:8081"`
	JournalPath string `env:"TSLSIM_JOURNAL_PATH"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, "SQLite journal path (in-memory journal when empty)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the simulation MCP service and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, "tslsim", func(ctx context.Context) error {
		catalog := scenario.Default()
		sessions := session.NewManager(catalog)

		store, closeStore, err := openJournal(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer closeStore()

		go sweepSessions(ctx, sessions)

		return service.Run(ctx, service.Config{
			Transport: service.TransportKind(cfg.Transport),
			HTTPAddr:  cfg.HTTPAddr,
		}, catalog, sessions, store)
	})
}

// openJournal selects the journal backing store: SQLite when a path is
// configured, in-memory otherwise.
func openJournal(path string) (journal.Store, func(), error) {
	if path == "" {
		return journal.NewMemoryStore(), func() {}, nil
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			log.Printf("close journal: %v", err)
		}
	}
	return store, closeStore, nil
}

// sweepSessions reaps idle simulation sessions until the context ends.
func sweepSessions(ctx context.Context, sessions *session.Manager) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(sessionMaxIdle); n > 0 {
				log.Printf("swept %d idle simulation sessions", n)
			}
		}
	}
}
