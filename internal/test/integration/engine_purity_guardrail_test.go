//go:build integration
// +build integration

package integration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestEnginePackagesImportOnlyStdlibAndEachOther(t *testing.T) {
	config := &packages.Config{
		Mode:  packages.NeedName | packages.NeedImports,
		Tests: false,
		Dir:   integrationRepoRoot(t),
	}
	pkgs, err := packages.Load(config, enginePurityPatterns()...)
	if err != nil {
		t.Fatalf("load engine packages: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatal("engine package load errors")
	}
	if len(pkgs) == 0 {
		t.Fatal("engine packages not found")
	}

	var violations []string
	for _, pkg := range pkgs {
		for importPath := range pkg.Imports {
			if isAllowedEngineImport(importPath) {
				continue
			}
			violations = append(violations, pkg.PkgPath+" imports "+importPath)
		}
	}
	if len(violations) > 0 {
		t.Fatalf("engine packages must import only the standard library and each other:\n- %s",
			strings.Join(violations, "\n- "))
	}
}

func TestEnginePurityScopes(t *testing.T) {
	patterns := enginePurityPatterns()
	if len(patterns) == 0 {
		t.Fatal("expected at least one package pattern")
	}
	for _, want := range []string{"./internal/logic/...", "./internal/sim/..."} {
		found := false
		for _, pattern := range patterns {
			if pattern == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected scan scope to include %s, got %v", want, patterns)
		}
	}
}

func TestEnginePurityAllowedImports(t *testing.T) {
	allowed := []string{
		"fmt",
		"strings",
		"sort",
		"github.com/streamlogic/tslsim/internal/logic",
		"github.com/streamlogic/tslsim/internal/stack",
	}
	for _, path := range allowed {
		if !isAllowedEngineImport(path) {
			t.Fatalf("expected %s to be allowed", path)
		}
	}
	rejected := []string{
		"github.com/streamlogic/tslsim/internal/mcp/service",
		"github.com/streamlogic/tslsim/internal/session",
		"github.com/modelcontextprotocol/go-sdk/mcp",
		"go.opentelemetry.io/otel",
	}
	for _, path := range rejected {
		if isAllowedEngineImport(path) {
			t.Fatalf("expected %s to be rejected", path)
		}
	}
}

func enginePurityPatterns() []string {
	return []string{
		"./internal/logic/...",
		"./internal/stack/...",
		"./internal/spec/...",
		"./internal/trace/...",
		"./internal/circuit/...",
		"./internal/sim/...",
	}
}

// isAllowedEngineImport reports whether an engine package may import the
// given path: the standard library or another engine package.
func isAllowedEngineImport(importPath string) bool {
	const module = "github.com/streamlogic/tslsim/internal/"
	if rest, ok := strings.CutPrefix(importPath, module); ok {
		for _, dir := range []string{"logic", "stack", "spec", "trace", "circuit", "sim"} {
			if rest == dir || strings.HasPrefix(rest, dir+"/") {
				return true
			}
		}
		return false
	}
	// Standard library import paths have no dotted host in the first
	// element.
	first := importPath
	if i := strings.IndexByte(first, '/'); i >= 0 {
		first = first[:i]
	}
	return !strings.Contains(first, ".")
}

func integrationRepoRoot(t *testing.T) string {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("get working dir: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			t.Fatal("go.mod not found")
		}
		wd = parent
	}
}
