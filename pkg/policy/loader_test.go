package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoaderLoadRegoFile(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	dir := t.TempDir()
	content := `# Blocks updates during the release freeze window
package updatemgr.policies.freeze

import rego.v1

deny contains violation if {
	input.request.target_ref == "frozen/amd64"
	violation := {"message": "frozen", "severity": "error"}
}
`
	path := filepath.Join(dir, "freeze.rego")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("Expected 1 policy, got %d", len(policies))
	}

	p := policies[0]
	if p.Name != "freeze" {
		t.Errorf("Expected policy name 'freeze', got %q", p.Name)
	}
	if p.Description != "Blocks updates during the release freeze window" {
		t.Errorf("Unexpected description: %q", p.Description)
	}
	if p.Severity != SeverityWarning {
		t.Errorf("Expected default severity warning, got %q", p.Severity)
	}
	if !p.Enabled {
		t.Error("Loaded policies should be enabled by default")
	}
}

func TestLoaderLoadJSONFile(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	dir := t.TempDir()
	content := `{
		"name": "pinned-remote",
		"description": "Only the corporate remote is allowed",
		"severity": "error",
		"enabled": true,
		"rego": "package updatemgr.policies.pinned\n\nimport rego.v1\n\ndeny contains violation if {\n\tinput.request.remote.name != \"corp\"\n\tviolation := {\"message\": \"only the corp remote is allowed\", \"severity\": \"error\"}\n}\n"
	}`
	path := filepath.Join(dir, "pinned.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("Expected 1 policy, got %d", len(policies))
	}

	p := policies[0]
	if p.Name != "pinned-remote" {
		t.Errorf("Expected policy name 'pinned-remote', got %q", p.Name)
	}
	if p.Severity != SeverityError {
		t.Errorf("Expected severity error, got %q", p.Severity)
	}
}

func TestLoaderSkipsUnsupportedFiles(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	dir := t.TempDir()
	files := map[string]string{
		"policy.rego": "package updatemgr.policies.p\n\nimport rego.v1\n",
		"notes.txt":   "not a policy",
		"README.md":   "docs",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("Expected only the .rego file to load, got %d policies", len(policies))
	}
}

func TestLoaderMissingPath(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	_, err := loader.LoadFromPaths(context.Background(), []string{"/nonexistent/policies"})
	if err == nil {
		t.Fatal("Expected an error for a missing path")
	}
}

func TestLoaderCache(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	dir := t.TempDir()
	path := filepath.Join(dir, "p.rego")
	if err := os.WriteFile(path, []byte("package updatemgr.policies.p\n"), 0o600); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	first, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	// Rewrite the file; the cached policy must still be served until the
	// cache is cleared.
	if err := os.WriteFile(path, []byte("package updatemgr.policies.other\n"), 0o600); err != nil {
		t.Fatalf("Failed to rewrite policy file: %v", err)
	}

	second, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if first != second {
		t.Error("Expected cached policy instance")
	}

	loader.ClearCache()

	third, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if third == first {
		t.Error("Expected a fresh policy after clearing the cache")
	}
}

func TestLoaderWatchReloadsOnFileChange(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	loader := NewLoader(logger)

	dir := t.TempDir()
	path := filepath.Join(dir, "gate.rego")
	if err := os.WriteFile(path, []byte("# Initial gate\npackage updatemgr.policies.gate\n"), 0o600); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 1)
	err := loader.Watch(ctx, []string{dir}, func(policies []Policy) error {
		select {
		case reloaded <- policies:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to start watching: %v", err)
	}
	defer loader.StopWatching()

	updated := "# Blocks everything\npackage updatemgr.policies.gate\n"
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("Failed to rewrite policy file: %v", err)
	}

	// The reload is debounced, so allow a generous window.
	select {
	case policies := <-reloaded:
		if len(policies) != 1 {
			t.Fatalf("Expected 1 policy after reload, got %d", len(policies))
		}
		if policies[0].Description != "Blocks everything" {
			t.Errorf("Reloaded policy is stale: %q", policies[0].Description)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the policy reload")
	}
}
