package bootenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Tech-Reformist/update-manager/pkg/engine"
)

// DefaultSysrootPath is the conventional physical root.
const DefaultSysrootPath = "/sysroot"

// runFunc executes a command and returns trimmed stdout and stderr.
// Injectable for tests.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// Sysroot drives `ostree admin` against one physical root. It implements
// engine.BootEnvironment. The in-memory deployment view is refreshed by
// Load and consumed by Deployments.
type Sysroot struct {
	mu sync.Mutex

	path   string
	binary string
	run    runFunc
	logger zerolog.Logger

	loaded      bool
	deployments []engine.Deployment
}

// Option configures a Sysroot.
type Option func(*Sysroot)

// WithBinary overrides the ostree binary path.
func WithBinary(path string) Option {
	return func(s *Sysroot) { s.binary = path }
}

// WithLogger sets the sysroot's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sysroot) { s.logger = logger }
}

// withRunner overrides command execution, for tests.
func withRunner(run runFunc) Option {
	return func(s *Sysroot) { s.run = run }
}

// Open opens the sysroot at path. The directory must exist.
func Open(path string, opts ...Option) (*Sysroot, error) {
	s := &Sysroot{
		path:   path,
		binary: "ostree",
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.run == nil {
		s.run = s.execRun
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sysroot at %q: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sysroot path %q is not a directory", path)
	}

	s.logger = s.logger.With().Str("component", "bootenv").Str("sysroot", path).Logger()
	return s, nil
}

// Load refreshes the in-memory view of all deployments: booted, staged, and
// rollback candidates.
func (s *Sysroot) Load(ctx context.Context) error {
	stdout, stderr, err := s.run(ctx, s.binary, "admin", "--sysroot="+s.path, "status")
	if err != nil {
		return commandError("status", stderr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployments = parseStatus(stdout)
	s.loaded = true
	s.logger.Debug().Int("deployments", len(s.deployments)).Msg("sysroot loaded")
	return nil
}

// Deployments returns the deployment list in boot order. Load must have
// succeeded first.
func (s *Sysroot) Deployments(_ context.Context) ([]engine.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, errors.New("sysroot not loaded")
	}
	out := make([]engine.Deployment, len(s.deployments))
	copy(out, s.deployments)
	return out, nil
}

// Stage creates a new deployment for the commit, marked to boot next, and
// records the origin refspec as its provenance. The currently booted
// deployment is kept as the fallback; staging is atomic at the ostree level.
func (s *Sysroot) Stage(ctx context.Context, osname string, commit engine.CommitID, origin engine.Origin) (*engine.Deployment, error) {
	originFile, err := s.writeOriginFile(origin)
	if err != nil {
		return nil, err
	}
	defer os.Remove(originFile)

	_, stderr, err := s.run(ctx, s.binary,
		"admin", "--sysroot="+s.path,
		"deploy", "--stage",
		"--os="+osname,
		"--origin-file="+originFile,
		string(commit),
	)
	if err != nil {
		return nil, commandError("deploy", stderr, err)
	}

	// Refresh the view so the staged entry shows up; if the refresh itself
	// fails the deployment is still staged, so report it from what we know.
	staged := &engine.Deployment{
		OSName: osname,
		Commit: commit,
		Origin: origin.Refspec(),
		Staged: true,
	}
	if err := s.Load(ctx); err == nil {
		s.mu.Lock()
		for i := range s.deployments {
			if s.deployments[i].Commit == commit && s.deployments[i].OSName == osname {
				d := s.deployments[i]
				staged = &d
				break
			}
		}
		s.mu.Unlock()
	}
	return staged, nil
}

// Cleanup removes deployments outside the retained rollback window.
func (s *Sysroot) Cleanup(ctx context.Context) error {
	_, stderr, err := s.run(ctx, s.binary, "admin", "--sysroot="+s.path, "cleanup")
	if err != nil {
		return commandError("cleanup", stderr, err)
	}
	return nil
}

// Close releases the sysroot handle.
func (s *Sysroot) Close() error {
	return nil
}

// writeOriginFile writes the origin keyfile handed to `ostree admin deploy`.
func (s *Sysroot) writeOriginFile(origin engine.Origin) (string, error) {
	f, err := os.CreateTemp("", "origin-*.origin")
	if err != nil {
		return "", fmt.Errorf("failed to create origin file: %w", err)
	}
	content := fmt.Sprintf("[origin]\nrefspec=%s\n", origin.Refspec())
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write origin file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close origin file: %w", err)
	}
	return f.Name(), nil
}

// execRun executes the command with captured output, honoring ctx
// cancellation.
func (s *Sysroot) execRun(ctx context.Context, name string, args ...string) (string, string, error) {
	s.logger.Debug().Str("command", name).Strs("args", args).Msg("executing")

	cmd := exec.CommandContext(ctx, name, args...)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	return strings.TrimSpace(stdoutBuf.String()), strings.TrimSpace(stderrBuf.String()), err
}

// commandError folds stderr into the returned error so the ostree
// diagnostic survives unmodified.
func commandError(op, stderr string, err error) error {
	if stderr != "" {
		return fmt.Errorf("ostree admin %s: %s", op, stderr)
	}
	return fmt.Errorf("ostree admin %s: %w", op, err)
}

// parseStatus parses `ostree admin status` output. Each deployment is a
// header line
//
//	[*] OSNAME CHECKSUM.SERIAL [(staged|pending|rollback)]
//
// optionally followed by an indented "origin refspec: REFSPEC" line. The
// leading "*" marks the booted deployment.
func parseStatus(out string) []engine.Deployment {
	deployments := []engine.Deployment{}
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if refspec, ok := strings.CutPrefix(trimmed, "origin refspec: "); ok {
			if len(deployments) > 0 {
				deployments[len(deployments)-1].Origin = refspec
			}
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		// Metadata lines ("Version: 1.2") have a colon-terminated key.
		if strings.HasSuffix(fields[0], ":") {
			continue
		}

		d := engine.Deployment{Index: len(deployments)}
		if fields[0] == "*" {
			d.Booted = true
			fields = fields[1:]
		}
		if len(fields) < 2 {
			continue
		}
		d.OSName = fields[0]
		d.Commit = engine.CommitID(stripSerial(fields[1]))
		for _, f := range fields[2:] {
			switch strings.Trim(f, "()") {
			case "staged", "pending":
				d.Staged = true
			}
		}
		deployments = append(deployments, d)
	}
	return deployments
}

// stripSerial removes the ".N" deploy-serial suffix from a checksum token.
func stripSerial(token string) string {
	if i := strings.LastIndex(token, "."); i > 0 {
		return token[:i]
	}
	return token
}
