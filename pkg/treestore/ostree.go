package treestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Tech-Reformist/update-manager/pkg/engine"
)

// DefaultRepoPath is the conventional on-device repository location.
const DefaultRepoPath = "/sysroot/ostree/repo"

// runFunc executes a command and returns trimmed stdout and stderr.
// Injectable for tests.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// Store drives the ostree binary against one local repository. It
// implements engine.TreeStore.
type Store struct {
	repoPath string
	binary   string
	run      runFunc
	logger   zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBinary overrides the ostree binary path.
func WithBinary(path string) Option {
	return func(s *Store) { s.binary = path }
}

// WithLogger sets the store's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// withRunner overrides command execution, for tests.
func withRunner(run runFunc) Option {
	return func(s *Store) { s.run = run }
}

// Open opens the OSTree repository at repoPath. The repository must already
// exist; creating repositories is not this component's job.
func Open(repoPath string, opts ...Option) (*Store, error) {
	s := &Store{
		repoPath: repoPath,
		binary:   "ostree",
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.run == nil {
		s.run = s.execRun
	}

	if _, err := os.Stat(filepath.Join(repoPath, "config")); err != nil {
		return nil, fmt.Errorf("failed to open repo at %q: %w", repoPath, err)
	}

	s.logger = s.logger.With().Str("component", "treestore").Str("repo", repoPath).Logger()
	s.logger.Debug().Msg("repository opened")
	return s, nil
}

// ListRemotes enumerates configured remotes with their URLs.
func (s *Store) ListRemotes(ctx context.Context) ([]engine.Remote, error) {
	stdout, stderr, err := s.run(ctx, s.binary, "--repo="+s.repoPath, "remote", "list", "-u")
	if err != nil {
		return nil, commandError("remote list", stderr, err)
	}
	return parseRemoteList(stdout), nil
}

// AddRemote registers a new named remote in the repository configuration.
func (s *Store) AddRemote(ctx context.Context, name, url string) error {
	_, stderr, err := s.run(ctx, s.binary, "--repo="+s.repoPath, "remote", "add", name, url)
	if err != nil {
		return commandError("remote add", stderr, err)
	}
	return nil
}

// Pull transfers history for the given refs from the named remote.
func (s *Store) Pull(ctx context.Context, remote string, refs []string) error {
	args := []string{"--repo=" + s.repoPath, "pull", remote}
	args = append(args, refs...)

	_, stderr, err := s.run(ctx, s.binary, args...)
	if err != nil {
		return commandError("pull", stderr, err)
	}
	return nil
}

// Resolve maps a ref to its commit checksum via a local-only lookup.
func (s *Store) Resolve(ctx context.Context, ref string) (engine.CommitID, error) {
	stdout, stderr, err := s.run(ctx, s.binary, "--repo="+s.repoPath, "rev-parse", ref)
	if err != nil {
		return "", commandError("rev-parse", stderr, err)
	}
	commit := strings.TrimSpace(stdout)
	if commit == "" {
		return "", fmt.Errorf("rev-parse returned no commit for ref %q", ref)
	}
	return engine.CommitID(commit), nil
}

// Close releases the store handle. The CLI adapter holds no open resources,
// but callers treat the handle as scoped regardless.
func (s *Store) Close() error {
	return nil
}

// execRun executes the command with captured output, honoring ctx
// cancellation.
func (s *Store) execRun(ctx context.Context, name string, args ...string) (string, string, error) {
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
		return fmt.Errorf("ostree %s: %s", op, stderr)
	}
	return fmt.Errorf("ostree %s: %w", op, err)
}

// parseRemoteList parses `ostree remote list -u` output: one remote per
// line, name and URL separated by whitespace.
func parseRemoteList(out string) []engine.Remote {
	remotes := []engine.Remote{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		remote := engine.Remote{Name: fields[0]}
		if len(fields) > 1 {
			remote.URL = fields[1]
		}
		remotes = append(remotes, remote)
	}
	return remotes
}
