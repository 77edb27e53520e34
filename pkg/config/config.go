package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Tech-Reformist/update-manager/pkg/bootenv"
	"github.com/Tech-Reformist/update-manager/pkg/engine"
	"github.com/Tech-Reformist/update-manager/pkg/treestore"
)

// Config is the top-level update manager configuration.
type Config struct {
	// OSName is the stateroot the update targets.
	OSName string `yaml:"osname" validate:"required"`

	// SysrootPath is the path to the physical sysroot.
	SysrootPath string `yaml:"sysroot_path"`

	// RepoPath is the path to the commit repository.
	RepoPath string `yaml:"repo_path"`

	// Remote describes the repository the update pulls from.
	Remote RemoteConfig `yaml:"remote" validate:"required"`

	// Refs are the refs to pull. Defaults to [TargetRef] when empty.
	Refs []string `yaml:"refs"`

	// TargetRef is the ref the update deploys.
	TargetRef string `yaml:"target_ref" validate:"required"`

	// Journal configures the run history database.
	Journal JournalConfig `yaml:"journal"`

	// Policy configures admission policies.
	Policy PolicyConfig `yaml:"policy"`

	// Daemon configures periodic background updates.
	Daemon DaemonConfig `yaml:"daemon"`

	// Telemetry configures logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RemoteConfig identifies a named remote repository.
type RemoteConfig struct {
	Name string `yaml:"name" validate:"required"`
	URL  string `yaml:"url" validate:"required"`
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	// Path is the journal database file. Empty disables journaling.
	Path string `yaml:"path"`
}

// PolicyConfig configures the policy gate.
type PolicyConfig struct {
	// Enabled turns request admission on.
	Enabled bool `yaml:"enabled"`

	// Paths are files or directories with operator .rego/.json policies.
	Paths []string `yaml:"paths"`
}

// DaemonConfig configures the background update daemon.
type DaemonConfig struct {
	// Interval between update attempts.
	Interval time.Duration `yaml:"interval"`
}

// TelemetryConfig configures the observability stack.
type TelemetryConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=console json"`

	TracingEnabled  bool   `yaml:"tracing_enabled"`
	TracingExporter string `yaml:"tracing_exporter" validate:"omitempty,oneof=otlp stdout none"`
	TracingEndpoint string `yaml:"tracing_endpoint"`

	MetricsEnabled       bool   `yaml:"metrics_enabled"`
	MetricsListenAddress string `yaml:"metrics_listen_address"`
}

// Default returns a configuration with defaults applied and no target set.
func Default() *Config {
	return &Config{
		SysrootPath: bootenv.DefaultSysrootPath,
		RepoPath:    treestore.DefaultRepoPath,
		Journal: JournalConfig{
			Path: "/var/lib/updatemgr/journal.db",
		},
		Daemon: DaemonConfig{
			Interval: time.Hour,
		},
		Telemetry: TelemetryConfig{
			LogLevel:             "info",
			LogFormat:            "console",
			TracingExporter:      "stdout",
			MetricsListenAddress: ":9090",
		},
	}
}

// Load reads, parses, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills derived and omitted fields.
func (c *Config) applyDefaults() {
	if c.SysrootPath == "" {
		c.SysrootPath = bootenv.DefaultSysrootPath
	}
	if c.RepoPath == "" {
		c.RepoPath = treestore.DefaultRepoPath
	}
	if len(c.Refs) == 0 && c.TargetRef != "" {
		c.Refs = []string{c.TargetRef}
	}
	if c.Daemon.Interval <= 0 {
		c.Daemon.Interval = time.Hour
	}
	if c.Telemetry.LogLevel == "" {
		c.Telemetry.LogLevel = "info"
	}
	if c.Telemetry.LogFormat == "" {
		c.Telemetry.LogFormat = "console"
	}
}

// Validate checks the configuration with struct-tag validation.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Request builds the update request described by the configuration.
func (c *Config) Request() engine.Request {
	return engine.Request{
		OSName: c.OSName,
		Remote: engine.Remote{
			Name: c.Remote.Name,
			URL:  c.Remote.URL,
		},
		Refs:      c.Refs,
		TargetRef: c.TargetRef,
	}
}

// DefaultConfigPaths returns the locations searched, in order, when no
// config flag is given.
func DefaultConfigPaths() []string {
	paths := []string{"updatemgr.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "updatemgr", "config.yaml"))
	}
	return append(paths, "/etc/updatemgr/config.yaml")
}

// FindConfigFile returns the first existing default config file.
func FindConfigFile() (string, error) {
	candidates := DefaultConfigPaths()
	for _, path := range candidates {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched %v)", candidates)
}
