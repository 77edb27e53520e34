package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Tech-Reformist/update-manager/pkg/config"
	"github.com/Tech-Reformist/update-manager/pkg/engine"
	"github.com/Tech-Reformist/update-manager/pkg/policy"
	"github.com/Tech-Reformist/update-manager/pkg/telemetry"
)

func newDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run periodic updates in the background",
		Long: `Run the update manager as a long-lived process that attempts an update at
the configured interval.

The config file and any configured policy files are watched for changes and
reloaded on the fly; an invalid edit keeps the previous configuration or
policy set. When metrics are enabled, a Prometheus endpoint is exposed for
scraping.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				found, err := config.FindConfigFile()
				if err != nil {
					return err
				}
				path = found
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			metrics, err := newMetrics(cfg)
			if err != nil {
				return err
			}
			tracer, err := newTracer(cfg, cmd.Root().Version)
			if err != nil {
				return err
			}

			d := &daemon{
				configFile: path,
				cfg:        cfg,
				logger:     logger.NewComponentLogger("daemon"),
				metrics:    metrics,
				tracer:     tracer,
			}
			return d.run(cmd.Context())
		},
	}
}

// daemon drives periodic updates and config reloads.
type daemon struct {
	configFile string
	logger     *telemetry.Logger
	metrics    *telemetry.Metrics
	tracer     *telemetry.Tracer
	policies   *policy.Engine

	mu  sync.RWMutex
	cfg *config.Config
}

func (d *daemon) config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *daemon) run(ctx context.Context) error {
	defer d.tracer.Shutdown(context.Background())

	if err := d.metrics.StartMetricsServer(); err != nil {
		return err
	}

	if err := d.startPolicyWatch(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(d.configFile); err != nil {
		d.logger.WithError(err).Warn("Failed to watch config file; reload disabled")
	}

	interval := d.config().Daemon.Interval
	d.logger.Infof("Daemon started, updating every %s", interval)

	// First attempt right away, then on the ticker.
	d.attempt(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Daemon stopping")
			return nil

		case <-ticker.C:
			d.attempt(ctx)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if newInterval, reloaded := d.reload(); reloaded && newInterval != interval {
				interval = newInterval
				ticker.Reset(interval)
				d.logger.Infof("Update interval changed to %s", interval)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.WithError(err).Warn("Config watcher error")
		}
	}
}

// startPolicyWatch builds the daemon's long-lived policy engine and keeps it
// current as the policy files change on disk. A broken edit to a policy file
// keeps the previous set.
func (d *daemon) startPolicyWatch(ctx context.Context) error {
	cfg := d.config()
	if !cfg.Policy.Enabled {
		return nil
	}

	eng, err := policy.NewEngine(d.logger.Zerolog())
	if err != nil {
		return fmt.Errorf("failed to create policy engine: %w", err)
	}

	if len(cfg.Policy.Paths) > 0 {
		if err := eng.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
			return err
		}

		loader := policy.NewLoader(d.logger.Zerolog())
		if err := loader.Watch(ctx, cfg.Policy.Paths, func(policies []policy.Policy) error {
			return eng.SetPolicies(ctx, policies)
		}); err != nil {
			d.logger.WithError(err).Warn("Failed to watch policy paths; policy reload disabled")
		}
	}

	d.policies = eng
	return nil
}

// reload re-reads the config file. An invalid file keeps the previous
// configuration.
func (d *daemon) reload() (time.Duration, bool) {
	cfg, err := config.Load(d.configFile)
	if err != nil {
		d.logger.WithError(err).Error("Config reload failed; keeping previous configuration")
		return 0, false
	}

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	d.logger.Info("Configuration reloaded")
	return cfg.Daemon.Interval, true
}

// attempt runs a single update transaction and logs the outcome.
func (d *daemon) attempt(ctx context.Context) {
	cfg := d.config()

	journal, err := openJournal(ctx, cfg)
	if err != nil {
		d.logger.WithError(err).Error("Failed to open journal")
		return
	}
	if journal != nil {
		defer journal.Close()
	}

	res, err := runUpdate(ctx, cfg, d.logger, d.metrics, d.tracer, journal, d.policies, false)
	if err != nil {
		d.logger.WithError(err).Error("Update attempt failed")
		return
	}

	switch res.Status {
	case engine.StatusSucceeded:
		d.logger.WithRunID(res.ID).Infof("Staged commit %s; takes effect on next boot", res.Commit.Short())
	case engine.StatusSucceededWithWarning:
		d.logger.WithRunID(res.ID).Warnf("Staged commit %s with warning: %v", res.Commit.Short(), res.Warning)
	default:
		d.logger.WithRunID(res.ID).WithStage(string(res.FailedStage)).WithError(res.Err).Error("Update failed")
	}
}
