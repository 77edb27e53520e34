package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Tech-Reformist/update-manager/pkg/bootenv"
	"github.com/Tech-Reformist/update-manager/pkg/config"
	"github.com/Tech-Reformist/update-manager/pkg/engine"
	"github.com/Tech-Reformist/update-manager/pkg/policy"
	"github.com/Tech-Reformist/update-manager/pkg/stores"
	"github.com/Tech-Reformist/update-manager/pkg/telemetry"
	"github.com/Tech-Reformist/update-manager/pkg/treestore"
)

// loadConfig loads the config file from --config or the default locations.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		found, err := config.FindConfigFile()
		if err != nil {
			return nil, err
		}
		path = found
	}
	return config.Load(path)
}

// newLogger builds the run logger from the config's telemetry section.
func newLogger(cfg *config.Config) (*telemetry.Logger, error) {
	logCfg := telemetry.LoggingConfig{
		Level:  cfg.Telemetry.LogLevel,
		Format: cfg.Telemetry.LogFormat,
		Output: "stderr",
	}
	if verbose {
		logCfg.Level = "debug"
	}
	return telemetry.NewLogger(logCfg)
}

// newMetrics builds the metrics collectors from the config.
func newMetrics(cfg *config.Config) (*telemetry.Metrics, error) {
	return telemetry.NewMetrics(telemetry.MetricsConfig{
		Enabled:       cfg.Telemetry.MetricsEnabled,
		ListenAddress: cfg.Telemetry.MetricsListenAddress,
		Path:          "/metrics",
		Namespace:     "updatemgr",
	})
}

// newTracer builds the tracer from the config.
func newTracer(cfg *config.Config, version string) (*telemetry.Tracer, error) {
	return telemetry.NewTracer(telemetry.TracingConfig{
		Enabled:      cfg.Telemetry.TracingEnabled,
		Exporter:     cfg.Telemetry.TracingExporter,
		Endpoint:     cfg.Telemetry.TracingEndpoint,
		SamplingRate: 1.0,
		Insecure:     true,
	}, "updatemgr", version, "production")
}

// openCollaborators opens the commit store and boot environment.
func openCollaborators(cfg *config.Config, logger zerolog.Logger) (*treestore.Store, *bootenv.Sysroot, error) {
	store, err := treestore.Open(cfg.RepoPath, treestore.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open repository: %w", err)
	}

	boot, err := bootenv.Open(cfg.SysrootPath, bootenv.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to open sysroot: %w", err)
	}

	return store, boot, nil
}

// openJournal opens the run journal if one is configured. A nil journal
// means journaling is disabled.
func openJournal(ctx context.Context, cfg *config.Config) (*stores.SQLiteJournal, error) {
	if cfg.Journal.Path == "" {
		return nil, nil
	}

	journal, err := stores.NewSQLiteJournal(stores.Config{Path: cfg.Journal.Path})
	if err != nil {
		return nil, err
	}
	if err := journal.Init(ctx); err != nil {
		return nil, err
	}
	if err := journal.Migrate(ctx); err != nil {
		_ = journal.Close()
		return nil, err
	}
	return journal, nil
}

// checkPolicies evaluates the configured admission policies against the
// update request. A nil engine builds a throwaway one from the config; the
// daemon passes its long-lived, watcher-refreshed engine instead. A blocking
// violation returns an error.
func checkPolicies(ctx context.Context, cfg *config.Config, logger zerolog.Logger, req engine.Request, eng *policy.Engine) error {
	if !cfg.Policy.Enabled {
		return nil
	}

	if eng == nil {
		var err error
		eng, err = policy.NewEngine(logger)
		if err != nil {
			return fmt.Errorf("failed to create policy engine: %w", err)
		}
		if len(cfg.Policy.Paths) > 0 {
			if err := eng.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
				return err
			}
		}
	}

	result, err := eng.EvaluateRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}

	for _, v := range result.Violations {
		if v.Severity == policy.SeverityWarning || v.Severity == policy.SeverityInfo {
			logger.Warn().Str("policy", v.Policy).Msg(v.Message)
		}
	}

	if !result.Allowed {
		var msgs []string
		for _, v := range result.Violations {
			if v.Severity == policy.SeverityError || v.Severity == policy.SeverityCritical {
				msgs = append(msgs, fmt.Sprintf("%s: %s", v.Policy, v.Message))
			}
		}
		return fmt.Errorf("update blocked by policy:\n  %s", strings.Join(msgs, "\n  "))
	}

	return nil
}

// consoleObserver prints per-stage progress for interactive runs.
type consoleObserver struct{}

func (consoleObserver) TransactionStarted(id string, req engine.Request) {
	fmt.Printf("Updating %s from %s (%s)\n", req.OSName, req.Remote.Name, req.TargetRef)
}

func (consoleObserver) StageStarted(_ string, stage engine.Stage) {
	fmt.Printf("  %s...", stage)
}

func (consoleObserver) StageCompleted(_ string, _ engine.Stage, err error) {
	if err != nil {
		fmt.Println(" failed")
		return
	}
	fmt.Println(" done")
}

func (consoleObserver) TransactionCompleted(_ string, res engine.Result) {}

// runUpdate executes one update transaction with all configured observers
// attached.
func runUpdate(ctx context.Context, cfg *config.Config, logger *telemetry.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer, journal *stores.SQLiteJournal, policyEngine *policy.Engine, interactive bool) (engine.Result, error) {
	req := cfg.Request()
	zlog := logger.WithRemote(req.Remote.Name, req.Remote.URL).Zerolog()

	if err := checkPolicies(ctx, cfg, zlog, req, policyEngine); err != nil {
		return engine.Result{}, err
	}

	store, boot, err := openCollaborators(cfg, zlog)
	if err != nil {
		return engine.Result{}, err
	}
	defer store.Close()
	defer boot.Close()

	ctx, span := tracer.StartUpdateSpan(ctx, "", req.OSName, req.TargetRef)
	defer span.End()

	opts := []engine.Option{
		engine.WithLogger(zlog),
		engine.WithObserver(telemetry.NewObserver(metrics)),
		engine.WithObserver(telemetry.NewTracingObserver(ctx, tracer)),
	}
	if journal != nil {
		opts = append(opts, engine.WithObserver(stores.NewJournalObserver(journal, zlog)))
	}
	if interactive {
		opts = append(opts, engine.WithObserver(consoleObserver{}))
	}

	tx, err := engine.NewTransaction(store, boot, req, opts...)
	if err != nil {
		return engine.Result{}, err
	}

	res := tx.Run(ctx)
	if res.Err != nil {
		telemetry.RecordError(span, res.Err)
	} else {
		telemetry.RecordSuccess(span)
	}

	return res, nil
}
