package stores

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tech-Reformist/update-manager/pkg/engine"
)

// JournalObserver records transaction lifecycle events in the journal. All
// writes are best-effort: a journal failure is logged and otherwise ignored,
// so observability problems can never fail an update.
type JournalObserver struct {
	journal *SQLiteJournal
	logger  zerolog.Logger
	timeout time.Duration
}

// NewJournalObserver creates an observer writing to the given journal.
func NewJournalObserver(journal *SQLiteJournal, logger zerolog.Logger) *JournalObserver {
	return &JournalObserver{
		journal: journal,
		logger:  logger.With().Str("component", "journal").Logger(),
		timeout: 5 * time.Second,
	}
}

// TransactionStarted journals the run as running.
func (o *JournalObserver) TransactionStarted(id string, req engine.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	now := time.Now().UTC()
	run := &UpdateRun{
		ID:         id,
		OSName:     req.OSName,
		RemoteName: req.Remote.Name,
		RemoteURL:  req.Remote.URL,
		Ref:        req.TargetRef,
		Status:     RunStatusRunning,
		StartedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.journal.CreateRun(ctx, run); err != nil {
		o.logger.Warn().Err(err).Str("run_id", id).Msg("failed to journal run start")
	}
}

// StageStarted is a no-op; only terminal outcomes are journaled.
func (o *JournalObserver) StageStarted(string, engine.Stage) {}

// StageCompleted is a no-op; only terminal outcomes are journaled.
func (o *JournalObserver) StageCompleted(string, engine.Stage, error) {}

// TransactionCompleted journals the terminal outcome.
func (o *JournalObserver) TransactionCompleted(id string, res engine.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	run := &UpdateRun{
		ID:          id,
		Commit:      string(res.Commit),
		Status:      runStatus(res.Status),
		FailedStage: string(res.FailedStage),
		CompletedAt: &res.CompletedAt,
	}
	if res.Err != nil {
		msg := res.Err.Error()
		run.Error = &msg
	}
	if res.Warning != nil {
		msg := res.Warning.Error()
		run.Warning = &msg
	}
	if err := o.journal.CompleteRun(ctx, run); err != nil {
		o.logger.Warn().Err(err).Str("run_id", id).Msg("failed to journal run completion")
	}
}

// runStatus maps an engine status to its journal representation.
func runStatus(s engine.Status) RunStatus {
	switch s {
	case engine.StatusSucceeded:
		return RunStatusSucceeded
	case engine.StatusSucceededWithWarning:
		return RunStatusSucceededWithWarning
	default:
		return RunStatusFailed
	}
}
