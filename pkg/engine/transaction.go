package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Transaction is the top-level state machine sequencing one update attempt:
// ensure-remote -> pull -> resolve -> load-deployments -> stage -> prune.
// Each step's success is the strict precondition for the next; any failure
// before staging aborts with the boot environment completely unchanged.
//
// A Transaction is ephemeral and single-use. It carries no durable log;
// every persistent side effect it causes (remote registration, object pull)
// is independently safe to repeat on a later attempt.
type Transaction struct {
	id        string
	req       Request
	registry  *RemoteRegistry
	fetcher   *SyncFetcher
	planner   *DeploymentPlanner
	observers []Observer
	logger    zerolog.Logger
	state     State
	done      bool
}

// Option configures a Transaction.
type Option func(*Transaction)

// WithObserver attaches a lifecycle observer. Observers are notified in
// registration order.
func WithObserver(o Observer) Option {
	return func(t *Transaction) {
		if o != nil {
			t.observers = append(t.observers, o)
		}
	}
}

// WithLogger sets the logger used by the transaction and its components.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transaction) {
		t.logger = logger
	}
}

// NewTransaction creates a transaction over the given collaborator handles.
// The handles stay owned by the caller, which must release them on every
// exit path. The request's osname, remote name/url, and target ref must be
// non-empty; an empty ref set is not rejected here so that the pull step
// reports it as the documented fetch error.
func NewTransaction(store TreeStore, boot BootEnvironment, req Request, opts ...Option) (*Transaction, error) {
	switch {
	case req.OSName == "":
		return nil, errors.New("update request: osname must not be empty")
	case req.Remote.Name == "":
		return nil, errors.New("update request: remote name must not be empty")
	case req.Remote.URL == "":
		return nil, errors.New("update request: remote url must not be empty")
	case req.TargetRef == "":
		return nil, errors.New("update request: target ref must not be empty")
	}

	t := &Transaction{
		id:     uuid.NewString(),
		req:    req,
		logger: zerolog.Nop(),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With().Str("transaction_id", t.id).Logger()

	t.registry = NewRemoteRegistry(store, t.logger)
	t.fetcher = NewSyncFetcher(store, t.logger)
	t.planner = NewDeploymentPlanner(boot, t.logger)
	return t, nil
}

// ID returns the transaction's unique identifier.
func (t *Transaction) ID() string { return t.id }

// State returns the transaction's current state.
func (t *Transaction) State() State { return t.state }

// Request returns the update request driving the transaction.
func (t *Transaction) Request() Request { return t.req }

// Run drives the transaction to a terminal state and returns the result.
// It must be called at most once. After a successful stage, cancellation no
// longer fails the update: a prune that does not complete is reported as a
// warning, never rolled back, since un-staging carries the same risk as
// staging and offers no safety benefit.
func (t *Transaction) Run(ctx context.Context) Result {
	res := Result{
		ID:        t.id,
		StartedAt: time.Now(),
	}
	if t.done {
		res.Status = StatusFailed
		res.Err = errors.New("transaction already ran")
		return t.finish(res)
	}
	t.done = true

	for _, o := range t.observers {
		o.TransactionStarted(t.id, t.req)
	}
	t.logger.Info().
		Str("osname", t.req.OSName).
		Str("remote", t.req.Remote.Name).
		Str("ref", t.req.TargetRef).
		Msg("update transaction started")

	// 1. Idle -> RemoteEnsured
	if err := t.step(StageEnsureRemote, func() error {
		return t.registry.Ensure(ctx, t.req.Remote.Name, t.req.Remote.URL)
	}); err != nil {
		return t.fail(res, StageEnsureRemote, err)
	}
	t.state = StateRemoteEnsured

	// 2. RemoteEnsured -> Fetched
	if err := t.step(StagePull, func() error {
		return t.fetcher.Pull(ctx, t.req.Remote.Name, t.req.Refs)
	}); err != nil {
		return t.fail(res, StagePull, err)
	}
	t.state = StateFetched

	// 3. Fetched -> Resolved. Resolution never precedes a successful pull:
	// an unresolved or partially fetched ref must not become a deployment.
	var commit CommitID
	if err := t.step(StageResolve, func() error {
		var err error
		commit, err = t.fetcher.Resolve(ctx, t.req.TargetRef)
		return err
	}); err != nil {
		return t.fail(res, StageResolve, err)
	}
	res.Commit = commit
	t.state = StateResolved

	// 4. Resolved -> BootLoaded
	if err := t.step(StageLoadDeployments, func() error {
		deployments, err := t.planner.CurrentDeployments(ctx)
		if err != nil {
			return err
		}
		t.logger.Debug().Int("deployments", len(deployments)).Msg("boot environment loaded")
		return nil
	}); err != nil {
		return t.fail(res, StageLoadDeployments, err)
	}
	t.state = StateBootLoaded

	// 5. BootLoaded -> Staged. Staging requires the concrete commit id, not
	// the ref name, so the boot entry is pinned to an immutable snapshot.
	origin := t.planner.BuildOrigin(t.req.Remote.Name, t.req.TargetRef)
	var deployment *Deployment
	if err := t.step(StageStage, func() error {
		var err error
		deployment, err = t.planner.Stage(ctx, t.req.OSName, commit, origin)
		return err
	}); err != nil {
		return t.fail(res, StageStage, err)
	}
	res.Deployment = deployment
	t.state = StateStaged

	// 6. Staged -> Pruned. A prune failure never reverts a successful
	// stage: the new deployment is already live for next boot.
	if err := t.step(StagePrune, func() error {
		return t.planner.Prune(ctx)
	}); err != nil {
		t.logger.Warn().Err(err).Msg("pruning failed after successful stage")
		res.Status = StatusSucceededWithWarning
		res.FailedStage = StagePrune
		res.Warning = err
		return t.finish(res)
	}
	t.state = StatePruned

	res.Status = StatusSucceeded
	return t.finish(res)
}

// step runs one stage closure with observer notifications around it.
func (t *Transaction) step(stage Stage, fn func() error) error {
	for _, o := range t.observers {
		o.StageStarted(t.id, stage)
	}
	err := fn()
	for _, o := range t.observers {
		o.StageCompleted(t.id, stage, err)
	}
	return err
}

// fail records the terminal failure state and result.
func (t *Transaction) fail(res Result, stage Stage, err error) Result {
	t.state = StateFailed
	res.Status = StatusFailed
	res.FailedStage = stage
	res.Err = err
	t.logger.Error().Err(err).Str("stage", string(stage)).Msg("update transaction failed")
	return t.finish(res)
}

// finish stamps completion times and notifies observers.
func (t *Transaction) finish(res Result) Result {
	res.CompletedAt = time.Now()
	res.Duration = res.CompletedAt.Sub(res.StartedAt)
	for _, o := range t.observers {
		o.TransactionCompleted(t.id, res)
	}
	if res.Succeeded() {
		t.logger.Info().
			Str("status", string(res.Status)).
			Str("commit", res.Commit.Short()).
			Dur("duration", res.Duration).
			Msg("update transaction completed")
	}
	return res
}
