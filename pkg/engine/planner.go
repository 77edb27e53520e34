package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// DeploymentPlanner builds the metadata needed to stage a new bootable
// deployment and drives the boot environment's staging and pruning
// primitives. It never deletes the currently booted deployment; rollback
// retention is owned by the boot environment itself.
type DeploymentPlanner struct {
	boot   BootEnvironment
	logger zerolog.Logger
}

// NewDeploymentPlanner creates a planner over the given boot environment.
func NewDeploymentPlanner(boot BootEnvironment, logger zerolog.Logger) *DeploymentPlanner {
	return &DeploymentPlanner{
		boot:   boot,
		logger: logger.With().Str("component", "deployment-planner").Logger(),
	}
}

// CurrentDeployments refreshes and returns the bootable-deployment list
// (booted, staged, rollback candidates) in boot order.
func (p *DeploymentPlanner) CurrentDeployments(ctx context.Context) ([]Deployment, error) {
	if err := p.boot.Load(ctx); err != nil {
		return nil, NewSysrootUnavailableError(err)
	}
	deployments, err := p.boot.Deployments(ctx)
	if err != nil {
		return nil, NewSysrootUnavailableError(err)
	}
	return deployments, nil
}

// BuildOrigin produces the canonical provenance descriptor for a remote/ref
// pair. It is deterministic and performs no I/O; callers must reject empty
// remote or ref strings before invoking it.
func (p *DeploymentPlanner) BuildOrigin(remote, ref string) Origin {
	return Origin{remote: remote, ref: ref}
}

// Stage asks the boot environment to create a new staged deployment for the
// commit and mark it to boot next, without discarding the deployment
// currently in use as a fallback. The staging primitive is atomic: on
// failure the boot environment is exactly as it was before the call.
func (p *DeploymentPlanner) Stage(ctx context.Context, osname string, commit CommitID, origin Origin) (*Deployment, error) {
	p.logger.Info().
		Str("osname", osname).
		Str("commit", commit.Short()).
		Str("origin", origin.Refspec()).
		Msg("staging deployment")

	deployment, err := p.boot.Stage(ctx, osname, commit, origin)
	if err != nil {
		return nil, NewStageFailedError(osname, commit, err)
	}

	p.logger.Info().
		Str("osname", osname).
		Str("commit", commit.Short()).
		Msg("deployment staged for next boot")
	return deployment, nil
}

// Prune removes deployments that are neither the active boot entry, the
// newly staged entry, nor within the retained rollback window. A prune
// failure after a successful stage is non-fatal to the update.
func (p *DeploymentPlanner) Prune(ctx context.Context) error {
	if err := p.boot.Cleanup(ctx); err != nil {
		return NewCleanupFailedError(err)
	}
	p.logger.Info().Msg("obsolete deployments pruned")
	return nil
}
