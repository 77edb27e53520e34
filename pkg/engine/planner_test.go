package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func newTestPlanner(boot BootEnvironment) *DeploymentPlanner {
	return NewDeploymentPlanner(boot, zerolog.Nop())
}

func TestBuildOriginIsDeterministic(t *testing.T) {
	planner := newTestPlanner(&fakeBoot{})

	origin := planner.BuildOrigin("acme", "stable/amd64")
	if origin.Refspec() != "acme:stable/amd64" {
		t.Errorf("refspec = %q, want acme:stable/amd64", origin.Refspec())
	}
	if origin.Remote() != "acme" || origin.Ref() != "stable/amd64" {
		t.Errorf("origin components = %q, %q", origin.Remote(), origin.Ref())
	}

	again := planner.BuildOrigin("acme", "stable/amd64")
	if origin != again {
		t.Error("identical inputs must produce identical origins")
	}
}

func TestCurrentDeploymentsLoadFailure(t *testing.T) {
	boot := &fakeBoot{loadErr: errors.New("sysroot locked")}
	planner := newTestPlanner(boot)

	_, err := planner.CurrentDeployments(context.Background())
	if !IsSysrootUnavailable(err) {
		t.Fatalf("error = %v, want sysroot-unavailable", err)
	}
	if !errors.Is(err, boot.loadErr) {
		t.Errorf("cause not preserved: %v", err)
	}
}

func TestStageFailureLeavesDeploymentsUnchanged(t *testing.T) {
	boot := &fakeBoot{
		deployments: []Deployment{
			{OSName: "myos", Commit: "0ld", Origin: "acme:stable/amd64", Booted: true},
		},
		stageErr: errors.New("no space left on device"),
	}
	planner := newTestPlanner(boot)
	ctx := context.Background()

	before, err := planner.CurrentDeployments(ctx)
	if err != nil {
		t.Fatalf("CurrentDeployments: %v", err)
	}

	origin := planner.BuildOrigin("acme", "stable/amd64")
	if _, err := planner.Stage(ctx, "myos", "c0ffee1234567890", origin); !IsStageFailed(err) {
		t.Fatalf("error = %v, want stage-failed", err)
	}

	after, err := planner.CurrentDeployments(ctx)
	if err != nil {
		t.Fatalf("CurrentDeployments after failure: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("deployments changed on failed stage: before=%v after=%v", before, after)
	}
}

func TestStageCreatesStagedDeployment(t *testing.T) {
	boot := &fakeBoot{
		deployments: []Deployment{
			{OSName: "myos", Commit: "0ld", Origin: "acme:stable/amd64", Booted: true},
		},
	}
	planner := newTestPlanner(boot)
	ctx := context.Background()

	origin := planner.BuildOrigin("acme", "stable/amd64")
	deployment, err := planner.Stage(ctx, "myos", "c0ffee1234567890", origin)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if !deployment.Staged {
		t.Error("new deployment not marked staged")
	}
	if deployment.Commit != "c0ffee1234567890" {
		t.Errorf("commit = %q", deployment.Commit)
	}
	if deployment.Origin != "acme:stable/amd64" {
		t.Errorf("origin = %q", deployment.Origin)
	}

	deployments, _ := planner.CurrentDeployments(ctx)
	if len(deployments) != 2 {
		t.Fatalf("got %d deployments, want 2", len(deployments))
	}
	if !deployments[1].Booted {
		t.Error("previously booted deployment must survive staging")
	}
}

func TestPruneFailure(t *testing.T) {
	boot := &fakeBoot{cleanupErr: errors.New("deployment in use")}
	planner := newTestPlanner(boot)

	err := planner.Prune(context.Background())
	if !IsCleanupFailed(err) {
		t.Fatalf("error = %v, want cleanup-failed", err)
	}
	if !errors.Is(err, boot.cleanupErr) {
		t.Errorf("cause not preserved: %v", err)
	}
}
