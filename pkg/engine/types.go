package engine

import (
	"fmt"
	"time"
)

// Remote identifies a named, URL-addressed source of update content.
// Names are unique within a store; a remote is never mutated after
// registration, only added and looked up.
type Remote struct {
	// Name is the unique key for this remote.
	Name string `json:"name"`

	// URL is the endpoint update content is fetched from.
	URL string `json:"url"`
}

// RefSpec names a branch of history inside a remote's namespace.
type RefSpec struct {
	// Remote is the name of the remote owning the ref.
	Remote string `json:"remote"`

	// Ref is the branch name inside the remote's namespace.
	Ref string `json:"ref"`
}

// String returns the canonical "remote:ref" form.
func (r RefSpec) String() string {
	return fmt.Sprintf("%s:%s", r.Remote, r.Ref)
}

// CommitID is an opaque, immutable, content-derived identifier for a fully
// fetched tree snapshot. It is produced only by resolution and never
// constructed by the orchestrator.
type CommitID string

// Short returns an abbreviated form suitable for log output.
func (c CommitID) Short() string {
	if len(c) <= 12 {
		return string(c)
	}
	return string(c[:12])
}

// Origin binds a deployment to its provenance: the remote and ref future
// updates for the deployment should come from. Construct it only through
// DeploymentPlanner.BuildOrigin so the refspec format cannot drift between
// call sites.
type Origin struct {
	remote string
	ref    string
}

// Remote returns the remote name component.
func (o Origin) Remote() string { return o.remote }

// Ref returns the ref name component.
func (o Origin) Ref() string { return o.ref }

// Refspec returns the canonical "remote:ref" string the deployment
// subsystem records as the deployment's provenance.
func (o Origin) Refspec() string {
	return fmt.Sprintf("%s:%s", o.remote, o.ref)
}

// Deployment is one bootable filesystem tree instance tracked by the boot
// environment. Ordinal position and boot priority are owned entirely by the
// deployment subsystem.
type Deployment struct {
	// OSName is the stateroot the deployment belongs to.
	OSName string `json:"osname"`

	// Commit is the tree snapshot the deployment boots into.
	Commit CommitID `json:"commit"`

	// Origin is the canonical "remote:ref" provenance refspec.
	Origin string `json:"origin"`

	// Index is the deployment's position in the boot order, 0 first.
	Index int `json:"index"`

	// Booted reports whether this is the currently booted deployment.
	Booted bool `json:"booted"`

	// Staged reports whether this deployment becomes active on next boot.
	Staged bool `json:"staged"`
}

// State is a position in the update transaction state machine.
type State string

const (
	// StateIdle is the initial state before any step has run.
	StateIdle State = "idle"

	// StateRemoteEnsured means the update remote is registered in the store.
	StateRemoteEnsured State = "remote-ensured"

	// StateFetched means all requested refs were pulled into local storage.
	StateFetched State = "fetched"

	// StateResolved means the target ref resolved to a concrete commit.
	StateResolved State = "resolved"

	// StateBootLoaded means the boot environment's deployment list is loaded.
	StateBootLoaded State = "boot-loaded"

	// StateStaged means the new deployment is staged for next boot.
	StateStaged State = "staged"

	// StatePruned is the terminal success state.
	StatePruned State = "pruned"

	// StateFailed is the terminal failure state, reachable from any
	// non-terminal state.
	StateFailed State = "failed"
)

// Stage names one step of the transaction. The names are stable and appear
// in failure reports, the journal, and metrics labels.
type Stage string

const (
	StageEnsureRemote    Stage = "ensure-remote"
	StagePull            Stage = "pull"
	StageResolve         Stage = "resolve"
	StageLoadDeployments Stage = "load-deployments"
	StageStage           Stage = "stage"
	StagePrune           Stage = "prune"
)

// Stages lists all transaction stages in execution order.
func Stages() []Stage {
	return []Stage{
		StageEnsureRemote,
		StagePull,
		StageResolve,
		StageLoadDeployments,
		StageStage,
		StagePrune,
	}
}

// Status is the terminal outcome of a transaction.
type Status string

const (
	// StatusSucceeded means the new deployment is staged and pruning completed.
	StatusSucceeded Status = "succeeded"

	// StatusSucceededWithWarning means the new deployment is staged but a
	// non-fatal step (pruning) failed afterwards.
	StatusSucceededWithWarning Status = "succeeded-with-warning"

	// StatusFailed means the transaction aborted with the boot environment
	// unchanged.
	StatusFailed Status = "failed"
)

// Request describes one update attempt: which stateroot to update, from
// which remote, pulling which refs, and which ref to deploy.
type Request struct {
	// OSName is the stateroot to stage the new deployment for.
	OSName string

	// Remote is the update source; it is registered if absent.
	Remote Remote

	// Refs are the refs to pull from the remote. Must be non-empty.
	Refs []string

	// TargetRef is the ref whose resolved commit gets deployed. It must be
	// included in Refs.
	TargetRef string
}

// RefSpec returns the provenance refspec of the request's target ref.
func (r Request) RefSpec() RefSpec {
	return RefSpec{Remote: r.Remote.Name, Ref: r.TargetRef}
}

// Result is the terminal report of one transaction run.
type Result struct {
	// ID is the transaction's unique identifier.
	ID string `json:"id"`

	// Status is the terminal outcome.
	Status Status `json:"status"`

	// FailedStage names the stage that failed, empty on success. On
	// StatusSucceededWithWarning it names the non-fatal stage (prune).
	FailedStage Stage `json:"failed_stage,omitempty"`

	// Commit is the resolved target commit, set once resolution succeeded.
	Commit CommitID `json:"commit,omitempty"`

	// Deployment is the staged deployment, set once staging succeeded.
	Deployment *Deployment `json:"deployment,omitempty"`

	// Err is the fatal cause on StatusFailed.
	Err error `json:"-"`

	// Warning is the non-fatal cause on StatusSucceededWithWarning.
	Warning error `json:"-"`

	// StartedAt is when the transaction began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the transaction reached a terminal state.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is CompletedAt minus StartedAt.
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the update took effect, including the
// success-with-warning outcome.
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded || r.Status == StatusSucceededWithWarning
}
