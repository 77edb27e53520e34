package engine

import "context"

// TreeStore is the versioned, content-addressable tree store collaborator.
// Content hashing, object storage, delta transport, and the local repository
// layout are owned entirely by the implementation; the engine only consumes
// this surface.
type TreeStore interface {
	// ListRemotes enumerates the configured remotes. An empty configuration
	// returns an empty slice and a nil error; a non-nil error always means
	// the configuration could not be read.
	ListRemotes(ctx context.Context) ([]Remote, error)

	// AddRemote registers a new named remote. Adding a name that already
	// exists is the implementation's concern; callers go through
	// RemoteRegistry.Ensure, which never re-adds an existing name.
	AddRemote(ctx context.Context, name, url string) error

	// Pull transfers history for the given refs from the named remote into
	// local content storage. The operation is all-refs-or-error; no
	// partial-success reporting is provided.
	Pull(ctx context.Context, remote string, refs []string) error

	// Resolve maps a ref name to the commit currently reachable in local
	// storage. It is a pure local lookup and must not touch the network.
	Resolve(ctx context.Context, ref string) (CommitID, error)

	// Close releases the store handle.
	Close() error
}

// BootEnvironment is the boot/deployment subsystem collaborator. Deployment
// representation on disk, bootloader entry selection, and rollback retention
// are owned by the implementation.
type BootEnvironment interface {
	// Load refreshes the in-memory view of all deployments (booted,
	// pending, rollback candidates).
	Load(ctx context.Context) error

	// Deployments returns the deployment list in boot order. Load must have
	// succeeded first.
	Deployments(ctx context.Context) ([]Deployment, error)

	// Stage creates a new deployment for the commit and marks it to boot
	// next without discarding the currently booted deployment. The staging
	// primitive is atomic: on error the boot environment is unchanged.
	Stage(ctx context.Context, osname string, commit CommitID, origin Origin) (*Deployment, error)

	// Cleanup removes deployments that are neither booted, staged, nor
	// within the retained rollback window.
	Cleanup(ctx context.Context) error

	// Close releases the sysroot handle.
	Close() error
}

// Observer receives transaction lifecycle notifications. Implementations
// must not block; they are invoked synchronously between steps.
type Observer interface {
	// TransactionStarted is called once before the first stage runs.
	TransactionStarted(id string, req Request)

	// StageStarted is called before each stage.
	StageStarted(id string, stage Stage)

	// StageCompleted is called after each stage with its error, nil on
	// success.
	StageCompleted(id string, stage Stage, err error)

	// TransactionCompleted is called once with the terminal result.
	TransactionCompleted(id string, res Result)
}
