// Package engine provides the core types and interfaces for the update-manager
// orchestration engine.
//
// # Overview
//
// The engine transitions a device's bootable filesystem tree from one
// immutable, versioned image to another. A single update is modeled as a
// strictly ordered transaction over two external collaborators:
//
//   - TreeStore: a versioned, content-addressable tree store (remote
//     configuration, ref pull, commit resolution)
//   - BootEnvironment: the boot/deployment subsystem (deployment listing,
//     staging, pruning)
//
// The transaction walks
//
//	Idle -> RemoteEnsured -> Fetched -> Resolved -> BootLoaded -> Staged -> Pruned
//
// where each step's success is the precondition for the next. Any failure
// before Staged aborts the transaction with the boot environment completely
// untouched; boot-state mutation is the single, last, all-or-nothing step.
// A prune failure after a successful stage is downgraded to a warning, since
// the new deployment is already safely staged.
//
// # Components
//
//   - RemoteRegistry: idempotent registration and enumeration of update remotes
//   - SyncFetcher: ref pull and local commit resolution
//   - DeploymentPlanner: deployment listing, origin construction, staging, pruning
//   - Transaction: the state machine sequencing the three components
//
// # Error Classification
//
// Each component surfaces its own structured error type carrying the failing
// kind and the collaborator's diagnostic message unmodified:
//
//   - RegistryError: AddFailed, StoreUnavailable
//   - FetchError: NoRefsRequested, TransportFailed, UnknownRef
//   - DeployError: SysrootUnavailable, StageFailed, CleanupFailed
//
// Use the predicate helpers to classify errors:
//
//	if engine.IsUnknownRef(err) {
//	    // ref was never fetched
//	}
//
// # Ownership
//
// The TreeStore and BootEnvironment handles are owned by the caller for the
// duration of one transaction and must be released on every exit path
// (typically with defer). The transaction itself is ephemeral and never
// persisted; every persistent side effect it causes (remote registration,
// object pull) is independently idempotent.
package engine
