package engine

import (
	"errors"
	"fmt"
)

// RegistryErrorKind classifies remote-registry failures.
type RegistryErrorKind string

const (
	// RegistryAddFailed indicates the store rejected a remote addition.
	RegistryAddFailed RegistryErrorKind = "add-failed"

	// RegistryStoreUnavailable indicates the store's remote configuration
	// could not be read at all.
	RegistryStoreUnavailable RegistryErrorKind = "store-unavailable"
)

// RegistryError is a classified remote-registry failure. The underlying
// collaborator's diagnostic is preserved unmodified in Err.
type RegistryError struct {
	Kind    RegistryErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry [%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("registry [%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for chain inspection.
func (e *RegistryError) Unwrap() error { return e.Err }

// Is matches registry errors by kind.
func (e *RegistryError) Is(target error) bool {
	t, ok := target.(*RegistryError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewAddFailedError reports a rejected remote addition.
func NewAddFailedError(name string, err error) *RegistryError {
	return &RegistryError{
		Kind:    RegistryAddFailed,
		Message: fmt.Sprintf("failed to add remote %q", name),
		Err:     err,
	}
}

// NewStoreUnavailableError reports an unreadable remote configuration.
func NewStoreUnavailableError(err error) *RegistryError {
	return &RegistryError{
		Kind:    RegistryStoreUnavailable,
		Message: "failed to list remotes",
		Err:     err,
	}
}

// FetchErrorKind classifies pull/resolve failures.
type FetchErrorKind string

const (
	// FetchNoRefsRequested indicates a pull was requested with an empty ref
	// set. An empty set is a caller error, never "pull everything".
	FetchNoRefsRequested FetchErrorKind = "no-refs-requested"

	// FetchTransportFailed covers network, authentication, and partial-ref
	// failures during a pull.
	FetchTransportFailed FetchErrorKind = "transport-failed"

	// FetchUnknownRef indicates the ref was never fetched or does not exist
	// in local storage.
	FetchUnknownRef FetchErrorKind = "unknown-ref"
)

// FetchError is a classified fetch/resolve failure.
type FetchError struct {
	Kind    FetchErrorKind
	Remote  string
	Ref     string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch [%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch [%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for chain inspection.
func (e *FetchError) Unwrap() error { return e.Err }

// Is matches fetch errors by kind.
func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewNoRefsRequestedError reports a pull with an empty ref set.
func NewNoRefsRequestedError(remote string) *FetchError {
	return &FetchError{
		Kind:    FetchNoRefsRequested,
		Remote:  remote,
		Message: fmt.Sprintf("no refs requested for pull from %q", remote),
	}
}

// NewTransportFailedError reports a failed transfer from a remote.
func NewTransportFailedError(remote string, err error) *FetchError {
	return &FetchError{
		Kind:    FetchTransportFailed,
		Remote:  remote,
		Message: fmt.Sprintf("pull from remote %q failed", remote),
		Err:     err,
	}
}

// NewUnknownRefError reports a ref that cannot be resolved locally.
func NewUnknownRefError(ref string, err error) *FetchError {
	return &FetchError{
		Kind:    FetchUnknownRef,
		Ref:     ref,
		Message: fmt.Sprintf("ref %q is not resolvable in local storage", ref),
		Err:     err,
	}
}

// DeployErrorKind classifies boot-environment failures.
type DeployErrorKind string

const (
	// DeploySysrootUnavailable indicates the boot environment could not be
	// loaded.
	DeploySysrootUnavailable DeployErrorKind = "sysroot-unavailable"

	// DeployStageFailed indicates the staging write/transaction failed. The
	// boot environment is left exactly as it was before the attempt.
	DeployStageFailed DeployErrorKind = "stage-failed"

	// DeployCleanupFailed indicates pruning of obsolete deployments failed.
	// After a successful stage this is non-fatal.
	DeployCleanupFailed DeployErrorKind = "cleanup-failed"
)

// DeployError is a classified boot-environment failure.
type DeployError struct {
	Kind    DeployErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DeployError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deploy [%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("deploy [%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for chain inspection.
func (e *DeployError) Unwrap() error { return e.Err }

// Is matches deploy errors by kind.
func (e *DeployError) Is(target error) bool {
	t, ok := target.(*DeployError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewSysrootUnavailableError reports an unloadable boot environment.
func NewSysrootUnavailableError(err error) *DeployError {
	return &DeployError{
		Kind:    DeploySysrootUnavailable,
		Message: "failed to load sysroot deployments",
		Err:     err,
	}
}

// NewStageFailedError reports a failed deployment staging.
func NewStageFailedError(osname string, commit CommitID, err error) *DeployError {
	return &DeployError{
		Kind:    DeployStageFailed,
		Message: fmt.Sprintf("failed to stage commit %s for %q", commit.Short(), osname),
		Err:     err,
	}
}

// NewCleanupFailedError reports a failed deployment prune.
func NewCleanupFailedError(err error) *DeployError {
	return &DeployError{
		Kind:    DeployCleanupFailed,
		Message: "failed to prune obsolete deployments",
		Err:     err,
	}
}

// IsStoreUnavailable returns true if err is a store-unavailable registry error.
func IsStoreUnavailable(err error) bool {
	var e *RegistryError
	if errors.As(err, &e) {
		return e.Kind == RegistryStoreUnavailable
	}
	return false
}

// IsAddFailed returns true if err is an add-failed registry error.
func IsAddFailed(err error) bool {
	var e *RegistryError
	if errors.As(err, &e) {
		return e.Kind == RegistryAddFailed
	}
	return false
}

// IsNoRefsRequested returns true if err is an empty-refs fetch error.
func IsNoRefsRequested(err error) bool {
	var e *FetchError
	if errors.As(err, &e) {
		return e.Kind == FetchNoRefsRequested
	}
	return false
}

// IsTransportFailed returns true if err is a transport fetch error.
func IsTransportFailed(err error) bool {
	var e *FetchError
	if errors.As(err, &e) {
		return e.Kind == FetchTransportFailed
	}
	return false
}

// IsUnknownRef returns true if err is an unknown-ref fetch error.
func IsUnknownRef(err error) bool {
	var e *FetchError
	if errors.As(err, &e) {
		return e.Kind == FetchUnknownRef
	}
	return false
}

// IsSysrootUnavailable returns true if err is a sysroot-unavailable deploy error.
func IsSysrootUnavailable(err error) bool {
	var e *DeployError
	if errors.As(err, &e) {
		return e.Kind == DeploySysrootUnavailable
	}
	return false
}

// IsStageFailed returns true if err is a stage-failed deploy error.
func IsStageFailed(err error) bool {
	var e *DeployError
	if errors.As(err, &e) {
		return e.Kind == DeployStageFailed
	}
	return false
}

// IsCleanupFailed returns true if err is a cleanup-failed deploy error.
func IsCleanupFailed(err error) bool {
	var e *DeployError
	if errors.As(err, &e) {
		return e.Kind == DeployCleanupFailed
	}
	return false
}
