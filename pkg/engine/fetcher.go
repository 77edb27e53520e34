package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// SyncFetcher pulls refs from a remote into the local store and resolves
// refs to concrete commit identifiers. It performs no retries: a blind
// retry on a failed transfer can mask partial or corrupt local state, so
// retry policy belongs to the caller.
type SyncFetcher struct {
	store  TreeStore
	logger zerolog.Logger
}

// NewSyncFetcher creates a fetcher over the given store.
func NewSyncFetcher(store TreeStore, logger zerolog.Logger) *SyncFetcher {
	return &SyncFetcher{
		store:  store,
		logger: logger.With().Str("component", "sync-fetcher").Logger(),
	}
}

// Pull transfers history for each ref in refs from the named remote into
// local content storage. An empty ref set is a caller error, never "pull
// everything". The operation is all-refs-or-error from the caller's
// perspective; network, authentication, and partial-ref failures all
// surface as a transport failure carrying the store's diagnostic verbatim.
func (f *SyncFetcher) Pull(ctx context.Context, remote string, refs []string) error {
	if len(refs) == 0 {
		return NewNoRefsRequestedError(remote)
	}

	f.logger.Info().
		Str("remote", remote).
		Strs("refs", refs).
		Msg("pulling refs")

	if err := f.store.Pull(ctx, remote, refs); err != nil {
		return NewTransportFailedError(remote, err)
	}

	f.logger.Info().Str("remote", remote).Msg("pull completed")
	return nil
}

// Resolve maps a ref name to the commit currently reachable after the most
// recent successful pull. Resolution is a pure local lookup; "resolve before
// pull" is a caller-ordering invariant this operation neither enforces nor
// hides; an unfetched ref simply fails as unknown.
func (f *SyncFetcher) Resolve(ctx context.Context, ref string) (CommitID, error) {
	commit, err := f.store.Resolve(ctx, ref)
	if err != nil {
		return "", NewUnknownRefError(ref, err)
	}

	f.logger.Debug().
		Str("ref", ref).
		Str("commit", string(commit)).
		Msg("ref resolved")
	return commit, nil
}
