package engine

import (
	"context"

	"github.com/rs/zerolog"
)

// RemoteRegistry manages the set of known update sources against the tree
// store. Registration is idempotent by name; an existing remote's URL is
// never overwritten, because changing a trusted source's URL is an operator
// action outside this flow.
type RemoteRegistry struct {
	store  TreeStore
	logger zerolog.Logger
}

// NewRemoteRegistry creates a registry over the given store.
func NewRemoteRegistry(store TreeStore, logger zerolog.Logger) *RemoteRegistry {
	return &RemoteRegistry{
		store:  store,
		logger: logger.With().Str("component", "remote-registry").Logger(),
	}
}

// List enumerates the configured remotes. An empty result means zero
// remotes are configured; a listing failure is surfaced as a
// store-unavailable RegistryError, never conflated with an empty set.
func (r *RemoteRegistry) List(ctx context.Context) ([]Remote, error) {
	remotes, err := r.store.ListRemotes(ctx)
	if err != nil {
		return nil, NewStoreUnavailableError(err)
	}
	return remotes, nil
}

// Ensure registers the remote if it is absent. If a remote with the same
// name already exists, Ensure succeeds without touching its URL; a URL
// mismatch is logged so the skipped write stays visible.
func (r *RemoteRegistry) Ensure(ctx context.Context, name, url string) error {
	remotes, err := r.List(ctx)
	if err != nil {
		return err
	}

	for _, remote := range remotes {
		if remote.Name != name {
			continue
		}
		if remote.URL != url {
			r.logger.Warn().
				Str("remote", name).
				Str("configured_url", remote.URL).
				Str("requested_url", url).
				Msg("remote already exists with a different URL, keeping configured URL")
		} else {
			r.logger.Debug().Str("remote", name).Msg("remote already configured")
		}
		return nil
	}

	if err := r.store.AddRemote(ctx, name, url); err != nil {
		return NewAddFailedError(name, err)
	}

	r.logger.Info().Str("remote", name).Str("url", url).Msg("remote added")
	return nil
}
