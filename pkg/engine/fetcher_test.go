package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newTestFetcher(store TreeStore) *SyncFetcher {
	return NewSyncFetcher(store, zerolog.Nop())
}

func TestPullRejectsEmptyRefSet(t *testing.T) {
	store := newFakeStore()
	fetcher := newTestFetcher(store)

	err := fetcher.Pull(context.Background(), "acme", nil)
	if !IsNoRefsRequested(err) {
		t.Fatalf("error = %v, want no-refs-requested", err)
	}
	if store.pullCalls != 0 {
		t.Error("an empty ref set must never reach the store")
	}
}

func TestResolveBeforePullFailsUnknownRef(t *testing.T) {
	store := newFakeStore()
	store.available["stable/amd64"] = "c0ffee1234567890"
	fetcher := newTestFetcher(store)

	_, err := fetcher.Resolve(context.Background(), "stable/amd64")
	if !IsUnknownRef(err) {
		t.Fatalf("error = %v, want unknown-ref before any pull", err)
	}
}

func TestResolveAfterPullReturnsStableCommit(t *testing.T) {
	store := newFakeStore()
	store.available["stable/amd64"] = "c0ffee1234567890"
	fetcher := newTestFetcher(store)
	ctx := context.Background()

	if err := fetcher.Pull(ctx, "acme", []string{"stable/amd64"}); err != nil {
		t.Fatalf("Pull: %v", err)
	}

	first, err := fetcher.Resolve(ctx, "stable/amd64")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := fetcher.Resolve(ctx, "stable/amd64")
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if first != "c0ffee1234567890" || first != second {
		t.Errorf("commits = %q, %q, want stable c0ffee1234567890", first, second)
	}
}

func TestPullTransportFailureLeavesRefUnresolvable(t *testing.T) {
	store := newFakeStore()
	store.available["stable/amd64"] = "c0ffee1234567890"
	store.pullErr = errors.New("connection reset")
	fetcher := newTestFetcher(store)
	ctx := context.Background()

	err := fetcher.Pull(ctx, "acme", []string{"stable/amd64"})
	if !IsTransportFailed(err) {
		t.Fatalf("error = %v, want transport-failed", err)
	}
	if !errors.Is(err, store.pullErr) {
		t.Errorf("transport diagnostic lost: %v", err)
	}

	// No partial commit may become resolvable after a failed transfer.
	if _, err := fetcher.Resolve(ctx, "stable/amd64"); !IsUnknownRef(err) {
		t.Errorf("error = %v, want unknown-ref after failed pull", err)
	}
}

func TestTransportErrorCarriesRemote(t *testing.T) {
	store := newFakeStore()
	store.pullErr = errors.New("401 unauthorized")
	fetcher := newTestFetcher(store)

	err := fetcher.Pull(context.Background(), "acme", []string{"stable/amd64"})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %T, want *FetchError", err)
	}
	if fetchErr.Remote != "acme" {
		t.Errorf("remote = %q, want acme", fetchErr.Remote)
	}
}
