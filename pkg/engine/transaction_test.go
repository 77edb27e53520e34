package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// Fake tree store for testing. Refs become locally resolvable only after a
// successful pull that included them, mirroring the pull-before-resolve
// contract of the real store.
type fakeStore struct {
	mu sync.Mutex

	remotes   []Remote
	available map[string]CommitID // refs the remote side offers
	local     map[string]CommitID // refs fetched into local storage

	listErr    error
	addErr     error
	pullErr    error
	resolveErr error

	addCalls  int
	pullCalls int
	pulled    [][]string
	closed    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		available: make(map[string]CommitID),
		local:     make(map[string]CommitID),
	}
}

func (s *fakeStore) ListRemotes(_ context.Context) ([]Remote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Remote, len(s.remotes))
	copy(out, s.remotes)
	return out, nil
}

func (s *fakeStore) AddRemote(_ context.Context, name, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCalls++
	if s.addErr != nil {
		return s.addErr
	}
	s.remotes = append(s.remotes, Remote{Name: name, URL: url})
	return nil
}

func (s *fakeStore) Pull(_ context.Context, remote string, refs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pullCalls++
	s.pulled = append(s.pulled, refs)
	if s.pullErr != nil {
		return s.pullErr
	}
	for _, ref := range refs {
		if commit, ok := s.available[ref]; ok {
			s.local[ref] = commit
		}
	}
	_ = remote
	return nil
}

func (s *fakeStore) Resolve(_ context.Context, ref string) (CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolveErr != nil {
		return "", s.resolveErr
	}
	commit, ok := s.local[ref]
	if !ok {
		return "", fmt.Errorf("refspec %q not found", ref)
	}
	return commit, nil
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Fake boot environment. Stage prepends a staged deployment; on injected
// failure the deployment list is left byte-for-byte unchanged, matching the
// atomicity the real staging primitive guarantees.
type fakeBoot struct {
	mu sync.Mutex

	deployments []Deployment
	loaded      bool

	loadErr    error
	listErr    error
	stageErr   error
	cleanupErr error

	cleanupCalls int
	closed       bool
}

func (b *fakeBoot) Load(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return b.loadErr
	}
	b.loaded = true
	return nil
}

func (b *fakeBoot) Deployments(_ context.Context) ([]Deployment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	out := make([]Deployment, len(b.deployments))
	copy(out, b.deployments)
	return out, nil
}

func (b *fakeBoot) Stage(_ context.Context, osname string, commit CommitID, origin Origin) (*Deployment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stageErr != nil {
		return nil, b.stageErr
	}
	staged := Deployment{
		OSName: osname,
		Commit: commit,
		Origin: origin.Refspec(),
		Staged: true,
	}
	b.deployments = append([]Deployment{staged}, b.deployments...)
	for i := range b.deployments {
		b.deployments[i].Index = i
	}
	out := staged
	return &out, nil
}

func (b *fakeBoot) Cleanup(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanupCalls++
	return b.cleanupErr
}

func (b *fakeBoot) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Recording observer for lifecycle assertions.
type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) TransactionStarted(_ string, _ Request) {
	o.record("started")
}

func (o *recordingObserver) StageStarted(_ string, stage Stage) {
	o.record("begin:" + string(stage))
}

func (o *recordingObserver) StageCompleted(_ string, stage Stage, err error) {
	if err != nil {
		o.record("fail:" + string(stage))
		return
	}
	o.record("ok:" + string(stage))
}

func (o *recordingObserver) TransactionCompleted(_ string, _ Result) {
	o.record("completed")
}

func (o *recordingObserver) record(ev string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func testRequest() Request {
	return Request{
		OSName:    "myos",
		Remote:    Remote{Name: "acme", URL: "https://acme.example/repo"},
		Refs:      []string{"stable/amd64"},
		TargetRef: "stable/amd64",
	}
}

func mustTransaction(t *testing.T, store TreeStore, boot BootEnvironment, req Request, opts ...Option) *Transaction {
	t.Helper()
	tx, err := NewTransaction(store, boot, req, opts...)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	return tx
}

func TestTransactionHappyPath(t *testing.T) {
	store := newFakeStore()
	store.available["stable/amd64"] = "c0ffee1234567890"
	boot := &fakeBoot{
		deployments: []Deployment{
			{OSName: "myos", Commit: "0ld", Origin: "acme:stable/amd64", Booted: true},
		},
	}

	tx := mustTransaction(t, store, boot, testRequest(), WithLogger(zerolog.Nop()))
	res := tx.Run(context.Background())

	if res.Status != StatusSucceeded {
		t.Fatalf("status = %q, want %q (err=%v)", res.Status, StatusSucceeded, res.Err)
	}
	if tx.State() != StatePruned {
		t.Errorf("state = %q, want %q", tx.State(), StatePruned)
	}
	if res.Commit != "c0ffee1234567890" {
		t.Errorf("commit = %q, want c0ffee1234567890", res.Commit)
	}
	if res.Deployment == nil {
		t.Fatal("expected a staged deployment in the result")
	}
	if res.Deployment.OSName != "myos" || res.Deployment.Origin != "acme:stable/amd64" {
		t.Errorf("deployment = %+v", res.Deployment)
	}
	if !res.Deployment.Staged {
		t.Error("staged deployment not marked as staged")
	}
	if boot.cleanupCalls != 1 {
		t.Errorf("cleanup calls = %d, want 1", boot.cleanupCalls)
	}
	if store.addCalls != 1 {
		t.Errorf("add calls = %d, want 1", store.addCalls)
	}
}

func TestTransactionFailureStages(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name      string
		setup     func(*fakeStore, *fakeBoot)
		wantStage Stage
		wantMatch func(error) bool
	}{
		{
			name:      "ensure remote fails on unreadable store",
			setup:     func(s *fakeStore, _ *fakeBoot) { s.listErr = cause },
			wantStage: StageEnsureRemote,
			wantMatch: IsStoreUnavailable,
		},
		{
			name:      "ensure remote fails on rejected add",
			setup:     func(s *fakeStore, _ *fakeBoot) { s.addErr = cause },
			wantStage: StageEnsureRemote,
			wantMatch: IsAddFailed,
		},
		{
			name:      "pull fails on transport error",
			setup:     func(s *fakeStore, _ *fakeBoot) { s.pullErr = cause },
			wantStage: StagePull,
			wantMatch: IsTransportFailed,
		},
		{
			name:      "resolve fails on unknown ref",
			setup:     func(s *fakeStore, _ *fakeBoot) { delete(s.available, "stable/amd64") },
			wantStage: StageResolve,
			wantMatch: IsUnknownRef,
		},
		{
			name:      "load deployments fails on sysroot error",
			setup:     func(_ *fakeStore, b *fakeBoot) { b.loadErr = cause },
			wantStage: StageLoadDeployments,
			wantMatch: IsSysrootUnavailable,
		},
		{
			name:      "stage fails on deployment write error",
			setup:     func(_ *fakeStore, b *fakeBoot) { b.stageErr = cause },
			wantStage: StageStage,
			wantMatch: IsStageFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.available["stable/amd64"] = "c0ffee1234567890"
			boot := &fakeBoot{
				deployments: []Deployment{
					{OSName: "myos", Commit: "0ld", Booted: true, Index: 0},
				},
			}
			before, _ := boot.Deployments(context.Background())
			tt.setup(store, boot)

			tx := mustTransaction(t, store, boot, testRequest())
			res := tx.Run(context.Background())

			if res.Status != StatusFailed {
				t.Fatalf("status = %q, want %q", res.Status, StatusFailed)
			}
			if res.FailedStage != tt.wantStage {
				t.Errorf("failed stage = %q, want %q", res.FailedStage, tt.wantStage)
			}
			if !tt.wantMatch(res.Err) {
				t.Errorf("error %v has wrong kind", res.Err)
			}
			if !errors.Is(res.Err, cause) && tt.wantStage != StageResolve {
				t.Errorf("cause not preserved in %v", res.Err)
			}
			if tx.State() != StateFailed {
				t.Errorf("state = %q, want %q", tx.State(), StateFailed)
			}

			// Any failure before staging leaves boot state untouched.
			after, err := boot.Deployments(context.Background())
			if err == nil && !reflect.DeepEqual(before, after) {
				t.Errorf("deployments changed on failure: before=%v after=%v", before, after)
			}
		})
	}
}

func TestTransactionEmptyRefsFailsAtPull(t *testing.T) {
	store := newFakeStore()
	boot := &fakeBoot{}
	req := testRequest()
	req.Refs = nil

	tx := mustTransaction(t, store, boot, req)
	res := tx.Run(context.Background())

	if res.Status != StatusFailed || res.FailedStage != StagePull {
		t.Fatalf("got status=%q stage=%q, want failed at pull", res.Status, res.FailedStage)
	}
	if !IsNoRefsRequested(res.Err) {
		t.Errorf("error = %v, want no-refs-requested", res.Err)
	}
}

func TestTransactionPruneFailureIsNonFatal(t *testing.T) {
	store := newFakeStore()
	store.available["stable/amd64"] = "c0ffee1234567890"
	boot := &fakeBoot{cleanupErr: errors.New("disk busy")}

	tx := mustTransaction(t, store, boot, testRequest())
	res := tx.Run(context.Background())

	if res.Status != StatusSucceededWithWarning {
		t.Fatalf("status = %q, want %q", res.Status, StatusSucceededWithWarning)
	}
	if !res.Succeeded() {
		t.Error("success-with-warning must count as a successful update")
	}
	if res.Commit != "c0ffee1234567890" {
		t.Errorf("commit = %q, want the staged commit reported", res.Commit)
	}
	if res.FailedStage != StagePrune {
		t.Errorf("failed stage = %q, want %q", res.FailedStage, StagePrune)
	}
	if !IsCleanupFailed(res.Warning) {
		t.Errorf("warning = %v, want cleanup-failed", res.Warning)
	}
	if res.Err != nil {
		t.Errorf("fatal error set on non-fatal outcome: %v", res.Err)
	}
	if tx.State() != StateStaged {
		t.Errorf("state = %q, want %q", tx.State(), StateStaged)
	}
}

func TestTransactionObserverSequence(t *testing.T) {
	store := newFakeStore()
	store.available["stable/amd64"] = "c0ffee1234567890"
	boot := &fakeBoot{}
	obs := &recordingObserver{}

	tx := mustTransaction(t, store, boot, testRequest(), WithObserver(obs))
	tx.Run(context.Background())

	want := []string{
		"started",
		"begin:ensure-remote", "ok:ensure-remote",
		"begin:pull", "ok:pull",
		"begin:resolve", "ok:resolve",
		"begin:load-deployments", "ok:load-deployments",
		"begin:stage", "ok:stage",
		"begin:prune", "ok:prune",
		"completed",
	}
	if !reflect.DeepEqual(obs.events, want) {
		t.Errorf("observer events = %v, want %v", obs.events, want)
	}
}

func TestNewTransactionRejectsIncompleteRequests(t *testing.T) {
	store := newFakeStore()
	boot := &fakeBoot{}

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing osname", func(r *Request) { r.OSName = "" }},
		{"missing remote name", func(r *Request) { r.Remote.Name = "" }},
		{"missing remote url", func(r *Request) { r.Remote.URL = "" }},
		{"missing target ref", func(r *Request) { r.TargetRef = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			tt.mutate(&req)
			if _, err := NewTransaction(store, boot, req); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestTransactionIsSingleUse(t *testing.T) {
	store := newFakeStore()
	store.available["stable/amd64"] = "c0ffee1234567890"
	boot := &fakeBoot{}

	tx := mustTransaction(t, store, boot, testRequest())
	if res := tx.Run(context.Background()); res.Status != StatusSucceeded {
		t.Fatalf("first run failed: %v", res.Err)
	}
	if res := tx.Run(context.Background()); res.Status != StatusFailed {
		t.Fatal("second run must fail")
	}
}
