package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// newLocalBareRepo creates a seed working repo with one commit on "main",
// then a bare clone of it suitable for use as a file:// clone source in
// tests — no network access required.
func newLocalBareRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	seed := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = seed
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-b", "main")
	run("config", "user.email", "seed@example.com")
	run("config", "user.name", "seed")
	if err := os.WriteFile(filepath.Join(seed, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	run("add", ".")
	run("commit", "-m", "initial")

	bare := filepath.Join(t.TempDir(), "repo.git")
	cmd := exec.Command("git", "clone", "--bare", seed, bare)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git clone --bare: %v\n%s", err, out)
	}
	return bare
}

func counterIDSeq(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + string(rune('0'+n))
	}
}

func newTestService(t *testing.T, idPrefix string) *Service {
	t.Helper()
	base := t.TempDir()
	settings := filepath.Join(t.TempDir(), "settings.toml")
	return NewService(base, settings, nil, nil, counterIDSeq(idPrefix))
}

func TestServiceProvisionCloneUnauthenticatedPublicRepo(t *testing.T) {
	repo := newLocalBareRepo(t)
	svc := newTestService(t, "ws")

	w, err := svc.Provision(context.Background(), ProvisionRequest{
		Repo:        repo,
		BaseBranch:  "main",
		ExecutionID: "exec-1",
		Role:        "implementer",
	})
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if w.Status != StatusReady {
		t.Fatalf("Status = %q, want ready", w.Status)
	}
	if w.Phase != PhaseReady {
		t.Fatalf("Phase = %q, want ready", w.Phase)
	}
	want := BranchName(defaultBranchPrefix, "exec-1", "implementer", "")
	if w.Branch.Name != want {
		t.Fatalf("Branch.Name = %q, want %q", w.Branch.Name, want)
	}
	if _, err := os.Stat(filepath.Join(w.Path, "README.md")); err != nil {
		t.Fatalf("cloned file missing: %v", err)
	}
}

func TestServiceFinalizePushWithoutCredentialsLeavesWorkspaceReady(t *testing.T) {
	repo := newLocalBareRepo(t)
	svc := newTestService(t, "ws")

	w, err := svc.Provision(context.Background(), ProvisionRequest{
		Repo:        repo,
		BaseBranch:  "main",
		ExecutionID: "exec-1",
		Role:        "implementer",
	})
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	err = svc.Finalize(context.Background(), w.ID, FinalizeOptions{Push: true})
	if err == nil {
		t.Fatalf("Finalize(push) error = nil, want push-requires-authentication error")
	}

	got, _ := svc.Get(w.ID)
	if got.Status != StatusReady {
		t.Fatalf("Status after failed push = %q, want ready", got.Status)
	}
}

func TestServiceWorktreeCascadeCleanup(t *testing.T) {
	repo := newLocalBareRepo(t)
	svc := newTestService(t, "ws")
	ctx := context.Background()

	parent, err := svc.Provision(ctx, ProvisionRequest{
		Repo:        repo,
		BaseBranch:  "main",
		ExecutionID: "exec-1",
		Role:        "orchestrator",
	})
	if err != nil {
		t.Fatalf("Provision(parent) error = %v", err)
	}

	childA, err := svc.Provision(ctx, ProvisionRequest{
		Repo:            repo,
		BaseBranch:      "main",
		Strategy:        StrategyWorktree,
		ParentWorkspace: parent.ID,
		ExecutionID:     "exec-1",
		Role:            "worker-a",
	})
	if err != nil {
		t.Fatalf("Provision(childA) error = %v", err)
	}
	childB, err := svc.Provision(ctx, ProvisionRequest{
		Repo:            repo,
		BaseBranch:      "main",
		Strategy:        StrategyWorktree,
		ParentWorkspace: parent.ID,
		ExecutionID:     "exec-1",
		Role:            "worker-b",
	})
	if err != nil {
		t.Fatalf("Provision(childB) error = %v", err)
	}

	if err := svc.Cleanup(ctx, parent.ID); err != nil {
		t.Fatalf("Cleanup(parent) error = %v", err)
	}

	for _, id := range []string{childA.ID, childB.ID, parent.ID} {
		w, ok := svc.Get(id)
		if !ok {
			t.Fatalf("workspace %s missing after cleanup", id)
		}
		if w.Status != StatusCleanedUp {
			t.Fatalf("workspace %s Status = %q, want cleaned_up", id, w.Status)
		}
	}
	if _, err := os.Stat(parent.Path); !os.IsNotExist(err) {
		t.Fatalf("parent directory still exists after cleanup: err=%v", err)
	}
}

func TestServiceWorktreeRequiresCloneParent(t *testing.T) {
	repo := newLocalBareRepo(t)
	svc := newTestService(t, "ws")
	ctx := context.Background()

	leaf, err := svc.Provision(ctx, ProvisionRequest{
		Repo:        repo,
		BaseBranch:  "main",
		ExecutionID: "exec-1",
		Role:        "implementer",
	})
	if err != nil {
		t.Fatalf("Provision(leaf) error = %v", err)
	}
	grandchild, err := svc.Provision(ctx, ProvisionRequest{
		Repo:            repo,
		BaseBranch:      "main",
		Strategy:        StrategyWorktree,
		ParentWorkspace: leaf.ID,
		ExecutionID:     "exec-1",
		Role:            "worker",
	})
	if err != nil {
		t.Fatalf("Provision(first worktree) error = %v", err)
	}

	_, err = svc.Provision(ctx, ProvisionRequest{
		Repo:            repo,
		BaseBranch:      "main",
		Strategy:        StrategyWorktree,
		ParentWorkspace: grandchild.ID,
		ExecutionID:     "exec-1",
		Role:            "worker-of-worker",
	})
	if err == nil {
		t.Fatalf("Provision(worktree of worktree) error = nil, want precondition error")
	}
}

func TestServiceCleanupIsIdempotent(t *testing.T) {
	repo := newLocalBareRepo(t)
	svc := newTestService(t, "ws")
	ctx := context.Background()

	w, err := svc.Provision(ctx, ProvisionRequest{
		Repo:        repo,
		BaseBranch:  "main",
		ExecutionID: "exec-1",
		Role:        "implementer",
	})
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if err := svc.Cleanup(ctx, w.ID); err != nil {
		t.Fatalf("first Cleanup() error = %v", err)
	}
	if err := svc.Cleanup(ctx, w.ID); err != nil {
		t.Fatalf("second Cleanup() error = %v", err)
	}
}
