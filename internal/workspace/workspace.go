// Package workspace provisions, tracks, finalizes, and cleans up ephemeral
// Git working directories for agent executions (spec.md §4.4).
package workspace

import "time"

// Strategy is how a workspace's working directory was created.
type Strategy string

const (
	StrategyClone    Strategy = "clone"
	StrategyWorktree Strategy = "worktree"
)

// Status is the coarse-grained workspace lifecycle.
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusReady        Status = "ready"
	StatusInUse        Status = "in_use"
	StatusFinalizing   Status = "finalizing"
	StatusCleanedUp    Status = "cleaned_up"
	StatusError        Status = "error"
)

func (s Status) terminal() bool { return s == StatusCleanedUp }

// Phase is the fine-grained provisioning/finalize state machine.
type Phase string

const (
	PhaseInitializing   Phase = "initializing"
	PhaseCloning        Phase = "cloning"
	PhaseCreatingBranch Phase = "creating_branch"
	PhaseConfiguring    Phase = "configuring"
	PhaseReady          Phase = "ready"
	PhaseCommitting     Phase = "committing"
	PhasePushing        Phase = "pushing"
	PhaseCreatingPR     Phase = "creating_pr"
	PhaseCleaningUp     Phase = "cleaning_up"
	PhaseDone           Phase = "done"
	PhaseError          Phase = "error"
)

// BranchInfo records how a workspace's branch was derived.
type BranchInfo struct {
	Name        string
	BaseBranch  string
	ExecutionID string
	CreatedAt   time.Time
}

// CompletionHook runs (or POSTs) after a workspace reaches ready or error.
type CompletionHook struct {
	Command    string
	WebhookURL string
	RunOnError bool
}

// Workspace is one provisioned Git working directory (spec.md §3).
type Workspace struct {
	ID            string
	Path          string
	RepoURL       string
	Branch        BranchInfo
	CredRef       string // grant id, empty if unauthenticated
	ProvisionedAt time.Time

	Status   Status
	Strategy Strategy
	Phase    Phase

	ParentID string   // worktree only
	ChildIDs []string // clone only, in creation order

	OnComplete *CompletionHook
}

// IsWorktree reports whether w was created as a worktree of a parent clone.
func (w *Workspace) IsWorktree() bool { return w.Strategy == StrategyWorktree }

// validateWorktreeParent enforces invariant (a): a worktree always has a
// parent, the parent is a clone, and shares the same repo.
func validateWorktreeParent(parent *Workspace, repo string) error {
	if parent == nil {
		return newErr(KindPrecondition, "worktree requires an existing parent workspace")
	}
	if parent.Strategy != StrategyClone {
		return newErr(KindPrecondition, "worktree parent must have strategy clone")
	}
	if parent.RepoURL != repo {
		return newErr(KindPrecondition, "worktree parent repo does not match requested repo")
	}
	return nil
}
