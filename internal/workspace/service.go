package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/HaruHunab1320/parallax/internal/gitprovider"
)

// ProvisionRequest is the caller-facing provisioning request (spec.md §6).
type ProvisionRequest struct {
	Repo            string
	Provider        string
	Strategy        Strategy
	ParentWorkspace string
	BranchStrategy  string
	BaseBranch      string
	ExecutionID     string
	PatternName     string
	TaskID          string
	Role            string
	Slug            string
	User            string
	UserCredential  *UserCredential
	OnComplete      *CompletionHook
}

// UserCredential is a credential supplied directly on a provision request,
// the highest-priority rung of the broker's chain (spec.md §4.5).
type UserCredential struct {
	Kind   string // pat | oauth | ssh
	Secret string
}

// FinalizeOptions controls Service.Finalize.
type FinalizeOptions struct {
	Push     bool
	CreatePR bool
	PR       *PRRequest
	Cleanup  bool
}

// PRRequest carries the title/body for an optional pull request.
type PRRequest struct {
	Title string
	Body  string
	Draft bool
}

// Service provisions, tracks, finalizes, and cleans up workspaces.
// Grounded on spec.md §4.4; the git plumbing itself is adapted from the
// teacher's git_identity.go exec.Command wrapping style (see git.go).
type Service struct {
	baseDir      string
	settingsPath string
	resolver     CredentialResolver
	provider     gitprovider.Provider
	idSeq        func() string
	bus          *Bus

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewService constructs a Service. A nil resolver falls back to
// unauthenticated-only behavior; a nil provider falls back to
// gitprovider.Nop, which fails PR creation clearly rather than panicking.
func NewService(baseDir, settingsPath string, resolver CredentialResolver, provider gitprovider.Provider, idSeq func() string) *Service {
	if resolver == nil {
		resolver = noCredentials{}
	}
	if provider == nil {
		provider = gitprovider.Nop{}
	}
	return &Service{
		baseDir:      baseDir,
		settingsPath: settingsPath,
		resolver:     resolver,
		provider:     provider,
		idSeq:        idSeq,
		bus:          NewBus(),
		workspaces:   map[string]*Workspace{},
	}
}

// On subscribes to the service's workspace event bus.
func (s *Service) On() (<-chan Event, func()) { return s.bus.Subscribe() }

// Get returns the workspace for id, if tracked.
func (s *Service) Get(id string) (*Workspace, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workspaces[id]
	return w, ok
}

// Provision creates a clone or worktree workspace per spec.md §4.4.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest) (*Workspace, error) {
	ensureBaseDirDefault(s.settingsPath, s.baseDir)

	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategyClone
	}

	var parent *Workspace
	if strategy == StrategyWorktree {
		p, ok := s.Get(req.ParentWorkspace)
		if !ok {
			return nil, newErr(KindPrecondition, "parent workspace not found")
		}
		if err := validateWorktreeParent(p, req.Repo); err != nil {
			return nil, err
		}
		parent = p
	}

	id := s.idSeq()
	dir := filepath.Join(s.baseDir, id)
	w := &Workspace{
		ID:       id,
		Path:     dir,
		RepoURL:  req.Repo,
		Status:   StatusProvisioning,
		Strategy: strategy,
		Phase:    PhaseInitializing,
	}
	if parent != nil {
		w.ParentID = parent.ID
		w.CredRef = parent.CredRef
	}

	s.mu.Lock()
	s.workspaces[id] = w
	s.mu.Unlock()

	err := s.provisionInto(ctx, w, req, parent)
	if err != nil {
		s.setPhase(w, PhaseError, err.Error())
		w.Status = StatusError
		s.bus.Publish(Event{Kind: EventError, WorkspaceID: id, Message: redactTokens(err.Error())})
		s.runCompletionHook(w, req.OnComplete, false)
		if ctx.Err() != nil {
			_ = os.RemoveAll(dir)
		}
		return w, err
	}

	w.Status = StatusReady
	s.setPhase(w, PhaseReady, "")
	s.bus.Publish(Event{Kind: EventReady, WorkspaceID: id})
	s.runCompletionHook(w, req.OnComplete, true)
	w.OnComplete = req.OnComplete
	return w, nil
}

func (s *Service) provisionInto(ctx context.Context, w *Workspace, req ProvisionRequest, parent *Workspace) error {
	base := req.BaseBranch
	branch := BranchName(defaultBranchPrefix, req.ExecutionID, req.Role, req.Slug)
	w.Branch = BranchInfo{Name: branch, BaseBranch: base, ExecutionID: req.ExecutionID, CreatedAt: time.Now()}

	if w.Strategy == StrategyWorktree {
		// A worktree shares its parent clone's repository config and
		// credential helper — both live in the parent's .git, which every
		// linked worktree reads. No separate credential or identity setup.
		s.setPhase(w, PhaseCloning, "")
		if err := fetchBaseBranch(ctx, parent.Path, base); err != nil {
			return err
		}
		s.setPhase(w, PhaseCreatingBranch, "")
		if _, err := addWorktree(ctx, parent.Path, w.Path, branch, base); err != nil {
			return err
		}
		parent.ChildIDs = append(parent.ChildIDs, w.ID)
		s.setPhase(w, PhaseConfiguring, "")
		return nil
	}

	cred, err := s.obtainCredential(ctx, w, req, req.UserCredential != nil)
	if err != nil {
		return err
	}

	s.setPhase(w, PhaseCloning, "")
	if cred == nil {
		if _, err := cloneShallow(ctx, req.Repo, base, w.Path); err != nil {
			if !isAuthError(err.Error()) {
				return err
			}
			retried, rerr := s.obtainCredential(ctx, w, req, true)
			if rerr != nil {
				return rerr
			}
			cred = retried
			if _, err := cloneShallow(ctx, authURL(req.Repo, cred), base, w.Path); err != nil {
				return err
			}
		}
	} else {
		if _, err := cloneShallow(ctx, authURL(req.Repo, cred), base, w.Path); err != nil {
			return err
		}
	}
	s.setPhase(w, PhaseCreatingBranch, "")
	if _, err := checkoutNewBranch(ctx, w.Path, branch); err != nil {
		return err
	}

	s.setPhase(w, PhaseConfiguring, "")
	if err := seedGitIdentity(ctx, w.Path); err != nil {
		return err
	}
	if cred != nil && cred.Kind != "ssh_key" {
		if err := installCredentialHelper(ctx, w.Path, w.ID, req.ExecutionID, req.Repo, cred.Token, time.Now().Add(time.Hour)); err != nil {
			return err
		}
		w.CredRef = cred.GrantID
	}
	return nil
}

// obtainCredential asks the broker for a credential. The first attempt
// (required=false) lets the broker's own priority chain — user-provided,
// cached OAuth, registered provider adapter — answer silently with nil if
// nothing is available, so a public repo stays unauthenticated. The forced
// retry after an auth-class clone failure passes required=true, which lets
// the broker fall through to an interactive device flow if nothing cached
// applies (spec.md §4.4 step 2, §4.5 priority chain).
func (s *Service) obtainCredential(ctx context.Context, w *Workspace, req ProvisionRequest, required bool) (*ResolvedCredential, error) {
	return s.resolver.Resolve(ctx, CredentialRequest{
		Repo:        req.Repo,
		Access:      "read_write",
		ExecutionID: req.ExecutionID,
		TaskID:      req.TaskID,
		Optional:    !required,
	})
}

// authURL embeds a resolved token credential into a clone URL for non-SSH
// kinds; SSH credentials never touch the URL.
func authURL(repo string, cred *ResolvedCredential) string {
	if cred == nil || cred.Token == "" || cred.Kind == "ssh_key" {
		return repo
	}
	return embedToken(repo, cred.Token)
}

func embedToken(repo, token string) string {
	const scheme = "https://"
	if len(repo) > len(scheme) && repo[:len(scheme)] == scheme {
		return scheme + "x-access-token:" + token + "@" + repo[len(scheme):]
	}
	return repo
}

func (s *Service) setPhase(w *Workspace, phase Phase, msg string) {
	w.Phase = phase
	s.bus.Publish(Event{Kind: EventPhase, WorkspaceID: w.ID, Phase: phase, Status: w.Status, Message: redactTokens(msg)})
}

// Finalize pushes the workspace's branch and optionally opens a PR, then
// optionally cleans up (spec.md §4.4 Finalize).
func (s *Service) Finalize(ctx context.Context, id string, opts FinalizeOptions) error {
	w, ok := s.Get(id)
	if !ok {
		return newErr(KindPrecondition, "unknown workspace "+id)
	}

	if opts.Push && w.CredRef == "" {
		return newErr(KindPrecondition, "push requires authentication")
	}

	w.Status = StatusFinalizing
	if opts.Push {
		s.setPhase(w, PhasePushing, "")
		if _, err := push(ctx, w.Path, w.Branch.Name); err != nil {
			w.Status = StatusReady
			return err
		}
	}

	if opts.CreatePR {
		if w.CredRef == "" {
			w.Status = StatusReady
			return newErr(KindPrecondition, "PR creation requires authentication")
		}
		s.setPhase(w, PhaseCreatingPR, "")
		req := gitprovider.CreatePRRequest{
			Repo: w.RepoURL,
			Head: w.Branch.Name,
			Base: w.Branch.BaseBranch,
		}
		if opts.PR != nil {
			req.Title, req.Body, req.Draft = opts.PR.Title, opts.PR.Body, opts.PR.Draft
		}
		if _, err := s.provider.CreatePR(ctx, req); err != nil {
			w.Status = StatusReady
			return wrapErr(KindProviderAPI, "create pr", err)
		}
	}

	if opts.Cleanup {
		return s.Cleanup(ctx, id)
	}
	w.Status = StatusReady
	s.setPhase(w, PhaseDone, "")
	return nil
}

// Cleanup removes a workspace's directory, cascading to worktree children
// first for a clone (spec.md §4.4 Cleanup). Idempotent; tolerates a
// workspace whose directory is already gone.
func (s *Service) Cleanup(ctx context.Context, id string) error {
	w, ok := s.Get(id)
	if !ok {
		return nil
	}
	if w.Status.terminal() {
		return nil
	}

	s.setPhase(w, PhaseCleaningUp, "")

	if w.Strategy == StrategyClone {
		for _, childID := range append([]string(nil), w.ChildIDs...) {
			if err := s.cleanupWorktree(ctx, w, childID); err != nil {
				_ = err
			}
		}
		_ = removeCredentialHelper(w.Path)
		if w.CredRef != "" {
			_ = s.resolver.Revoke(ctx, w.CredRef)
		}
		_ = os.RemoveAll(w.Path)
	} else {
		if parent, ok := s.Get(w.ParentID); ok {
			_, _ = removeWorktree(ctx, parent.Path, w.Path)
			s.unlinkChild(parent, w.ID)
		}
	}

	w.Status = StatusCleanedUp
	s.setPhase(w, PhaseDone, "")
	return nil
}

func (s *Service) cleanupWorktree(ctx context.Context, parent *Workspace, childID string) error {
	child, ok := s.Get(childID)
	if !ok {
		return nil
	}
	_, err := removeWorktree(ctx, parent.Path, child.Path)
	child.Status = StatusCleanedUp
	s.setPhase(child, PhaseDone, "")
	return err
}

func (s *Service) unlinkChild(parent *Workspace, childID string) {
	out := parent.ChildIDs[:0]
	for _, id := range parent.ChildIDs {
		if id != childID {
			out = append(out, id)
		}
	}
	parent.ChildIDs = out
}

// runCompletionHook runs the optional shell command and/or POSTs the
// optional webhook after a workspace reaches ready or error. Failures are
// logged by the caller (via the returned error being discarded here by
// design — spec.md §4.4: "Hook failures are logged but never promoted to
// workspace errors").
func (s *Service) runCompletionHook(w *Workspace, hook *CompletionHook, succeeded bool) {
	if hook == nil {
		return
	}
	if !succeeded && !hook.RunOnError {
		return
	}
	status := string(w.Status)
	if hook.Command != "" {
		if err := runHookCommand(hook.Command, w.ID, w.RepoURL, w.Branch.Name, status, w.Path); err != nil {
			log.Printf("workspace %s: completion hook command failed: %v", w.ID, err)
		}
	}
	if hook.WebhookURL != "" {
		if err := postWebhook(hook.WebhookURL, map[string]string{
			"workspaceId": w.ID,
			"repo":        w.RepoURL,
			"branch":      w.Branch.Name,
			"status":      status,
			"path":        w.Path,
		}); err != nil {
			log.Printf("workspace %s: completion webhook failed: %v", w.ID, err)
		}
	}
}

func runHookCommand(command, workspaceID, repo, branch, status, path string) error {
	env := []string{
		"WORKSPACE_ID=" + workspaceID,
		"REPO=" + repo,
		"BRANCH=" + branch,
		"STATUS=" + status,
		"WORKSPACE_PATH=" + path,
	}
	return runShellHook(command, env)
}

func postWebhook(url string, payload map[string]string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
