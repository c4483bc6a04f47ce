// Command parallaxd is the orchestrator daemon: it supervises interactive
// CLI coding assistant sessions, provisions ephemeral Git workspaces, and
// brokers short-lived credentials, exposing all three over a small HTTP
// API. Grounded on the teacher's agents/codex-monitor/main.go
// env-driven-config-then-serveStatus shape.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HaruHunab1320/parallax/internal/adapter"
	"github.com/HaruHunab1320/parallax/internal/config"
	"github.com/HaruHunab1320/parallax/internal/credential"
	"github.com/HaruHunab1320/parallax/internal/credential/tokenstore"
	"github.com/HaruHunab1320/parallax/internal/gitprovider"
	"github.com/HaruHunab1320/parallax/internal/session"
	"github.com/HaruHunab1320/parallax/internal/workspace"
)

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func newID() string { return uuid.New().String() }

type daemon struct {
	logger *log.Logger
	super  *session.Supervisor
	ws     *workspace.Service
}

func main() {
	logger := log.New(os.Stdout, "parallaxd ", log.LstdFlags|log.LUTC)

	settingsPath := envOr("PARALLAX_SETTINGS_FILE", "")
	if settingsPath == "" {
		home, _ := os.UserHomeDir()
		settingsPath = home + "/.parallax/settings.toml"
	}
	cfg, err := config.Load(settingsPath)
	if err != nil {
		logger.Fatalf("load settings: %v", err)
	}

	registry := adapter.NewRegistry()
	if err := adapter.RegisterDefaults(registry); err != nil {
		logger.Fatalf("register adapters: %v", err)
	}
	super := session.NewSupervisor(registry, newID)

	var store tokenstore.Store
	if cfg.Credential.EncryptKeyFile != "" {
		fileStore, err := tokenstore.NewFile(cfg.Credential.TokenStoreDir, cfg.Credential.EncryptKeyFile)
		if err != nil {
			logger.Printf("token store init failed, falling back to in-memory: %v", err)
			store = tokenstore.NewMemory()
		} else {
			store = fileStore
		}
	} else {
		store = tokenstore.NewMemory()
	}
	broker := credential.NewBroker(store, cfg.Credential.MaxTTL(), newID)

	ws := workspace.NewService(cfg.Workspace.BaseDir, settingsPath, broker, gitprovider.Nop{}, newID)

	d := &daemon{logger: logger, super: super, ws: ws}

	addr := cfg.Daemon.ListenAddr
	logger.Printf("starting (listen=%s workspace_base=%s)", addr, cfg.Workspace.BaseDir)
	if err := d.serve(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
}

func (d *daemon) serve(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", d.handleHealthz)
	mux.HandleFunc("POST /sessions", d.handleSpawnSession)
	mux.HandleFunc("GET /sessions", d.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", d.handleGetSession)
	mux.HandleFunc("POST /sessions/{id}/input", d.handleSessionInput)
	mux.HandleFunc("POST /sessions/{id}/stop", d.handleSessionStop)
	mux.HandleFunc("GET /sessions/{id}/events", d.handleSessionEvents)
	mux.HandleFunc("POST /workspaces", d.handleProvisionWorkspace)
	mux.HandleFunc("GET /workspaces/{id}", d.handleGetWorkspace)
	mux.HandleFunc("POST /workspaces/{id}/finalize", d.handleFinalizeWorkspace)
	mux.HandleFunc("POST /workspaces/{id}/cleanup", d.handleCleanupWorkspace)

	server := &http.Server{Addr: addr, Handler: mux}
	d.logger.Printf("http server listening on %s", addr)
	return server.ListenAndServe()
}

func (d *daemon) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type spawnSessionRequest struct {
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Workdir       string            `json:"workdir"`
	Env           map[string]string `json:"env"`
	AdapterConfig map[string]any    `json:"adapterConfig"`
}

func (d *daemon) handleSpawnSession(w http.ResponseWriter, r *http.Request) {
	var req spawnSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h, err := d.super.Spawn(session.SpawnConfig{
		Name:          req.Name,
		Type:          req.Type,
		Workdir:       req.Workdir,
		Env:           req.Env,
		AdapterConfig: req.AdapterConfig,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionView(h))
}

func (d *daemon) handleListSessions(w http.ResponseWriter, r *http.Request) {
	handles := d.super.List()
	out := make([]map[string]any, 0, len(handles))
	for _, h := range handles {
		out = append(out, sessionView(h))
	}
	writeJSON(w, http.StatusOK, out)
}

func (d *daemon) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h, ok := d.super.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no such session"))
		return
	}
	writeJSON(w, http.StatusOK, sessionView(h))
}

func sessionView(h *session.Handle) map[string]any {
	state, tail := h.Snapshot()
	return map[string]any{
		"id":      h.ID,
		"name":    h.Name,
		"type":    h.Type,
		"workdir": h.Workdir,
		"state":   state,
		"tail":    tail,
	}
}

type sessionInputRequest struct {
	Data string `json:"data"`
}

func (d *daemon) handleSessionInput(w http.ResponseWriter, r *http.Request) {
	var req sessionInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := d.super.Write(r.PathValue("id"), []byte(req.Data)); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionStopRequest struct {
	Force bool `json:"force"`
}

func (d *daemon) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	var req sessionStopRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := d.super.Stop(r.PathValue("id"), session.StopOptions{Force: req.Force}); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionEvents streams this session's events as SSE, filtered to
// session_output and session_status, hand-rolled over net/http the same
// way the teacher hand-rolls its status endpoints rather than pulling in
// an SSE framework.
func (d *daemon) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := d.super.Get(id); !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no such session"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsub := d.super.On("")
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.SessionID != id {
				continue
			}
			raw, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, raw)
			flusher.Flush()
		}
	}
}

type provisionWorkspaceRequest struct {
	Repo            string `json:"repo"`
	Strategy        string `json:"strategy"`
	ParentWorkspace string `json:"parentWorkspace"`
	BaseBranch      string `json:"baseBranch"`
	ExecutionID     string `json:"executionId"`
	TaskID          string `json:"taskId"`
	Role            string `json:"role"`
	Slug            string `json:"slug"`
}

func (d *daemon) handleProvisionWorkspace(w http.ResponseWriter, r *http.Request) {
	var req provisionWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	base := req.BaseBranch
	if base == "" {
		base = "main"
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()
	ws, err := d.ws.Provision(ctx, workspace.ProvisionRequest{
		Repo:            req.Repo,
		Strategy:        workspace.Strategy(req.Strategy),
		ParentWorkspace: req.ParentWorkspace,
		BaseBranch:      base,
		ExecutionID:     req.ExecutionID,
		TaskID:          req.TaskID,
		Role:            req.Role,
		Slug:            req.Slug,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (d *daemon) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, ok := d.ws.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no such workspace"))
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

type finalizeWorkspaceRequest struct {
	Push     bool   `json:"push"`
	CreatePR bool   `json:"createPr"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Cleanup  bool   `json:"cleanup"`
}

func (d *daemon) handleFinalizeWorkspace(w http.ResponseWriter, r *http.Request) {
	var req finalizeWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	opts := workspace.FinalizeOptions{Push: req.Push, CreatePR: req.CreatePR, Cleanup: req.Cleanup}
	if req.CreatePR {
		opts.PR = &workspace.PRRequest{Title: req.Title, Body: req.Body}
	}
	if err := d.ws.Finalize(ctx, r.PathValue("id"), opts); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *daemon) handleCleanupWorkspace(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()
	if err := d.ws.Cleanup(ctx, r.PathValue("id")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
