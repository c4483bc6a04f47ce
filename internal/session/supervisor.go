package session

import (
	"sync"

	"github.com/HaruHunab1320/parallax/internal/adapter"
)

// Handle is the caller-facing view of a spawned session: enough to
// write/resize/stop it and read its current snapshot, without exposing the
// PTY or scrollback internals directly.
type Handle struct {
	ID      string
	Name    string
	Type    string
	Workdir string

	session *Session
}

func (h *Handle) Write(data []byte) error      { return h.session.Write(data) }
func (h *Handle) Resize(cols, rows int) error  { return h.session.Resize(cols, rows) }
func (h *Handle) Stop(opts StopOptions) error  { return h.session.Stop(opts) }
func (h *Handle) Snapshot() (Lifecycle, string) { return h.session.Snapshot() }
func (h *Handle) BufferedOutput() string       { return h.session.BufferedOutput() }
func (h *Handle) ExitInfo() (ExitInfo, bool)   { return h.session.ExitInfo() }

// SpawnConfig is the caller-facing spawn request (spec.md §6).
type SpawnConfig struct {
	Name          string
	Type          string
	Workdir       string
	Env           map[string]string
	AdapterConfig map[string]any
	TailWindow    int
	Debounce      int // milliseconds; 0 uses the adapter default
	Scrollback    int
}

// Supervisor is the registry and lifecycle owner for every session in a
// process (spec.md §4.3). It owns a single event bus shared by all
// sessions and enforces that the registry itself is only ever touched
// under its mutex — session internals are independently synchronized.
type Supervisor struct {
	registry *adapter.Registry
	bus      *Bus

	idSeq func() string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSupervisor returns a Supervisor over the given adapter registry. idSeq
// generates session identifiers; callers typically pass a uuid generator.
func NewSupervisor(registry *adapter.Registry, idSeq func() string) *Supervisor {
	return &Supervisor{
		registry: registry,
		bus:      NewBus(),
		idSeq:    idSeq,
		sessions: map[string]*Session{},
	}
}

// RegisterAdapter adds or replaces an adapter in the supervisor's registry.
func (sv *Supervisor) RegisterAdapter(a adapter.Adapter) error {
	return sv.registry.Register(a)
}

// Spawn selects the adapter named in cfg.Type, opens a PTY for it, and
// returns a Handle once the child is running. Readiness is signalled later
// by a session_status event, never by Spawn's return value.
func (sv *Supervisor) Spawn(cfg SpawnConfig) (*Handle, error) {
	def, ok := sv.registry.Get(cfg.Type)
	if !ok {
		return nil, newErr(KindUnknownAdapter, "no adapter registered for type "+cfg.Type, nil)
	}
	id := sv.idSeq()
	sc := Config{
		ID:         id,
		Name:       cfg.Name,
		Workdir:    cfg.Workdir,
		EnvDelta:   cfg.Env,
		TailWindow: cfg.TailWindow,
		Scrollback: cfg.Scrollback,
	}
	sess := New(def, sc)
	sess.Attach(sv.bus)

	sv.mu.Lock()
	sv.sessions[id] = sess
	sv.mu.Unlock()

	if err := sess.Start(); err != nil {
		sv.mu.Lock()
		delete(sv.sessions, id)
		sv.mu.Unlock()
		return nil, err
	}

	return &Handle{ID: id, Name: cfg.Name, Type: cfg.Type, Workdir: cfg.Workdir, session: sess}, nil
}

// Get returns the handle for id, if a session with that id is registered.
func (sv *Supervisor) Get(id string) (*Handle, bool) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sess, ok := sv.sessions[id]
	if !ok {
		return nil, false
	}
	return &Handle{ID: sess.ID, Name: sess.Name, Type: sess.Type, Workdir: sess.Workdir, session: sess}, true
}

// List returns a handle for every currently registered session.
func (sv *Supervisor) List() []*Handle {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	out := make([]*Handle, 0, len(sv.sessions))
	for _, sess := range sv.sessions {
		out = append(out, &Handle{ID: sess.ID, Name: sess.Name, Type: sess.Type, Workdir: sess.Workdir, session: sess})
	}
	return out
}

// Write forwards to the session's Write.
func (sv *Supervisor) Write(id string, data []byte) error {
	h, ok := sv.Get(id)
	if !ok {
		return newErr(KindAlreadyStopped, "no such session "+id, nil)
	}
	return h.Write(data)
}

// Stop forwards to the session's Stop and removes it from the registry.
func (sv *Supervisor) Stop(id string, opts StopOptions) error {
	h, ok := sv.Get(id)
	if !ok {
		return nil
	}
	err := h.Stop(opts)
	sv.mu.Lock()
	delete(sv.sessions, id)
	sv.mu.Unlock()
	return err
}

// StopAll stops every live session with the supplied options. It cancels
// outstanding spawns first by taking a snapshot of the current registry, so
// a session spawned concurrently with StopAll is either stopped too or not
// observed at all, never left half-registered.
func (sv *Supervisor) StopAll(opts StopOptions) []error {
	sv.mu.Lock()
	ids := make([]string, 0, len(sv.sessions))
	for id := range sv.sessions {
		ids = append(ids, id)
	}
	sv.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := sv.Stop(id, opts); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// On subscribes to the supervisor's single event bus and returns an
// unsubscribe function, filtering by kind if kind is non-empty.
func (sv *Supervisor) On(kind EventKind) (<-chan Event, func()) {
	ch, unsub := sv.bus.Subscribe()
	if kind == "" {
		return ch, unsub
	}
	filtered := make(chan Event, subscriberBufferSize)
	go func() {
		defer close(filtered)
		for e := range ch {
			if e.Kind == kind {
				select {
				case filtered <- e:
				default:
				}
			}
		}
	}()
	return filtered, unsub
}
