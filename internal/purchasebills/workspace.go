package purchasebills

import (
	"log/slog"
	"sync"
	"time"
)

// API is everything the workflows need from the remote purchase-bill API.
type API interface {
	PriceResolver
	BillCreator
	BillReader
	ReceiptUpdater
}

// Deps are shared by every workspace.
type Deps struct {
	API      API
	Catalog  MaterialCatalog
	Audit    AuditPort
	Metrics  *Metrics
	Logger   *slog.Logger
	Debounce time.Duration
	// LookupTimeout bounds one price lookup request.
	LookupTimeout time.Duration
}

// Workspace is the workflow state of one session.
type Workspace struct {
	Composer   *Composer
	Submission *Submission
	Store      *Store
	GRN        *GRN

	lastUsed time.Time
}

func newWorkspace(deps Deps, now time.Time) *Workspace {
	lookup := NewPriceLookup(deps.API, deps.Debounce, deps.LookupTimeout, deps.Logger)
	composer := NewComposer(lookup, deps.Catalog, deps.Metrics, deps.Logger)
	store := NewStore(deps.API, deps.Logger)
	return &Workspace{
		Composer:   composer,
		Submission: NewSubmission(composer, store, deps.API, deps.Audit, deps.Metrics, deps.Logger),
		Store:      store,
		GRN:        NewGRN(deps.API, store, deps.Audit, deps.Metrics, deps.Logger),
		lastUsed:   now,
	}
}

// Workspaces keeps one workspace per session id. Workspaces idle for longer
// than ttl are evicted on access.
type Workspaces struct {
	deps Deps
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	items map[string]*Workspace
}

// NewWorkspaces constructs the registry.
func NewWorkspaces(deps Deps, ttl time.Duration) *Workspaces {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Workspaces{deps: deps, ttl: ttl, now: time.Now, items: map[string]*Workspace{}}
}

// Get returns the session's workspace, creating it on first use.
func (w *Workspaces) Get(sessionID string) *Workspace {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.evictLocked(now)
	ws, ok := w.items[sessionID]
	if !ok {
		ws = newWorkspace(w.deps, now)
		w.items[sessionID] = ws
	}
	ws.lastUsed = now
	return ws
}

// Drop discards the session's workspace.
func (w *Workspaces) Drop(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ws, ok := w.items[sessionID]; ok {
		ws.Composer.Close()
		delete(w.items, sessionID)
	}
}

func (w *Workspaces) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

func (w *Workspaces) evictLocked(now time.Time) {
	if w.ttl <= 0 {
		return
	}
	for id, ws := range w.items {
		if now.Sub(ws.lastUsed) > w.ttl {
			ws.Composer.Close()
			delete(w.items, id)
			w.deps.Logger.Debug("workspace evicted", slog.String("session", id))
		}
	}
}
