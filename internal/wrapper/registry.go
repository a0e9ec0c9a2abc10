package wrapper

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknown is returned for template ids missing from the catalog.
var ErrUnknown = errors.New("unknown wrapper")

// FlagStore persists enabled flags per workspace.
type FlagStore interface {
	Load(ctx context.Context, workspace string) (map[string]bool, error)
	Save(ctx context.Context, workspace, id string, enabled bool) error
}

// Entry pairs a template with its enabled flag.
type Entry struct {
	*Template
	Enabled bool
}

// Group is a category with its entries, for tree views.
type Group struct {
	ID      string
	Name    string
	Entries []Entry
}

// Registry owns the enabled state of a catalog for one workspace.
type Registry struct {
	mu        sync.RWMutex
	catalog   *Catalog
	store     FlagStore
	disabled  map[string]struct{}
	workspace string
	enabled   map[string]bool
}

// NewRegistry wraps catalog. Ids in disabled start off unless a persisted
// flag says otherwise. store may be nil, in which case toggles live in memory.
func NewRegistry(catalog *Catalog, store FlagStore, disabled ...string) *Registry {
	r := &Registry{
		catalog:  catalog,
		store:    store,
		disabled: make(map[string]struct{}, len(disabled)),
	}
	for _, id := range disabled {
		r.disabled[id] = struct{}{}
	}
	r.resetLocked()
	return r
}

// Init binds the registry to a workspace and loads its persisted flags.
func (r *Registry) Init(ctx context.Context, workspace string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
	r.workspace = workspace
	if r.store == nil {
		return nil
	}
	flags, err := r.store.Load(ctx, workspace)
	if err != nil {
		return fmt.Errorf("load wrapper flags: %w", err)
	}
	for id, on := range flags {
		if _, ok := r.catalog.Get(id); ok {
			r.enabled[id] = on
		}
	}
	return nil
}

// Reset drops workspace state and restores defaults.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
	r.workspace = ""
}

func (r *Registry) resetLocked() {
	r.enabled = make(map[string]bool, len(r.catalog.byID))
	for id := range r.catalog.byID {
		_, off := r.disabled[id]
		r.enabled[id] = !off
	}
}

func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Get returns a template regardless of its flag.
func (r *Registry) Get(id string) (*Template, bool) {
	return r.catalog.Get(id)
}

func (r *Registry) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[id]
}

// All lists every entry in catalog order.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.enabled))
	for _, t := range r.catalog.Templates() {
		out = append(out, Entry{Template: t, Enabled: r.enabled[t.ID]})
	}
	return out
}

// Enabled lists the enabled templates in catalog order.
func (r *Registry) Enabled() []*Template {
	var out []*Template
	for _, e := range r.All() {
		if e.Enabled {
			out = append(out, e.Template)
		}
	}
	return out
}

// Groups lists entries by category.
func (r *Registry) Groups() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Group, 0, len(r.catalog.Categories))
	for _, cat := range r.catalog.Categories {
		g := Group{ID: cat.ID, Name: cat.Name}
		for _, t := range cat.Templates {
			g.Entries = append(g.Entries, Entry{Template: t, Enabled: r.enabled[t.ID]})
		}
		out = append(out, g)
	}
	return out
}

// Toggle flips the flag of id, persists it and returns the new value.
func (r *Registry) Toggle(ctx context.Context, id string) (bool, error) {
	if _, ok := r.catalog.Get(id); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	on := !r.enabled[id]
	if err := r.setLocked(ctx, id, on); err != nil {
		return !on, err
	}
	return on, nil
}

// SetEnabled sets and persists the flag of id. The in-memory flag is only
// changed once the store accepted it.
func (r *Registry) SetEnabled(ctx context.Context, id string, on bool) error {
	if _, ok := r.catalog.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setLocked(ctx, id, on)
}

func (r *Registry) setLocked(ctx context.Context, id string, on bool) error {
	if r.store != nil {
		if err := r.store.Save(ctx, r.workspace, id, on); err != nil {
			return fmt.Errorf("save wrapper flag: %w", err)
		}
	}
	r.enabled[id] = on
	return nil
}
