package outline

import (
	"context"
	"sync"

	"widgetwrap/internal/source"
)

const DefaultInitialDepth = 2

// Options configures a Session.
type Options struct {
	InitialDepth int
	Compact      bool
	Builder      *Builder
}

// DefaultOptions matches the behaviour of a fresh outline view.
func DefaultOptions() Options {
	return Options{InitialDepth: DefaultInitialDepth, Compact: true}
}

// Session holds the latest outline of one document together with the
// view state that outlives rebuilds: explicit expansion entries, the bulk
// force flags and the display mode.
type Session struct {
	mu sync.RWMutex

	builder      *Builder
	initialDepth int
	compact      bool

	path   string
	loaded bool
	err    error
	roots  []*Node
	flat   []*Node
	byID   map[string]*Node

	expanded      map[string]bool
	forceExpand   bool
	forceCollapse bool

	onRefresh func()
}

func NewSession(opts Options) *Session {
	if opts.Builder == nil {
		opts.Builder = &Builder{}
	}
	if opts.InitialDepth <= 0 {
		opts.InitialDepth = DefaultInitialDepth
	}
	return &Session{
		builder:      opts.Builder,
		initialDepth: opts.InitialDepth,
		compact:      opts.Compact,
		byID:         make(map[string]*Node),
		expanded:     make(map[string]bool),
	}
}

// OnRefresh registers the callback fired whenever the visible tree changes.
func (s *Session) OnRefresh(fn func()) {
	s.mu.Lock()
	s.onRefresh = fn
	s.mu.Unlock()
}

func (s *Session) refresh() {
	s.mu.RLock()
	fn := s.onRefresh
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Rebuild replaces the tree with a fresh scan of doc. Nodes of the previous
// scan are discarded; expansion entries are kept, and entries of nodes whose
// offset moved are carried over when the tree shape is unchanged.
func (s *Session) Rebuild(ctx context.Context, doc *source.Document) error {
	roots, err := s.builder.Build(ctx, doc.Text, doc.Path)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	flat := Flatten(roots)

	s.mu.Lock()
	if s.path == doc.Path && len(flat) == len(s.flat) {
		for i, n := range flat {
			old := s.flat[i]
			if old.Name != n.Name || old.Depth != n.Depth || old.ID == n.ID {
				continue
			}
			if v, ok := s.expanded[old.ID]; ok {
				if _, set := s.expanded[n.ID]; !set {
					s.expanded[n.ID] = v
				}
			}
		}
	}
	s.path = doc.Path
	s.loaded = true
	s.err = err
	s.roots = roots
	s.flat = flat
	s.byID = make(map[string]*Node, len(flat))
	for _, n := range flat {
		s.byID[n.ID] = n
	}
	s.mu.Unlock()

	s.refresh()
	return err
}

// Reset forgets the document and all view state.
func (s *Session) Reset() {
	s.mu.Lock()
	s.path, s.loaded, s.err = "", false, nil
	s.roots, s.flat = nil, nil
	s.byID = make(map[string]*Node)
	s.expanded = make(map[string]bool)
	s.forceExpand, s.forceCollapse = false, false
	s.mu.Unlock()
	s.refresh()
}

func (s *Session) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Err is the error of the last rebuild.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Session) Roots() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots
}

// Nodes lists every node of the latest build in source order.
func (s *Session) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flat
}

func (s *Session) Node(id string) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	return n, ok
}

// Children returns the roots for an empty id.
func (s *Session) Children(id string) []*Node {
	if id == "" {
		return s.Roots()
	}
	if n, ok := s.Node(id); ok {
		return n.Children
	}
	return nil
}

// Parent returns nil for roots and unknown ids.
func (s *Session) Parent(id string) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	if !ok || n.ParentID == "" {
		return nil
	}
	return s.byID[n.ParentID]
}

// IsExpanded resolves, in order: force-expand, force-collapse, an explicit
// entry, then the depth default.
func (s *Session) IsExpanded(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isExpandedLocked(id)
}

func (s *Session) isExpandedLocked(id string) bool {
	switch {
	case s.forceExpand:
		return true
	case s.forceCollapse:
		return false
	}
	if v, ok := s.expanded[id]; ok {
		return v
	}
	if n, ok := s.byID[id]; ok {
		return n.Depth <= s.initialDepth
	}
	return false
}

// State is the collapsible state a view should show for the node.
func (s *Session) State(n *Node) CollapsibleState {
	if len(n.Children) == 0 {
		return StateNone
	}
	if s.IsExpanded(n.ID) {
		return StateExpanded
	}
	return StateCollapsed
}

// SetExpanded records a user expand or collapse. Interaction ends a bulk
// operation; the entries written by it keep the tree looking the same.
func (s *Session) SetExpanded(id string, expanded bool) {
	s.mu.Lock()
	s.forceExpand, s.forceCollapse = false, false
	s.expanded[id] = expanded
	s.mu.Unlock()
}

// ExpandAll marks every node of the latest build expanded.
func (s *Session) ExpandAll() {
	s.mu.Lock()
	s.forceExpand, s.forceCollapse = true, false
	clear(s.expanded)
	for _, n := range s.flat {
		s.expanded[n.ID] = true
	}
	s.mu.Unlock()
	s.refresh()
}

// CollapseAll marks every node of the latest build collapsed.
func (s *Session) CollapseAll() {
	s.mu.Lock()
	s.forceExpand, s.forceCollapse = false, true
	clear(s.expanded)
	for _, n := range s.flat {
		s.expanded[n.ID] = false
	}
	s.mu.Unlock()
	s.refresh()
}

// EnsureAncestorsExpanded expands every ancestor of id.
func (s *Session) EnsureAncestorsExpanded(id string) {
	s.mu.Lock()
	n, ok := s.byID[id]
	for ok && n.ParentID != "" {
		s.expanded[n.ParentID] = true
		n, ok = s.byID[n.ParentID]
	}
	s.mu.Unlock()
}

// FindClosest picks the node for a cursor line: an exact line match, else
// the nearest node at or before line, else the nearest node overall.
func (s *Session) FindClosest(line int, path string) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if path != "" && path != s.path {
		return nil
	}
	var before, nearest *Node
	for _, n := range s.flat {
		if n.Line == line {
			return n
		}
		if n.Line < line && (before == nil || n.Line > before.Line) {
			before = n
		}
		if nearest == nil || abs(n.Line-line) < abs(nearest.Line-line) {
			nearest = n
		}
	}
	if before != nil {
		return before
	}
	return nearest
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Compact reports the display mode.
func (s *Session) Compact() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compact
}

// ToggleMode switches between compact and detailed display and returns
// the new compact flag.
func (s *Session) ToggleMode() bool {
	s.mu.Lock()
	s.compact = !s.compact
	c := s.compact
	s.mu.Unlock()
	s.refresh()
	return c
}

func (s *Session) SetInitialDepth(depth int) {
	if depth <= 0 {
		return
	}
	s.mu.Lock()
	s.initialDepth = depth
	s.mu.Unlock()
	s.refresh()
}

func (s *Session) SetCompact(compact bool) {
	s.mu.Lock()
	s.compact = compact
	s.mu.Unlock()
	s.refresh()
}

// Item renders n with the current mode and expansion state.
func (s *Session) Item(n *Node) Item {
	return render(n, s.Compact(), s.State(n))
}

// Items renders the children of id, or the roots for an empty id. A
// session without nodes yields a single placeholder message.
func (s *Session) Items(id string) []Item {
	if id == "" {
		if msg, ok := s.Placeholder(); ok {
			return []Item{msg}
		}
	}
	children := s.Children(id)
	out := make([]Item, len(children))
	for i, n := range children {
		out[i] = s.Item(n)
	}
	return out
}

// Placeholder returns the message to show instead of an empty tree.
func (s *Session) Placeholder() (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case !s.loaded:
		return MessageItem(MsgNoDocument), true
	case s.err != nil:
		return MessageItem("Error: " + s.err.Error()), true
	case len(s.roots) == 0:
		return MessageItem(MsgNoWidgets), true
	}
	return Item{}, false
}
