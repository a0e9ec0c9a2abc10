package outline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widgetwrap/internal/source"
)

func newScreenSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(DefaultOptions())
	require.NoError(t, s.Rebuild(context.Background(), source.NewDocument("lib/home.dart", source.LanguageDart, screen)))
	return s
}

func TestSessionPlaceholders(t *testing.T) {
	s := NewSession(DefaultOptions())
	items := s.Items("")
	require.Len(t, items, 1)
	assert.Equal(t, MsgNoDocument, items[0].Label)
	assert.True(t, items[0].Message)

	require.NoError(t, s.Rebuild(context.Background(), source.NewDocument("a.dart", source.LanguageDart, "var x = 1;")))
	items = s.Items("")
	require.Len(t, items, 1)
	assert.Equal(t, MsgNoWidgets, items[0].Label)

	s.Reset()
	assert.Equal(t, MsgNoDocument, s.Items("")[0].Label)
}

func TestSessionDefaultDepth(t *testing.T) {
	s := newScreenSession(t)
	for _, n := range s.Nodes() {
		assert.Equal(t, n.Depth <= DefaultInitialDepth, s.IsExpanded(n.ID), n.ID)
	}
	scaffold := s.Roots()[0]
	assert.Equal(t, StateExpanded, s.State(scaffold))
	row := scaffold.Children[1].Children[1]
	assert.Equal(t, StateCollapsed, s.State(row))
	assert.Equal(t, StateNone, s.State(row.Children[0]))
}

func TestSessionExpandCollapseAll(t *testing.T) {
	s := newScreenSession(t)
	var refreshes atomic.Int32
	s.OnRefresh(func() { refreshes.Add(1) })

	s.ExpandAll()
	for _, n := range s.Nodes() {
		assert.True(t, s.IsExpanded(n.ID), n.ID)
	}
	s.CollapseAll()
	for _, n := range s.Nodes() {
		assert.False(t, s.IsExpanded(n.ID), n.ID)
	}
	assert.Equal(t, int32(2), refreshes.Load())
}

func TestSessionInteractionEndsForce(t *testing.T) {
	s := newScreenSession(t)
	nodes := s.Nodes()

	s.CollapseAll()
	s.SetExpanded(nodes[0].ID, true)
	assert.True(t, s.IsExpanded(nodes[0].ID))
	// the bulk entries still hold for the other nodes
	assert.False(t, s.IsExpanded(nodes[1].ID))

	s.ExpandAll()
	s.SetExpanded(nodes[3].ID, false)
	assert.False(t, s.IsExpanded(nodes[3].ID))
	assert.True(t, s.IsExpanded(nodes[5].ID))
}

func TestSessionRebuildKeepsExpansion(t *testing.T) {
	s := newScreenSession(t)
	row := s.Roots()[0].Children[1].Children[1]
	s.SetExpanded(row.ID, true)

	// an edit above the tree shifts every offset
	edited := "// header\n" + screen
	require.NoError(t, s.Rebuild(context.Background(), source.NewDocument("lib/home.dart", source.LanguageDart, edited)))
	moved := s.Roots()[0].Children[1].Children[1]
	require.NotEqual(t, row.ID, moved.ID)
	assert.True(t, s.IsExpanded(moved.ID))
	_, stale := s.Node(row.ID)
	assert.False(t, stale)
}

func TestSessionParentAndChildren(t *testing.T) {
	s := newScreenSession(t)
	scaffold := s.Roots()[0]
	assert.Equal(t, scaffold.Children, s.Children(scaffold.ID))
	assert.Equal(t, s.Roots(), s.Children(""))
	assert.Nil(t, s.Parent(scaffold.ID))
	assert.Equal(t, scaffold, s.Parent(scaffold.Children[0].ID))
	assert.Nil(t, s.Children("missing"))
}

func TestSessionFindClosest(t *testing.T) {
	s := newScreenSession(t)
	n := s.FindClosest(5, "lib/home.dart")
	require.NotNil(t, n)
	assert.Equal(t, "Column", n.Name)

	// "children: [" has no widget; the previous line wins
	n = s.FindClosest(6, "")
	require.NotNil(t, n)
	assert.Equal(t, "Column", n.Name)

	n = s.FindClosest(0, "")
	require.NotNil(t, n)
	assert.Equal(t, "Scaffold", n.Name)

	assert.Nil(t, s.FindClosest(5, "lib/other.dart"))
}

func TestSessionEnsureAncestorsExpanded(t *testing.T) {
	s := newScreenSession(t)
	icon := s.Roots()[0].Children[1].Children[1].Children[0]
	s.CollapseAll()
	s.SetExpanded(icon.ID, false)

	s.EnsureAncestorsExpanded(icon.ID)
	for p := s.Parent(icon.ID); p != nil; p = s.Parent(p.ID) {
		assert.True(t, s.IsExpanded(p.ID), p.Name)
	}
	assert.False(t, s.IsExpanded(icon.ID))
}

func TestSessionItemsCompactAndDetailed(t *testing.T) {
	doc := source.NewDocument("lib/a.dart", source.LanguageDart,
		"Container(key: Key('box'), width: 10, height: 20, child: Text('hello'))")
	s := NewSession(DefaultOptions())
	require.NoError(t, s.Rebuild(context.Background(), doc))

	item := s.Items("")[0]
	assert.Equal(t, "Container", item.Label)
	assert.Equal(t, "Line 1 - w:10 h:20", item.Description)
	assert.Equal(t, "symbol-namespace", item.Icon)
	assert.Equal(t, StateExpanded, item.State)
	assert.True(t, strings.HasPrefix(item.Tooltip, "Container (a.dart:1)"))
	assert.Contains(t, item.Tooltip, "Key: Key('box')")

	assert.False(t, s.ToggleMode())
	item = s.Items("")[0]
	assert.Equal(t, "Container (key: Key('box'))", item.Label)
	assert.Equal(t, "w:10 h:20", item.Description)

	text := s.Items(item.ID)
	require.Len(t, text, 2)
	assert.Equal(t, "Key", text[0].Label)
	assert.Equal(t, `"hello"`, text[1].Description)
}

func TestSessionErrorPlaceholder(t *testing.T) {
	s := NewSession(DefaultOptions())
	s.mu.Lock()
	s.loaded, s.err = true, errors.New("boom")
	s.mu.Unlock()
	assert.Equal(t, "Error: boom", s.Items("")[0].Label)
}

func TestSyncerRevealsClosest(t *testing.T) {
	s := newScreenSession(t)
	s.CollapseAll()
	s.SetExpanded(s.Roots()[0].ID, false)

	var revealed []string
	syncer := NewSyncer(context.Background(), s, time.Millisecond, func(_ context.Context, n *Node) error {
		revealed = append(revealed, n.Name)
		return nil
	}, nil)

	assert.True(t, syncer.Sync("lib/home.dart", 8))
	assert.Equal(t, []string{"Row"}, revealed)
	assert.True(t, s.IsExpanded(s.Roots()[0].ID))
}

func TestSyncerDropsReentrantSync(t *testing.T) {
	s := newScreenSession(t)
	var calls atomic.Int32
	var syncer *Syncer
	syncer = NewSyncer(context.Background(), s, time.Millisecond, func(_ context.Context, n *Node) error {
		calls.Add(1)
		// a reveal moves the cursor, which must not start another sync
		assert.True(t, syncer.Syncing())
		assert.False(t, syncer.Sync(n.Path, n.Line))
		syncer.CursorMoved(n.Path, n.Line)
		return nil
	}, nil)

	assert.True(t, syncer.Sync("lib/home.dart", 3))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, syncer.Syncing())
}

func TestSyncerDropsLateEcho(t *testing.T) {
	s := newScreenSession(t)
	revealed := make(chan int, 4)
	syncer := NewSyncer(context.Background(), s, time.Millisecond, func(_ context.Context, n *Node) error {
		revealed <- n.Line
		return nil
	}, nil)
	defer syncer.Stop()
	syncer.EchoWindow = 150 * time.Millisecond

	require.True(t, syncer.Sync("lib/home.dart", 3))
	line := <-revealed
	require.False(t, syncer.Syncing())

	// эхо приходит уже после завершения синхронизации
	syncer.CursorMoved("lib/home.dart", line)
	select {
	case got := <-revealed:
		t.Fatalf("echo on line %d started a sync", got)
	case <-time.After(50 * time.Millisecond):
	}

	syncer.CursorMoved("lib/home.dart", 8)
	select {
	case got := <-revealed:
		assert.NotEqual(t, line, got)
	case <-time.After(2 * time.Second):
		t.Fatal("move to another line was dropped")
	}

	syncer.CursorMoved("lib/home.dart", 8)
	select {
	case <-revealed:
		t.Fatal("echo of the second reveal started a sync")
	case <-time.After(20 * time.Millisecond):
	}
	time.Sleep(200 * time.Millisecond)
	syncer.CursorMoved("lib/home.dart", 8)
	select {
	case <-revealed:
	case <-time.After(2 * time.Second):
		t.Fatal("move after the echo window was dropped")
	}
}

func TestSyncerSwallowsRevealError(t *testing.T) {
	s := newScreenSession(t)
	var logged atomic.Int32
	syncer := NewSyncer(context.Background(), s, time.Millisecond, func(context.Context, *Node) error {
		return errors.New("view hidden")
	}, func(string, ...any) { logged.Add(1) })

	assert.False(t, syncer.Sync("lib/home.dart", 3))
	assert.Equal(t, int32(1), logged.Load())
}

func TestSyncerDebounces(t *testing.T) {
	s := newScreenSession(t)
	done := make(chan string, 4)
	syncer := NewSyncer(context.Background(), s, 30*time.Millisecond, func(_ context.Context, n *Node) error {
		done <- n.Name
		return nil
	}, nil)
	defer syncer.Stop()

	syncer.CursorMoved("lib/home.dart", 3)
	syncer.CursorMoved("lib/home.dart", 5)
	syncer.CursorMoved("lib/home.dart", 8)

	select {
	case name := <-done:
		assert.Equal(t, "Row", name)
	case <-time.After(2 * time.Second):
		t.Fatal("sync did not fire")
	}
	select {
	case name := <-done:
		t.Fatalf("unexpected second sync for %s", name)
	case <-time.After(100 * time.Millisecond):
	}
}
