// Package ui renders a widget outline in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"widgetwrap/internal/outline"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	descStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	messageStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("3"))
)

type row struct {
	node  *outline.Node
	level int
}

// Browser is a Bubble Tea model over an outline session. Expansion and
// display mode live in the session, so the terminal view behaves like the
// editor's tree view.
type Browser struct {
	session *outline.Session
	title   string
	keys    keyMap
	help    help.Model

	// copy writes text to the system clipboard.
	copy   func(string) error
	status string

	rows   []row
	cursor int
	offset int
	width  int
	height int
}

func NewBrowser(title string, session *outline.Session) *Browser {
	b := &Browser{
		session: session,
		title:   title,
		keys:    defaultKeys,
		help:    help.New(),
		copy:    clipboard.WriteAll,
		width:   80,
		height:  24,
	}
	b.refresh()
	return b
}

func (b *Browser) Init() tea.Cmd { return nil }

func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			b.width = msg.Width
			b.help.Width = msg.Width
		}
		if msg.Height > 0 {
			b.height = msg.Height
		}
		b.scroll()
		return b, nil
	case tea.KeyMsg:
		return b.handleKey(msg)
	}
	return b, nil
}

func (b *Browser) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	b.status = ""
	switch {
	case key.Matches(msg, b.keys.Quit):
		return b, tea.Quit
	case key.Matches(msg, b.keys.Up):
		if b.cursor > 0 {
			b.cursor--
		}
	case key.Matches(msg, b.keys.Down):
		if b.cursor < len(b.rows)-1 {
			b.cursor++
		}
	case key.Matches(msg, b.keys.Toggle):
		if n := b.selected(); n != nil && len(n.Children) > 0 {
			b.session.SetExpanded(n.ID, !b.session.IsExpanded(n.ID))
		}
	case key.Matches(msg, b.keys.Expand):
		if n := b.selected(); n != nil && len(n.Children) > 0 {
			b.session.SetExpanded(n.ID, true)
		}
	case key.Matches(msg, b.keys.Collapse):
		b.collapseOrParent()
	case key.Matches(msg, b.keys.ExpandAll):
		b.session.ExpandAll()
	case key.Matches(msg, b.keys.CollapseAll):
		b.session.CollapseAll()
	case key.Matches(msg, b.keys.Mode):
		b.session.ToggleMode()
	case key.Matches(msg, b.keys.Copy):
		b.copyLocation()
	case key.Matches(msg, b.keys.Help):
		b.help.ShowAll = !b.help.ShowAll
	default:
		return b, nil
	}
	b.refresh()
	return b, nil
}

// copyLocation puts path:line of the selected node on the clipboard.
func (b *Browser) copyLocation() {
	n := b.selected()
	if n == nil {
		return
	}
	loc := fmt.Sprintf("%s:%d", n.Path, n.Line+1)
	if err := b.copy(loc); err != nil {
		b.status = "clipboard unavailable: " + err.Error()
		return
	}
	b.status = "copied " + loc
}

// collapseOrParent collapses the selected node, or moves to its parent when
// it is already collapsed.
func (b *Browser) collapseOrParent() {
	n := b.selected()
	if n == nil {
		return
	}
	if len(n.Children) > 0 && b.session.IsExpanded(n.ID) {
		b.session.SetExpanded(n.ID, false)
		return
	}
	if p := b.session.Parent(n.ID); p != nil {
		b.selectID(p.ID)
	}
}

func (b *Browser) selected() *outline.Node {
	if b.cursor < 0 || b.cursor >= len(b.rows) {
		return nil
	}
	return b.rows[b.cursor].node
}

func (b *Browser) selectID(id string) {
	for i, r := range b.rows {
		if r.node.ID == id {
			b.cursor = i
			return
		}
	}
}

// refresh recomputes the visible rows keeping the selected node.
func (b *Browser) refresh() {
	var keep string
	if n := b.selected(); n != nil {
		keep = n.ID
	}
	b.rows = b.rows[:0]
	var walk func(nodes []*outline.Node, level int)
	walk = func(nodes []*outline.Node, level int) {
		for _, n := range nodes {
			b.rows = append(b.rows, row{node: n, level: level})
			if len(n.Children) > 0 && b.session.IsExpanded(n.ID) {
				walk(n.Children, level+1)
			}
		}
	}
	walk(b.session.Roots(), 0)
	if keep != "" {
		b.selectID(keep)
	}
	b.cursor = max(0, min(b.cursor, len(b.rows)-1))
	b.scroll()
}

func (b *Browser) visibleRows() int {
	// title, blank line, blank line, help
	return max(1, b.height-4)
}

func (b *Browser) scroll() {
	n := b.visibleRows()
	if b.cursor < b.offset {
		b.offset = b.cursor
	}
	if b.cursor >= b.offset+n {
		b.offset = b.cursor - n + 1
	}
	b.offset = max(0, b.offset)
}

func (b *Browser) View() string {
	var sb strings.Builder
	mode := "compact"
	if !b.session.Compact() {
		mode = "detailed"
	}
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s (%s)", b.title, mode)))
	sb.WriteString("\n\n")

	if msg, ok := b.session.Placeholder(); ok {
		sb.WriteString(messageStyle.Render(msg.Label))
		sb.WriteString("\n")
	} else {
		end := min(len(b.rows), b.offset+b.visibleRows())
		for i := b.offset; i < end; i++ {
			sb.WriteString(b.renderRow(i))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
	if b.status != "" {
		sb.WriteString(messageStyle.Render(b.status))
		sb.WriteString("\n")
	}
	sb.WriteString(b.help.View(b.keys))
	return sb.String()
}

func (b *Browser) renderRow(i int) string {
	r := b.rows[i]
	item := b.session.Item(r.node)
	marker := "  "
	switch item.State {
	case outline.StateExpanded:
		marker = "▾ "
	case outline.StateCollapsed:
		marker = "▸ "
	}
	prefix := strings.Repeat("  ", r.level) + marker
	label := prefix + item.Label
	desc := item.Description

	width := b.width - 2
	if i == b.cursor {
		line := truncate(label+"  "+desc, width)
		return selectedStyle.Render(line)
	}
	label = truncate(label, width)
	room := width - runewidth.StringWidth(label) - 2
	if desc == "" || room < 4 {
		return label
	}
	return label + "  " + descStyle.Render(truncate(desc, room))
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
