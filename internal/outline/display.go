package outline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/muesli/reflow/wordwrap"
)

// CollapsibleState is how a tree view shows a node.
type CollapsibleState uint8

const (
	StateNone CollapsibleState = iota
	StateCollapsed
	StateExpanded
)

func (s CollapsibleState) String() string {
	switch s {
	case StateCollapsed:
		return "collapsed"
	case StateExpanded:
		return "expanded"
	default:
		return "none"
	}
}

func (s CollapsibleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Messages shown instead of a tree.
const (
	MsgNoDocument = "Open a Flutter file to view its widget tree"
	MsgNoWidgets  = "No widgets detected in this file"
)

// Item is the rendered form of a node, or a placeholder message.
type Item struct {
	ID          string           `json:"id,omitempty"`
	Label       string           `json:"label"`
	Description string           `json:"description,omitempty"`
	Tooltip     string           `json:"tooltip,omitempty"`
	Icon        string           `json:"icon"`
	State       CollapsibleState `json:"collapsibleState"`
	Line        int              `json:"line"`
	Column      int              `json:"column"`
	Name        string           `json:"name,omitempty"`
	Message     bool             `json:"message,omitempty"`
}

// MessageItem is a leaf that only carries text.
func MessageItem(text string) Item {
	return Item{Label: text, Icon: "info", Message: true}
}

var icons = map[string]string{
	"Container":       "symbol-namespace",
	"Row":             "symbol-array",
	"Column":          "symbol-array",
	"Stack":           "layers",
	"Text":            "symbol-string",
	"Padding":         "layout",
	"SizedBox":        "symbol-ruler",
	"Expanded":        "expand-all",
	"Flexible":        "symbol-value",
	"Center":          "symbol-enum",
	"ListView":        "list-ordered",
	"GridView":        "layout-grid",
	"Card":            "notebook",
	"InkWell":         "symbol-event",
	"GestureDetector": "symbol-event",
}

// Icon returns the theme icon id for a widget name.
func Icon(name string) string {
	if icon, ok := icons[name]; ok {
		return icon
	}
	return "symbol-class"
}

// Props summarises a node's attributes on one line.
func Props(n *Node) string {
	a := n.Attrs
	if len(a) == 0 {
		return ""
	}
	var parts []string
	add := func(prefix, key string) {
		if v, ok := a[key]; ok {
			parts = append(parts, prefix+v)
		}
	}
	switch n.Name {
	case "Container":
		add("w:", "width")
		add("h:", "height")
		add("color:", "color")
	case "SizedBox":
		add("w:", "width")
		add("h:", "height")
	case "Text":
		if v, ok := a["text"]; ok {
			parts = append(parts, `"`+v+`"`)
		}
	case "Padding":
		add("", "padding")
	case "Expanded", "Flexible":
		add("flex:", "flex")
	case "Icon":
		add("", "icon")
	}
	return strings.Join(parts, " ")
}

func render(n *Node, compact bool, state CollapsibleState) Item {
	props := Props(n)
	key := n.Attrs["key"]
	item := Item{
		ID:          n.ID,
		Label:       n.Name,
		Description: fmt.Sprintf("Line %d", n.Line+1),
		Icon:        Icon(n.Name),
		State:       state,
		Line:        n.Line,
		Column:      n.Column,
		Name:        n.Name,
		Tooltip:     tooltip(n, props, key),
	}
	if compact {
		if props != "" {
			item.Description += " - " + shorten(props, maxTextAttr)
		}
		return item
	}
	if key != "" {
		item.Label = fmt.Sprintf("%s (key: %s)", n.Name, key)
	}
	if props != "" {
		item.Description = props
	}
	return item
}

func tooltip(n *Node, props, key string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s:%d)", n.Name, filepath.Base(n.Path), n.Line+1)
	if props != "" {
		sb.WriteString("\n\nProperties:\n")
		sb.WriteString(wordwrap.String(props, 60))
	}
	if key != "" {
		sb.WriteString("\nKey: ")
		sb.WriteString(key)
	}
	return sb.String()
}
