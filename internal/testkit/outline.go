// Package testkit holds invariant checks shared by tests and fuzz harnesses.
package testkit

import (
	"fmt"
	"strings"

	"widgetwrap/internal/outline"
	"widgetwrap/internal/source"
)

// CheckOutline verifies the structural invariants of a built outline:
//  1. every node id is derived from its path and offset
//  2. the node name is the text at its offset, and line/column match it
//  3. roots have depth 1 and no parent; children link back to their parent
//     with depth+1 and a larger offset
//  4. pre-order offsets strictly increase
func CheckOutline(doc *source.Document, roots []*outline.Node) error {
	if doc == nil {
		return fmt.Errorf("nil document")
	}
	last := -1
	var check func(nodes []*outline.Node, parent *outline.Node) error
	check = func(nodes []*outline.Node, parent *outline.Node) error {
		for _, n := range nodes {
			if n == nil {
				return fmt.Errorf("nil node under %v", parent)
			}
			if want := outline.NodeID(doc.Path, n.Offset); n.ID != want {
				return fmt.Errorf("node id %q, want %q", n.ID, want)
			}
			if n.Offset < 0 || n.Offset+len(n.Name) > len(doc.Text) {
				return fmt.Errorf("node %s offset %d out of range", n.ID, n.Offset)
			}
			if !strings.HasPrefix(doc.Text[n.Offset:], n.Name) {
				return fmt.Errorf("node %s: text at offset is not %q", n.ID, n.Name)
			}
			if pos := doc.PositionAt(n.Offset); pos.Line != n.Line || pos.Column != n.Column {
				return fmt.Errorf("node %s at %d:%d, offset says %s", n.ID, n.Line, n.Column, pos)
			}
			if n.Offset <= last {
				return fmt.Errorf("node %s offset %d not after %d", n.ID, n.Offset, last)
			}
			last = n.Offset

			if parent == nil {
				if n.Depth != 1 || n.ParentID != "" {
					return fmt.Errorf("root %s has depth %d parent %q", n.ID, n.Depth, n.ParentID)
				}
			} else {
				if n.ParentID != parent.ID {
					return fmt.Errorf("node %s parent %q, want %q", n.ID, n.ParentID, parent.ID)
				}
				if n.Depth != parent.Depth+1 {
					return fmt.Errorf("node %s depth %d under depth %d", n.ID, n.Depth, parent.Depth)
				}
			}
			if err := check(n.Children, n); err != nil {
				return err
			}
		}
		return nil
	}
	return check(roots, nil)
}
