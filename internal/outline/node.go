package outline

import "strconv"

// Node is one widget expression found in a document.
type Node struct {
	ID     string
	Name   string
	Path   string
	Offset int // byte offset of Name
	Line   int // zero-based
	Column int
	// Indent is the leading whitespace width of the node's line.
	Indent int
	// Depth is 1 for roots.
	Depth  int
	Marker string // "return", "=>", "child:", "children:" or ""
	Known  bool
	Attrs  map[string]string

	ParentID string
	Children []*Node

	nest int
}

// NodeID derives the identity of a node from its file and offset.
func NodeID(path string, offset int) string {
	return path + "#" + strconv.Itoa(offset)
}

// Walk visits nodes depth-first in source order until fn returns false.
func Walk(nodes []*Node, fn func(*Node) bool) bool {
	for _, n := range nodes {
		if !fn(n) || !Walk(n.Children, fn) {
			return false
		}
	}
	return true
}

// Flatten lists nodes depth-first in source order.
func Flatten(nodes []*Node) []*Node {
	var out []*Node
	Walk(nodes, func(n *Node) bool {
		out = append(out, n)
		return true
	})
	return out
}
