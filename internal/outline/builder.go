// Package outline reconstructs the widget tree of a document with a regex
// pass and a nesting stack, and keeps per-session view state for it.
package outline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"widgetwrap/internal/scan"
	"widgetwrap/internal/source"
	"widgetwrap/internal/trace"
)

// ErrParse reports an internal failure while scanning. The tree is empty.
var ErrParse = errors.New("outline scan failed")

const (
	DefaultThreshold = 100_000
	DefaultChunkSize = 50_000
)

var widgetPattern = regexp.MustCompile(`(\s*)(?:(?:return|=>|child:|children:)\s*)?([A-Z][a-zA-Z0-9_]*)(\s*\()`)

var markers = []string{"children:", "child:", "return", "=>"}

// knownWidgets are reported as Known on nodes; any capitalised call passes.
var knownWidgets = map[string]struct{}{
	"Container": {}, "Row": {}, "Column": {}, "Stack": {}, "Expanded": {}, "Flexible": {},
	"Text": {}, "Padding": {}, "Center": {}, "SizedBox": {}, "Card": {}, "Align": {},
	"AspectRatio": {}, "Icon": {}, "Image": {}, "Material": {}, "Scaffold": {}, "AppBar": {},
	"TabBar": {}, "Drawer": {}, "FloatingActionButton": {}, "InkWell": {}, "GestureDetector": {},
	"ListView": {}, "GridView": {}, "Builder": {}, "FutureBuilder": {}, "StreamBuilder": {},
	"Scrollbar": {}, "TextFormField": {}, "Form": {}, "Navigator": {},
}

// Builder turns document text into an outline.
type Builder struct {
	// Threshold is the text size above which scanning is chunked.
	Threshold int
	ChunkSize int
	// Workers bounds concurrent chunk scans; zero means GOMAXPROCS.
	Workers int
}

// Build is Builder{}.Build without cancellation.
func Build(text, path string) ([]*Node, error) {
	return (&Builder{}).Build(context.Background(), text, path)
}

type hit struct {
	name  int // offset of the identifier
	paren int // offset of "("
	ident string
}

// Build scans text and returns the root nodes.
func (b *Builder) Build(ctx context.Context, text, path string) (roots []*Node, err error) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeScan, "outline", trace.ParentID(ctx))
	defer func() {
		if r := recover(); r != nil {
			roots, err = nil, fmt.Errorf("%w: %v", ErrParse, r)
		}
		span.WithExtra("roots", fmt.Sprint(len(roots))).End(path)
	}()

	if text == "" {
		return nil, nil
	}
	var hits []hit
	if len(text) > b.threshold() {
		span.WithExtra("chunked", "true")
		hits, err = b.collectChunked(ctx, text)
		if err != nil {
			return nil, err
		}
	} else {
		hits = collect(text, 0, len(text), 0)
	}
	return assemble(text, path, hits), nil
}

func (b *Builder) threshold() int {
	if b.Threshold > 0 {
		return b.Threshold
	}
	return DefaultThreshold
}

func (b *Builder) chunkSize() int {
	if b.ChunkSize > 0 {
		return b.ChunkSize
	}
	return DefaultChunkSize
}

func (b *Builder) workers() int {
	if b.Workers > 0 {
		return b.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// collect returns hits whose identifier starts in [from, to). The regex
// runs over text[from:limit] so calls near the end of the range still see
// their opening parenthesis.
func collect(text string, from, to, limit int) []hit {
	if limit < to {
		limit = len(text)
	}
	var out []hit
	for _, m := range widgetPattern.FindAllStringSubmatchIndex(text[from:limit], -1) {
		name := from + m[4]
		if name >= to {
			break
		}
		out = append(out, hit{
			name:  name,
			paren: from + m[1] - 1,
			ident: text[name : from+m[5]],
		})
	}
	return out
}

// assemble filters hits and nests them. Hits must be sorted by offset.
func assemble(text, path string, hits []hit) []*Node {
	doc := source.NewDocument(path, "", text)
	walker := scan.NewWalker(text)
	var roots []*Node
	var stack []*Node

	for _, h := range hits {
		depth, opaque := walker.Advance(h.name)
		if opaque {
			continue
		}
		if h.name > 0 && (source.IsIdentByte(text[h.name-1]) || text[h.name-1] == '.') {
			continue
		}
		for len(stack) > 0 && stack[len(stack)-1].nest >= depth {
			stack = stack[:len(stack)-1]
		}
		pos := doc.PositionAt(h.name)
		_, known := knownWidgets[h.ident]
		n := &Node{
			ID:     NodeID(path, h.name),
			Name:   h.ident,
			Path:   path,
			Offset: h.name,
			Line:   pos.Line,
			Column: pos.Column,
			Indent: indentWidth(doc.Line(pos.Line)),
			Depth:  len(stack) + 1,
			Marker: markerBefore(text, h.name),
			Known:  known,
			Attrs:  extractAttrs(text, h.ident, h.paren),
			nest:   depth,
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			n.ParentID = parent.ID
			parent.Children = append(parent.Children, n)
		} else {
			roots = append(roots, n)
		}
		stack = append(stack, n)
	}
	return roots
}

func markerBefore(text string, off int) string {
	head := strings.TrimRight(text[:off], " \t\r\n")
	for _, m := range markers {
		if strings.HasSuffix(head, m) {
			return m
		}
	}
	return ""
}

func indentWidth(line string) int {
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	return n
}
