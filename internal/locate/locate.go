// Package locate finds the widget expression under a cursor without parsing
// the file. Detection is heuristic: a direct look at the token under the
// cursor, then a scan of the line for known widget names.
package locate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudflare/ahocorasick"
	"github.com/dlclark/regexp2"

	"widgetwrap/internal/scan"
	"widgetwrap/internal/source"
	"widgetwrap/internal/trace"
)

// ErrNotFound means no widget expression could be resolved at the position.
var ErrNotFound = errors.New("no widget found at position")

// Strategy names the detection path that produced a match.
type Strategy string

const (
	StrategyDirect Strategy = "direct"
	StrategyLine   Strategy = "line"
)

// Match is a located expression plus how it was found.
type Match struct {
	source.Span
	Name     string
	Strategy Strategy
	// Confident is set when the text carries attribute markers or the name
	// is a known widget. It is advisory.
	Confident bool
}

// Locator resolves expressions for one target language.
type Locator struct {
	Language string

	line    *regexp2.Regexp
	markers *ahocorasick.Matcher
	scans   atomic.Int64
}

var propertyAssign = regexp.MustCompile(`^[a-z][a-zA-Z0-9_]*\s*:`)

// New builds a locator. An empty names list uses DefaultLineNames.
func New(language string, names ...string) (*Locator, error) {
	if len(names) == 0 {
		names = DefaultLineNames
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp2.Escape(n)
	}
	re, err := regexp2.Compile(`\b(`+strings.Join(quoted, "|")+`)(?=\s*\()`, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile line pattern: %w", err)
	}
	re.MatchTimeout = 250 * time.Millisecond
	return &Locator{
		Language: language,
		line:     re,
		markers:  ahocorasick.NewStringMatcher(attributeMarkers),
	}, nil
}

// Scans reports how many documents the locator has examined. Requests
// rejected before scanning are not counted.
func (l *Locator) Scans() int64 {
	return l.scans.Load()
}

// Locate returns the span of the widget expression at pos.
func (l *Locator) Locate(doc *source.Document, pos source.Position) (source.Span, error) {
	m, err := l.Find(context.Background(), doc, pos)
	if err != nil {
		return source.Span{}, err
	}
	return m.Span, nil
}

// Find is Locate with strategy details and tracing.
func (l *Locator) Find(ctx context.Context, doc *source.Document, pos source.Position) (Match, error) {
	if doc == nil || doc.LanguageID != l.Language {
		return Match{}, ErrNotFound
	}
	l.scans.Add(1)
	tr := trace.FromContext(ctx)
	span := trace.Begin(tr, trace.ScopeScan, "locate", trace.ParentID(ctx))

	if m, ok := l.direct(doc, pos); ok {
		span.WithExtra("strategy", string(m.Strategy)).End(m.Name)
		return m, nil
	}
	m, err := l.lineScan(doc, pos)
	if err != nil {
		span.End("not found")
		return Match{}, err
	}
	span.WithExtra("strategy", string(m.Strategy)).End(m.Name)
	return m, nil
}

// direct resolves the identifier under the cursor.
func (l *Locator) direct(doc *source.Document, pos source.Position) (Match, bool) {
	wr, ok := doc.WordRangeAt(pos)
	if !ok {
		return Match{}, false
	}
	word := doc.Slice(wr)
	if isDenied(word) || !looksLikeWidget(word) {
		return Match{}, false
	}
	m, ok := l.resolve(doc, wr.Start, word)
	if !ok {
		return Match{}, false
	}
	m.Strategy = StrategyDirect
	return m, true
}

// lineScan takes the rightmost known widget name before the cursor.
func (l *Locator) lineScan(doc *source.Document, pos source.Position) (Match, error) {
	lineText := doc.Line(pos.Line)
	before := lineText[:max(0, min(pos.Column, len(lineText)))]

	var last *regexp2.Match
	m, err := l.line.FindStringMatch(before)
	for err == nil && m != nil {
		last = m
		m, err = l.line.FindNextMatch(m)
	}
	if err != nil {
		return Match{}, fmt.Errorf("line scan: %w", err)
	}
	if last == nil {
		return Match{}, ErrNotFound
	}
	// regexp2 reports rune indexes
	col := byteOffset(before, last.Index)
	name := last.GroupByNumber(1).String()
	res, ok := l.resolve(doc, source.Position{Line: pos.Line, Column: col}, name)
	if !ok {
		return Match{}, ErrNotFound
	}
	res.Strategy = StrategyLine
	return res, nil
}

// byteOffset converts a rune index into s to a byte offset. Invalid bytes
// count as one rune each, as in a []rune conversion.
func byteOffset(s string, runes int) int {
	for i := range s {
		if runes == 0 {
			return i
		}
		runes--
	}
	return len(s)
}

// resolve expands an identifier at start into a full call expression.
func (l *Locator) resolve(doc *source.Document, start source.Position, name string) (Match, bool) {
	lineText := doc.Line(start.Line)
	after := start.Column + len(name)
	if after > len(lineText) {
		return Match{}, false
	}
	open := strings.IndexByte(lineText[after:], '(')
	if open < 0 {
		// bare argument-like token; validation rejects it
		rest := lineText[start.Column:]
		if cut := strings.IndexAny(rest[len(name):], ",)"); cut >= 0 {
			rest = rest[:len(name)+cut]
		}
		return l.validate(source.Span{
			Range: source.Range{Start: start, End: source.Position{Line: start.Line, Column: start.Column + len(rest)}},
			Text:  rest,
		}, name)
	}
	openPos := source.Position{Line: start.Line, Column: after + open}
	closePos, err := scan.FindMatchingClose(doc, openPos, scan.Parens)
	if err != nil {
		return Match{}, false
	}
	r := source.Range{Start: start, End: source.Position{Line: closePos.Line, Column: closePos.Column + 1}}
	return l.validate(source.Span{Range: r, Text: doc.Slice(r)}, name)
}

func (l *Locator) validate(sp source.Span, name string) (Match, bool) {
	text := sp.Text
	if text == "" || text[0] < 'A' || text[0] > 'Z' {
		return Match{}, false
	}
	if !strings.Contains(text, "(") || !strings.Contains(text, ")") {
		return Match{}, false
	}
	if propertyAssign.MatchString(strings.TrimSpace(text)) {
		return Match{}, false
	}
	_, known := KnownWidgets[name]
	confident := known || len(l.markers.Match([]byte(text))) > 0
	return Match{Span: sp, Name: name, Confident: confident}, true
}
