package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"widgetwrap/internal/locate"
	"widgetwrap/internal/source"
	"widgetwrap/internal/trace"
	"widgetwrap/internal/wrapper"
)

// Finder locates the widget expression at a position.
type Finder interface {
	Find(ctx context.Context, doc *source.Document, pos source.Position) (locate.Match, error)
}

// Result is a computed replacement for one expression.
type Result struct {
	Edit source.TextEdit
	// Name is the leading identifier of the replaced expression.
	Name string
	// Deleted is set when an unwrap found no child and removes the
	// expression entirely.
	Deleted bool
}

// WrapAt wraps the selection, or the expression at sel.Start when the
// selection is empty.
func WrapAt(ctx context.Context, doc *source.Document, sel source.Range, tmpl *wrapper.Template, finder Finder) (Result, error) {
	if tmpl == nil {
		return Result{}, fmt.Errorf("%w: no wrapper selected", ErrInvalidInput)
	}
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeCommand, "wrap", trace.ParentID(ctx))
	defer span.End(tmpl.ID)

	target := source.Span{Range: sel, Text: doc.Slice(sel)}
	if sel.IsEmpty() {
		m, err := finder.Find(ctx, doc, sel.Start)
		if err != nil {
			return Result{}, notFound(err)
		}
		target = m.Span
	}
	if strings.TrimSpace(target.Text) == "" {
		return Result{}, fmt.Errorf("%w: empty selection", ErrInvalidInput)
	}
	wrapped, err := Wrap(target.Text, tmpl)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Edit: source.TextEdit{Range: target.Range, NewText: wrapped},
		Name: ExpressionName(target.Text),
	}, nil
}

// UnwrapAt replaces the expression at pos with its child, or deletes it
// when it has none.
func UnwrapAt(ctx context.Context, doc *source.Document, pos source.Position, finder Finder) (Result, error) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeCommand, "unwrap", trace.ParentID(ctx))
	defer span.End("")

	m, err := finder.Find(ctx, doc, pos)
	if err != nil {
		return Result{}, notFound(err)
	}
	name := ExpressionName(m.Text)
	child, ok := Unwrap(m.Text, name)
	span.WithExtra("name", name)
	if !ok {
		span.WithExtra("deleted", "true")
		return Result{Edit: source.TextEdit{Range: m.Range}, Name: name, Deleted: true}, nil
	}
	return Result{Edit: source.TextEdit{Range: m.Range, NewText: child}, Name: name}, nil
}

func notFound(err error) error {
	if errors.Is(err, locate.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
