package wrapper

import (
	"fmt"
	"strings"
	"text/template"
)

// ChildKind tells how a wrapper receives its child.
type ChildKind uint8

const (
	SingleChild ChildKind = iota // child: argument
	MultiChild                   // children: [...] argument
)

func (k ChildKind) String() string {
	if k == MultiChild {
		return "multi"
	}
	return "single"
}

// ParseChildKind accepts "single", "multi" and the empty string.
func ParseChildKind(s string) (ChildKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return SingleChild, nil
	case "multi":
		return MultiChild, nil
	default:
		return SingleChild, fmt.Errorf("unknown child kind %q (expected single|multi)", s)
	}
}

// Template is one immutable catalog entry.
type Template struct {
	ID       string
	Title    string
	Category string
	Kind     ChildKind
	Body     string

	lines []string
}

type renderData struct {
	Child string
}

func newTemplate(id, title, category string, kind ChildKind, body string) (*Template, error) {
	body = strings.TrimRight(body, "\n")
	t := &Template{ID: id, Title: title, Category: category, Kind: kind, Body: body}
	t.lines = strings.Split(body, "\n")
	if !strings.Contains(body, "{{.Child}}") {
		return nil, fmt.Errorf("wrapper %s: body has no {{.Child}} placeholder", id)
	}
	if _, err := t.Render("Placeholder()", ""); err != nil {
		return nil, err
	}
	return t, nil
}

// DisplayName is the label shown in pickers and code actions.
func (t *Template) DisplayName() string {
	return "Wrap with " + t.Title
}

// Render substitutes child into the body. Every body line after the first
// is prefixed with indent; the child's own lines are inserted verbatim.
func (t *Template) Render(child, indent string) (string, error) {
	tmpl, err := t.compile(indent)
	if err != nil {
		return "", fmt.Errorf("wrapper %s: %w", t.ID, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, renderData{Child: child}); err != nil {
		return "", fmt.Errorf("wrapper %s: %w", t.ID, err)
	}
	return sb.String(), nil
}

func (t *Template) compile(indent string) (*template.Template, error) {
	var sb strings.Builder
	for i, line := range t.lines {
		if i > 0 {
			sb.WriteByte('\n')
			sb.WriteString(indent)
		}
		sb.WriteString(line)
	}
	return template.New(t.ID).Option("missingkey=error").Parse(sb.String())
}
