package outline

import (
	"strings"
	"unicode/utf8"

	"widgetwrap/internal/scan"
)

const (
	maxTextAttr  = 20
	maxValueAttr = 40
)

// namedAttrs lists the named arguments recorded per widget.
var namedAttrs = map[string][]string{
	"Container": {"width", "height", "color"},
	"SizedBox":  {"width", "height"},
	"Padding":   {"padding"},
	"Expanded":  {"flex"},
	"Flexible":  {"flex"},
}

// extractAttrs reads a few display attributes from the argument list that
// opens at paren. An unmatched call falls back to the first ")".
func extractAttrs(text, name string, paren int) map[string]string {
	if paren < 0 || paren >= len(text) {
		return nil
	}
	end, ok := scan.MatchClose(text, paren, scan.Parens)
	if !ok {
		end = strings.IndexByte(text[paren:], ')')
		if end < 0 {
			return nil
		}
		end += paren
	}
	args := text[paren+1 : end]

	attrs := make(map[string]string)
	wanted := namedAttrs[name]
	positional := 0
	for _, arg := range scan.SplitTopLevel(args) {
		arg = strings.TrimSpace(arg)
		label, value, named := splitNamed(arg)
		if !named {
			if positional == 0 && name == "Icon" {
				attrs["icon"] = shorten(arg, maxValueAttr)
			}
			positional++
			continue
		}
		if label == "key" {
			attrs["key"] = shorten(value, maxValueAttr)
			continue
		}
		for _, w := range wanted {
			if w == label {
				attrs[label] = shorten(value, maxValueAttr)
			}
		}
	}
	if name == "Text" {
		if lit, ok := firstStringLiteral(args); ok {
			attrs["text"] = shorten(lit, maxTextAttr)
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// splitNamed splits "label: value". Map literals and ternaries are not
// named arguments because their label is not a bare identifier.
func splitNamed(arg string) (label, value string, ok bool) {
	colon := strings.IndexByte(arg, ':')
	if colon <= 0 {
		return "", "", false
	}
	label = strings.TrimSpace(arg[:colon])
	for i := 0; i < len(label); i++ {
		c := label[i]
		if !(c == '_' || c >= '0' && c <= '9' && i > 0 || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return "", "", false
		}
	}
	return label, strings.TrimSpace(arg[colon+1:]), label != ""
}

func firstStringLiteral(args string) (string, bool) {
	for i := 0; i < len(args); i++ {
		c := args[i]
		if c != '\'' && c != '"' {
			if j := scan.SkipOpaque(args, i); j > i {
				i = j - 1
			}
			continue
		}
		j := scan.SkipOpaque(args, i)
		lit := strings.Trim(args[i:j], string(c))
		return lit, true
	}
	return "", false
}

// shorten collapses whitespace and truncates to limit runes with "...".
func shorten(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}
