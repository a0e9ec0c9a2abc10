package lsp

import (
	"testing"

	"widgetwrap/internal/source"
)

func TestPositionRoundTripUTF16(t *testing.T) {
	text := "Text('😀 é', key: k)\nRow()"
	doc := source.NewDocument("a.dart", source.LanguageDart, text)

	// after the emoji: 6 bytes "Text('" + 4 bytes emoji
	p := toSource(doc, position{Line: 0, Character: 8})
	if p.Column != 10 {
		t.Fatalf("expected byte column 10, got %d", p.Column)
	}
	back := fromSource(doc, p)
	if back.Character != 8 {
		t.Fatalf("expected utf16 column 8, got %d", back.Character)
	}

	// inside the surrogate pair rounds down
	if p := toSource(doc, position{Line: 0, Character: 7}); p.Column != 6 {
		t.Fatalf("expected byte column 6, got %d", p.Column)
	}
	if p := toSource(doc, position{Line: 1, Character: 99}); p.Column != 5 {
		t.Fatalf("expected clamped column 5, got %d", p.Column)
	}
	if p := toSource(doc, position{Line: 7, Character: 0}); p.Line != 1 || p.Column != 5 {
		t.Fatalf("expected end of document, got %v", p)
	}
}

func TestApplyChangesIncremental(t *testing.T) {
	text := "Center(\n  child: Text('a'),\n)"
	text = applyChanges(text, []textDocumentContentChangeEvent{
		{Range: &lspRange{Start: position{Line: 1, Character: 15}, End: position{Line: 1, Character: 16}}, Text: "b"},
		{Range: &lspRange{Start: position{Line: 0, Character: 0}, End: position{Line: 0, Character: 6}}, Text: "Align"},
	})
	if text != "Align(\n  child: Text('b'),\n)" {
		t.Fatalf("unexpected text %q", text)
	}
	text = applyChanges(text, []textDocumentContentChangeEvent{{Text: "full"}})
	if text != "full" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestClampIndex(t *testing.T) {
	if clampIndex(-3) != 0 {
		t.Fatalf("negative index not clamped")
	}
	if clampIndex(12) != 12 {
		t.Fatalf("valid index changed")
	}
}
