package locate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widgetwrap/internal/source"
)

func dartDoc(text string) *source.Document {
	return source.NewDocument("lib/main.dart", source.LanguageDart, text)
}

func newLocator(t *testing.T) *Locator {
	t.Helper()
	l, err := New(source.LanguageDart)
	require.NoError(t, err)
	return l
}

func TestLocateDirectOnName(t *testing.T) {
	doc := dartDoc("  Center(child: Text('Hi'))")
	l := newLocator(t)

	m, err := l.Find(t.Context(), doc, source.Position{Column: 17})
	require.NoError(t, err)
	assert.Equal(t, "Text('Hi')", m.Text)
	assert.Equal(t, StrategyDirect, m.Strategy)
	assert.True(t, m.Confident)
	assert.Equal(t, source.Range{
		Start: source.Position{Column: 16},
		End:   source.Position{Column: 26},
	}, m.Range)
}

func TestLocateInsideStringFallsBackToLineScan(t *testing.T) {
	doc := dartDoc("  Center(child: Text('Hi'))")
	l := newLocator(t)

	m, err := l.Find(t.Context(), doc, source.Position{Column: 22})
	require.NoError(t, err)
	assert.Equal(t, "Text('Hi')", m.Text)
	assert.Equal(t, StrategyLine, m.Strategy)
}

func TestLocateMultiline(t *testing.T) {
	text := strings.Join([]string{
		"return Container(",
		"  padding: EdgeInsets.all(4),",
		"  child: Text(')'),",
		");",
	}, "\n")
	l := newLocator(t)

	span, err := l.Locate(dartDoc(text), source.Position{Column: 9})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(span.Text, "Container("))
	assert.True(t, strings.HasSuffix(span.Text, "\n)"))
	assert.Equal(t, source.Position{Line: 3, Column: 1}, span.Range.End)
}

func TestLocateRejectsKeywordsAndProperties(t *testing.T) {
	l := newLocator(t)
	for _, text := range []string{"  child: foo(),", "  return bar();"} {
		_, err := l.Locate(dartDoc(text), source.Position{Column: 4})
		assert.ErrorIs(t, err, ErrNotFound, text)
	}
}

func TestLocateUnbalanced(t *testing.T) {
	_, err := newLocator(t).Locate(dartDoc("Container(child: Text('x')"), source.Position{Column: 2})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocateLanguageMismatchDoesNotScan(t *testing.T) {
	l := newLocator(t)
	doc := source.NewDocument("notes.txt", "plaintext", "Container(child: Text('x'))")

	_, err := l.Locate(doc, source.Position{Column: 2})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, l.Scans())

	_, err = l.Locate(dartDoc(doc.Text), source.Position{Column: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 1, l.Scans())
}

func TestLocateUnknownWidgetStillAccepted(t *testing.T) {
	m, err := newLocator(t).Find(t.Context(), dartDoc("MyTile(42)"), source.Position{Column: 1})
	require.NoError(t, err)
	assert.Equal(t, "MyTile(42)", m.Text)
	assert.False(t, m.Confident)
}

func TestLocateRightmostLineMatch(t *testing.T) {
	doc := dartDoc("Row(children: [Text('a'), Card(child: x)])")
	m, err := newLocator(t).Find(t.Context(), doc, source.Position{Column: 38})
	require.NoError(t, err)
	assert.Equal(t, "Card(child: x)", m.Text)
}

func TestLocateLineScanAfterMultibyteText(t *testing.T) {
	doc := dartDoc("Row(children: [Text('é'), Card(child: x)])")
	// column inside "child" of Card; "é" is two bytes
	m, err := newLocator(t).Find(t.Context(), doc, source.Position{Column: 39})
	require.NoError(t, err)
	assert.Equal(t, "Card(child: x)", m.Text)
	assert.Equal(t, StrategyLine, m.Strategy)
}

func TestByteOffset(t *testing.T) {
	assert.Equal(t, 0, byteOffset("abc", 0))
	assert.Equal(t, 3, byteOffset("aéb", 2))
	assert.Equal(t, 2, byteOffset("a\xffb", 2))
	assert.Equal(t, 3, byteOffset("abc", 10))
}
