package outline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestBuildSingleLineNesting(t *testing.T) {
	roots, err := Build("Container(child: Text('hi'))", "lib/a.dart")
	require.NoError(t, err)
	require.Len(t, roots, 1)

	root := roots[0]
	assert.Equal(t, "Container", root.Name)
	assert.Equal(t, 0, root.Indent)
	require.Len(t, root.Children, 1)
	child := root.Children[0]
	assert.Equal(t, "Text", child.Name)
	assert.Equal(t, root.ID, child.ParentID)
	assert.Equal(t, "child:", child.Marker)
	assert.Equal(t, 2, child.Depth)
	assert.Equal(t, "lib/a.dart#17", child.ID)
}

const screen = `class Home extends StatelessWidget {
  @override
  Widget build(BuildContext context) {
    return Scaffold(
      appBar: AppBar(title: Text('Home')),
      body: Column(
        children: [
          Text("a(b"), // Fake(
          Row(children: [Icon(Icons.add), Text('x')]),
          Container(width: 10, height: 20, color: Colors.red, child: null),
        ],
      ),
    );
  }
}
`

func TestBuildNestedScreen(t *testing.T) {
	roots, err := Build(screen, "lib/home.dart")
	require.NoError(t, err)

	// enclosing class and method braces are not widgets
	require.Len(t, roots, 1)
	scaffold := roots[0]
	assert.Equal(t, "Scaffold", scaffold.Name)
	assert.Equal(t, "return", scaffold.Marker)
	assert.Equal(t, []string{"AppBar", "Column"}, names(scaffold.Children))
	assert.Equal(t, []string{"Text"}, names(scaffold.Children[0].Children))

	column := scaffold.Children[1]
	assert.Equal(t, []string{"Text", "Row", "Container"}, names(column.Children))
	assert.Equal(t, []string{"Icon", "Text"}, names(column.Children[1].Children))
	assert.Equal(t, 5, column.Line)
	assert.Equal(t, 6, column.Indent)

	all := Flatten(roots)
	ids := make(map[string]bool)
	for _, n := range all {
		assert.NotEqual(t, "Fake", n.Name)
		assert.False(t, ids[n.ID], "duplicate id %s", n.ID)
		ids[n.ID] = true
	}
	assert.Len(t, all, 9)
}

func TestBuildAttributes(t *testing.T) {
	roots, err := Build(screen, "lib/home.dart")
	require.NoError(t, err)
	column := roots[0].Children[1]

	text := column.Children[0]
	assert.Equal(t, "a(b", text.Attrs["text"])

	box := column.Children[2]
	assert.Equal(t, map[string]string{"width": "10", "height": "20", "color": "Colors.red"}, box.Attrs)
	assert.Equal(t, "w:10 h:20 color:Colors.red", Props(box))

	icon := column.Children[1].Children[0]
	assert.Equal(t, "Icons.add", icon.Attrs["icon"])
}

func TestBuildAttributesKeyAndLongText(t *testing.T) {
	roots, err := Build(`Text('abcdefghijklmnopqrstuvwxyz', key: ValueKey('t'))`, "a.dart")
	require.NoError(t, err)
	require.Len(t, roots, 1)
	attrs := roots[0].Attrs
	assert.Equal(t, "abcdefghijklmnopqrst...", attrs["text"])
	assert.Equal(t, "ValueKey('t')", attrs["key"])
	assert.Equal(t, "ValueKey", roots[0].Children[0].Name)
}

func TestBuildSkipsIdentifierSuffixes(t *testing.T) {
	roots, err := Build("myText(1); a.Foo(2); Bar(3)", "a.dart")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bar"}, names(roots))
}

func TestBuildEmpty(t *testing.T) {
	roots, err := Build("", "a.dart")
	require.NoError(t, err)
	assert.Empty(t, roots)
}

func largeDocument(widgets int) string {
	var sb strings.Builder
	sb.WriteString("Widget build() {\n  return Column(\n    children: [\n")
	for i := range widgets {
		fmt.Fprintf(&sb, "      Padding(\n        padding: EdgeInsets.all(%d),\n        child: Text('item %d'),\n      ),\n", i, i)
	}
	sb.WriteString("    ],\n  );\n}\n")
	return sb.String()
}

func TestBuildChunkedMatchesSequential(t *testing.T) {
	text := largeDocument(2000)
	require.Greater(t, len(text), DefaultThreshold)

	sequential, err := (&Builder{Threshold: len(text) + 1}).Build(context.Background(), text, "big.dart")
	require.NoError(t, err)
	// small chunks put many boundaries inside calls
	chunked, err := (&Builder{ChunkSize: 997, Workers: 4}).Build(context.Background(), text, "big.dart")
	require.NoError(t, err)

	seqFlat, chunkFlat := Flatten(sequential), Flatten(chunked)
	require.Len(t, chunkFlat, len(seqFlat))
	for i := range seqFlat {
		assert.Equal(t, seqFlat[i].ID, chunkFlat[i].ID)
		assert.Equal(t, seqFlat[i].ParentID, chunkFlat[i].ParentID)
	}
	require.Len(t, chunked, 1)
	assert.Len(t, chunked[0].Children, 2000)
	assert.Equal(t, "Text", chunked[0].Children[1999].Children[0].Name)
}

func TestBuildChunkedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Builder{ChunkSize: 1000}).Build(ctx, largeDocument(2000), "big.dart")
	assert.ErrorIs(t, err, context.Canceled)
}
