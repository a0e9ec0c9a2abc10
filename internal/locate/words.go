package locate

// Tokens that are never widget names even when under the cursor.
var denyList = map[string]struct{}{
	// properties
	"child": {}, "children": {}, "builder": {}, "padding": {}, "margin": {}, "color": {},
	"width": {}, "height": {}, "decoration": {}, "alignment": {}, "style": {}, "key": {},
	// keywords
	"if": {}, "else": {}, "for": {}, "while": {}, "return": {}, "break": {}, "continue": {},
	"switch": {}, "case": {}, "default": {}, "var": {}, "final": {}, "const": {}, "void": {},
	"true": {}, "false": {}, "null": {}, "this": {}, "super": {}, "new": {}, "class": {}, "enum": {},
}

// DefaultLineNames are the widget names the line scan recognises.
var DefaultLineNames = []string{
	"Container", "Flexible", "Padding", "Center", "Row", "Column",
	"Stack", "Expanded", "Text", "SizedBox", "Card",
}

// KnownWidgets is the catalog used to rate a candidate as a widget.
var KnownWidgets = map[string]struct{}{
	"Container": {}, "Row": {}, "Column": {}, "Stack": {}, "Expanded": {}, "Flexible": {},
	"Padding": {}, "Center": {}, "SizedBox": {}, "Text": {}, "Card": {}, "Align": {},
	"AspectRatio": {}, "Icon": {}, "Image": {}, "Material": {}, "Scaffold": {}, "AppBar": {},
	"TabBar": {}, "Drawer": {}, "FloatingActionButton": {}, "InkWell": {}, "GestureDetector": {},
	"SingleChildScrollView": {}, "ListView": {}, "GridView": {}, "Divider": {}, "Spacer": {},
	"Wrap": {}, "Chip": {}, "Dialog": {},
}

// attributeMarkers hint that a constructor call builds a widget.
var attributeMarkers = []string{
	"child:", "children:", "builder:", "padding:", "margin:",
	"alignment:", "decoration:", "color:", "width:", "height:",
}

func isDenied(word string) bool {
	_, ok := denyList[word]
	return ok
}

func looksLikeWidget(word string) bool {
	if word == "" || word[0] < 'A' || word[0] > 'Z' {
		return false
	}
	for i := 1; i < len(word); i++ {
		c := word[i]
		if !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}
