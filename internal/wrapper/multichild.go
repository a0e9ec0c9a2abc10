package wrapper

import "strings"

// multiChildNames take a children: list rather than a single child.
var multiChildNames = map[string]struct{}{
	"Row": {}, "Column": {}, "Stack": {}, "Wrap": {}, "ListView": {}, "GridView": {},
	"Flow": {}, "Table": {}, "CustomScrollView": {}, "IndexedStack": {}, "ListBody": {},
	"Flex": {},
}

// IsMultiChild reports whether the expression name takes children:. Named
// constructors such as GridView.count resolve through their class.
func IsMultiChild(name string) bool {
	if _, ok := multiChildNames[name]; ok {
		return true
	}
	if dot := strings.IndexByte(name, '.'); dot > 0 {
		_, ok := multiChildNames[name[:dot]]
		return ok
	}
	return false
}
