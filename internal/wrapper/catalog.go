package wrapper

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yml
var builtinYAML []byte

// Category groups templates for display.
type Category struct {
	ID        string
	Name      string
	Templates []*Template
}

// Catalog is an ordered, immutable set of templates.
type Catalog struct {
	Categories []*Category
	byID       map[string]*Template
}

type yamlCatalog struct {
	Categories []yamlCategory `yaml:"categories"`
}

type yamlCategory struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Wrappers []yamlWrapper `yaml:"wrappers"`
}

type yamlWrapper struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Kind  string `yaml:"kind"`
	Body  string `yaml:"body"`
}

var builtin = sync.OnceValues(func() (*Catalog, error) {
	return Parse(builtinYAML, "catalog.yml")
})

// Builtin returns the embedded catalog.
func Builtin() (*Catalog, error) {
	return builtin()
}

// Parse decodes a YAML catalog. origin names the source in errors.
func Parse(data []byte, origin string) (*Catalog, error) {
	var raw yamlCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", origin, err)
	}
	c := &Catalog{byID: make(map[string]*Template)}
	for _, rc := range raw.Categories {
		if rc.ID == "" {
			return nil, fmt.Errorf("%s: category without id", origin)
		}
		cat := &Category{ID: rc.ID, Name: rc.Name}
		if cat.Name == "" {
			cat.Name = titleFromID(rc.ID)
		}
		for _, rw := range rc.Wrappers {
			kind, err := ParseChildKind(rw.Kind)
			if err != nil {
				return nil, fmt.Errorf("%s: wrapper %s: %w", origin, rw.ID, err)
			}
			if rw.ID == "" || rw.Title == "" {
				return nil, fmt.Errorf("%s: wrapper in %s needs id and title", origin, rc.ID)
			}
			if _, dup := c.byID[rw.ID]; dup {
				return nil, fmt.Errorf("%s: duplicate wrapper id %s", origin, rw.ID)
			}
			t, err := newTemplate(rw.ID, rw.Title, rc.ID, kind, rw.Body)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", origin, err)
			}
			cat.Templates = append(cat.Templates, t)
			c.byID[t.ID] = t
		}
		c.Categories = append(c.Categories, cat)
	}
	return c, nil
}

// LoadFile parses a user catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wrapper catalog: %w", err)
	}
	return Parse(data, path)
}

// Merge returns a catalog holding c's templates followed by other's.
// Categories with the same id are joined; templates in other replace
// templates of c with the same id.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	out := &Catalog{byID: make(map[string]*Template)}
	index := make(map[string]*Category)
	add := func(src *Catalog) {
		for _, cat := range src.Categories {
			dst, ok := index[cat.ID]
			if !ok {
				dst = &Category{ID: cat.ID, Name: cat.Name}
				index[cat.ID] = dst
				out.Categories = append(out.Categories, dst)
			}
			for _, t := range cat.Templates {
				if _, exists := out.byID[t.ID]; exists {
					out.remove(t.ID)
				}
				dst.Templates = append(dst.Templates, t)
				out.byID[t.ID] = t
			}
		}
	}
	add(c)
	if other != nil {
		add(other)
	}
	return out
}

func (c *Catalog) remove(id string) {
	for _, cat := range c.Categories {
		for i, t := range cat.Templates {
			if t.ID == id {
				cat.Templates = append(cat.Templates[:i], cat.Templates[i+1:]...)
				break
			}
		}
	}
	delete(c.byID, id)
}

// Get looks a template up by id.
func (c *Catalog) Get(id string) (*Template, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Templates lists every template in catalog order.
func (c *Catalog) Templates() []*Template {
	out := make([]*Template, 0, len(c.byID))
	for _, cat := range c.Categories {
		out = append(out, cat.Templates...)
	}
	return out
}

func titleFromID(id string) string {
	words := strings.NewReplacer("-", " ", "_", " ").Replace(id)
	return cases.Title(language.English).String(words)
}
