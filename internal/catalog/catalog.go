// Package catalog is the read-only source of document templates.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/and161185/signflow/internal/errs"
	"github.com/and161185/signflow/internal/model"
	"github.com/and161185/signflow/internal/render"
)

//go:embed templates/*.yaml
var builtin embed.FS

// AllCategories is the category filter value that matches every template.
const AllCategories = "Todos"

// Filter narrows List. Zero value matches everything.
type Filter struct {
	Category string // exact match, case-insensitive; "" or AllCategories match all
	Query    string // substring of title or description, case-insensitive
}

// Catalog holds immutable templates keyed by id.
type Catalog struct {
	byID  map[string]model.Template
	order []string
}

// Builtin returns the catalog shipped with the binary.
func Builtin() (*Catalog, error) {
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Open loads the builtin templates and, when dir is non-empty, the *.yaml files in dir.
// A template in dir may not reuse a builtin id.
func Open(dir string) (*Catalog, error) {
	if dir == "" {
		return Builtin()
	}
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		return nil, err
	}
	return Load(sub, os.DirFS(dir))
}

// Load reads every *.yaml file at the root of each fsys.
func Load(fsyss ...fs.FS) (*Catalog, error) {
	c := &Catalog{byID: map[string]model.Template{}}
	for _, fsys := range fsyss {
		names, err := fs.Glob(fsys, "*.yaml")
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			b, err := fs.ReadFile(fsys, name)
			if err != nil {
				return nil, err
			}
			var t model.Template
			if err := yaml.Unmarshal(b, &t); err != nil {
				return nil, fmt.Errorf("template %s: %w", name, err)
			}
			if err := c.add(t); err != nil {
				return nil, fmt.Errorf("template %s: %w", path.Base(name), err)
			}
		}
	}
	sort.Slice(c.order, func(i, j int) bool { return lessID(c.order[i], c.order[j]) })
	return c, nil
}

func (c *Catalog) add(t model.Template) error {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return errors.New("empty id")
	}
	if _, dup := c.byID[t.ID]; dup {
		return fmt.Errorf("duplicate id %q", t.ID)
	}
	if strings.EqualFold(strings.TrimSpace(t.Category), AllCategories) {
		return fmt.Errorf("reserved category %q", t.Category)
	}
	if len(t.Fields) == 0 {
		for _, k := range render.Placeholders(t.Body) {
			t.Fields = append(t.Fields, model.Field{Key: k, Label: k, Kind: model.KindText})
		}
	}
	for i := range t.Fields {
		if t.Fields[i].Kind == "" {
			t.Fields[i].Kind = model.KindText
		}
		if t.Fields[i].Label == "" {
			t.Fields[i].Label = t.Fields[i].Key
		}
	}
	if err := model.ValidateFields(t.Fields); err != nil {
		return err
	}
	c.byID[t.ID] = t
	c.order = append(c.order, t.ID)
	return nil
}

// Get returns a copy of the template or errs.ErrNotFound.
func (c *Catalog) Get(id string) (model.Template, error) {
	t, ok := c.byID[id]
	if !ok {
		return model.Template{}, fmt.Errorf("template %q: %w", id, errs.ErrNotFound)
	}
	t.Fields = append([]model.Field(nil), t.Fields...)
	return t, nil
}

// List returns the templates matching f ordered by id.
func (c *Catalog) List(f Filter) []model.Template {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	cat := strings.TrimSpace(f.Category)
	if strings.EqualFold(cat, AllCategories) {
		cat = ""
	}
	out := make([]model.Template, 0, len(c.order))
	for _, id := range c.order {
		t := c.byID[id]
		if cat != "" && !strings.EqualFold(cat, t.Category) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			continue
		}
		t.Fields = append([]model.Field(nil), t.Fields...)
		out = append(out, t)
	}
	return out
}

// Categories returns the distinct categories in id order.
func (c *Catalog) Categories() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, id := range c.order {
		cat := c.byID[id].Category
		if _, ok := seen[cat]; ok || cat == "" {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	return out
}

// numeric ids sort numerically, everything else lexically after them
func lessID(a, b string) bool {
	na, ea := strconv.Atoi(a)
	nb, eb := strconv.Atoi(b)
	switch {
	case ea == nil && eb == nil:
		return na < nb
	case ea == nil:
		return true
	case eb == nil:
		return false
	}
	return a < b
}
