package estimation

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the read-only set of templates every new room starts with.
type Catalog struct {
	templates   []Template
	defaultName string
}

type catalogFile struct {
	Default   string     `yaml:"default"`
	Templates []Template `yaml:"templates"`
}

// NewCatalog validates and symmetrizes the given templates. An empty
// defaultName selects the first template.
func NewCatalog(defaultName string, templates ...Template) (*Catalog, error) {
	if len(templates) == 0 {
		return nil, ErrNoOptions
	}

	c := &Catalog{templates: make([]Template, 0, len(templates))}
	names := make(map[string]struct{}, len(templates))
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, ok := names[t.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTemplate, t.Name)
		}
		names[t.Name] = struct{}{}
		c.templates = append(c.templates, t.Symmetrize())
	}

	if defaultName == "" {
		defaultName = c.templates[0].Name
	}
	if _, ok := names[defaultName]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefault, defaultName)
	}
	c.defaultName = defaultName
	return c, nil
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog("Fibonacci",
		scale("Fibonacci", 2, []string{"1", "2", "3", "5", "8", "13", "20", "50"}, "?"),
		scale("T-shirt", 2, []string{"XS", "S", "M", "L", "XL", "XXL"}, "?"),
		scale("Powers of two", 2, []string{"1", "2", "4", "8", "16", "32", "64"}, "?"),
	)
	if err != nil {
		panic(err)
	}
	return c
}

// scale builds an ordered template where two values conflict once they are
// gap or more positions apart. Extras are appended without conflicts.
func scale(name string, gap int, values []string, extras ...string) Template {
	t := Template{Name: name}
	for i, v := range values {
		o := Option{Text: v, Conflicting: []string{}}
		for j, w := range values {
			if j-i >= gap || i-j >= gap {
				o.Conflicting = append(o.Conflicting, w)
			}
		}
		t.Options = append(t.Options, o)
	}
	for _, e := range extras {
		t.Options = append(t.Options, Option{Text: e, Conflicting: []string{}})
	}
	return t
}

func LoadCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode template catalog: %w", err)
	}
	return NewCatalog(f.Default, f.Templates...)
}

func LoadCatalogFile(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return LoadCatalog(file)
}

// Templates returns copies of the catalog entries, in order.
func (c *Catalog) Templates() []Template {
	out := make([]Template, len(c.templates))
	for i, t := range c.templates {
		out[i] = t.Clone()
	}
	return out
}

func (c *Catalog) Default() Template {
	t, _ := c.Lookup(c.defaultName)
	return t
}

func (c *Catalog) Lookup(name string) (Template, bool) {
	for _, t := range c.templates {
		if t.Name == name {
			return t.Clone(), true
		}
	}
	return Template{}, false
}

// WriteYAML encodes the catalog in the same layout LoadCatalog reads.
func (c *Catalog) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogFile{Default: c.defaultName, Templates: c.templates}); err != nil {
		return err
	}
	return enc.Close()
}
