// Package catalog loads the purposes, styles and section templates the
// wizard offers.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"swipeshop/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Section is one entry of a purpose's page layout.
type Section struct {
	ID             string `yaml:"id"`
	Section        string `yaml:"section"`
	Copy           string `yaml:"copy"`
	Variant        string `yaml:"variant"`
	Kind           string `yaml:"kind"`
	Image          int    `yaml:"image"`
	Author         string `yaml:"author"`
	Rating         int    `yaml:"rating"`
	UseDescription bool   `yaml:"use_description"`
}

// Catalog is the static configuration of the builder.
type Catalog struct {
	Steps          []string             `yaml:"steps"`
	Purposes       []domain.Purpose     `yaml:"purposes"`
	Styles         []domain.Style       `yaml:"styles"`
	Templates      map[string][]Section `yaml:"templates"`
	FallbackImages []string             `yaml:"fallback_images"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// MustDefault is Default for package-level wiring and tests.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Purposes) == 0 {
		return fmt.Errorf("catalog: at least one purpose is required")
	}
	if len(c.Styles) == 0 {
		return fmt.Errorf("catalog: at least one style is required")
	}
	if _, ok := c.Templates["default"]; !ok {
		return fmt.Errorf("catalog: default template is required")
	}
	for name, sections := range c.Templates {
		for _, s := range sections {
			variant, err := domain.ParseVariant(s.Variant)
			if err != nil {
				return fmt.Errorf("catalog: template %s/%s: %w", name, s.ID, err)
			}
			kind, err := domain.ParseKind(s.Kind)
			if err != nil {
				return fmt.Errorf("catalog: template %s/%s: %w", name, s.ID, err)
			}
			needsImage, err := variant.RequiresImage()
			if err != nil {
				return fmt.Errorf("catalog: template %s/%s: %w", name, s.ID, err)
			}
			if needsImage != (kind == domain.KindProduct) {
				return fmt.Errorf("catalog: template %s/%s: variant %s does not fit kind %s", name, s.ID, variant, kind)
			}
		}
	}
	return nil
}

// Purpose looks up a purpose by id.
func (c *Catalog) Purpose(id string) (domain.Purpose, error) {
	for _, p := range c.Purposes {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Purpose{}, fmt.Errorf("%w: purpose %q", domain.ErrNotFound, id)
}

// Style looks up a style by id.
func (c *Catalog) Style(id string) (domain.Style, error) {
	for _, s := range c.Styles {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.Style{}, fmt.Errorf("%w: style %q", domain.ErrNotFound, id)
}

func (c *Catalog) DefaultPurpose() domain.Purpose { return c.Purposes[0] }
func (c *Catalog) DefaultStyle() domain.Style     { return c.Styles[0] }

// Template returns the section layout for a purpose.
func (c *Catalog) Template(purposeID string) []Section {
	if t, ok := c.Templates[purposeID]; ok {
		return t
	}
	return c.Templates["default"]
}
