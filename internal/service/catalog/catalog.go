// Package catalog exposes the test definitions students can pick from.
package catalog

import (
	_ "embed"
	"fmt"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"gopkg.in/yaml.v3"
)

//go:embed definitions.yaml
var definitionsYAML []byte

type Definition struct {
	ID          entity.TestKind `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Category    string          `yaml:"category" json:"category"`
	IsAdaptive  bool            `yaml:"isAdaptive" json:"isAdaptive"`
	IsMock      bool            `yaml:"isMock" json:"isMock"`
}

type Catalog struct {
	definitions []Definition
	byKind      map[entity.TestKind]Definition
}

// Load parses the embedded definitions.
func Load() (*Catalog, error) {
	return Parse(definitionsYAML)
}

func Parse(data []byte) (*Catalog, error) {
	var file struct {
		Definitions []Definition `yaml:"definitions"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse test definitions: %w", err)
	}

	c := &Catalog{
		definitions: file.Definitions,
		byKind:      make(map[entity.TestKind]Definition, len(file.Definitions)),
	}
	for _, d := range file.Definitions {
		if !d.ID.IsValid() {
			return nil, fmt.Errorf("unknown test type %q in definitions", d.ID)
		}
		if _, dup := c.byKind[d.ID]; dup {
			return nil, fmt.Errorf("duplicate test type %q in definitions", d.ID)
		}
		c.byKind[d.ID] = d
	}
	return c, nil
}

// All returns the definitions in catalogue order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.definitions))
	copy(out, c.definitions)
	return out
}

// ByCategory filters the catalogue; an empty category returns everything.
func (c *Catalog) ByCategory(category string) []Definition {
	if category == "" {
		return c.All()
	}
	var out []Definition
	for _, d := range c.definitions {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

func (c *Catalog) Lookup(kind entity.TestKind) (Definition, bool) {
	d, ok := c.byKind[kind]
	return d, ok
}
