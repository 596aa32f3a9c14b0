// Package taxonomy holds the canonical service catalog and resolves raw
// scraped category strings onto it.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadmap/internal/config"
)

//go:embed default.yaml
var defaultYAML []byte

// Category is a canonical service category and the raw strings it absorbs.
type Category struct {
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

// Taxonomy is the closed, author-versioned list of canonical categories.
// Declaration order is significant: it breaks ties between duplicate aliases.
type Taxonomy struct {
	Version    string     `yaml:"version" json:"version"`
	Categories []Category `yaml:"categories" json:"categories"`
}

// Default returns the embedded taxonomy.
func Default() *Taxonomy {
	t, err := Parse(defaultYAML)
	if err != nil {
		// The embedded file is covered by tests.
		panic(err)
	}
	return t
}

// Parse decodes a taxonomy YAML document.
func Parse(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "taxonomy: parse yaml")
	}
	return &t, nil
}

// LoadFile reads a taxonomy from path. An empty path returns the default.
func LoadFile(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read %s", path)
	}
	return Parse(data)
}

// Names returns the canonical names in declaration order.
func (t *Taxonomy) Names() []string {
	names := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of canonical categories.
func (t *Taxonomy) Len() int {
	return len(t.Categories)
}

// Has reports whether name is a canonical category (case-insensitive).
func (t *Taxonomy) Has(name string) bool {
	_, ok := t.Lookup(name)
	return ok
}

// Lookup returns the canonical spelling of name.
func (t *Taxonomy) Lookup(name string) (string, bool) {
	for _, c := range t.Categories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c.Name, true
		}
	}
	return "", false
}

// Aliases returns the alias set of the named category.
func (t *Taxonomy) Aliases(name string) []string {
	for _, c := range t.Categories {
		if c.Name == name {
			return c.Aliases
		}
	}
	return nil
}

// Validate rejects an empty catalog, blank names and duplicate canonical names.
func (t *Taxonomy) Validate() error {
	var problems []string
	if t == nil || len(t.Categories) == 0 {
		return config.NewValidationError("taxonomy", []string{"taxonomy must declare at least one category"})
	}
	seen := make(map[string]bool, len(t.Categories))
	for i, c := range t.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("category #%d has an empty name", i+1))
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			problems = append(problems, fmt.Sprintf("duplicate category %q", name))
		}
		seen[key] = true
	}
	return config.NewValidationError("taxonomy", problems)
}
