// Package yamlcatalog serves the fixed list of premade designs.
package yamlcatalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

//go:embed catalog.yaml
var defaultDocument []byte

type document struct {
	Designs []domain.Design `yaml:"designs"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	designs []domain.Design
	byID    map[int]domain.Design
}

// Default loads the embedded catalog. baseURL, when set, is prefixed to
// relative image paths so the composition service can fetch them.
func Default(baseURL string) (*Catalog, error) {
	return Parse(defaultDocument, baseURL)
}

func Parse(raw []byte, baseURL string) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode design catalog: %w", err)
	}
	if len(doc.Designs) == 0 {
		return nil, fmt.Errorf("design catalog is empty")
	}

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	c := &Catalog{
		designs: make([]domain.Design, 0, len(doc.Designs)),
		byID:    make(map[int]domain.Design, len(doc.Designs)),
	}
	for i, d := range doc.Designs {
		if d.ID <= 0 {
			return nil, fmt.Errorf("design #%d: id must be positive", i+1)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("design #%d: duplicate id %d", i+1, d.ID)
		}
		if strings.TrimSpace(d.ImageURL) == "" {
			return nil, fmt.Errorf("design %d: image is required", d.ID)
		}
		if base != "" && strings.HasPrefix(d.ImageURL, "/") {
			d.ImageURL = base + d.ImageURL
		}
		c.designs = append(c.designs, d)
		c.byID[d.ID] = d
	}
	return c, nil
}

// List returns the designs in display order.
func (c *Catalog) List() []domain.Design {
	out := make([]domain.Design, len(c.designs))
	copy(out, c.designs)
	return out
}

func (c *Catalog) Find(id int) (domain.Design, bool) {
	d, ok := c.byID[id]
	return d, ok
}
