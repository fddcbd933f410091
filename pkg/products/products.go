// Package products loads the product image catalog used to backfill
// product images on records.
//
// The catalog file is YAML (or JSON):
//
//	placeholder: placeholder.png
//	images:
//	  Classic Tee: https://cdn.example.com/classic-tee.png
//	  Zip Hoodie: https://cdn.example.com/zip-hoodie.png
package products

import (
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/errors"
)

// Catalog maps product names to image references.
type Catalog struct {
	Placeholder string            `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Images      map[string]string `yaml:"images" json:"images"`
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.WrapParse("yaml", "", err)
	}
	c.normalize()
	return c, nil
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("product catalog", path)
		}
		return nil, errors.WrapIO("read", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return c, nil
}

// Empty returns a catalog without images.
func Empty() *Catalog {
	c := &Catalog{}
	c.normalize()
	return c
}

// Len returns the number of images.
func (c *Catalog) Len() int {
	return len(c.Images)
}

func (c *Catalog) normalize() {
	if c.Images == nil {
		c.Images = map[string]string{}
	}
	for name, ref := range c.Images {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" || strings.TrimSpace(ref) == "" {
			delete(c.Images, name)
			continue
		}
		if trimmed != name {
			delete(c.Images, name)
			c.Images[trimmed] = strings.TrimSpace(ref)
		}
	}
	if strings.TrimSpace(c.Placeholder) == "" {
		c.Placeholder = constants.ProductImagePlaceholder
	}
}
