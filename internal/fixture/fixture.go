// Package fixture loads the canned source catalog and feed records that stand
// in for real RSS retrieval.
package fixture

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linnemanlabs/regwatch/internal/feed"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Record is one canned feed entry, published Age before the aggregation pass.
type Record struct {
	SourceID string        `yaml:"source_id"`
	Title    string        `yaml:"title"`
	Summary  string        `yaml:"summary"`
	Link     string        `yaml:"link"`
	Age      time.Duration `yaml:"age"`
}

// Catalog holds the default sources and the records served for them.
type Catalog struct {
	Sources []feed.Source
	records map[string][]Record
}

type catalogFile struct {
	Sources []struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		URL      string `yaml:"url"`
		Category string `yaml:"category"`
	} `yaml:"sources"`
	Records []Record `yaml:"records"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML catalog.
func Parse(b []byte) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	var errs []error
	c := &Catalog{records: make(map[string][]Record)}
	seen := make(map[string]bool, len(cf.Sources))
	for i, s := range cf.Sources {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("source %d: id is required", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("source %q: duplicate id", s.ID))
			continue
		}
		seen[s.ID] = true
		c.Sources = append(c.Sources, feed.Source{ID: s.ID, Name: s.Name, URL: s.URL, Category: s.Category})
	}

	for i, r := range cf.Records {
		if r.SourceID == "" {
			errs = append(errs, fmt.Errorf("record %d: source_id is required", i))
			continue
		}
		if r.Age < 0 {
			errs = append(errs, fmt.Errorf("record %d: negative age %s", i, r.Age))
			continue
		}
		c.records[r.SourceID] = append(c.records[r.SourceID], r)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// Records returns the canned records for a source and whether the source has any.
func (c *Catalog) Records(sourceID string) ([]Record, bool) {
	rs, ok := c.records[sourceID]
	return rs, ok
}
