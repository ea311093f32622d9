// Package catalog holds the canned jokes, quotes, and facts.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/ashureev/askzen/internal/domain"
	"gopkg.in/yaml.v3"
)

// Kind names one list of the catalog.
type Kind string

const (
	KindJoke  Kind = "jokes"
	KindQuote Kind = "quotes"
	KindFact  Kind = "facts"
)

// Kinds lists every kind a catalog must provide.
var Kinds = []Kind{KindJoke, KindQuote, KindFact}

//go:embed default.yaml
var defaultData []byte

// ErrEmpty is returned when a catalog has no entries for a required kind.
var ErrEmpty = errors.New("catalog has no entries")

// Catalog maps a kind and language to its entries.
type Catalog struct {
	entries map[Kind]map[domain.Language][]string
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog from path. An empty path returns the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalog. Every kind needs at least one entry in some
// supported language; unknown language keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	var raw map[Kind]map[domain.Language][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	c := &Catalog{entries: make(map[Kind]map[domain.Language][]string, len(Kinds))}
	for _, kind := range Kinds {
		byLang := raw[kind]
		total := 0
		for lang, items := range byLang {
			if !lang.Valid() {
				return nil, fmt.Errorf("%s: unsupported language %q", kind, lang)
			}
			total += len(items)
		}
		if total == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmpty, kind)
		}
		c.entries[kind] = byLang
	}
	return c, nil
}

// Entries returns the entries of kind for lang. When lang has none, the
// primary language's list is used, then the fallback's.
func (c *Catalog) Entries(kind Kind, lang domain.Language) []string {
	byLang := c.entries[kind]
	for _, l := range []domain.Language{lang, domain.PrimaryLanguage, domain.FallbackLanguage} {
		if items := byLang[l]; len(items) > 0 {
			return items
		}
	}
	return nil
}
