// Package catalog holds the static registry of known tips.
//
// A catalog is decoded once from TOML (either the embedded default or a file
// given on the command line) and never mutated afterwards. Tips are addressed
// by a dense Kind index so that code handling an identifier coming from an
// extractor or from configuration has to take the unknown branch explicitly.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed default.toml
var defaultCatalog []byte

//go:embed catalog.schema.json
var catalogSchema string

var (
	// ErrDuplicate reports a tip identifier declared more than once.
	ErrDuplicate = errors.New("duplicate tip identifier")
	// ErrInvalid reports a catalog document rejected by the schema.
	ErrInvalid = errors.New("invalid catalog")
	// ErrTooLarge reports a catalog with more tips than Kind can address.
	ErrTooLarge = errors.New("too many tips")
)

// maxTips is the largest catalog Parse accepts.
var maxTips = math.MaxUint16

// Difficulty grades how advanced a tip is.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Kind is the index of a tip inside its catalog. The zero Kind is invalid.
type Kind uint16

// TemplateRef points a tip at a message template document.
type TemplateRef struct {
	Code  int
	Items []string
}

// Metadata describes one tip.
type Metadata struct {
	ID         string
	Name       string
	Difficulty Difficulty
	// Deps is sorted and free of duplicates. It may name tips the catalog
	// does not know.
	Deps     []string
	Link     string
	Message  string
	Template *TemplateRef
}

// HasDeps reports whether the tip has prerequisites.
func (m *Metadata) HasDeps() bool {
	return m != nil && len(m.Deps) > 0
}

// Catalog is an immutable set of tips.
type Catalog struct {
	entries []Metadata
	byID    map[string]Kind
}

// Lookup resolves an identifier to its Kind.
func (c *Catalog) Lookup(id string) (Kind, bool) {
	if c == nil {
		return 0, false
	}
	k, ok := c.byID[id]
	return k, ok
}

// Meta returns the metadata of a valid kind and nil otherwise.
func (c *Catalog) Meta(k Kind) *Metadata {
	if c == nil || k == 0 || int(k) > len(c.entries) {
		return nil
	}
	return &c.entries[k-1]
}

// MetaByID is Lookup followed by Meta.
func (c *Catalog) MetaByID(id string) *Metadata {
	k, ok := c.Lookup(id)
	if !ok {
		return nil
	}
	return c.Meta(k)
}

// Len returns the number of tips.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Kinds returns every kind in declaration order.
func (c *Catalog) Kinds() []Kind {
	out := make([]Kind, 0, c.Len())
	for i := range c.Len() {
		out = append(out, Kind(i+1))
	}
	return out
}

// IDs returns every identifier in declaration order.
func (c *Catalog) IDs() []string {
	out := make([]string, 0, c.Len())
	for i := range c.Len() {
		out = append(out, c.entries[i].ID)
	}
	return out
}

type document struct {
	Tips []tipEntry `toml:"tip"`
}

type tipEntry struct {
	ID         string         `toml:"id"`
	Name       string         `toml:"name"`
	Difficulty string         `toml:"difficulty"`
	Deps       depList        `toml:"deps"`
	Link       string         `toml:"link"`
	Message    string         `toml:"message"`
	Template   *templateEntry `toml:"template"`
}

type templateEntry struct {
	Code  int      `toml:"code"`
	Items []string `toml:"items"`
}

// depList accepts either a single identifier or a list of identifiers.
type depList []string

func (d *depList) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		*d = depList{val}
	case []any:
		out := make(depList, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("deps: expected string, got %T", item)
			}
			out = append(out, s)
		}
		*d = out
	default:
		return fmt.Errorf("deps: expected string or list, got %T", v)
	}
	return nil
}

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog, "default.toml")
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog from a TOML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes and validates a TOML catalog. name is used in errors only.
func Parse(data []byte, name string) (*Catalog, error) {
	if err := validate(data, name); err != nil {
		return nil, err
	}
	var doc document
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", name, err)
	}
	if len(doc.Tips) > maxTips {
		return nil, fmt.Errorf("%s: %w: %d (limit %d)", name, ErrTooLarge, len(doc.Tips), maxTips)
	}
	c := &Catalog{
		entries: make([]Metadata, 0, len(doc.Tips)),
		byID:    make(map[string]Kind, len(doc.Tips)),
	}
	for _, tip := range doc.Tips {
		if _, dup := c.byID[tip.ID]; dup {
			return nil, fmt.Errorf("%s: %w: %q", name, ErrDuplicate, tip.ID)
		}
		meta := Metadata{
			ID:         tip.ID,
			Name:       strings.TrimSpace(tip.Name),
			Difficulty: Difficulty(tip.Difficulty),
			Deps:       normalizeDeps(tip.Deps),
			Link:       tip.Link,
			Message:    tip.Message,
		}
		if meta.Name == "" {
			meta.Name = displayName(tip.ID)
		}
		if tip.Template != nil {
			meta.Template = &TemplateRef{Code: tip.Template.Code, Items: tip.Template.Items}
		}
		c.entries = append(c.entries, meta)
		c.byID[tip.ID] = Kind(len(c.entries))
	}
	return c, nil
}

func normalizeDeps(deps depList) []string {
	if len(deps) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(deps))
	out := make([]string, 0, len(deps))
	for _, dep := range deps {
		dep = strings.TrimSpace(dep)
		if dep == "" {
			continue
		}
		if _, ok := seen[dep]; ok {
			continue
		}
		seen[dep] = struct{}{}
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

var titleCaser = cases.Title(language.English)

// displayName turns "non-null-expression" into "Non Null Expression".
func displayName(id string) string {
	return titleCaser.String(strings.ReplaceAll(id, "-", " "))
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("catalog.schema.json", catalogSchema)
})

func validate(data []byte, name string) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile catalog schema: %w", err)
	}
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", name, err)
	}
	// The validator understands encoding/json shapes only.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	var instance any
	if err := json.Unmarshal(encoded, &instance); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%s: %w: %v", name, ErrInvalid, err)
	}
	return nil
}
