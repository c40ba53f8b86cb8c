package breeds

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jo-hoe/breedid/internal/common"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

const (
	TypeCattle  = "cattle"
	TypeBuffalo = "buffalo"
)

// Info is the descriptive card shown next to a predicted breed. Only Type
// is required; pages show N/A for an empty origin or description.
type Info struct {
	Name        string `json:"name" yaml:"-"`
	Type        string `json:"type" yaml:"Type" validate:"required,oneof=cattle buffalo"`
	Origin      string `json:"origin" yaml:"Origin"`
	Description string `json:"description" yaml:"Description"`
}

// record mirrors the on-disk layout where keys are capitalized.
type record struct {
	Type        string `json:"Type" yaml:"Type"`
	Origin      string `json:"Origin" yaml:"Origin"`
	Description string `json:"Description" yaml:"Description"`
}

// Catalog is an immutable breed name -> Info table. It is safe for
// concurrent reads.
type Catalog struct {
	byName   map[string]Info
	byFolded map[string]string
	names    []string
}

var folder = cases.Fold()

// foldName normalizes a breed name for case-insensitive lookups.
func foldName(name string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(name)))
}

// Load reads a catalog from a .json, .yaml or .yml file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read breed catalog %s: %w", path, err)
	}

	records := make(map[string]record)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &records)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &records)
	default:
		return nil, fmt.Errorf("unsupported breed catalog format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse breed catalog %s: %w", path, err)
	}

	infos := make([]Info, 0, len(records))
	for name, r := range records {
		infos = append(infos, Info{
			Name:        name,
			Type:        r.Type,
			Origin:      r.Origin,
			Description: r.Description,
		})
	}
	return New(infos)
}

// New builds a catalog from records, validating every entry.
func New(infos []Info) (*Catalog, error) {
	catalog := &Catalog{
		byName:   make(map[string]Info, len(infos)),
		byFolded: make(map[string]string, len(infos)),
		names:    make([]string, 0, len(infos)),
	}

	for _, info := range infos {
		info.Name = strings.TrimSpace(info.Name)
		info.Type = strings.ToLower(strings.TrimSpace(info.Type))
		if info.Name == "" {
			return nil, fmt.Errorf("breed with empty name")
		}
		if err := common.ValidateStruct(info); err != nil {
			return nil, fmt.Errorf("invalid breed %s: %w", info.Name, err)
		}
		if _, exists := catalog.byName[info.Name]; exists {
			return nil, fmt.Errorf("duplicate breed: %s", info.Name)
		}
		folded := foldName(info.Name)
		if other, exists := catalog.byFolded[folded]; exists {
			return nil, fmt.Errorf("breeds %s and %s differ only in case", other, info.Name)
		}

		catalog.byName[info.Name] = info
		catalog.byFolded[folded] = info.Name
		catalog.names = append(catalog.names, info.Name)
	}

	sort.Strings(catalog.names)
	return catalog, nil
}

// Lookup finds a breed by exact name, falling back to a case-folded match.
func (c *Catalog) Lookup(name string) (Info, bool) {
	if info, ok := c.byName[name]; ok {
		return info, true
	}
	if canonical, ok := c.byFolded[foldName(name)]; ok {
		return c.byName[canonical], true
	}
	return Info{}, false
}

// Names returns all breed names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// ByType returns the breeds of one type sorted by name.
func (c *Catalog) ByType(breedType string) []Info {
	breedType = strings.ToLower(strings.TrimSpace(breedType))
	var out []Info
	for _, name := range c.names {
		if info := c.byName[name]; info.Type == breedType {
			out = append(out, info)
		}
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.names)
}
