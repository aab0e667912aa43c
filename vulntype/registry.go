package vulntype

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed types.yaml
var defaultData []byte

// Registry is the read-only catalog of vulnerability types.
type Registry struct {
	types map[string]*Type
	evals map[string]*typeEvaluator
}

// Load parses a registry from YAML data. Entries are validated and their
// CEL criteria compiled; any invalid entry fails the whole load.
func Load(data []byte) (*Registry, error) {
	var doc struct {
		Types []Type `yaml:"types"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse type registry: %w", err)
	}
	if len(doc.Types) == 0 {
		return nil, fmt.Errorf("type registry contains no types")
	}

	r := &Registry{
		types: make(map[string]*Type, len(doc.Types)),
		evals: make(map[string]*typeEvaluator, len(doc.Types)),
	}
	for i := range doc.Types {
		t := &doc.Types[i]
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.types[t.ID]; dup {
			return nil, fmt.Errorf("duplicate type id %q", t.ID)
		}
		ev, err := newTypeEvaluator(t)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", t.ID, err)
		}
		r.types[t.ID] = t
		r.evals[t.ID] = ev
	}
	return r, nil
}

// LoadDefault loads the registry shipped with the system.
func LoadDefault() (*Registry, error) {
	return Load(defaultData)
}

// MustLoadDefault loads the embedded registry and panics on error.
// The embedded data is part of the build; failure to load it is a bug.
func MustLoadDefault() *Registry {
	r, err := LoadDefault()
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the type entry for an id.
func (r *Registry) Get(id string) (*Type, bool) {
	t, ok := r.types[id]
	return t, ok
}

// IDs returns all type ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	return len(r.types)
}

// RequiredControlTests returns the required control-test names for a type
// id. It satisfies the finding store's TypeRegistry interface.
func (r *Registry) RequiredControlTests(typeID string) ([]string, bool) {
	t, ok := r.types[typeID]
	if !ok {
		return nil, false
	}
	return t.RequiredTestNames(), true
}
