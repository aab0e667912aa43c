package tool

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is the catalog of callable tools.
// It is populated during boot and read-only afterwards; the mutex exists so
// that boot-time registration from multiple init paths stays safe.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*Spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*Spec)}
}

// Register adds a spec to the registry.
// Duplicate names and invalid specs are rejected.
func (r *Registry) Register(spec *Spec) error {
	if spec == nil {
		return fmt.Errorf("spec cannot be nil")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("tool %q is already registered", spec.Name)
	}
	r.specs[spec.Name] = spec
	return nil
}

// MustRegister registers a spec and panics on error.
// Intended for static boot-time registration where failure is a bug.
func (r *Registry) MustRegister(spec *Spec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

// Lookup returns the spec for a tool name.
func (r *Registry) Lookup(name string) (*Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

// Docs renders the documentation view consumed by prompt assembly: one
// block per tool with its description and argument descriptors, in sorted
// name order.
func (r *Registry) Docs() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<tools>\n")
	for _, name := range names {
		s := r.specs[name]
		fmt.Fprintf(&b, "<tool name=%q>\n%s\n", s.Name, s.Description)
		for _, p := range s.Params {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "  <parameter name=%q %s>%s</parameter>\n", p.Name, req, p.Description)
		}
		b.WriteString("</tool>\n")
	}
	b.WriteString("</tools>")
	return b.String()
}
