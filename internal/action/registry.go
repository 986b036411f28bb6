package action

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry manages action variants by name.
type Registry struct {
	mu       sync.RWMutex
	variants map[string]Variant
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{variants: make(map[string]Variant)}
}

// Register adds a variant to the registry.
func (r *Registry) Register(v Variant) error {
	name := strings.ToLower(strings.TrimSpace(v.Name()))
	if name == "" {
		return fmt.Errorf("action variant missing name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.variants[name]; exists {
		return fmt.Errorf("action already registered: %s", name)
	}
	r.variants[name] = v
	return nil
}

// Get retrieves a variant by name.
func (r *Registry) Get(name string) (Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.variants[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// Names returns registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.variants))
	for name := range r.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
