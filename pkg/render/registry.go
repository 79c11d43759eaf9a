package render

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/createmybiodata/biodata-engine/pkg/model"
)

// LayoutBuilder turns a frozen snapshot into the body of one template family.
// Builders produce the container's content; the renderer owns container
// chrome such as skins, watermarks and the free-tier credit line.
type LayoutBuilder interface {
	// Name identifies the layout family within a registry.
	Name() string
	// Build constructs the layout subtree for the snapshot.
	Build(data model.FlattenedSnapshot) (*Node, error)
}

// Registry stores layout builders by name, providing discovery and
// duplication safeguards.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]LayoutBuilder
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]LayoutBuilder),
	}
}

// Register adds a builder by its Name(). Duplicate names return an error.
func (r *Registry) Register(builder LayoutBuilder) error {
	if builder == nil {
		return fmt.Errorf("render: builder is required")
	}
	name := builder.Name()
	if name == "" {
		return fmt.Errorf("render: builder name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[name]; exists {
		return fmt.Errorf("render: builder %q already registered", name)
	}

	r.builders[name] = builder
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(builder LayoutBuilder) {
	if err := r.Register(builder); err != nil {
		panic(err)
	}
}

// Get retrieves a builder by name.
func (r *Registry) Get(name string) (LayoutBuilder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("render: builder %q not found (have %s)",
			name, strings.Join(r.list(), ", "))
	}
	return builder, nil
}

// List returns a sorted list of builder names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list()
}

// list requires r.mu to be held.
func (r *Registry) list() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
