package tool

import "fmt"

// Registry maps tool names to definitions. Registration happens once at
// startup; afterwards the registry is read-only and safe for concurrent
// reads without locking.
type Registry struct {
	byName map[string]*Definition
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*Definition{}}
}

// Register adds a tool. A duplicate name is a programming error surfaced at
// startup, so it fails rather than overwriting.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q has no handler", def.Name)
	}
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}
	d := def
	r.byName[def.Name] = &d
	r.order = append(r.order, def.Name)
	return nil
}

// MustRegister panics on error; for static startup wiring only.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name string) (*Definition, bool) {
	def, ok := r.byName[name]
	return def, ok
}

// DescribeAll lists every tool in registration order, so the capability
// listing shown to the model is stable across runs.
func (r *Registry) DescribeAll() []Description {
	out := make([]Description, 0, len(r.order))
	for _, name := range r.order {
		def := r.byName[name]
		out = append(out, Description{
			Name:        def.Name,
			Description: def.Description,
			Schema:      def.Schema,
		})
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }
