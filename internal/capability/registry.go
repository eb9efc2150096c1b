package capability

import "fmt"

// Registry is the fixed, ordered set of capabilities available for a process.
type Registry struct {
	caps   []*Capability
	byName map[string]*Capability
}

// NewRegistry returns a registry of caps in the given order. Names must be unique.
func NewRegistry(caps ...*Capability) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Capability, len(caps))}
	for _, c := range caps {
		if c == nil {
			continue
		}
		if _, dup := r.byName[c.name]; dup {
			return nil, fmt.Errorf("duplicate capability %q", c.name)
		}
		r.byName[c.name] = c
		r.caps = append(r.caps, c)
	}
	return r, nil
}

// All returns the capabilities in registration order.
func (r *Registry) All() []*Capability {
	return append([]*Capability(nil), r.caps...)
}

// Get returns the capability with name.
func (r *Registry) Get(name string) (*Capability, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Len returns the number of capabilities.
func (r *Registry) Len() int { return len(r.caps) }

// Names returns capability names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.caps))
	for i, c := range r.caps {
		names[i] = c.name
	}
	return names
}

// Descriptor is the public view of a configured capability, including ones whose index failed.
type Descriptor struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
