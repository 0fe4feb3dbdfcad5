// Package protocol defines the protocol plugin contract and the registry
// that resolves plugins by type name. A protocol plugin fetches raw text
// from a named external source given a typed parameter map; it performs no
// retries and no payload interpretation.
package protocol

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jvalue/ods-adapter/errors"
	"github.com/jvalue/ods-adapter/params"
)

// Source is the capability interface every protocol plugin implements.
type Source interface {
	// Type is the registry name, e.g. "HTTP".
	Type() string
	// Description is a human-readable summary for introspection.
	Description() string
	// Parameters is the ordered descriptor list the plugin validates
	// supplied parameter maps against.
	Parameters() []params.Descriptor
	// Fetch validates parameters and performs one synchronous fetch,
	// returning the raw decoded text. Upstream failures propagate
	// unmodified as transient errors.
	Fetch(ctx context.Context, parameters map[string]any) (string, error)
}

// Info describes a registered plugin for introspection endpoints.
type Info struct {
	Type        string              `json:"type"`
	Description string              `json:"description"`
	Parameters  []params.Descriptor `json:"parameters"`
}

// Registry resolves protocol plugins by type name. Registration happens at
// startup; lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty protocol registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a plugin under its type name. Registering the same type
// twice is a configuration error.
func (r *Registry) Register(s Source) error {
	if s == nil || s.Type() == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "protocol plugin validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[s.Type()]; exists {
		err := fmt.Errorf("protocol %q is already registered", s.Type())
		return errors.WrapInvalid(err, "Registry", "Register", "duplicate protocol check")
	}
	r.sources[s.Type()] = s
	return nil
}

// Get resolves a plugin by type name.
func (r *Registry) Get(typeName string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[typeName]
	if !ok {
		err := fmt.Errorf("%w: %s", errors.ErrUnknownProtocol, typeName)
		return nil, errors.WrapInvalid(err, "Registry", "Get", "protocol lookup")
	}
	return s, nil
}

// List returns metadata for every registered plugin, ordered by type name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.sources))
	for _, s := range r.sources {
		descriptors := s.Parameters()
		if descriptors == nil {
			descriptors = []params.Descriptor{}
		}
		infos = append(infos, Info{
			Type:        s.Type(),
			Description: s.Description(),
			Parameters:  descriptors,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Type < infos[j].Type })
	return infos
}
