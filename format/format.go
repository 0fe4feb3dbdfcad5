// Package format defines the format plugin contract and the registry that
// resolves plugins by type name. A format plugin interprets raw text into
// a structured value and returns its canonical JSON serialization.
package format

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jvalue/ods-adapter/errors"
	"github.com/jvalue/ods-adapter/params"
)

// Interpreter is the capability interface every format plugin implements.
type Interpreter interface {
	// Type is the registry name, e.g. "JSON".
	Type() string
	// Description is a human-readable summary for introspection.
	Description() string
	// Parameters is the ordered descriptor list the plugin validates
	// supplied parameter maps against.
	Parameters() []params.Descriptor
	// Interpret validates parameters and converts raw text into the JSON
	// serialization of the structured payload. Malformed input for the
	// declared format is an invalid-classified interpretation error.
	Interpret(raw string, parameters map[string]any) (string, error)
}

// Info describes a registered plugin for introspection endpoints.
type Info struct {
	Type        string              `json:"type"`
	Description string              `json:"description"`
	Parameters  []params.Descriptor `json:"parameters"`
}

// Registry resolves format plugins by type name. Registration happens at
// startup; lookups are safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	interpreters map[string]Interpreter
}

// NewRegistry creates an empty format registry.
func NewRegistry() *Registry {
	return &Registry{interpreters: make(map[string]Interpreter)}
}

// Register adds a plugin under its type name. Registering the same type
// twice is a configuration error.
func (r *Registry) Register(i Interpreter) error {
	if i == nil || i.Type() == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "format plugin validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.interpreters[i.Type()]; exists {
		err := fmt.Errorf("format %q is already registered", i.Type())
		return errors.WrapInvalid(err, "Registry", "Register", "duplicate format check")
	}
	r.interpreters[i.Type()] = i
	return nil
}

// Get resolves a plugin by type name.
func (r *Registry) Get(typeName string) (Interpreter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.interpreters[typeName]
	if !ok {
		err := fmt.Errorf("%w: %s", errors.ErrUnknownFormat, typeName)
		return nil, errors.WrapInvalid(err, "Registry", "Get", "format lookup")
	}
	return i, nil
}

// List returns metadata for every registered plugin, ordered by type name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.interpreters))
	for _, i := range r.interpreters {
		descriptors := i.Parameters()
		if descriptors == nil {
			descriptors = []params.Descriptor{}
		}
		infos = append(infos, Info{
			Type:        i.Type(),
			Description: i.Description(),
			Parameters:  descriptors,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Type < infos[j].Type })
	return infos
}
