// Package params defines the self-describing parameter contract shared by
// protocol and format plugins. Each plugin exposes an ordered list of
// Descriptors; Validate checks a supplied parameter map against that list
// and aggregates every violation into one error instead of failing on the
// first.
package params

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jvalue/ods-adapter/errors"
)

// Type is the declared runtime type of a parameter value.
type Type int

const (
	// TypeString accepts string values.
	TypeString Type = iota
	// TypeBool accepts boolean values.
	TypeBool
	// TypeMap accepts string-keyed maps. Map values themselves are not
	// type-checked; the HTTP plugin's defaultParameters uses this.
	TypeMap
)

// String returns the string representation of Type.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBool:
		return "boolean"
	case TypeMap:
		return "map"
	default:
		return "unknown"
	}
}

// Matches reports whether v has the declared runtime type.
func (t Type) Matches(v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeMap:
		switch v.(type) {
		case map[string]any, map[string]string:
			return true
		}
		return false
	default:
		return false
	}
}

// Descriptor declares a single named plugin parameter.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        Type   `json:"type"`
}

// Validate checks supplied against the descriptor list and returns an
// invalid-classified error aggregating every violation, one per line:
// supplied keys the plugin does not declare, missing required keys, and
// values whose runtime type does not match the declaration. pluginType
// names the plugin in each message. A nil return means the map is valid.
func Validate(pluginType string, descriptors []Descriptor, supplied map[string]any) error {
	declared := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		declared[d.Name] = d
	}

	var violations []string

	for _, d := range descriptors {
		value, present := supplied[d.Name]
		switch {
		case !present || value == nil:
			if d.Required {
				violations = append(violations,
					fmt.Sprintf("%s requires parameter %s", pluginType, d.Name))
			}
		case !d.Type.Matches(value):
			violations = append(violations,
				fmt.Sprintf("%s requires parameter %s to be of type %s", pluginType, d.Name, d.Type))
		}
	}

	// Supplied keys outside the declared set, in stable order.
	var unknown []string
	for name := range supplied {
		if _, ok := declared[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		violations = append(violations,
			fmt.Sprintf("%s does not accept parameter %s", pluginType, name))
	}

	if len(violations) == 0 {
		return nil
	}
	err := stderrors.New(strings.Join(violations, "\n"))
	return errors.WrapInvalid(err, pluginType, "ValidateParameters", "parameter validation")
}
