// Package rawformat implements the RAW format plugin: the identity
// interpretation that passes the fetched text through untouched.
package rawformat

import (
	"github.com/jvalue/ods-adapter/params"
)

// Interpreter returns raw input unchanged.
type Interpreter struct{}

// New creates the RAW plugin.
func New() *Interpreter { return &Interpreter{} }

// Type implements format.Interpreter.
func (i *Interpreter) Type() string { return "RAW" }

// Description implements format.Interpreter.
func (i *Interpreter) Description() string { return "Interpret data as raw data" }

// Parameters implements format.Interpreter. RAW takes no parameters.
func (i *Interpreter) Parameters() []params.Descriptor { return nil }

// Interpret returns raw unchanged.
func (i *Interpreter) Interpret(raw string, parameters map[string]any) (string, error) {
	if err := params.Validate(i.Type(), i.Parameters(), parameters); err != nil {
		return "", err
	}
	return raw, nil
}
