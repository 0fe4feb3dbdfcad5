// Package jsonformat implements the JSON format plugin: a parse of the raw
// text that fails on malformed input and otherwise re-serializes the tree
// canonically.
package jsonformat

import (
	"encoding/json"
	"fmt"

	"github.com/jvalue/ods-adapter/errors"
	"github.com/jvalue/ods-adapter/params"
)

// Interpreter parses raw text as JSON.
type Interpreter struct{}

// New creates the JSON plugin.
func New() *Interpreter { return &Interpreter{} }

// Type implements format.Interpreter.
func (i *Interpreter) Type() string { return "JSON" }

// Description implements format.Interpreter.
func (i *Interpreter) Description() string { return "Interpret data as JSON data" }

// Parameters implements format.Interpreter. JSON takes no parameters.
func (i *Interpreter) Parameters() []params.Descriptor { return nil }

// Interpret parses raw as a JSON tree and returns its serialization.
func (i *Interpreter) Interpret(raw string, parameters map[string]any) (string, error) {
	if err := params.Validate(i.Type(), i.Parameters(), parameters); err != nil {
		return "", err
	}

	var tree any
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return "", errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInterpretation, err),
			"JSON", "Interpret", "parse")
	}

	out, err := json.Marshal(tree)
	if err != nil {
		return "", errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInterpretation, err),
			"JSON", "Interpret", "serialize")
	}
	return string(out), nil
}
