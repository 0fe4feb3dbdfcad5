// Package xmlformat implements the XML format plugin. It flattens a
// nested-element document into a JSON object tree with an arity-inference
// rule applied independently at every level: the first occurrence of a
// child tag becomes a scalar or nested object field; a recurrence of the
// same tag among its siblings promotes the field in place to an array
// collecting every occurrence in document order. Field order follows
// document order.
package xmlformat

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/jvalue/ods-adapter/errors"
	"github.com/jvalue/ods-adapter/params"
)

// Interpreter parses raw text as XML.
type Interpreter struct{}

// New creates the XML plugin.
func New() *Interpreter { return &Interpreter{} }

// Type implements format.Interpreter.
func (i *Interpreter) Type() string { return "XML" }

// Description implements format.Interpreter.
func (i *Interpreter) Description() string { return "Interpret data as XML data" }

// Parameters implements format.Interpreter. XML takes no parameters.
func (i *Interpreter) Parameters() []params.Descriptor { return nil }

// Interpret parses raw as XML and returns the JSON serialization of the
// flattened tree. The document root's children form the top-level object.
func (i *Interpreter) Interpret(raw string, parameters map[string]any) (string, error) {
	if err := params.Validate(i.Type(), i.Parameters(), parameters); err != nil {
		return "", err
	}

	decoder := xml.NewDecoder(strings.NewReader(raw))
	root, err := nextElement(decoder)
	if err != nil {
		return "", errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInterpretation, err),
			"XML", "Interpret", "parse")
	}

	value, err := parseElement(decoder)
	if err != nil {
		return "", errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInterpretation, err),
			"XML", "Interpret", "parse element "+root.Name.Local)
	}

	out, err := json.Marshal(value)
	if err != nil {
		return "", errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInterpretation, err),
			"XML", "Interpret", "serialize")
	}
	return string(out), nil
}

// nextElement skips prolog, comments, and whitespace until the first
// start element.
func nextElement(decoder *xml.Decoder) (xml.StartElement, error) {
	for {
		token, err := decoder.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := token.(xml.StartElement); ok {
			return start, nil
		}
	}
}

// parseElement consumes tokens up to the matching end element and returns
// either the element's trimmed text (leaf) or an ordered object of its
// children with the arity rule applied.
func parseElement(decoder *xml.Decoder) (any, error) {
	obj := newObject()
	var text strings.Builder

	for {
		token, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("unexpected end of document")
			}
			return nil, err
		}

		switch tok := token.(type) {
		case xml.StartElement:
			child, err := parseElement(decoder)
			if err != nil {
				return nil, err
			}
			obj.add(tok.Name.Local, child)
		case xml.CharData:
			text.Write(tok)
		case xml.EndElement:
			if len(obj.keys) > 0 {
				// Mixed content keeps the element structure only.
				return obj, nil
			}
			return strings.TrimSpace(text.String()), nil
		}
	}
}

// object is a JSON object that preserves key insertion order, mirroring
// document order in the serialized output.
type object struct {
	keys   []string
	values map[string]any
}

func newObject() *object {
	return &object{values: make(map[string]any)}
}

// add inserts a child value. A repeated tag name promotes the existing
// field in place to an array and appends; the key keeps its original
// position.
func (o *object) add(key string, value any) {
	existing, ok := o.values[key]
	if !ok {
		o.keys = append(o.keys, key)
		o.values[key] = value
		return
	}

	if list, isList := existing.([]any); isList {
		o.values[key] = append(list, value)
		return
	}
	o.values[key] = []any{existing, value}
}

// MarshalJSON writes fields in insertion order.
func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for idx, key := range o.keys {
		if idx > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(o.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
