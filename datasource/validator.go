package datasource

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationResult is the health verdict for one import.
type ValidationResult struct {
	Health        HealthStatus
	ErrorMessages []string
}

// ValidateSchema checks an interpreted payload against a datasource's
// optional JSON Schema. Without a schema the verdict is always OK. With a
// schema, the payload is parsed as a JSON array or object (dispatched on
// the first non-space byte) and validated: conformance yields OK, schema
// violations yield WARNING with the full ordered violation list, and a
// payload that cannot be parsed for schema checking at all yields FAILED.
// Validation never aborts an import; it only annotates it.
func ValidateSchema(payload string, schema json.RawMessage) ValidationResult {
	if len(schema) == 0 {
		return ValidationResult{Health: HealthOK}
	}

	trimmed := strings.TrimSpace(payload)
	var parsed any
	if strings.HasPrefix(trimmed, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
			return ValidationResult{Health: HealthFailed, ErrorMessages: []string{
				"payload is not schema-checkable: " + err.Error(),
			}}
		}
		parsed = arr
	} else {
		var obj map[string]any
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return ValidationResult{Health: HealthFailed, ErrorMessages: []string{
				"payload is not schema-checkable: " + err.Error(),
			}}
		}
		parsed = obj
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(parsed),
	)
	if err != nil {
		return ValidationResult{Health: HealthFailed, ErrorMessages: []string{
			"schema validation could not run: " + err.Error(),
		}}
	}

	if result.Valid() {
		return ValidationResult{Health: HealthOK}
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		messages = append(messages, violation.String())
	}
	return ValidationResult{Health: HealthWarning, ErrorMessages: messages}
}
