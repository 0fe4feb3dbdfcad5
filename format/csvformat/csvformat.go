// Package csvformat implements the CSV format plugin: a schema-driven
// tabular parse controlled by separator, header, and skip parameters.
package csvformat

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jvalue/ods-adapter/errors"
	"github.com/jvalue/ods-adapter/params"
)

var descriptors = []params.Descriptor{
	{Name: "columnSeparator", Description: "Column delimiter character, only one character supported",
		Required: true, Type: params.TypeString},
	{Name: "lineSeparator", Description: "Line delimiter character, only \\r, \\r\\n, and \\n supported",
		Required: true, Type: params.TypeString},
	{Name: "skipFirstDataRow", Description: "Skip first data row (after header)",
		Required: true, Type: params.TypeBool},
	{Name: "firstRowAsHeader", Description: "Interpret first row as header for columns",
		Required: true, Type: params.TypeBool},
}

// Interpreter parses raw text as CSV.
type Interpreter struct{}

// New creates the CSV plugin.
func New() *Interpreter { return &Interpreter{} }

// Type implements format.Interpreter.
func (i *Interpreter) Type() string { return "CSV" }

// Description implements format.Interpreter.
func (i *Interpreter) Description() string { return "Interpret data as CSV data" }

// Parameters implements format.Interpreter.
func (i *Interpreter) Parameters() []params.Descriptor { return descriptors }

// Interpret parses raw into a JSON array: one element per data row, either
// a positional string array or, with firstRowAsHeader, an object keyed by
// the header names found in the first input row.
func (i *Interpreter) Interpret(raw string, parameters map[string]any) (string, error) {
	if err := i.validateParameters(parameters); err != nil {
		return "", err
	}

	columnSeparator := parameters["columnSeparator"].(string)
	lineSeparator := parameters["lineSeparator"].(string)
	skipFirstDataRow := parameters["skipFirstDataRow"].(bool)
	firstRowAsHeader := parameters["firstRowAsHeader"].(bool)

	rows, err := parseRows(raw, columnSeparator, lineSeparator)
	if err != nil {
		return "", errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInterpretation, err),
			"CSV", "Interpret", "parse")
	}

	var header []string
	if firstRowAsHeader && len(rows) > 0 {
		header = rows[0]
		rows = rows[1:]
	}
	if skipFirstDataRow && len(rows) > 0 {
		rows = rows[1:]
	}

	var result any
	if firstRowAsHeader {
		records := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			record := make(map[string]string, len(header))
			for col, name := range header {
				if col < len(row) {
					record[name] = row[col]
				}
			}
			records = append(records, record)
		}
		result = records
	} else {
		// Guarantee [] instead of null for empty input.
		if rows == nil {
			rows = [][]string{}
		}
		result = rows
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInterpretation, err),
			"CSV", "Interpret", "serialize")
	}
	return string(out), nil
}

func (i *Interpreter) validateParameters(parameters map[string]any) error {
	if err := params.Validate(i.Type(), descriptors, parameters); err != nil {
		return err
	}

	lineSeparator := parameters["lineSeparator"].(string)
	if lineSeparator != "\n" && lineSeparator != "\r" && lineSeparator != "\r\n" {
		err := fmt.Errorf("CSV requires parameter lineSeparator to have value \\n, \\r, or \\r\\n; given value %q is invalid",
			lineSeparator)
		return errors.WrapInvalid(err, "CSV", "Interpret", "lineSeparator validation")
	}

	columnSeparator := parameters["columnSeparator"].(string)
	if len([]rune(columnSeparator)) != 1 {
		err := fmt.Errorf("CSV requires parameter columnSeparator to have length 1; given value %q is invalid",
			columnSeparator)
		return errors.WrapInvalid(err, "CSV", "Interpret", "columnSeparator validation")
	}

	return nil
}

// parseRows normalizes the declared line separator to \n and reads every
// record with the declared column separator.
func parseRows(raw, columnSeparator, lineSeparator string) ([][]string, error) {
	if lineSeparator != "\n" {
		raw = strings.ReplaceAll(raw, lineSeparator, "\n")
	}

	reader := csv.NewReader(strings.NewReader(raw))
	reader.Comma = []rune(columnSeparator)[0]
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	return reader.ReadAll()
}
