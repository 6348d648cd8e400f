package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildColumnsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map describing a table's extraction schema: every column key as a
// nullable string/number property, all keys required.
func BuildColumnsJSONSchema(columns []ColumnSpec) map[string]any {
	props := make(map[string]any, len(columns))
	required := make([]string, 0, len(columns))
	for _, c := range columns {
		props[c.Key] = map[string]any{
			"type":        []string{"string", "number", "null"},
			"description": c.Description,
		}
		required = append(required, c.Key)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// ValidateAgainstSchema validates "data" against "schemaMap".
func ValidateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
