package patchplan

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// planSchemaJSON is the embedded JSON Schema for the plan envelope. It
// enforces the wire-level shape (required keys, scalar types, enum
// membership) before the hand-written structural checks in Validate run.
// It deliberately does not encode the "exactly one shape per op" or
// array-path rules — those carry semantics (path suffixes, mutual
// exclusion) better expressed as Go code, per the component design note
// that the schema pass exists to catch type drift, not replace the
// structural pass.
const planSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["target", "ops"],
  "properties": {
    "target": {"type": "string", "minLength": 1},
    "change_reason": {"type": "string"},
    "ops": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["op", "component", "path"],
        "properties": {
          "op": {"enum": ["set", "insert_array_element", "remove_array_element"]},
          "component": {"type": "string", "minLength": 1},
          "path": {"type": "string", "minLength": 1},
          "index": {"type": "integer"},
          "value_kind": {"enum": ["int", "float", "bool", "string", "null", "json"]}
        }
      }
    }
  }
}`

var compiledSchema *jsonschema.Schema

func compiledPlanSchema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	var schemaDoc any
	if err := json.Unmarshal([]byte(planSchemaJSON), &schemaDoc); err != nil {
		return nil, fmt.Errorf("patchplan: decode embedded schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	const schemaURL = "unitytool://patch-plan.schema.json"
	if err := compiler.AddResource(schemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("patchplan: add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("patchplan: compile schema: %w", err)
	}
	compiledSchema = schema
	return schema, nil
}

// ValidateSchema decodes raw as generic JSON and validates it against
// the embedded plan schema, catching malformed/mistyped documents before
// the structural checks in Validate ever see them.
func ValidateSchema(raw []byte) error {
	schema, err := compiledPlanSchema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &ValidationError{Path: "$", Detail: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := schema.Validate(doc); err != nil {
		return &ValidationError{Path: "$", Detail: err.Error()}
	}
	return nil
}
