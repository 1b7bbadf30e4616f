package patchplan

import (
	"encoding/json"
	"fmt"
	"os"
)

// Loaded bundles a parsed plan with the exact bytes it was read from.
// The digest and signature in §4.5/§8 are computed over RawBytes, never
// over a re-serialization of Plan, so byte-exact round-tripping holds.
type Loaded struct {
	Plan     PatchPlan
	RawBytes []byte
}

// Load reads path, validates it against the embedded JSON Schema, then
// decodes and structurally validates it. Schema and decode errors are
// surfaced as *ValidationError and structural errors as
// *MultiValidationError; callers map both to envelope.CodeSchemaError.
func Load(path string) (*Loaded, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("patchplan: read %s: %w", path, err)
	}

	if err := ValidateSchema(raw); err != nil {
		return nil, err
	}

	var plan PatchPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, &ValidationError{Path: "$", Detail: fmt.Sprintf("decode plan: %v", err)}
	}

	if errs := plan.Validate(); len(errs) > 0 {
		return nil, &MultiValidationError{Errors: errs}
	}

	return &Loaded{Plan: plan, RawBytes: raw}, nil
}

// MultiValidationError aggregates every structural violation found in a
// single plan so callers can report them all at once.
type MultiValidationError struct {
	Errors []*ValidationError
}

func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "plan validation failed"
	}
	msg := e.Errors[0].Error()
	if len(e.Errors) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(e.Errors)-1)
	}
	return msg
}
