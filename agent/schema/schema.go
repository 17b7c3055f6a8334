// Package schema is the Schema Introspector (spec §4.3): it compiles each
// tool's declared JSON schema once and validates action_input.params
// against it before invocation, producing a structured ToolValidationError
// rather than an exception when required fields are missing or typed
// incorrectly.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError is the structured, recoverable failure produced when
// params do not satisfy a tool's schema (spec §4.3). It never crosses a
// component boundary as a Go error — callers fold it into a
// ToolExecutionResult with Output = {"type": "validation_error", ...}.
type ValidationError struct {
	Missing []string
	Errors  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: missing=%v errors=%v", e.Missing, e.Errors)
}

// Schema wraps one compiled tool parameter schema.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Introspector compiles and caches tool parameter schemas, keyed by tool
// name, and validates candidate params against them.
type Introspector struct {
	schemas map[string]*Schema
}

// NewIntrospector constructs an empty Introspector. Register each tool's
// schema via Register before calling Validate for that tool.
func NewIntrospector() *Introspector {
	return &Introspector{schemas: map[string]*Schema{}}
}

// Register compiles rawSchema (a JSON Schema document) and associates it
// with toolName. Returns an error if the schema fails to compile — this is
// a registration-time, not invocation-time, failure.
func (in *Introspector) Register(toolName string, rawSchema []byte) error {
	c := jsonschema.NewCompiler()
	url := "mem://tools/" + toolName + ".json"
	if err := c.AddResource(url, strings.NewReader(string(rawSchema))); err != nil {
		return fmt.Errorf("schema: add resource for %q: %w", toolName, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("schema: compile %q: %w", toolName, err)
	}
	in.schemas[toolName] = &Schema{name: toolName, compiled: compiled}
	return nil
}

// RequiredFields returns the top-level required property names declared by
// toolName's schema, or nil if the tool has no registered schema or
// declares none. Used by the Message Builder to surface a tool's
// required-field set in the catalog without re-parsing the raw schema.
func (in *Introspector) RequiredFields(toolName string) []string {
	s, ok := in.schemas[toolName]
	if !ok || s.compiled == nil {
		return nil
	}
	return s.compiled.Required
}

// Validate checks params against toolName's registered schema. A tool with
// no registered schema is treated as accepting any params (nil). On
// failure it returns a *ValidationError with Missing populated from
// "required" keyword violations and Errors populated with every other
// schema violation message.
func (in *Introspector) Validate(toolName string, params map[string]any) *ValidationError {
	s, ok := in.schemas[toolName]
	if !ok || s.compiled == nil {
		return nil
	}

	// jsonschema validates decoded JSON values (map[string]any / []any /
	// json.Number / string / bool / nil), so round-trip params through the
	// standard encoder first to normalize Go-native types (int, float64,
	// structs) into that shape.
	raw, err := json.Marshal(params)
	if err != nil {
		return &ValidationError{Errors: []string{fmt.Sprintf("encode params: %v", err)}}
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return &ValidationError{Errors: []string{fmt.Sprintf("decode params: %v", err)}}
	}

	verr := s.compiled.Validate(instance)
	if verr == nil {
		return nil
	}
	return toValidationError(verr)
}

func toValidationError(err error) *ValidationError {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &ValidationError{Errors: []string{err.Error()}}
	}
	out := &ValidationError{}
	collect(ve, out)
	if len(out.Missing) == 0 && len(out.Errors) == 0 {
		out.Errors = append(out.Errors, ve.Error())
	}
	return out
}

func collect(ve *jsonschema.ValidationError, out *ValidationError) {
	if ve == nil {
		return
	}
	msg := ve.Error()
	if strings.Contains(ve.KeywordLocation, "required") {
		out.Missing = append(out.Missing, extractMissingField(msg))
	} else if ve.KeywordLocation != "" && len(ve.Causes) == 0 {
		out.Errors = append(out.Errors, msg)
	}
	for _, cause := range ve.Causes {
		collect(cause, out)
	}
}

// extractMissingField pulls a quoted property name out of a jsonschema
// "missing properties" style message. Falls back to the full message when
// no quoted token is present.
func extractMissingField(msg string) string {
	start := strings.IndexByte(msg, '\'')
	if start < 0 {
		return msg
	}
	end := strings.IndexByte(msg[start+1:], '\'')
	if end < 0 {
		return msg
	}
	return msg[start+1 : start+1+end]
}
