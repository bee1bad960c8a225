// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema for job variables or request bodies.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

var (
	compiledMu sync.Mutex
	compiled   = map[string]*Schema{}
)

// Compile parses schemaJSON once and caches it under name.
func Compile(name, schemaJSON string) (*Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if s, ok := compiled[name]; ok {
		return s, nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	out := &Schema{name: name, schema: s}
	compiled[name] = out
	return out, nil
}

// MustCompile is Compile for package-level schema literals.
func MustCompile(name, schemaJSON string) *Schema {
	s, err := Compile(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded document (map, struct or slice) against the schema.
func (s *Schema) Validate(document interface{}) *ValidationResult {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "UNREADABLE_DOCUMENT",
			}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldName(desc),
			Message: desc.Description(),
			Code:    errorCode(desc.Type()),
		})
	}
	return out
}

// ValidateInput validates job variables against a schema literal.
func ValidateInput(input map[string]interface{}, schemaJSON string) *ValidationResult {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field: "(schema)", Message: err.Error(), Code: "INVALID_SCHEMA",
		}}}
	}
	return (&Schema{schema: s}).Validate(input)
}

func fieldName(desc gojsonschema.ResultError) string {
	field := desc.Field()
	// "required" errors report the parent; the missing key is in Details
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			if field == "(root)" || field == prop {
				return prop
			}
			if strings.HasSuffix(field, "."+prop) {
				return field
			}
			return field + "." + prop
		}
	}
	return field
}

func errorCode(t string) string {
	switch t {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "invalid_type":
		return "INVALID_TYPE"
	case "enum":
		return "INVALID_ENUM_VALUE"
	case "additional_property_not_allowed":
		return "EXTRA_FIELD"
	case "number_gte", "number_gt", "number_lte", "number_lt":
		return "RANGE_VIOLATION"
	case "string_gte", "string_lte":
		return "LENGTH_VIOLATION"
	default:
		return strings.ToUpper(t)
	}
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(vr.Errors))
	for _, err := range vr.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Error joins all messages; handy when wrapping into a StandardError.
func (vr *ValidationResult) Error() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}
