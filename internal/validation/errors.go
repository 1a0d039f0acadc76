// Package validation holds the collect-all validators for authoring and grading input.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is a message attached to a single input field path such as questions.2.choices.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects every field error found while validating one payload.
type Errors struct {
	Fields []FieldError
}

// Add appends a field error.
func (e *Errors) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Addf appends a formatted field error.
func (e *Errors) Addf(field, format string, args ...interface{}) {
	e.Add(field, fmt.Sprintf(format, args...))
}

// Merge appends all fields of other.
func (e *Errors) Merge(other *Errors) {
	if other == nil {
		return
	}
	e.Fields = append(e.Fields, other.Fields...)
}

// HasErrors reports whether anything was collected.
func (e *Errors) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// Has reports whether the given field has at least one error.
func (e *Errors) Has(field string) bool {
	if e == nil {
		return false
	}
	for _, fe := range e.Fields {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Map groups messages by field for rendering.
func (e *Errors) Map() map[string][]string {
	grouped := make(map[string][]string)
	if e == nil {
		return grouped
	}
	for _, fe := range e.Fields {
		grouped[fe.Field] = append(grouped[fe.Field], fe.Message)
	}
	return grouped
}

func (e *Errors) Error() string {
	if !e.HasErrors() {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// OrNil returns nil when nothing was collected so callers can use it as an error value.
func (e *Errors) OrNil() *Errors {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// AsErrors extracts *Errors from an error chain.
func AsErrors(err error) (*Errors, bool) {
	var target *Errors
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// FromValidator converts struct validation failures into field errors keyed like scores.0.score.
func FromValidator(err error) (*Errors, bool) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, false
	}

	collected := &Errors{}
	for _, fe := range validationErrors {
		collected.Add(fieldPath(fe.Namespace()), describeTag(fe))
	}
	return collected, true
}

func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		namespace = namespace[idx+1:]
	}
	return indexPattern.ReplaceAllString(namespace, ".$1")
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " item(s) or characters"
	case "max":
		return "must have at most " + fe.Param() + " item(s) or characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed on the '" + fe.Tag() + "' rule"
	}
}
