package validation

import (
	"fmt"
	"strings"

	"github.com/kbukum/extkit/errors"
)

// DetailFields is the AppError detail key holding the []FieldError.
const DetailFields = "fields"

// FieldError is one failed check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator accumulates checks on definitions built in code, where struct
// tags are not available:
//
//	err := validation.New().Required("point", key).Key("point", key).Validate()
type Validator struct {
	fields []FieldError
}

// New creates an empty Validator.
func New() *Validator {
	return &Validator{}
}

// AddError records a failed check.
func (v *Validator) AddError(field, message string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool {
	return len(v.fields) > 0
}

// Errors returns the failed checks in the order they ran.
func (v *Validator) Errors() []FieldError {
	return append([]FieldError(nil), v.fields...)
}

// Validate returns nil or an INVALID_INPUT AppError listing every failure.
func (v *Validator) Validate() error {
	return fieldsError(v.fields)
}

func fieldsError(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	messages := make([]string, len(fields))
	for i, f := range fields {
		messages[i] = f.Field + ": " + f.Message
	}
	return errors.Validation(strings.Join(messages, "; ")).WithDetail(DetailFields, fields)
}

// Required fails on empty or whitespace-only values.
func (v *Validator) Required(field, value string) *Validator {
	return v.Custom(strings.TrimSpace(value) != "", field, "is required")
}

// Key fails on a non-empty value that is not a registry identifier.
func (v *Validator) Key(field, value string) *Validator {
	return v.Custom(value == "" || IsKey(value), field, "must be a valid key")
}

// Semver fails on a non-empty value that is not a semantic version.
func (v *Validator) Semver(field, value string) *Validator {
	return v.Custom(value == "" || IsSemver(value), field, "must be a semantic version")
}

// Unique fails once for every repeated value.
func (v *Validator) Unique(field string, values []string) *Validator {
	seen := make(map[string]bool, len(values))
	for _, val := range values {
		v.Custom(!seen[val], field, fmt.Sprintf("duplicate value %q", val))
		seen[val] = true
	}
	return v
}

// Custom fails with message unless ok.
func (v *Validator) Custom(ok bool, field, message string) *Validator {
	if !ok {
		v.AddError(field, message)
	}
	return v
}
