// SPDX-License-Identifier: MIT

// Package validate provides configuration validation utilities for the atrwac engine.
package validate

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Error represents a validation error
type Error struct {
	Field   string      // Field name that failed validation
	Value   interface{} // The invalid value
	Message string      // Human-readable error message
}

// Error implements the error interface
func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Validator accumulates validation errors and can produce a ValidationError when invalid.
type Validator struct {
	errors []Error
}

// ValidationError bundles multiple validation errors into a single error value.
type ValidationError struct {
	errors []Error
}

// New creates a new validator
func New() *Validator {
	return &Validator{
		errors: make([]Error, 0),
	}
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string, value interface{}) {
	v.errors = append(v.errors, Error{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// IsValid returns true if no errors have been accumulated
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns all accumulated validation errors
func (v *Validator) Errors() []Error {
	return v.errors
}

// Err converts the accumulated validation errors into an error value.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}

	copied := make([]Error, len(v.errors))
	copy(copied, v.errors)

	return ValidationError{errors: copied}
}

// Errors returns the individual validation errors making up the validation failure.
func (e ValidationError) Errors() []Error {
	return e.errors
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	if len(e.errors) == 0 {
		return ""
	}

	if len(e.errors) == 1 {
		return e.errors[0].Error()
	}

	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Positive validates that an integer is strictly greater than zero.
func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.AddError(field, fmt.Sprintf("must be positive, got %d", value), value)
	}
}

// NonNegative validates that an integer is zero or greater.
func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.AddError(field, fmt.Sprintf("must be >= 0, got %d", value), value)
	}
}

// Weight validates that a float is finite and zero or greater.
func (v *Validator) Weight(field string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		v.AddError(field, "must be a finite number", value)
		return
	}
	if value < 0 {
		v.AddError(field, fmt.Sprintf("must be >= 0, got %v", value), value)
	}
}

// Fraction validates that a float lies in the half-open interval (0, 1].
func (v *Validator) Fraction(field string, value float64) {
	if math.IsNaN(value) || value <= 0 || value > 1 {
		v.AddError(field, fmt.Sprintf("must be in (0, 1], got %v", value), value)
	}
}

// MinDuration validates that a duration is at least the given floor.
func (v *Validator) MinDuration(field string, value, floor time.Duration) {
	if value < floor {
		v.AddError(field, fmt.Sprintf("must be >= %s, got %s", floor, value), value)
	}
}

// Increasing validates that integer values are strictly increasing in order.
func (v *Validator) Increasing(field string, values ...int) {
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			v.AddError(field, fmt.Sprintf("values must be strictly increasing, got %v", values), values)
			return
		}
	}
}
