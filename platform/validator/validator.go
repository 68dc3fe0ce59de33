// Package validator provides request validation infrastructure.
// This is part of the platform layer and contains no business logic.
package validator

import "github.com/go-playground/validator/v10"

// Validator wraps the go-playground validator so modules receive it by
// injection instead of sharing a package-level instance.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator. Domain-specific rules are registered with
// RegisterValidation by the module that owns them.
func New() *Validator {
	return &Validator{v: validator.New()}
}

// Struct validates a struct based on its validation tags.
func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}

// Var validates a single value against a tag.
func (val *Validator) Var(field any, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
