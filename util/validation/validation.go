// Package validation validates configuration structs using their
// `validate` struct tags.
package validation

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	instance *validator.Validate
	once     sync.Once
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
	})
	return instance
}

// Struct validates the exported fields of s.
func Struct(s any) error {
	return get().Struct(s)
}
