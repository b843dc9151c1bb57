// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `Resolve()` calls `validateSnapshot` once every layer is merged and every
// override is coerced.  A failure aborts startup, so the process never runs
// with an unusable port, empty host, or malformed base URL.
//
// Field names are taken from `yaml` tags, which keeps error messages in the
// same dotted form (`database.port`) used everywhere else.

package config

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = func() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return val
}()

//
// public API
//

// validateSnapshot returns a *ValidationError, or nil on success.
func validateSnapshot(s *Snapshot) error {
	if err := v.Struct(s); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}
