// internal/config/errors.go
//
// Error types returned by Resolve.
//
// Context
// -------
// Callers branch with errors.As: *ParseError for a value that does not fit
// its field, *ValidationError for a merged snapshot that breaks a rule, and
// *SecretError (secrets.go) for an unresolved `vault:` reference.  All are
// fatal at startup.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrSecretUnavailable is returned when a field holds a vault: reference but
// no SecretSource was supplied.
var ErrSecretUnavailable = errors.New("config: secret reference without a secret source")

// ParseError reports an override that cannot be coerced to its field's type.
// It is fatal at startup; the value is never silently replaced by a default.
type ParseError struct {
	Field  string // dotted field name, e.g. database.port
	Source string // env var name or layer label
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: %s: cannot parse %q from %s: %v", e.Field, e.Value, e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError wraps the validator's field errors.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	var ve validator.ValidationErrors
	if !errors.As(e.Err, &ve) {
		return "config: invalid: " + e.Err.Error()
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s failed %q", fieldName(fe.Namespace()), fe.Tag()))
	}
	return "config: invalid: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Fields lists the dotted names of every invalid field.
func (e *ValidationError) Fields() []string {
	var ve validator.ValidationErrors
	if !errors.As(e.Err, &ve) {
		return nil
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		out = append(out, fieldName(fe.Namespace()))
	}
	return out
}

// fieldName drops the root struct name from a validator namespace.
func fieldName(ns string) string {
	if i := strings.IndexByte(ns, '.'); i != -1 {
		return ns[i+1:]
	}
	return ns
}
