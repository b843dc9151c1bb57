// internal/config/secrets.go
//
// Secret references in string fields.
//
// Context
// -------
// Any credential field may hold `vault:<mount>/<path>#<key>` instead of a
// literal.  After all layers merge, `resolveSecrets()` swaps each reference
// for the value a SecretSource returns.  A reference with no source is an
// error; it never reaches the database driver as a password.

package config

import (
	"context"
	"fmt"
	"strings"
)

// SecretPrefix marks a string value as a reference to be resolved through a
// SecretSource, e.g. `vault:secret/opensis#db_password`.
const SecretPrefix = "vault:"

// SecretSource resolves a reference (without the prefix) to its plaintext.
// *vault.Client satisfies it.
type SecretSource interface {
	Secret(ctx context.Context, ref string) (string, error)
}

// SecretError reports a secret reference that could not be resolved.
type SecretError struct {
	Field string
	Err   error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("config: %s: resolve secret: %v", e.Field, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

type namedString struct {
	field string
	p     *string
}

// secretFields lists the string fields that may hold secret references.
func (s *Snapshot) secretFields() []namedString {
	return []namedString{
		{"database.host", &s.Database.Host},
		{"database.name", &s.Database.Name},
		{"database.user", &s.Database.User},
		{"database.password", &s.Database.Password},
		{"email.server", &s.Email.Server},
		{"email.user", &s.Email.User},
		{"email.password", &s.Email.Password},
	}
}

// resolveSecrets swaps every vault: reference for its secret value.
func resolveSecrets(ctx context.Context, src SecretSource, s *Snapshot) error {
	for _, f := range s.secretFields() {
		ref, ok := strings.CutPrefix(*f.p, SecretPrefix)
		if !ok {
			continue
		}
		if src == nil {
			return &SecretError{Field: f.field, Err: ErrSecretUnavailable}
		}
		val, err := src.Secret(ctx, ref)
		if err != nil {
			return &SecretError{Field: f.field, Err: err}
		}
		*f.p = val
	}
	return nil
}
