// internal/config/env.go
//
// Typed environment lookups.
//
// Context
// -------
// `getEnvOr()` reads one variable through a LookupFunc and converts it.  An
// unset or empty variable yields the default; a value that does not convert
// yields *ParseError.  `applyDBEnv()` uses it for the five DB_* variables,
// which sit above every other layer.

package config

import (
	"os"
	"strconv"
	"strings"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// getEnvOr returns def when name is unset or empty, otherwise parse(value).
// A parse failure becomes a *ParseError naming field.
func getEnvOr[T any](lookup LookupFunc, name, field string, def T, parse func(string) (T, error)) (T, error) {
	raw, ok := lookup(name)
	if !ok || raw == "" {
		return def, nil
	}
	val, err := parse(raw)
	if err != nil {
		return def, &ParseError{Field: field, Source: name, Value: raw, Err: err}
	}
	return val, nil
}

func parseString(s string) (string, error) { return s, nil }

func parseInt(s string) (int, error) { return strconv.Atoi(strings.TrimSpace(s)) }

func parseBool(s string) (bool, error) { return strconv.ParseBool(strings.TrimSpace(s)) }

// applyDBEnv overlays the five DB_* variables.  These sit above every other
// layer.
func applyDBEnv(lookup LookupFunc, s *Snapshot) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var err error
	db := &s.Database

	if db.Host, err = getEnvOr(lookup, "DB_HOST", "database.host", db.Host, parseString); err != nil {
		return err
	}
	if db.Port, err = getEnvOr(lookup, "DB_PORT", "database.port", db.Port, parseInt); err != nil {
		return err
	}
	if db.Name, err = getEnvOr(lookup, "DB_NAME", "database.name", db.Name, parseString); err != nil {
		return err
	}
	if db.User, err = getEnvOr(lookup, "DB_USER", "database.user", db.User, parseString); err != nil {
		return err
	}
	db.Password, err = getEnvOr(lookup, "DB_PASSWORD", "database.password", db.Password, parseString)
	return err
}
