// internal/config/layer.go
//
// Typed binding of one overlay onto a Snapshot.
//
// Context
// -------
// Each overlay (YAML file, OPENSIS_ environment) is flattened to lower-cased
// dotted keys, then `bind()` walks the field table and coerces what it finds.
// String fields accept YAML strings only; ints and bools also accept their
// textual forms.  The first failure stops the walk with *ParseError.

package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	koanf "github.com/knadh/koanf/v2"
)

var (
	errNotScalar  = errors.New("not a scalar value")
	errFractional = errors.New("not a whole number")
	errNotString  = errors.New("not a string; quote the value")
)

// layer is one overlay flattened to lower-cased dotted keys.  YAML authors
// write `timeoutSeconds`, env vars arrive as `timeoutseconds`; both match.
type layer struct {
	name string
	vals map[string]any
}

func newLayer(name string, k *koanf.Koanf) layer {
	all := k.All()
	vals := make(map[string]any, len(all))
	for key, val := range all {
		vals[strings.ToLower(key)] = val
	}
	return layer{name: name, vals: vals}
}

// binding ties a dotted field name to its destination.  dst is *string,
// *int, or *bool.  check, when set, vets a string value before it lands.
type binding struct {
	field string
	dst   any
	check func(string) error
}

// bindings lists every field a layer may set.  BasePath is runtime only
// and never read from a layer.
func (s *Snapshot) bindings() []binding {
	return []binding{
		{field: "database.type", dst: &s.Database.Type},
		{field: "database.host", dst: &s.Database.Host},
		{field: "database.port", dst: &s.Database.Port},
		{field: "database.name", dst: &s.Database.Name},
		{field: "database.user", dst: &s.Database.User},
		{field: "database.password", dst: &s.Database.Password},
		{field: "database.encoding", dst: &s.Database.Encoding},
		{field: "database.timeoutSeconds", dst: &s.Database.TimeoutSeconds},
		{field: "database.persistent", dst: &s.Database.Persistent},
		{field: "database.ssl", dst: &s.Database.SSL},

		{field: "school.defaultYear", dst: &s.School.DefaultYear},

		{field: "app.timezone", dst: &s.App.Timezone, check: checkZone},
		{field: "app.baseUrl", dst: &s.App.BaseURL},

		{field: "uploads.studentPicturesPath", dst: &s.Uploads.StudentPicturesPath},
		{field: "uploads.userPicturesPath", dst: &s.Uploads.UserPicturesPath},

		{field: "security.passwordMinLength", dst: &s.Security.PasswordMinLength},
		{field: "security.passwordComplexityRequired", dst: &s.Security.PasswordComplexityRequired},

		{field: "email.server", dst: &s.Email.Server},
		{field: "email.port", dst: &s.Email.Port},
		{field: "email.user", dst: &s.Email.User},
		{field: "email.password", dst: &s.Email.Password},
		{field: "email.ssl", dst: &s.Email.SSL},

		{field: "debugMode", dst: &s.DebugMode},
	}
}

// bind copies every value present in l onto s.
func (s *Snapshot) bind(l layer) error {
	b := &binder{l: l}
	for _, f := range s.bindings() {
		switch dst := f.dst.(type) {
		case *string:
			b.str(f.field, dst, f.check)
		case *int:
			b.integer(f.field, dst)
		case *bool:
			b.boolean(f.field, dst)
		}
	}
	return b.err
}

func checkZone(name string) error {
	_, err := time.LoadLocation(name)
	return err
}

//
// binder: typed reads that stop at the first failure
//

type binder struct {
	l   layer
	err error
}

// raw returns the value for field.  Missing, nil, and empty-string values
// do not override.
func (b *binder) raw(field string) (any, bool) {
	if b.err != nil {
		return nil, false
	}
	v, ok := b.l.vals[strings.ToLower(field)]
	if !ok || v == nil {
		return nil, false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return nil, false
	}
	return v, true
}

func (b *binder) fail(field string, v any, err error) {
	b.err = &ParseError{Field: field, Source: b.l.name, Value: fmt.Sprint(v), Err: err}
}

// str accepts strings only.  YAML turns unquoted 0123 into 83 and 1e3 into
// 1000, so any other scalar is refused rather than re-printed.
func (b *binder) str(field string, dst *string, check func(string) error) {
	v, ok := b.raw(field)
	if !ok {
		return
	}
	t, isStr := v.(string)
	if !isStr {
		b.fail(field, v, errNotString)
		return
	}
	if check != nil {
		if err := check(t); err != nil {
			b.fail(field, v, err)
			return
		}
	}
	*dst = t
}

func (b *binder) integer(field string, dst *int) {
	v, ok := b.raw(field)
	if !ok {
		return
	}
	switch t := v.(type) {
	case int:
		*dst = t
	case int64:
		*dst = int(t)
	case uint64:
		*dst = int(t)
	case float64:
		if t != math.Trunc(t) {
			b.fail(field, v, errFractional)
			return
		}
		*dst = int(t)
	case string:
		n, err := parseInt(t)
		if err != nil {
			b.fail(field, v, err)
			return
		}
		*dst = n
	default:
		b.fail(field, v, errNotScalar)
	}
}

func (b *binder) boolean(field string, dst *bool) {
	v, ok := b.raw(field)
	if !ok {
		return
	}
	switch t := v.(type) {
	case bool:
		*dst = t
	case string:
		x, err := parseBool(t)
		if err != nil {
			b.fail(field, v, err)
			return
		}
		*dst = x
	default:
		b.fail(field, v, errNotScalar)
	}
}
