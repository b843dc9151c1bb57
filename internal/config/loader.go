// internal/config/loader.go
//
// Configuration resolver.
//
/*
Context
--------
`Resolve()` builds one `Snapshot` from four layers (highest precedence
last):

  1. Compiled-in defaults, with `school.defaultYear` taken from the clock
     and `app.basePath` from the discovered root.
  2. Optional `conf/opensis.yaml` under the root.
  3. Environment variables prefixed `OPENSIS_`, where `__` maps to “.”
     (e.g., `OPENSIS_APP__BASEURL → app.baseurl`).
  4. `DB_HOST`, `DB_PORT`, `DB_NAME`, `DB_USER`, and `DB_PASSWORD`.

Layers 3 and 4 read the process environment unless Options.LookupEnv is
set.  `app.timezone` must name a loadable zone.

Empty values never override.  Values that cannot be coerced to the field
type fail with *ParseError.  `vault:` references are then resolved, and
the merged snapshot is validated.

There is no package-level cache.  Callers hold the returned value and pass
it on explicitly.

Instrumentation
---------------
  • DEBUG spans: root discovery, YAML read, env overlay.
  • ERROR span:  any failure, with the offending field when known.
  • INFO  span:  final “config resolved” with key highlights.
  • `config_resolutions_total{result}` counts every call.
*/
package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/yanizio/sisconf/internal/metrics"
)

const envPrefix = "OPENSIS_"

// Options tunes a single Resolve call.  The zero value resolves from the
// process environment, the discovered root, and the wall clock.
type Options struct {
	Root string // skips root discovery when set
	File string // YAML path; must exist when set explicitly
	Now  func() time.Time

	// LookupEnv replaces the process environment for both the OPENSIS_
	// and DB_* layers.
	LookupEnv LookupFunc

	Secrets SecretSource
	Logger  *zap.SugaredLogger
}

/*─────────────────────────────── resolver ─────────────────────────────────*/

// Resolve merges all layers into a validated Snapshot.
func Resolve(ctx context.Context, opts Options) (Snapshot, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	fail := func(err error) (Snapshot, error) {
		metrics.ConfigResolutions.WithLabelValues(resultLabel(err)).Inc()
		log.Errorw("config resolution failed", "err", err)
		return Snapshot{}, err
	}

	root := opts.Root
	if root == "" {
		root = RootDir()
	}
	log.Debugw("config root resolved", "root", root)

	s := Defaults(now(), root)

	if err := overlayFile(&s, root, opts.File, log); err != nil {
		return fail(err)
	}
	if err := overlayEnv(&s, opts.LookupEnv, log); err != nil {
		return fail(err)
	}
	if err := applyDBEnv(opts.LookupEnv, &s); err != nil {
		return fail(err)
	}
	if err := resolveSecrets(ctx, opts.Secrets, &s); err != nil {
		return fail(err)
	}
	if err := validateSnapshot(&s); err != nil {
		return fail(err)
	}

	metrics.ConfigResolutions.WithLabelValues(metrics.ResultOK).Inc()
	log.Infow("config resolved",
		"db_host", s.Database.Host,
		"db_port", s.Database.Port,
		"db_name", s.Database.Name,
		"default_year", s.School.DefaultYear,
		"base_path", s.App.BasePath,
		"debug", s.DebugMode,
	)
	return s, nil
}

/*──────────────────────────── overlays ────────────────────────────────────*/

func overlayFile(s *Snapshot, root, explicit string, log *zap.SugaredLogger) error {
	path := explicit
	if path == "" {
		path = filepath.Join(root, "conf", FileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.Debugw("config yaml absent", "file", path)
			return nil
		}
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return &loadError{source: path, err: err}
	}
	log.Debugw("config yaml loaded", "file", path)
	return s.bind(newLayer(path, k))
}

func overlayEnv(s *Snapshot, lookup LookupFunc, log *zap.SugaredLogger) error {
	var p koanf.Provider = env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return envKey(key), value
	})
	if lookup != nil {
		p = lookupProvider{lookup: lookup, fields: s.bindings()}
	}

	k := koanf.New(".")
	if err := k.Load(p, nil); err != nil {
		return &loadError{source: envPrefix + "*", err: err}
	}
	log.Debugw("config env overlay loaded", "keys", len(k.Keys()))
	return s.bind(newLayer(envPrefix+"*", k))
}

// envKey maps OPENSIS_DATABASE__TIMEOUTSECONDS → database.timeoutseconds.
func envKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, envPrefix), "__", "."))
}

// envName is the inverse of envKey: database.timeoutSeconds →
// OPENSIS_DATABASE__TIMEOUTSECONDS.
func envName(field string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "__"))
}

// lookupProvider is a koanf.Provider over a LookupFunc.  A lookup cannot
// list variables, so it asks for each bindable field by name.
type lookupProvider struct {
	lookup LookupFunc
	fields []binding
}

func (p lookupProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("lookup provider does not support ReadBytes")
}

func (p lookupProvider) Read() (map[string]interface{}, error) {
	flat := make(map[string]interface{})
	for _, f := range p.fields {
		if v, ok := p.lookup(envName(f.field)); ok && v != "" {
			flat[strings.ToLower(f.field)] = v
		}
	}
	return maps.Unflatten(flat, "."), nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

type loadError struct {
	source string
	err    error
}

func (e *loadError) Error() string { return "config: load " + e.source + ": " + e.err.Error() }
func (e *loadError) Unwrap() error { return e.err }

func resultLabel(err error) string {
	var (
		pe *ParseError
		ve *ValidationError
		se *SecretError
	)
	switch {
	case errors.As(err, &pe):
		return metrics.ResultParse
	case errors.As(err, &ve):
		return metrics.ResultValidation
	case errors.As(err, &se):
		return metrics.ResultSecret
	default:
		return metrics.ResultLoad
	}
}
