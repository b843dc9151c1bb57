// internal/config/loader_test.go
//
// Unit-tests for Resolve.
//
// Context
// -------
// Every test points Options.Root at a temp dir so no stray conf/opensis.yaml
// leaks in, and pins the clock so school.defaultYear is deterministic.  The
// DB_* variables are cleared with t.Setenv("", …); an empty value is treated
// the same as an unset one.
//
// Run: go test ./internal/config -v

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yanizio/sisconf/internal/metrics"
)

var fixedNow = func() time.Time { return time.Date(2031, time.March, 4, 12, 0, 0, 0, time.UTC) }

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD"} {
		t.Setenv(k, "")
	}
}

// envMap is an injected environment.
type envMap map[string]string

func (m envMap) lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func writeYAML(t *testing.T, root, body string) {
	t.Helper()
	dir := filepath.Join(root, "conf")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
}

func TestResolve_Defaults(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()

	got, err := Resolve(context.Background(), Options{Root: root, Now: fixedNow})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	want := Defaults(fixedNow(), root)
	if got != want {
		t.Fatalf("snapshot mismatch:\n got %+v\nwant %+v", got, want)
	}
	if got.Database.Host != "opensis-db" || got.Database.Port != 3306 {
		t.Fatalf("database = %s:%d, want opensis-db:3306", got.Database.Host, got.Database.Port)
	}
	if got.Database.Name != "opensis" || got.Database.User != "opensis_user" ||
		got.Database.Password != "opensis_pass" {
		t.Fatalf("unexpected credentials: %+v", got.Database)
	}
	if got.Database.Encoding != "utf8" || got.Database.TimeoutSeconds != 30 ||
		got.Database.Persistent || got.Database.SSL {
		t.Fatalf("unexpected database tunables: %+v", got.Database)
	}
	if got.School.DefaultYear != 2031 {
		t.Fatalf("defaultYear = %d, want 2031", got.School.DefaultYear)
	}
	if got.App.BasePath != root+"/" {
		t.Fatalf("basePath = %q, want %q", got.App.BasePath, root+"/")
	}
	if got.App.BaseURL != "http://localhost:8080/" {
		t.Fatalf("baseUrl = %q", got.App.BaseURL)
	}
	if got.Uploads.StudentPicturesPath != "assets/studentphotos/" ||
		got.Uploads.UserPicturesPath != "assets/userphotos/" {
		t.Fatalf("unexpected uploads: %+v", got.Uploads)
	}
	if got.Security.PasswordMinLength != 6 || got.Security.PasswordComplexityRequired {
		t.Fatalf("unexpected security: %+v", got.Security)
	}
	if got.Email != (Email{Port: 587, SSL: true}) {
		t.Fatalf("unexpected email: %+v", got.Email)
	}
	if !got.DebugMode {
		t.Fatalf("debugMode = false, want true")
	}
}

func TestResolve_DBOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_HOST", "db2")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_NAME", "sis")
	t.Setenv("DB_USER", "admin")
	t.Setenv("DB_PASSWORD", "hunter2")

	got, err := Resolve(context.Background(), Options{Root: t.TempDir(), Now: fixedNow})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want := Database{
		Type: "mysqli", Host: "db2", Port: 5432, Name: "sis", User: "admin",
		Password: "hunter2", Encoding: "utf8", TimeoutSeconds: 30,
	}
	if got.Database != want {
		t.Fatalf("database = %+v, want %+v", got.Database, want)
	}
}

func TestResolve_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PORT", "notanumber")

	before := testutil.ToFloat64(metrics.ConfigResolutions.WithLabelValues(metrics.ResultParse))

	_, err := Resolve(context.Background(), Options{Root: t.TempDir(), Now: fixedNow})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if pe.Field != "database.port" || pe.Source != "DB_PORT" || pe.Value != "notanumber" {
		t.Fatalf("unexpected ParseError: %+v", pe)
	}

	after := testutil.ToFloat64(metrics.ConfigResolutions.WithLabelValues(metrics.ResultParse))
	if after != before+1 {
		t.Fatalf("parse_error counter = %v, want %v", after, before+1)
	}
}

func TestResolve_YAMLLayer(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeYAML(t, root, `
database:
  host: yaml-host
  port: 3307
  timeoutSeconds: 10
  persistent: true
app:
  baseUrl: https://sis.example.org/
email:
  server: smtp.example.org
debugMode: false
`)
	t.Setenv("DB_HOST", "env-host")

	got, err := Resolve(context.Background(), Options{Root: root, Now: fixedNow})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.Database.Host != "env-host" {
		t.Fatalf("host = %q, DB_HOST must win over YAML", got.Database.Host)
	}
	if got.Database.Port != 3307 || got.Database.TimeoutSeconds != 10 || !got.Database.Persistent {
		t.Fatalf("YAML values not applied: %+v", got.Database)
	}
	if got.App.BaseURL != "https://sis.example.org/" || got.Email.Server != "smtp.example.org" {
		t.Fatalf("YAML values not applied: %+v / %+v", got.App, got.Email)
	}
	if got.DebugMode {
		t.Fatalf("debugMode = true, want false from YAML")
	}
}

func TestResolve_YAMLBadType(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeYAML(t, root, "database:\n  port: abc\n")

	_, err := Resolve(context.Background(), Options{Root: root, Now: fixedNow})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if pe.Field != "database.port" {
		t.Fatalf("field = %q, want database.port", pe.Field)
	}
}

func TestResolve_ExplicitFileMissing(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()

	_, err := Resolve(context.Background(), Options{
		Root: root,
		File: filepath.Join(root, "nope.yaml"),
		Now:  fixedNow,
	})
	if err == nil {
		t.Fatalf("expected error for missing explicit file")
	}
}

func TestResolve_PrefixedEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENSIS_APP__BASEURL", "https://school.example.net/")
	t.Setenv("OPENSIS_DEBUGMODE", "false")
	t.Setenv("OPENSIS_DATABASE__TIMEOUTSECONDS", "5")
	t.Setenv("OPENSIS_DATABASE__PORT", "3310")
	t.Setenv("DB_PORT", "3320")

	got, err := Resolve(context.Background(), Options{Root: t.TempDir(), Now: fixedNow})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.App.BaseURL != "https://school.example.net/" {
		t.Fatalf("baseUrl = %q", got.App.BaseURL)
	}
	if got.DebugMode {
		t.Fatalf("debugMode = true, want false")
	}
	if got.Database.TimeoutSeconds != 5 {
		t.Fatalf("timeoutSeconds = %d, want 5", got.Database.TimeoutSeconds)
	}
	if got.Database.Port != 3320 {
		t.Fatalf("port = %d, DB_PORT must win over OPENSIS_", got.Database.Port)
	}
}

func TestResolve_PrefixedEnvBadBool(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENSIS_DEBUGMODE", "sometimes")

	_, err := Resolve(context.Background(), Options{Root: t.TempDir(), Now: fixedNow})
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Field != "debugMode" {
		t.Fatalf("err = %v, want *ParseError for debugMode", err)
	}
}

func TestResolve_Validation(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PORT", "70000")

	_, err := Resolve(context.Background(), Options{Root: t.TempDir(), Now: fixedNow})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	fields := ve.Fields()
	if len(fields) != 1 || fields[0] != "database.port" {
		t.Fatalf("fields = %v, want [database.port]", fields)
	}
}

func TestResolve_DefaultYearFollowsClock(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()

	// 23:30 on Dec 31 in UTC-5 is already next year in UTC.
	est := time.FixedZone("EST", -5*3600)
	first, err := Resolve(context.Background(), Options{
		Root: root,
		Now:  func() time.Time { return time.Date(2030, time.December, 31, 18, 0, 0, 0, est) },
	})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	second, err := Resolve(context.Background(), Options{
		Root: root,
		Now:  func() time.Time { return time.Date(2030, time.December, 31, 23, 30, 0, 0, est) },
	})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if first.School.DefaultYear != 2030 || second.School.DefaultYear != 2031 {
		t.Fatalf("years = %d, %d; want 2030, 2031",
			first.School.DefaultYear, second.School.DefaultYear)
	}

	first.School.DefaultYear = second.School.DefaultYear
	if first != second {
		t.Fatalf("snapshots differ beyond defaultYear")
	}
}

// fakeSecrets satisfies SecretSource from a map.
type fakeSecrets map[string]string

func (f fakeSecrets) Secret(_ context.Context, ref string) (string, error) {
	v, ok := f[ref]
	if !ok {
		return "", errors.New("no such secret")
	}
	return v, nil
}

func TestResolve_SecretReferences(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PASSWORD", "vault:secret/opensis#db_password")

	got, err := Resolve(context.Background(), Options{
		Root:    t.TempDir(),
		Now:     fixedNow,
		Secrets: fakeSecrets{"secret/opensis#db_password": "s3cret"},
	})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.Database.Password != "s3cret" {
		t.Fatalf("password = %q, want resolved secret", got.Database.Password)
	}

	_, err = Resolve(context.Background(), Options{Root: t.TempDir(), Now: fixedNow})
	if !errors.Is(err, ErrSecretUnavailable) {
		t.Fatalf("err = %v, want ErrSecretUnavailable", err)
	}
	var se *SecretError
	if !errors.As(err, &se) || se.Field != "database.password" {
		t.Fatalf("err = %v, want *SecretError for database.password", err)
	}

	_, err = Resolve(context.Background(), Options{
		Root:    t.TempDir(),
		Now:     fixedNow,
		Secrets: fakeSecrets{},
	})
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SecretError", err)
	}
}

func TestResolve_Logs(t *testing.T) {
	clearEnv(t)
	core, logs := observer.New(zapcore.DebugLevel)

	_, err := Resolve(context.Background(), Options{
		Root:   t.TempDir(),
		Now:    fixedNow,
		Logger: zap.New(core).Sugar(),
	})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if logs.FilterMessage("config resolved").Len() != 1 {
		t.Fatalf("missing INFO span; got %v", logs.All())
	}
	if logs.FilterMessage("config yaml absent").Len() != 1 {
		t.Fatalf("missing DEBUG span for absent YAML")
	}
}

func TestSnapshot_Redacted(t *testing.T) {
	s := Defaults(fixedNow(), "/srv/opensis")
	s.Email.Password = "mailpw"

	r := s.Redacted()
	if r.Database.Password != redacted || r.Email.Password != redacted {
		t.Fatalf("passwords not masked: %+v / %+v", r.Database, r.Email)
	}
	if s.Database.Password != "opensis_pass" {
		t.Fatalf("Redacted mutated the receiver")
	}

	s.Email.Password = ""
	if s.Redacted().Email.Password != "" {
		t.Fatalf("empty password must stay empty")
	}
}

func TestResolve_InjectedEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_HOST", "process-host")
	t.Setenv("OPENSIS_DEBUGMODE", "false")

	env := envMap{
		"DB_HOST":                             "injected-host",
		"DB_PORT":                             "",
		"OPENSIS_DATABASE__TIMEOUTSECONDS":    "7",
		"OPENSIS_APP__BASEURL":                "https://injected.example.org/",
		"OPENSIS_SECURITY__PASSWORDMINLENGTH": "12",
	}
	got, err := Resolve(context.Background(), Options{
		Root:      t.TempDir(),
		Now:       fixedNow,
		LookupEnv: env.lookup,
	})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.Database.Host != "injected-host" || got.Database.Port != 3306 {
		t.Fatalf("database = %s:%d, want injected-host:3306", got.Database.Host, got.Database.Port)
	}
	if got.Database.TimeoutSeconds != 7 || got.Security.PasswordMinLength != 12 {
		t.Fatalf("OPENSIS_ values not applied: %+v / %+v", got.Database, got.Security)
	}
	if got.App.BaseURL != "https://injected.example.org/" {
		t.Fatalf("baseUrl = %q", got.App.BaseURL)
	}
	if !got.DebugMode {
		t.Fatalf("process OPENSIS_DEBUGMODE leaked past LookupEnv")
	}

	_, err = Resolve(context.Background(), Options{
		Root:      t.TempDir(),
		Now:       fixedNow,
		LookupEnv: envMap{"DB_PORT": "x"}.lookup,
	})
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Field != "database.port" {
		t.Fatalf("err = %v, want ParseError for database.port", err)
	}
}

func TestResolve_YAMLUnquotedNumberForString(t *testing.T) {
	clearEnv(t)

	for field, body := range map[string]string{
		"database.password": "database:\n  password: 0123\n",
		"database.name":     "database:\n  name: 1e3\n",
		"email.user":        "email:\n  user: true\n",
	} {
		root := t.TempDir()
		writeYAML(t, root, body)

		_, err := Resolve(context.Background(), Options{Root: root, Now: fixedNow})
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Field != field {
			t.Fatalf("%s: err = %v, want ParseError", field, err)
		}
		if !errors.Is(err, errNotString) {
			t.Fatalf("%s: err = %v, want errNotString", field, err)
		}
	}

	root := t.TempDir()
	writeYAML(t, root, "database:\n  password: \"0123\"\n")
	got, err := Resolve(context.Background(), Options{Root: root, Now: fixedNow})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.Database.Password != "0123" {
		t.Fatalf("password = %q, want 0123", got.Database.Password)
	}
}

func TestResolve_Timezone(t *testing.T) {
	clearEnv(t)

	got, err := Resolve(context.Background(), Options{
		Root:      t.TempDir(),
		Now:       fixedNow,
		LookupEnv: envMap{"OPENSIS_APP__TIMEZONE": "America/New_York"}.lookup,
	})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	loc, err := got.Location()
	if err != nil || loc.String() != "America/New_York" {
		t.Fatalf("Location = %v, %v", loc, err)
	}

	_, err = Resolve(context.Background(), Options{
		Root:      t.TempDir(),
		Now:       fixedNow,
		LookupEnv: envMap{"OPENSIS_APP__TIMEZONE": "Mars/Base"}.lookup,
	})
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Field != "app.timezone" || pe.Source != "OPENSIS_*" {
		t.Fatalf("err = %v, want ParseError for app.timezone", err)
	}
}
