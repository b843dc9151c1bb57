// internal/directive/directive.go
//
// Process-wide runtime directives derived from a config.Snapshot.
//
// Context
// -------
// A handful of operational limits apply to the whole process rather than to
// any one component: diagnostic verbosity, session lifetimes, the memory
// ceiling, request time ceilings, upload sizes, and the default time zone.
// `For()` computes them as a plain value; `Apply()` pushes the ones that have
// a process-level knob (soft memory limit, log level, time.Local) and returns
// a `Runtime` that callers thread into the HTTP, session, and middleware
// helpers.
//
// Only ErrorReporting and DisplayErrors depend on DebugMode.  Everything
// else is fixed.
//
// Notes
// -----
//   • Apply is idempotent; calling it twice with the same snapshot leaves
//     the process in the same state.
//   • Oxford commas, two spaces after periods.

package directive

import (
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yanizio/sisconf/internal/config"
	"github.com/yanizio/sisconf/internal/metrics"
)

const (
	MiB = 1 << 20

	SessionIdleTimeout    = 3600 * time.Second
	SessionCookieLifetime = time.Duration(0) // until the browser closes
	MemoryLimit           = 512 * MiB
	MaxExecutionTime      = 300 * time.Second
	MaxInputTime          = 300 * time.Second
	UploadMaxFileSize     = 50 * MiB
	PostMaxSize           = 50 * MiB
)

// silentLevel sits above Fatal, so no entry is enabled.
const silentLevel = zapcore.FatalLevel + 1

// Reporting is the diagnostic verbosity.
type Reporting int

const (
	ReportNone Reporting = iota
	ReportAll
)

func (r Reporting) String() string {
	if r == ReportAll {
		return "all"
	}
	return "none"
}

// MarshalYAML prints the level by name.
func (r Reporting) MarshalYAML() (any, error) { return r.String(), nil }

// Directives is the full set of runtime limits.
type Directives struct {
	ErrorReporting        Reporting     `yaml:"errorReporting"`
	DisplayErrors         bool          `yaml:"displayErrors"`
	SessionIdleTimeout    time.Duration `yaml:"sessionIdleTimeout"`
	SessionCookieLifetime time.Duration `yaml:"sessionCookieLifetime"`
	MemoryLimit           int64         `yaml:"memoryLimit"`
	MaxExecutionTime      time.Duration `yaml:"maxExecutionTime"`
	MaxInputTime          time.Duration `yaml:"maxInputTime"`
	UploadMaxFileSize     int64         `yaml:"uploadMaxFileSize"`
	PostMaxSize           int64         `yaml:"postMaxSize"`
}

// For derives Directives from s.  Pure.
func For(s config.Snapshot) Directives {
	d := Directives{
		ErrorReporting:        ReportNone,
		DisplayErrors:         false,
		SessionIdleTimeout:    SessionIdleTimeout,
		SessionCookieLifetime: SessionCookieLifetime,
		MemoryLimit:           MemoryLimit,
		MaxExecutionTime:      MaxExecutionTime,
		MaxInputTime:          MaxInputTime,
		UploadMaxFileSize:     UploadMaxFileSize,
		PostMaxSize:           PostMaxSize,
	}
	if s.DebugMode {
		d.ErrorReporting = ReportAll
		d.DisplayErrors = true
	}
	return d
}

// LogLevel maps ErrorReporting onto a zap level.
func (d Directives) LogLevel() zapcore.Level {
	if d.ErrorReporting == ReportAll {
		return zapcore.DebugLevel
	}
	return silentLevel
}

// Runtime is what Apply leaves behind.  Callers pass it on explicitly.
type Runtime struct {
	Directives
	Level    zap.AtomicLevel
	Location *time.Location
}

// Options lets tests and embedders intercept the process-level knobs.
type Options struct {
	// Level is adjusted in place when set, so a logger built before Apply
	// follows the directive.  A fresh level is created otherwise.
	Level *zap.AtomicLevel

	// SetMemoryLimit defaults to runtime/debug.SetMemoryLimit.
	SetMemoryLimit func(int64) int64

	// SetLocation defaults to assigning time.Local.
	SetLocation func(*time.Location)
}

func setLocal(loc *time.Location) { time.Local = loc }

// Apply pushes the directives for s into the process and returns the
// resulting Runtime.  It fails, before touching anything, when
// app.timezone does not load.
func Apply(s config.Snapshot, opts Options) (*Runtime, error) {
	d := For(s)

	loc, err := s.Location()
	if err != nil {
		return nil, fmt.Errorf("directive: app.timezone %q: %w", s.App.Timezone, err)
	}
	setLoc := opts.SetLocation
	if setLoc == nil {
		setLoc = setLocal
	}
	setLoc(loc)

	setLimit := opts.SetMemoryLimit
	if setLimit == nil {
		setLimit = debug.SetMemoryLimit
	}
	setLimit(d.MemoryLimit)

	var lvl zap.AtomicLevel
	if opts.Level != nil {
		lvl = *opts.Level
	} else {
		lvl = zap.NewAtomicLevel()
	}
	lvl.SetLevel(d.LogLevel())

	metrics.DirectiveApplications.Inc()
	metrics.MemoryLimitBytes.Set(float64(d.MemoryLimit))
	if d.DisplayErrors {
		metrics.DebugMode.Set(1)
	} else {
		metrics.DebugMode.Set(0)
	}

	return &Runtime{Directives: d, Level: lvl, Location: loc}, nil
}
