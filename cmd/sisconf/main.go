// cmd/sisconf/main.go
//
// sisconf – resolve, apply, and inspect the openSIS configuration.
//
// Start-up sequence
// -----------------
//
//  1. Load an optional dotenv file (`--env-file`, else `.env` in cwd).
//
//  2. Start the daily rotating logger at Info; the level is handed to the
//     runtime directives later.
//
//  3. Build a Vault client when VAULT_ADDR is set, for `vault:` values.
//
//  4. Resolve the snapshot, then apply the runtime directives.
//
//  5. Run the sub-command:
//
//     • show        – snapshot as YAML, passwords masked
//     • directives  – runtime directives as YAML
//     • ping        – open the database pool and ping it
//     • metrics     – Prometheus text exposition of the start-up counters
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata" // zones for app.timezone in minimal images

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/yanizio/sisconf/internal/config"
	"github.com/yanizio/sisconf/internal/database"
	"github.com/yanizio/sisconf/internal/directive"
	"github.com/yanizio/sisconf/internal/logger"
	"github.com/yanizio/sisconf/internal/vault"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sisconf: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	app := kingpin.New("sisconf", "Resolve and inspect the openSIS configuration")
	rootFlag := app.Flag("root", "Config root (default: OPENSIS_ROOT or discovered)").String()
	fileFlag := app.Flag("config", "YAML layer path (default: <root>/conf/opensis.yaml if present)").String()
	envFile := app.Flag("env-file", "dotenv file loaded before resolving").String()

	showCmd := app.Command("show", "Print the resolved snapshot, passwords masked").Default()
	directivesCmd := app.Command("directives", "Print the runtime directives")
	pingCmd := app.Command("ping", "Open the database pool and ping it")
	pingTimeout := pingCmd.Flag("timeout", "Overall ping deadline").Default("45s").Duration()
	metricsCmd := app.Command("metrics", "Print start-up metrics in Prometheus text format")

	cmd, err := app.Parse(args)
	if err != nil {
		return err
	}

	if err := loadEnv(*envFile); err != nil {
		return err
	}

	root := *rootFlag
	if root == "" {
		root = config.RootDir()
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	tee := cmd == pingCmd.FullCommand() && logger.RunningInTTY()
	log, err := logger.New(root, tee, level)
	if err != nil {
		return fmt.Errorf("start logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := config.Options{Root: root, File: *fileFlag, Logger: log}
	if os.Getenv("VAULT_ADDR") != "" {
		cli, err := vault.New(ctx, log)
		if err != nil {
			return err
		}
		opts.Secrets = cli
	}

	snap, err := config.Resolve(ctx, opts)
	if err != nil {
		return err
	}
	rt, err := directive.Apply(snap, directive.Options{Level: &level})
	if err != nil {
		return err
	}

	switch cmd {
	case showCmd.FullCommand():
		return writeYAML(out, snap.Redacted())
	case directivesCmd.FullCommand():
		return writeYAML(out, rt.Directives)
	case pingCmd.FullCommand():
		return ping(ctx, out, snap.Database, *pingTimeout, log)
	case metricsCmd.FullCommand():
		return writeMetrics(out)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// loadEnv reads path when given, else an optional .env in cwd.  Existing
// environment variables always win.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}
	_ = godotenv.Load()
	return nil
}

func writeYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func ping(ctx context.Context, out io.Writer, cfg config.Database, timeout time.Duration, log *zap.SugaredLogger) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Infow("connecting to database", "host", cfg.Host, "port", cfg.Port, "name", cfg.Name)
	db, err := database.Open(ctx, cfg, database.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	log.Infow("database online", "host", cfg.Host)
	_, err = fmt.Fprintf(out, "ok %s:%d/%s\n", cfg.Host, cfg.Port, cfg.Name)
	return err
}

func writeMetrics(out io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}
