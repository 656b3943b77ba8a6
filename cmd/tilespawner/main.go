// Package main is the entry point for tilespawner.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/samdwyer/tilespawner/internal/config"
	"github.com/samdwyer/tilespawner/internal/palette"
	"github.com/samdwyer/tilespawner/internal/telemetry"
)

const usage = `usage: tilespawner <command> [flags]

commands:
  play      walk interactively in the terminal (default)
  generate  run a walk headless and print it
  show      replay and print a saved snapshot
  history   list recorded walks
  serve     serve walks over SSH and websocket
`

func main() {
	os.Exit(realMain())
}

func realMain() int {
	// Load .env file for local development
	// This makes HONEYCOMB_TILESPAWNER_API_KEY available
	envErr := godotenv.Load()

	cmd, args := "play", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var run func(ctx context.Context, args []string) error
	switch cmd {
	case "play":
		run = playCmd
	case "generate":
		run = generateCmd
	case "show":
		run = showCmd
	case "history":
		run = historyCmd
	case "serve":
		run = serveCmd
	case "help":
		fmt.Print(usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if envErr != nil {
		// Not fatal - env vars might be set directly
		log.Debug(".env file not loaded", "err", envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A collector set directly through OTEL_* wins unless a Honeycomb key is given
	apiKey := os.Getenv("HONEYCOMB_TILESPAWNER_API_KEY")
	if apiKey != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		telemetry.ConfigureHoneycomb(apiKey, os.Getenv("HONEYCOMB_TILESPAWNER_DATASET"))
	}
	opts, err := telemetry.OptionsFromEnv(cmd)
	if err != nil {
		log.Error("bad telemetry settings", "err", err)
		return 2
	}
	shutdown, err := telemetry.Setup(ctx, opts)
	switch {
	case errors.Is(err, telemetry.ErrDisabled):
		log.Debug("tracing disabled: no exporter configured")
	case err != nil:
		log.Warn("telemetry setup failed, running without observability", "err", err)
	default:
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				log.Warn("error shutting down telemetry", "err", err)
			}
		}()
	}

	if err := run(ctx, args); err != nil {
		log.Error(cmd+" failed", "err", err)
		return 1
	}
	return 0
}

// commonFlags are shared by the commands that run walks.
type commonFlags struct {
	configPath string
	seed       int64
	palette    string
	maxTiles   int
	noPath     bool
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML config file (optional)")
	fs.Int64Var(&c.seed, "seed", 0, "walk seed (0 keeps the configured seed)")
	fs.StringVar(&c.palette, "palette", "", "palette id (default, ember, mono)")
	fs.IntVar(&c.maxTiles, "max-tiles", -1, "stop after this many tiles (0 = until exhausted)")
	fs.BoolVar(&c.noPath, "no-path", false, "hide path lines")
	fs.BoolVar(&c.verbose, "v", false, "debug logging")
}

// load builds the effective config: defaults, then the file, then
// TILESPAWNER_* variables, then flags.
func (c *commonFlags) load() (config.Config, *palette.Palette, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return cfg, nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, nil, err
	}

	if c.seed != 0 {
		cfg.Seed = c.seed
	}
	if c.palette != "" {
		cfg.Palette = c.palette
		cfg.Colors = nil
	}
	if c.maxTiles >= 0 {
		cfg.MaxTiles = c.maxTiles
	}
	if c.noPath {
		cfg.DrawPath = false
	}

	pal, err := cfg.ResolvePalette(palette.MustLoadRegistry())
	if err != nil {
		return cfg, nil, err
	}
	return cfg, pal, nil
}

// logger returns a logger writing to w.
func (c *commonFlags) logger(w io.Writer, prefix string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	if c.verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
