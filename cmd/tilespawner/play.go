package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/samdwyer/tilespawner/internal/app"
	"github.com/samdwyer/tilespawner/internal/store"
)

func playCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	logPath := fs.String("log", "tilespawner.log", "log file; the terminal belongs to the walk")
	paused := fs.Bool("paused", false, "start with autoplay off")
	record := fs.Bool("record", true, "record walks in the history database")
	_ = fs.Parse(args)

	cfg, pal, err := common.load()
	if err != nil {
		return err
	}
	if *paused {
		cfg.Autoplay = false
	}

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	logger := common.logger(logFile, "play")

	opts := []app.SessionOption{app.WithLogger(logger)}
	if *record {
		st, err := store.Open(cfg.HistoryDB)
		if err != nil {
			logger.Warn("history disabled", "db", cfg.HistoryDB, "err", err)
		} else {
			defer st.Close()
			opts = append(opts, app.WithRecorder(st, "play"))
		}
	}

	a, err := app.New(cfg, pal, opts...)
	if err != nil {
		return fmt.Errorf("initialize terminal: %w", err)
	}
	return a.Run(ctx)
}
