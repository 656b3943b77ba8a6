package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/samdwyer/tilespawner/internal/config"
	"github.com/samdwyer/tilespawner/internal/snapshot"
	"github.com/samdwyer/tilespawner/internal/spawner"
	"github.com/samdwyer/tilespawner/internal/store"
	"github.com/samdwyer/tilespawner/internal/ui"
)

func generateCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	cols := fs.Int("cols", 32, "grid columns when the camera is fitted")
	rows := fs.Int("rows", 16, "grid rows when the camera is fitted")
	out := fs.String("out", "", "write a snapshot to this path (optional)")
	quiet := fs.Bool("quiet", false, "do not print the walk")
	record := fs.Bool("record", false, "record the walk in the history database")
	_ = fs.Parse(args)

	if *cols < 1 || *rows < 1 || *cols > config.MaxGridSide || *rows > config.MaxGridSide {
		return fmt.Errorf("-cols and -rows must be between 1 and %d", config.MaxGridSide)
	}
	cfg, pal, err := common.load()
	if err != nil {
		return err
	}
	logger := common.logger(os.Stderr, "generate")

	rng, seed := cfg.NewRand()
	cam := cfg.CameraFor(*cols, *rows)
	s := spawner.New(cam.Bounds(), rng, spawner.WithLogger(logger))

	started := time.Now()
	if err := s.Start(ctx, cfg.StartPosition(cam)); err != nil {
		return fmt.Errorf("start walk: %w", err)
	}
	stats, err := s.Run(ctx, cfg.MaxTiles)
	if err != nil {
		return fmt.Errorf("run walk: %w", err)
	}
	elapsed := time.Since(started)

	layout := ui.NewLayout(s.Bounds(), cfg.DrawPath)
	if !*quiet {
		fmt.Print(layout.ASCII(s))
	}
	fmt.Printf("seed %d: %d/%d tiles (%.0f%%), %d excursions, %d backtracks, complete=%v\n",
		seed, stats.Tiles, stats.Cells, stats.Coverage()*100, stats.Excursions, stats.Backtracks, stats.Complete)

	if *out != "" {
		snap, err := snapshot.FromSpawner(s, seed, pal.ID, started)
		if err != nil {
			return err
		}
		if err := snapshot.Write(*out, snap); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		logger.Info("snapshot written", "path", *out)
	}

	if *record {
		st, err := store.Open(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer st.Close()
		id, err := st.Record(ctx, store.Run{
			Source:     "generate",
			Seed:       seed,
			Palette:    pal.ID,
			Cols:       layout.Cols,
			Rows:       layout.Rows,
			Tiles:      stats.Tiles,
			Excursions: stats.Excursions,
			Backtracks: stats.Backtracks,
			Complete:   stats.Complete,
			StartedAt:  started,
			Duration:   elapsed,
		})
		if err != nil {
			return fmt.Errorf("record walk: %w", err)
		}
		logger.Info("walk recorded", "id", id)
	}
	return nil
}

func showCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	noPath := fs.Bool("no-path", false, "hide path lines")
	verbose := fs.Bool("v", false, "debug logging")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: tilespawner show [-no-path] <snapshot>")
	}
	snap, err := snapshot.Read(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	common := commonFlags{verbose: *verbose}
	s, err := snap.Replay(ctx, common.logger(os.Stderr, "show"))
	if err != nil {
		return err
	}

	fmt.Print(ui.NewLayout(s.Bounds(), !*noPath).ASCII(s))
	fmt.Printf("seed %d, palette %s, saved %s: %d/%d tiles, %d excursions, complete=%v\n",
		snap.Header.Seed, snap.Palette, snap.Header.CreatedAt.Format(time.RFC3339),
		snap.Stats.Tiles, snap.Stats.Cells, snap.Stats.Excursions, snap.Stats.Complete)
	return nil
}
