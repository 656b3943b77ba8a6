package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func parseCommon(t *testing.T, args ...string) *commonFlags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c commonFlags
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return &c
}

func TestLoadLayersFlagsOverEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilespawner.yaml")
	content := "seed: 5\npalette: mono\nmax_tiles: 50\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TILESPAWNER_SEED", "6")

	cfg, pal, err := parseCommon(t, "-config", path, "-max-tiles", "10", "-no-path").load()
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Seed != 6 {
		t.Errorf("Seed = %d, want the env override 6", cfg.Seed)
	}
	if cfg.MaxTiles != 10 || cfg.DrawPath {
		t.Errorf("MaxTiles = %d, DrawPath = %v; want flag values", cfg.MaxTiles, cfg.DrawPath)
	}
	if pal.ID != "mono" {
		t.Errorf("palette = %q, want mono from the file", pal.ID)
	}

	cfg, _, err = parseCommon(t, "-config", path, "-seed", "7").load()
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Seed != 7 || cfg.MaxTiles != 50 {
		t.Errorf("Seed = %d, MaxTiles = %d; want 7 and 50", cfg.Seed, cfg.MaxTiles)
	}
}

func TestLoadRejectsUnknownPalette(t *testing.T) {
	if _, _, err := parseCommon(t, "-palette", "neon").load(); err == nil {
		t.Error("load() should reject an unknown palette")
	}
}
