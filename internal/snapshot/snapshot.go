// Package snapshot saves finished walks as zstd-compressed JSON and replays
// them from their seed.
package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"

	"github.com/samdwyer/tilespawner/internal/spawner"
)

// Version is the snapshot format version written by Write.
const Version = 1

var (
	// ErrVersion is returned when reading a snapshot of an unknown version.
	ErrVersion = errors.New("snapshot: unsupported version")
	// ErrDiverged is returned when a replay does not reproduce the saved walk.
	ErrDiverged = errors.New("snapshot: replay diverged from saved walk")
)

// Header is written as a plain JSON line ahead of the body so tools can
// identify a snapshot without decoding it fully.
type Header struct {
	Version   int       `json:"version"`
	Seed      int64     `json:"seed"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is the saved state of one walk.
type Snapshot struct {
	Header Header `json:"header"`

	Palette  string      `json:"palette"`
	Bounds   BoundsV1    `json:"bounds"`
	Start    [2]int      `json:"start"`
	Tiles    []TileV1    `json:"tiles"`
	Segments []SegmentV1 `json:"segments"`
	Stats    StatsV1     `json:"stats"`
}

type BoundsV1 struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

type TileV1 struct {
	Pos       [2]int `json:"pos"`
	Excursion int    `json:"excursion"`
}

type SegmentV1 struct {
	From      [2]int `json:"from"`
	To        [2]int `json:"to"`
	Excursion int    `json:"excursion"`
}

type StatsV1 struct {
	Tiles      int  `json:"tiles"`
	Excursions int  `json:"excursions"`
	Backtracks int  `json:"backtracks"`
	Cells      int  `json:"cells"`
	Complete   bool `json:"complete"`
}

// FromSpawner captures a started walk.
func FromSpawner(s *spawner.Spawner, seed int64, paletteID string, now time.Time) (Snapshot, error) {
	if !s.Started() {
		return Snapshot{}, spawner.ErrNotStarted
	}
	b := s.Bounds()
	stats := s.Stats()
	snap := Snapshot{
		Header:  Header{Version: Version, Seed: seed, CreatedAt: now.UTC()},
		Palette: paletteID,
		Bounds:  BoundsV1{MinX: b.MinX, MaxX: b.MaxX, MinY: b.MinY, MaxY: b.MaxY},
		Stats: StatsV1{
			Tiles:      stats.Tiles,
			Excursions: stats.Excursions,
			Backtracks: stats.Backtracks,
			Cells:      stats.Cells,
			Complete:   stats.Complete,
		},
	}

	tiles := s.Tiles()
	snap.Start = pos(tiles[0].Cell)
	snap.Tiles = make([]TileV1, 0, len(tiles))
	for _, t := range tiles {
		snap.Tiles = append(snap.Tiles, TileV1{Pos: pos(t.Cell), Excursion: t.Excursion})
	}
	snap.Segments = make([]SegmentV1, 0, len(s.Segments()))
	for _, seg := range s.Segments() {
		snap.Segments = append(snap.Segments, SegmentV1{From: pos(seg.From), To: pos(seg.To), Excursion: seg.Excursion})
	}
	return snap, nil
}

// SpawnerBounds returns the saved bounds.
func (s Snapshot) SpawnerBounds() spawner.Bounds {
	return spawner.Bounds{MinX: s.Bounds.MinX, MaxX: s.Bounds.MaxX, MinY: s.Bounds.MinY, MaxY: s.Bounds.MaxY}
}

// Replay rebuilds the walk from its seed and checks that every tile lands
// where the snapshot says it did.
func (s Snapshot) Replay(ctx context.Context, logger *log.Logger) (*spawner.Spawner, error) {
	if len(s.Tiles) == 0 {
		return nil, fmt.Errorf("%w: snapshot has no tiles", ErrDiverged)
	}
	rng := rand.New(rand.NewSource(s.Header.Seed))
	sp := spawner.New(s.SpawnerBounds(), rng, spawner.WithLogger(logger))
	if err := sp.Start(ctx, cell(s.Start).Vec2()); err != nil {
		return nil, fmt.Errorf("replay start: %w", err)
	}

	if _, err := sp.Run(ctx, len(s.Tiles)); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	// A complete walk also has to report exhaustion on the next step.
	if s.Stats.Complete && !sp.Done() {
		if _, err := sp.Step(ctx); !errors.Is(err, spawner.ErrExhausted) {
			return nil, fmt.Errorf("%w: walk did not finish", ErrDiverged)
		}
	}

	got := sp.Tiles()
	if len(got) != len(s.Tiles) {
		return nil, fmt.Errorf("%w: %d tiles, want %d", ErrDiverged, len(got), len(s.Tiles))
	}
	for i, t := range s.Tiles {
		if got[i].Cell != cell(t.Pos) || got[i].Excursion != t.Excursion {
			return nil, fmt.Errorf("%w: tile %d at %v, want %v", ErrDiverged, i, got[i].Cell, cell(t.Pos))
		}
	}
	return sp, nil
}

// Write stores snap at path, creating parent directories.
func Write(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

// Read loads a snapshot written by Write.
func Read(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}

	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func pos(c spawner.Cell) [2]int {
	return [2]int{c.X, c.Y}
}

func cell(p [2]int) spawner.Cell {
	return spawner.Cell{X: p[0], Y: p[1]}
}
