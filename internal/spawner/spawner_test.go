package spawner

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestSpawner(bounds Bounds, seed int64) *Spawner {
	return New(bounds, rand.New(rand.NewSource(seed)), WithLogger(log.New(io.Discard)))
}

func runToCompletion(t *testing.T, s *Spawner) Stats {
	t.Helper()
	stats, err := s.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return stats
}

func TestStartOutOfBounds(t *testing.T) {
	s := newTestSpawner(GridBounds(5, 5), 1)

	err := s.Start(context.Background(), Vec2{X: 10, Y: 2})
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Start() error = %v, want ErrOutOfBounds", err)
	}
	if s.Started() {
		t.Error("spawner should not be started after an out-of-bounds start")
	}
	if _, err := s.Step(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Step() error = %v, want ErrNotStarted", err)
	}
}

func TestStartEmptyBounds(t *testing.T) {
	s := newTestSpawner(Bounds{MinX: 0.2, MaxX: 0.8, MinY: 0.2, MaxY: 0.8}, 1)

	err := s.Start(context.Background(), Vec2{X: 0.5, Y: 0.5})
	if !errors.Is(err, ErrEmptyBounds) {
		t.Fatalf("Start() error = %v, want ErrEmptyBounds", err)
	}

	// A position outside the camera is reported as such even when no cell fits.
	err = s.Start(context.Background(), Vec2{X: 50, Y: 50})
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("Start() error = %v, want ErrOutOfBounds", err)
	}
}

func TestStartSingleRowGrid(t *testing.T) {
	cam := CameraForGrid(32, 1)
	s := newTestSpawner(cam.Bounds(), 3)

	if err := s.Start(context.Background(), cam.Position); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	stats := runToCompletion(t, s)
	if stats.Tiles != 32 || !stats.Complete {
		t.Errorf("Run() = %+v, want 32 tiles and a complete walk", stats)
	}
}

func TestStartRoundsPosition(t *testing.T) {
	tests := []struct {
		pos  Vec2
		want Cell
	}{
		{Vec2{2.4, 1.6}, Cell{2, 2}},
		{Vec2{2.5, 3.5}, Cell{2, 4}}, // halves round to even
		{Vec2{0, 0}, Cell{0, 0}},
		{Vec2{4.0, 4.0}, Cell{4, 4}},
	}

	for _, tt := range tests {
		s := newTestSpawner(GridBounds(5, 5), 1)
		if err := s.Start(context.Background(), tt.pos); err != nil {
			t.Fatalf("Start(%v) error = %v", tt.pos, err)
		}
		if got := s.Current(); got != tt.want {
			t.Errorf("Start(%v) current = %v, want %v", tt.pos, got, tt.want)
		}
		if len(s.Tiles()) != 1 || s.Tiles()[0].Cell != tt.want {
			t.Errorf("Start(%v) tiles = %v, want single tile at %v", tt.pos, s.Tiles(), tt.want)
		}
	}
}

func TestStartClampsRoundedPosition(t *testing.T) {
	s := newTestSpawner(Bounds{MinX: 0, MaxX: 4.6, MinY: 0, MaxY: 4.6}, 1)

	if err := s.Start(context.Background(), Vec2{X: 4.6, Y: 4.6}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := s.Current(); got != (Cell{4, 4}) {
		t.Errorf("Current() = %v, want (4,4)", got)
	}
}

func TestWalkNeverRevisits(t *testing.T) {
	s := newTestSpawner(GridBounds(12, 9), 42)
	if err := s.Start(context.Background(), Vec2{X: 6, Y: 4}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runToCompletion(t, s)

	seen := make(map[Cell]bool)
	for _, tile := range s.Tiles() {
		if seen[tile.Cell] {
			t.Fatalf("cell %v spawned twice", tile.Cell)
		}
		seen[tile.Cell] = true
	}
}

func TestWalkStaysInBoundsAndConnected(t *testing.T) {
	bounds := Bounds{MinX: -3.5, MaxX: 4.2, MinY: -2, MaxY: 2.9}
	s := newTestSpawner(bounds, 7)
	if err := s.Start(context.Background(), Vec2{X: 0, Y: 0}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runToCompletion(t, s)

	for i, tile := range s.Tiles() {
		if !bounds.ContainsCell(tile.Cell) {
			t.Errorf("tile %d at %v is outside %+v", i, tile.Cell, bounds)
		}
		if tile.Index != i {
			t.Errorf("tile %d has index %d", i, tile.Index)
		}
	}

	for i, seg := range s.Segments() {
		if !seg.From.IsAdjacent(seg.To) {
			t.Errorf("segment %d joins non-adjacent cells %v and %v", i, seg.From, seg.To)
		}
		from, ok := s.TileAt(seg.From)
		if !ok {
			t.Fatalf("segment %d starts at %v which has no tile", i, seg.From)
		}
		to, _ := s.TileAt(seg.To)
		if from.Index >= to.Index {
			t.Errorf("segment %d starts at tile %d which is not earlier than %d", i, from.Index, to.Index)
		}
	}

	if got, want := len(s.Segments()), len(s.Tiles())-1; got != want {
		t.Errorf("segment count = %d, want %d", got, want)
	}
}

func TestWalkFillsBoundsAndTerminates(t *testing.T) {
	tests := []struct {
		name       string
		cols, rows int
	}{
		{"single cell", 1, 1},
		{"corridor", 10, 1},
		{"square", 8, 8},
		{"wide", 30, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bounds := GridBounds(tt.cols, tt.rows)
			s := newTestSpawner(bounds, 99)
			if err := s.Start(context.Background(), Vec2{X: 0, Y: 0}); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			stats := runToCompletion(t, s)

			if !stats.Complete || !s.Done() {
				t.Error("walk should be complete")
			}
			if stats.Tiles != tt.cols*tt.rows {
				t.Errorf("tiles = %d, want %d", stats.Tiles, tt.cols*tt.rows)
			}
			if stats.Coverage() != 1 {
				t.Errorf("coverage = %v, want 1", stats.Coverage())
			}
			if _, err := s.Step(context.Background()); !errors.Is(err, ErrExhausted) {
				t.Errorf("Step() after completion error = %v, want ErrExhausted", err)
			}
		})
	}
}

func TestBacktrackStartsNewExcursion(t *testing.T) {
	s := newTestSpawner(GridBounds(6, 6), 3)
	if err := s.Start(context.Background(), Vec2{X: 2, Y: 2}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	excursion := 0
	for {
		res, err := s.Step(context.Background())
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}

		if res.NewExcursion != (len(res.Backtracked) > 0) {
			t.Fatalf("NewExcursion = %v with %d backtracked cells", res.NewExcursion, len(res.Backtracked))
		}
		if res.NewExcursion {
			excursion++
			last := res.Backtracked[len(res.Backtracked)-1]
			if res.Segment.From != last {
				t.Errorf("segment starts at %v, want backtrack target %v", res.Segment.From, last)
			}
		}
		if res.Tile.Excursion != excursion || res.Segment.Excursion != excursion {
			t.Errorf("tile excursion = %d, segment excursion = %d, want %d",
				res.Tile.Excursion, res.Segment.Excursion, excursion)
		}
	}

	if got := s.Stats().Excursions; got != excursion+1 {
		t.Errorf("Stats().Excursions = %d, want %d", got, excursion+1)
	}
}

func TestRunRespectsMaxTiles(t *testing.T) {
	s := newTestSpawner(GridBounds(10, 10), 5)
	if err := s.Start(context.Background(), Vec2{X: 5, Y: 5}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	stats, err := s.Run(context.Background(), 17)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Tiles != 17 {
		t.Errorf("tiles = %d, want 17", stats.Tiles)
	}
	if stats.Complete {
		t.Error("walk should not be complete")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	s := newTestSpawner(GridBounds(10, 10), 5)
	if err := s.Start(context.Background(), Vec2{X: 5, Y: 5}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Run(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestWalkReproducibility(t *testing.T) {
	bounds := GridBounds(16, 10)
	s1 := newTestSpawner(bounds, 12345)
	s2 := newTestSpawner(bounds, 12345)

	for _, s := range []*Spawner{s1, s2} {
		if err := s.Start(context.Background(), Vec2{X: 8, Y: 5}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		runToCompletion(t, s)
	}

	t1, t2 := s1.Tiles(), s2.Tiles()
	if len(t1) != len(t2) {
		t.Fatalf("tile count mismatch: %d != %d", len(t1), len(t2))
	}
	for i := range t1 {
		if t1[i] != t2[i] {
			t.Errorf("tile %d mismatch: %+v != %+v", i, t1[i], t2[i])
		}
	}
}

func TestWalkDifferentSeeds(t *testing.T) {
	bounds := GridBounds(16, 10)
	s1 := newTestSpawner(bounds, 12345)
	s2 := newTestSpawner(bounds, 54321)

	for _, s := range []*Spawner{s1, s2} {
		if err := s.Start(context.Background(), Vec2{X: 8, Y: 5}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		runToCompletion(t, s)
	}

	identical := true
	for i := range s1.Tiles() {
		if s1.Tiles()[i].Cell != s2.Tiles()[i].Cell {
			identical = false
			break
		}
	}
	if identical {
		t.Error("walks with different seeds should not be identical")
	}
}

func TestReset(t *testing.T) {
	s := newTestSpawner(GridBounds(4, 4), 1)
	if err := s.Start(context.Background(), Vec2{X: 1, Y: 1}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runToCompletion(t, s)

	s.Reset()

	if s.Started() || s.Done() {
		t.Error("Reset() should leave the spawner idle")
	}
	if len(s.Tiles()) != 0 || len(s.Segments()) != 0 || s.Depth() != 0 {
		t.Error("Reset() should clear tiles, segments and the backtrack stack")
	}
	if s.IsSpawned(Cell{1, 1}) {
		t.Error("Reset() should clear spawned cells")
	}
	if err := s.Start(context.Background(), Vec2{X: 3, Y: 3}); err != nil {
		t.Fatalf("Start() after Reset error = %v", err)
	}
}
