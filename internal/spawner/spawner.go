package spawner

import (
	"context"
	"errors"
	"math/rand"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samdwyer/tilespawner/internal/telemetry"
)

var (
	// ErrOutOfBounds is returned when the starting position lies outside the camera bounds.
	ErrOutOfBounds = errors.New("spawner: starting position exceeds the camera bounds")
	// ErrEmptyBounds is returned when no integer cell fits inside the bounds.
	ErrEmptyBounds = errors.New("spawner: bounds contain no cells")
	// ErrNotStarted is returned by Step before a successful Start.
	ErrNotStarted = errors.New("spawner: not started")
	// ErrExhausted is returned once every reachable cell holds a tile.
	ErrExhausted = errors.New("spawner: no unvisited cell left")
)

// Option configures a Spawner.
type Option func(*Spawner)

// WithLogger sets the logger used for walk warnings.
func WithLogger(logger *log.Logger) Option {
	return func(s *Spawner) {
		s.logger = logger
	}
}

// Spawner walks the grid, spawning one tile per step.
// A Spawner is not safe for concurrent use.
type Spawner struct {
	bounds Bounds
	rng    *rand.Rand
	logger *log.Logger

	started    bool
	done       bool
	current    Cell
	previous   []Cell       // Backtrack stack
	spawned    map[Cell]int // Cell -> index into tiles
	tiles      []Tile
	segments   []Segment
	excursion  int
	backtracks int
}

// StepResult describes what a single Step did.
type StepResult struct {
	Tile         Tile    // Newly spawned tile
	Segment      Segment // Path line from the previous cell to Tile
	Backtracked  []Cell  // Cells returned to before moving, most recent last
	NewExcursion bool    // True when the step had to backtrack first
}

// Stats summarises a walk.
type Stats struct {
	Tiles      int
	Excursions int
	Backtracks int
	Cells      int // In-bounds cells
	Complete   bool
}

// Coverage returns the fraction of in-bounds cells holding a tile.
func (s Stats) Coverage() float64 {
	if s.Cells == 0 {
		return 0
	}
	return float64(s.Tiles) / float64(s.Cells)
}

// New creates an idle spawner confined to bounds.
func New(bounds Bounds, rng *rand.Rand, opts ...Option) *Spawner {
	s := &Spawner{
		bounds:  bounds,
		rng:     rng,
		logger:  log.Default(),
		spawned: make(map[Cell]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start places the spawner at pos and spawns the first tile.
func (s *Spawner) Start(ctx context.Context, pos Vec2) error {
	tracer := telemetry.Tracer("spawner")
	_, span := tracer.Start(ctx, "spawner.start")
	defer span.End()

	s.Reset()

	if !s.bounds.Contains(pos) {
		s.logger.Warn("the spawner starting position exceeds the bounds of the camera",
			"x", pos.X, "y", pos.Y, "bounds", s.bounds)
		span.SetAttributes(attribute.Bool("spawner.out_of_bounds", true))
		return ErrOutOfBounds
	}
	if s.bounds.CellCount() == 0 {
		s.logger.Warn("camera bounds contain no cells", "bounds", s.bounds)
		return ErrEmptyBounds
	}

	// Rounding can push a position sitting near an edge one cell outside.
	cell := s.bounds.Clamp(Round(pos))
	s.started = true
	s.current = cell
	s.spawn(cell)

	span.SetAttributes(
		attribute.Int("spawner.start_x", cell.X),
		attribute.Int("spawner.start_y", cell.Y),
		attribute.Int("spawner.cells", s.bounds.CellCount()),
	)
	return nil
}

// Step moves to a random unvisited neighbour and spawns a tile there,
// backtracking first if the current cell is a dead end.
func (s *Spawner) Step(ctx context.Context) (StepResult, error) {
	var result StepResult
	if !s.started {
		return result, ErrNotStarted
	}
	if s.done {
		return result, ErrExhausted
	}

	tracer := telemetry.Tracer("spawner")
	_, span := tracer.Start(ctx, "spawner.step")
	defer span.End()

	candidates := s.freeNeighbors(s.current)
	for len(candidates) == 0 {
		if len(s.previous) == 0 {
			s.done = true
			s.logger.Warn("no unvisited neighbour left to spawn on",
				"tiles", len(s.tiles), "excursions", s.excursion+1)
			span.SetAttributes(attribute.Bool("spawner.exhausted", true))
			return result, ErrExhausted
		}
		s.current = s.previous[len(s.previous)-1]
		s.previous = s.previous[:len(s.previous)-1]
		s.backtracks++
		result.Backtracked = append(result.Backtracked, s.current)
		candidates = s.freeNeighbors(s.current)
	}

	if len(result.Backtracked) > 0 {
		s.excursion++
		result.NewExcursion = true
	}

	from := s.current
	next := candidates[s.rng.Intn(len(candidates))]
	s.previous = append(s.previous, from)
	s.current = next

	result.Tile = s.spawn(next)
	result.Segment = Segment{From: from, To: next, Excursion: s.excursion}
	s.segments = append(s.segments, result.Segment)

	span.SetAttributes(
		attribute.Int("spawner.tile_index", result.Tile.Index),
		attribute.Int("spawner.excursion", s.excursion),
		attribute.Int("spawner.backtracked", len(result.Backtracked)),
	)
	return result, nil
}

// Run steps until the walk is exhausted, maxTiles tiles exist (0 means no
// limit) or ctx is done.
func (s *Spawner) Run(ctx context.Context, maxTiles int) (Stats, error) {
	tracer := telemetry.Tracer("spawner")
	ctx, span := tracer.Start(ctx, "spawner.run")
	defer span.End()

	for maxTiles <= 0 || len(s.tiles) < maxTiles {
		if err := ctx.Err(); err != nil {
			return s.Stats(), err
		}
		if _, err := s.Step(ctx); err != nil {
			if errors.Is(err, ErrExhausted) {
				break
			}
			return s.Stats(), err
		}
	}

	stats := s.Stats()
	span.SetAttributes(
		attribute.Int("spawner.tiles", stats.Tiles),
		attribute.Int("spawner.excursions", stats.Excursions),
		attribute.Int("spawner.backtracks", stats.Backtracks),
		attribute.Bool("spawner.complete", stats.Complete),
	)
	return stats, nil
}

// Reset clears the walk. Start must be called again before stepping.
func (s *Spawner) Reset() {
	s.started = false
	s.done = false
	s.current = Cell{}
	s.previous = s.previous[:0]
	s.spawned = make(map[Cell]int)
	s.tiles = nil
	s.segments = nil
	s.excursion = 0
	s.backtracks = 0
}

// Started returns true once Start has succeeded.
func (s *Spawner) Started() bool { return s.started }

// Done returns true once the walk is exhausted.
func (s *Spawner) Done() bool { return s.done }

// Current returns the spawner's current cell.
func (s *Spawner) Current() Cell { return s.current }

// Bounds returns the bounds the walk is confined to.
func (s *Spawner) Bounds() Bounds { return s.bounds }

// Tiles returns the spawned tiles in spawn order. The slice must not be modified.
func (s *Spawner) Tiles() []Tile { return s.tiles }

// Segments returns the path lines in spawn order. The slice must not be modified.
func (s *Spawner) Segments() []Segment { return s.segments }

// Depth returns the size of the backtrack stack.
func (s *Spawner) Depth() int { return len(s.previous) }

// Excursion returns the current excursion number.
func (s *Spawner) Excursion() int { return s.excursion }

// IsSpawned returns true if a tile exists at c.
func (s *Spawner) IsSpawned(c Cell) bool {
	_, ok := s.spawned[c]
	return ok
}

// TileAt returns the tile at c, if any.
func (s *Spawner) TileAt(c Cell) (Tile, bool) {
	i, ok := s.spawned[c]
	if !ok {
		return Tile{}, false
	}
	return s.tiles[i], true
}

// Stats returns a summary of the walk so far.
func (s *Spawner) Stats() Stats {
	excursions := 0
	if s.started {
		excursions = s.excursion + 1
	}
	return Stats{
		Tiles:      len(s.tiles),
		Excursions: excursions,
		Backtracks: s.backtracks,
		Cells:      s.bounds.CellCount(),
		Complete:   s.done,
	}
}

// spawn records a tile at c. Callers guarantee c is free.
func (s *Spawner) spawn(c Cell) Tile {
	tile := Tile{Cell: c, Index: len(s.tiles), Excursion: s.excursion}
	s.spawned[c] = tile.Index
	s.tiles = append(s.tiles, tile)
	return tile
}

// freeNeighbors returns the in-bounds neighbours of c without a tile.
func (s *Spawner) freeNeighbors(c Cell) []Cell {
	free := make([]Cell, 0, 4)
	for _, n := range c.Neighbors() {
		if s.bounds.ContainsCell(n) && !s.IsSpawned(n) {
			free = append(free, n)
		}
	}
	return free
}
