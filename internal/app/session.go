package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samdwyer/tilespawner/internal/config"
	"github.com/samdwyer/tilespawner/internal/palette"
	"github.com/samdwyer/tilespawner/internal/spawner"
	"github.com/samdwyer/tilespawner/internal/store"
	"github.com/samdwyer/tilespawner/internal/telemetry"
	"github.com/samdwyer/tilespawner/internal/ui"
)

// ErrTileLimit is returned by Step once the configured tile limit is reached.
var ErrTileLimit = errors.New("app: tile limit reached")

// Recorder persists finished walks.
type Recorder interface {
	Record(ctx context.Context, run store.Run) (int64, error)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *log.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRecorder records every walk the session runs, tagged with source.
func WithRecorder(r Recorder, source string) SessionOption {
	return func(s *Session) {
		s.recorder = r
		s.source = source
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// Session owns one walk and the controls around it: manual steps, the
// autoplay timer state, the path toggle and reload. Front ends (terminal,
// SSH, websocket) drive a Session; it is not safe for concurrent use.
type Session struct {
	cfg      config.Config
	palette  *palette.Palette
	logger   *log.Logger
	recorder Recorder
	source   string
	now      func() time.Time

	cols, rows int
	camera     spawner.Camera
	spawner    *spawner.Spawner
	seed       int64
	state      State
	autoplay   bool
	drawPath   bool
	startedAt  time.Time
	recorded   bool
}

// NewSession creates a session for a cols x rows grid. Call Reload to start
// the first walk.
func NewSession(cfg config.Config, pal *palette.Palette, cols, rows int, opts ...SessionOption) *Session {
	s := &Session{
		cfg:      cfg,
		palette:  pal,
		logger:   log.Default(),
		source:   "play",
		now:      time.Now,
		cols:     cols,
		rows:     rows,
		state:    StateIdle,
		autoplay: cfg.Autoplay,
		drawPath: cfg.DrawPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reload records the current walk and starts a new one. With a fixed seed
// the new walk replays the previous one.
func (s *Session) Reload(ctx context.Context) error {
	tracer := telemetry.Tracer("app")
	ctx, span := tracer.Start(ctx, "app.reload")
	defer span.End()

	s.record(ctx)

	rng, seed := s.cfg.NewRand()
	s.seed = seed
	s.camera = s.cfg.CameraFor(s.cols, s.rows)
	s.spawner = spawner.New(s.camera.Bounds(), rng, spawner.WithLogger(s.logger))
	s.startedAt = s.now()
	s.recorded = false

	span.SetAttributes(
		attribute.Int64("walk.seed", seed),
		attribute.Int("walk.cols", s.cols),
		attribute.Int("walk.rows", s.rows),
	)

	if err := s.spawner.Start(ctx, s.cfg.StartPosition(s.camera)); err != nil {
		s.state = StateIdle
		return fmt.Errorf("start walk: %w", err)
	}
	s.resume()
	return nil
}

// Step spawns one tile regardless of autoplay.
func (s *Session) Step(ctx context.Context) (spawner.StepResult, error) {
	if s.spawner == nil {
		return spawner.StepResult{}, spawner.ErrNotStarted
	}
	if s.limitReached() {
		s.finish(ctx)
		return spawner.StepResult{}, ErrTileLimit
	}

	res, err := s.spawner.Step(ctx)
	if errors.Is(err, spawner.ErrExhausted) {
		s.finish(ctx)
		return res, err
	}
	if err != nil {
		return res, err
	}
	if s.limitReached() {
		s.finish(ctx)
	}
	return res, nil
}

// Tick is called once per spawn interval. It steps only while autoplaying.
func (s *Session) Tick(ctx context.Context) (res spawner.StepResult, stepped bool, err error) {
	if s.state != StateAutoplay {
		return res, false, nil
	}
	res, err = s.Step(ctx)
	return res, err == nil, err
}

// ToggleAutoplay pauses or resumes the autoplay timer.
func (s *Session) ToggleAutoplay() {
	s.autoplay = !s.autoplay
	switch s.state {
	case StatePaused, StateAutoplay:
		s.resume()
	}
}

// TogglePath shows or hides path lines.
func (s *Session) TogglePath() {
	s.drawPath = !s.drawPath
}

// Resize fits the grid to a new screen. A walk under a fitted camera
// restarts because its bounds change; a fixed camera keeps walking.
func (s *Session) Resize(ctx context.Context, cols, rows int) error {
	if cols == s.cols && rows == s.rows {
		return nil
	}
	s.cols, s.rows = cols, rows
	if s.cfg.Camera != nil {
		return nil
	}
	return s.Reload(ctx)
}

// Close records the current walk.
func (s *Session) Close(ctx context.Context) {
	s.record(ctx)
}

// Layout returns the screen layout for the current walk.
func (s *Session) Layout() ui.Layout {
	if s.spawner == nil {
		return ui.Layout{DrawPath: s.drawPath}
	}
	return ui.NewLayout(s.spawner.Bounds(), s.drawPath)
}

// Status returns a one-line summary of the session.
func (s *Session) Status() string {
	if s.spawner == nil || !s.spawner.Started() {
		return fmt.Sprintf("seed %d | %s | [r] reload [q] quit", s.seed, s.state)
	}
	stats := s.spawner.Stats()
	return fmt.Sprintf("seed %d | tiles %d/%d | excursion %d | %s | path %s | [space] step [a] autoplay [w] path [r] reload [q] quit",
		s.seed, stats.Tiles, stats.Cells, s.spawner.Excursion(), s.state, onOff(s.drawPath))
}

// Spawner returns the current walk.
func (s *Session) Spawner() *spawner.Spawner { return s.spawner }

// Palette returns the excursion palette.
func (s *Session) Palette() *palette.Palette { return s.palette }

// Seed returns the current walk's seed.
func (s *Session) Seed() int64 { return s.seed }

// State returns the session state.
func (s *Session) State() State { return s.state }

// Autoplay reports whether autoplay is switched on.
func (s *Session) Autoplay() bool { return s.autoplay }

// DrawPath reports whether path lines are shown.
func (s *Session) DrawPath() bool { return s.drawPath }

// Interval returns the autoplay spawn interval.
func (s *Session) Interval() time.Duration { return s.cfg.Interval() }

// Size returns the grid dimensions the session was fitted to.
func (s *Session) Size() (cols, rows int) { return s.cols, s.rows }

func (s *Session) resume() {
	if s.autoplay {
		s.state = StateAutoplay
	} else {
		s.state = StatePaused
	}
}

func (s *Session) limitReached() bool {
	return s.cfg.MaxTiles > 0 && len(s.spawner.Tiles()) >= s.cfg.MaxTiles
}

func (s *Session) finish(ctx context.Context) {
	if s.state == StateComplete {
		return
	}
	s.state = StateComplete
	stats := s.spawner.Stats()
	s.logger.Info("walk finished", "seed", s.seed, "tiles", stats.Tiles,
		"excursions", stats.Excursions, "complete", stats.Complete)
	s.record(ctx)
}

// record stores the walk once. Failures are logged, never fatal.
func (s *Session) record(ctx context.Context) {
	if s.recorder == nil || s.recorded || s.spawner == nil || !s.spawner.Started() {
		return
	}
	s.recorded = true

	stats := s.spawner.Stats()
	layout := s.Layout()
	run := store.Run{
		Source:     s.source,
		Seed:       s.seed,
		Palette:    s.palette.ID,
		Cols:       layout.Cols,
		Rows:       layout.Rows,
		Tiles:      stats.Tiles,
		Excursions: stats.Excursions,
		Backtracks: stats.Backtracks,
		Complete:   stats.Complete,
		StartedAt:  s.startedAt,
		Duration:   s.now().Sub(s.startedAt),
	}
	if _, err := s.recorder.Record(ctx, run); err != nil {
		s.logger.Warn("failed to record walk", "seed", s.seed, "err", err)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
