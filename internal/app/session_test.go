package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/samdwyer/tilespawner/internal/config"
	"github.com/samdwyer/tilespawner/internal/palette"
	"github.com/samdwyer/tilespawner/internal/spawner"
	"github.com/samdwyer/tilespawner/internal/store"
)

// memRecorder is a Recorder that keeps runs in memory.
type memRecorder struct {
	runs []store.Run
	err  error
}

func (m *memRecorder) Record(_ context.Context, run store.Run) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.runs = append(m.runs, run)
	return int64(len(m.runs)), nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Seed = 2024
	cfg.Autoplay = false
	return cfg
}

func newTestSession(t *testing.T, cfg config.Config, cols, rows int, rec *memRecorder) *Session {
	t.Helper()
	opts := []SessionOption{WithLogger(log.New(io.Discard))}
	if rec != nil {
		opts = append(opts, WithRecorder(rec, "test"))
	}
	s := NewSession(cfg, palette.MustLoadRegistry().Default(), cols, rows, opts...)
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	return s
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StatePaused, "paused"},
		{StateAutoplay, "autoplay"},
		{StateComplete, "complete"},
		{StateIdle, "idle"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.expected)
		}
	}
}

func TestSessionStartsAtCameraCentre(t *testing.T) {
	s := newTestSession(t, testConfig(), 9, 5, nil)

	if s.State() != StatePaused {
		t.Errorf("State() = %v, want paused", s.State())
	}
	if got := s.Spawner().Current(); got != (spawner.Cell{X: 4, Y: 2}) {
		t.Errorf("start cell = %v, want (4,2)", got)
	}
}

func TestSessionOutOfBoundsStartIsIdle(t *testing.T) {
	cfg := testConfig()
	cfg.Start = &config.Vec2{X: 100, Y: 100}

	s := NewSession(cfg, palette.MustLoadRegistry().Default(), 5, 5, WithLogger(log.New(io.Discard)))
	err := s.Reload(context.Background())
	if !errors.Is(err, spawner.ErrOutOfBounds) {
		t.Fatalf("Reload() error = %v, want ErrOutOfBounds", err)
	}
	if s.State() != StateIdle {
		t.Errorf("State() = %v, want idle", s.State())
	}
	if _, err := s.Step(context.Background()); !errors.Is(err, spawner.ErrNotStarted) {
		t.Errorf("Step() error = %v, want ErrNotStarted", err)
	}
	if !strings.Contains(s.Status(), "idle") {
		t.Errorf("Status() = %q, should mention idle", s.Status())
	}
}

func TestTickOnlyStepsWhileAutoplaying(t *testing.T) {
	s := newTestSession(t, testConfig(), 6, 6, nil)
	ctx := context.Background()

	if _, stepped, err := s.Tick(ctx); stepped || err != nil {
		t.Fatalf("Tick() while paused = %v, %v; want no step", stepped, err)
	}

	s.ToggleAutoplay()
	if s.State() != StateAutoplay {
		t.Fatalf("State() = %v, want autoplay", s.State())
	}
	if _, stepped, err := s.Tick(ctx); !stepped || err != nil {
		t.Fatalf("Tick() while autoplaying = %v, %v; want a step", stepped, err)
	}
	if got := len(s.Spawner().Tiles()); got != 2 {
		t.Errorf("tiles = %d, want 2", got)
	}

	s.ToggleAutoplay()
	if s.State() != StatePaused {
		t.Errorf("State() = %v, want paused", s.State())
	}
}

func TestSessionCompletesAndRecordsOnce(t *testing.T) {
	rec := &memRecorder{}
	s := newTestSession(t, testConfig(), 4, 3, rec)
	ctx := context.Background()

	var err error
	for i := 0; i < 100 && err == nil; i++ {
		_, err = s.Step(ctx)
	}
	if !errors.Is(err, spawner.ErrExhausted) {
		t.Fatalf("Step() error = %v, want ErrExhausted", err)
	}
	if s.State() != StateComplete {
		t.Errorf("State() = %v, want complete", s.State())
	}

	s.Close(ctx)

	if len(rec.runs) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(rec.runs))
	}
	run := rec.runs[0]
	if run.Source != "test" || run.Seed != 2024 || run.Tiles != 12 || !run.Complete {
		t.Errorf("recorded run = %+v", run)
	}
	if run.Cols != 4 || run.Rows != 3 {
		t.Errorf("recorded grid = %dx%d, want 4x3", run.Cols, run.Rows)
	}
}

func TestSessionTileLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTiles = 5
	s := newTestSession(t, cfg, 10, 10, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := s.Step(ctx); err != nil {
			t.Fatalf("Step() %d error = %v", i, err)
		}
	}
	if s.State() != StateComplete {
		t.Errorf("State() = %v, want complete at the tile limit", s.State())
	}
	if _, err := s.Step(ctx); !errors.Is(err, ErrTileLimit) {
		t.Errorf("Step() error = %v, want ErrTileLimit", err)
	}
	if got := len(s.Spawner().Tiles()); got != 5 {
		t.Errorf("tiles = %d, want 5", got)
	}
}

func TestReloadWithFixedSeedReplays(t *testing.T) {
	rec := &memRecorder{}
	s := newTestSession(t, testConfig(), 8, 8, rec)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if _, err := s.Step(ctx); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	first := append([]spawner.Tile(nil), s.Spawner().Tiles()...)

	if err := s.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if len(rec.runs) != 1 || rec.runs[0].Complete {
		t.Errorf("reload should record the unfinished walk, got %+v", rec.runs)
	}
	if got := len(s.Spawner().Tiles()); got != 1 {
		t.Fatalf("tiles after reload = %d, want 1", got)
	}

	for i := 0; i < 20; i++ {
		if _, err := s.Step(ctx); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	for i, tile := range s.Spawner().Tiles() {
		if tile != first[i] {
			t.Fatalf("tile %d = %+v after reload, want %+v", i, tile, first[i])
		}
	}
}

func TestResizeRestartsFittedWalk(t *testing.T) {
	s := newTestSession(t, testConfig(), 8, 8, nil)
	ctx := context.Background()
	if _, err := s.Step(ctx); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	if err := s.Resize(ctx, 12, 4); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if got := s.Spawner().Bounds().CellCount(); got != 48 {
		t.Errorf("cells after resize = %d, want 48", got)
	}
	if got := len(s.Spawner().Tiles()); got != 1 {
		t.Errorf("tiles after resize = %d, want 1", got)
	}
}

func TestResizeKeepsFixedCamera(t *testing.T) {
	cfg := testConfig()
	cfg.Camera = &config.CameraConfig{Size: 3, Aspect: 1}
	s := newTestSession(t, cfg, 8, 8, nil)
	ctx := context.Background()
	if _, err := s.Step(ctx); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	if err := s.Resize(ctx, 12, 4); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if got := len(s.Spawner().Tiles()); got != 2 {
		t.Errorf("tiles after resize = %d, want the walk to continue with 2", got)
	}
}

func TestRecordFailureIsNotFatal(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	s := newTestSession(t, testConfig(), 3, 3, rec)

	s.Close(context.Background())

	if err := s.Reload(context.Background()); err != nil {
		t.Errorf("Reload() error = %v", err)
	}
}

func TestRecordedDurationUsesClock(t *testing.T) {
	rec := &memRecorder{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s := NewSession(testConfig(), palette.MustLoadRegistry().Default(), 3, 3,
		WithLogger(log.New(io.Discard)), WithRecorder(rec, "test"), WithClock(clock))
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	now = now.Add(3 * time.Second)
	s.Close(context.Background())

	if len(rec.runs) != 1 || rec.runs[0].Duration != 3*time.Second {
		t.Errorf("recorded runs = %+v, want one run lasting 3s", rec.runs)
	}
}

func TestTogglePathChangesLayout(t *testing.T) {
	s := newTestSession(t, testConfig(), 5, 5, nil)
	if !s.Layout().DrawPath {
		t.Fatal("path should be drawn by default")
	}
	s.TogglePath()
	if s.Layout().DrawPath || s.DrawPath() {
		t.Error("TogglePath() should hide the path")
	}
	if !strings.Contains(s.Status(), "path off") {
		t.Errorf("Status() = %q, should show path off", s.Status())
	}
}
