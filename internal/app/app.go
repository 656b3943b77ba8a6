package app

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samdwyer/tilespawner/internal/config"
	"github.com/samdwyer/tilespawner/internal/palette"
	"github.com/samdwyer/tilespawner/internal/spawner"
	"github.com/samdwyer/tilespawner/internal/telemetry"
	"github.com/samdwyer/tilespawner/internal/ui"
)

// statusRows is the number of screen rows reserved below the grid.
const statusRows = 1

// App is the interactive terminal front end.
type App struct {
	screen   *ui.Screen
	renderer *ui.Renderer
	session  *Session
	logger   *log.Logger
	running  bool
}

// New creates an app on the real terminal.
func New(cfg config.Config, pal *palette.Palette, opts ...SessionOption) (*App, error) {
	screen, err := ui.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewWithScreen(screen, cfg, pal, opts...), nil
}

// NewWithScreen creates an app drawing to an initialized screen.
func NewWithScreen(screen *ui.Screen, cfg config.Config, pal *palette.Palette, opts ...SessionOption) *App {
	cols, rows := gridSize(screen)
	session := NewSession(cfg, pal, cols, rows, opts...)
	return &App{
		screen:   screen,
		renderer: ui.NewRenderer(screen, pal),
		session:  session,
		logger:   session.logger,
		running:  true,
	}
}

// Session returns the walk session the app drives.
func (a *App) Session() *Session {
	return a.session
}

// Run executes the main loop until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	tracer := telemetry.Tracer("app")

	ctx, initSpan := tracer.Start(ctx, "app.init")
	if err := a.session.Reload(ctx); err != nil {
		a.logger.Warn("walk did not start", "err", err)
	}
	cols, rows := a.session.Size()
	initSpan.SetAttributes(
		attribute.Int("grid.cols", cols),
		attribute.Int("grid.rows", rows),
		attribute.String("session.state", a.session.State().String()),
	)
	initSpan.End()

	done := make(chan struct{})
	defer close(done)
	events := make(chan tcell.Event, 16)
	go a.pollEvents(events, done)

	ticker := time.NewTicker(a.session.Interval())
	defer ticker.Stop()

	for a.running {
		a.renderer.Render(a.session.Spawner(), a.session.Layout(), a.session.Status())

		select {
		case <-ctx.Done():
			a.running = false
		case ev, ok := <-events:
			if !ok {
				a.running = false
				break
			}
			a.handleEvent(ctx, ev)
		case <-ticker.C:
			if _, _, err := a.session.Tick(ctx); err != nil {
				a.logStepError(err)
			}
		}
	}

	a.session.Close(ctx)
	a.screen.Close()
	return nil
}

// pollEvents forwards terminal events until the screen is finalized.
func (a *App) pollEvents(events chan<- tcell.Event, done <-chan struct{}) {
	defer close(events)
	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case events <- ev:
		case <-done:
			return
		}
	}
}

// handleEvent processes a single terminal event.
func (a *App) handleEvent(ctx context.Context, ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		a.handleKeyEvent(ctx, ev)
	case *tcell.EventResize:
		a.screen.Sync()
		cols, rows := gridSize(a.screen)
		if err := a.session.Resize(ctx, cols, rows); err != nil {
			a.logger.Warn("walk did not restart after resize", "err", err)
		}
	}
}

// handleKeyEvent processes keyboard input.
func (a *App) handleKeyEvent(ctx context.Context, ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		a.running = false

	case tcell.KeyEnter:
		a.step(ctx)

	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			a.running = false
		case ' ', 'n':
			a.step(ctx)
		case 'a':
			a.session.ToggleAutoplay()
		case 'w':
			a.session.TogglePath()
		case 'r':
			if err := a.session.Reload(ctx); err != nil {
				a.logger.Warn("walk did not restart", "err", err)
			}
		}
	}
}

func (a *App) step(ctx context.Context) {
	if _, err := a.session.Step(ctx); err != nil {
		a.logStepError(err)
	}
}

// logStepError ignores the expected end-of-walk errors.
func (a *App) logStepError(err error) {
	if errors.Is(err, spawner.ErrExhausted) || errors.Is(err, ErrTileLimit) {
		return
	}
	a.logger.Warn("step failed", "err", err)
}

// gridSize returns the grid that fits the screen above the status line.
func gridSize(screen *ui.Screen) (cols, rows int) {
	width, height := screen.Size()
	return ui.GridSizeFor(width, height-statusRows)
}
