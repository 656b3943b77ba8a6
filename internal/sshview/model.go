// Package sshview serves walks over SSH. Every session gets its own walk
// rendered by a bubbletea model.
package sshview

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/samdwyer/tilespawner/internal/app"
	"github.com/samdwyer/tilespawner/internal/spawner"
	"github.com/samdwyer/tilespawner/internal/ui"
)

// footerRows is the number of rows below the grid: status and key help.
const footerRows = 2

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// tickMsg fires once per spawn interval.
type tickMsg time.Time

// Model is the bubbletea model for one remote viewer.
type Model struct {
	ctx     context.Context
	session *app.Session
	logger  *log.Logger
	keys    keyMap
	help    help.Model
	width   int
	height  int
	idle    string // Why the last walk did not start
}

// NewModel creates a model for a width x height terminal and starts the
// session's first walk.
func NewModel(ctx context.Context, session *app.Session, logger *log.Logger, width, height int) Model {
	m := Model{
		ctx:     ctx,
		session: session,
		logger:  logger,
		keys:    defaultKeyMap(),
		help:    help.New(),
		width:   width,
		height:  height,
	}
	if err := session.Reload(ctx); err != nil {
		logger.Warn("walk did not start", "err", err)
		m.idle = idleMessage(err)
	}
	return m
}

// GridSize returns the grid that fits a width x height terminal above the footer.
func GridSize(width, height int) (cols, rows int) {
	return ui.GridSizeFor(width, height-footerRows)
}

// Session returns the model's walk session.
func (m Model) Session() *app.Session {
	return m.session
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.session.Interval(), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		cols, rows := GridSize(msg.Width, msg.Height)
		if err := m.session.Resize(m.ctx, cols, rows); err != nil {
			m.logger.Warn("walk did not restart after resize", "err", err)
			m.idle = idleMessage(err)
		}
		return m, nil

	case tickMsg:
		if _, _, err := m.session.Tick(m.ctx); err != nil {
			m.logStepError(err)
		}
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.session.Close(m.ctx)
			return m, tea.Quit
		case key.Matches(msg, m.keys.Step):
			if _, err := m.session.Step(m.ctx); err != nil {
				m.logStepError(err)
			}
		case key.Matches(msg, m.keys.Autoplay):
			m.session.ToggleAutoplay()
		case key.Matches(msg, m.keys.Path):
			m.session.TogglePath()
		case key.Matches(msg, m.keys.Reload):
			if err := m.session.Reload(m.ctx); err != nil {
				m.logger.Warn("walk did not restart", "err", err)
				m.idle = idleMessage(err)
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	if s := m.session.Spawner(); s != nil && s.Started() {
		b.WriteString(m.renderGrid(s))
	} else {
		b.WriteString(idleStyle.Render(m.idleText()))
		b.WriteByte('\n')
	}
	b.WriteString(statusStyle.Render(m.session.Status()))
	b.WriteByte('\n')
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// cell is one screen position of the grid.
type cell struct {
	r     rune
	color string
	bold  bool
}

// renderGrid draws the walk's glyphs, styling runs of equal colour together.
func (m Model) renderGrid(s *spawner.Spawner) string {
	layout := m.session.Layout()
	width, height := layout.ScreenSize()
	if width == 0 {
		return ""
	}

	grid := make([][]cell, height)
	for y := range grid {
		grid[y] = make([]cell, width)
		for x := range grid[y] {
			grid[y][x] = cell{r: ui.RuneEmpty}
		}
	}

	pal := m.session.Palette()
	for _, g := range layout.Glyphs(s) {
		if g.Y < 0 || g.Y >= height || g.X < 0 || g.X >= width {
			continue
		}
		c := cell{r: g.Rune}
		switch g.Kind {
		case ui.GlyphTile:
			c.color = pal.Hex(g.Excursion)
		case ui.GlyphPath:
			c.color = pal.Path
		case ui.GlyphCursor:
			c.color = pal.Cursor
			c.bold = true
		}
		grid[g.Y][g.X] = c
	}

	var b strings.Builder
	for _, row := range grid {
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && row[x].color == row[start].color && row[x].bold == row[start].bold {
				continue
			}
			b.WriteString(renderRun(row[start:x]))
			start = x
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func renderRun(run []cell) string {
	runes := make([]rune, len(run))
	for i, c := range run {
		runes[i] = c.r
	}
	if run[0].color == "" {
		return string(runes)
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(run[0].color)).Bold(run[0].bold)
	return style.Render(string(runes))
}

func (m Model) idleText() string {
	if m.idle == "" {
		return "no walk"
	}
	return m.idle
}

// idleMessage explains a walk that failed to start.
func idleMessage(err error) string {
	switch {
	case errors.Is(err, spawner.ErrOutOfBounds):
		return "no walk: the start lies outside the view"
	case errors.Is(err, spawner.ErrEmptyBounds):
		return "no walk: the view is too small to hold a tile"
	default:
		return "no walk: " + err.Error()
	}
}

func (m Model) logStepError(err error) {
	if errors.Is(err, spawner.ErrExhausted) || errors.Is(err, app.ErrTileLimit) {
		return
	}
	m.logger.Warn("step failed", "err", err)
}
