// Package ui lays out the tile walk and draws it to a terminal using tcell.
package ui

import "github.com/gdamore/tcell/v2"

var baseStyle = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)

// Screen is the terminal the walk is drawn on. Drawing happens inside Frame;
// writes outside the visible area are dropped.
type Screen struct {
	screen tcell.Screen
}

// NewScreen opens the controlling terminal.
func NewScreen() (*Screen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return Wrap(s)
}

// Wrap initializes an existing tcell screen, such as a simulation screen.
func Wrap(s tcell.Screen) (*Screen, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.SetStyle(baseStyle)
	s.HideCursor()
	s.Clear()
	return &Screen{screen: s}, nil
}

// Close finalizes the screen and restores terminal state.
func (s *Screen) Close() {
	s.screen.Fini()
}

// PollEvent blocks for the next terminal event. It returns nil once the
// screen is closed.
func (s *Screen) PollEvent() tcell.Event {
	return s.screen.PollEvent()
}

// Size returns the terminal dimensions in cells.
func (s *Screen) Size() (width, height int) {
	return s.screen.Size()
}

// Sync redraws everything, e.g. after a resize.
func (s *Screen) Sync() {
	s.screen.Sync()
}

// Frame clears the buffer, runs draw and shows the result.
func (s *Screen) Frame(draw func()) {
	s.screen.Clear()
	draw()
	s.screen.Show()
}

// Put sets one cell.
func (s *Screen) Put(x, y int, r rune, style tcell.Style) {
	width, height := s.screen.Size()
	if x < 0 || y < 0 || x >= width || y >= height {
		return
	}
	s.screen.SetContent(x, y, r, nil, style)
}

// Text writes text on row y from column x, cut at the screen edge.
func (s *Screen) Text(x, y int, text string, style tcell.Style) {
	for _, r := range text {
		s.Put(x, y, r, style)
		x++
	}
}
