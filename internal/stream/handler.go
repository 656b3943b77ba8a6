// Package stream serves walks over websocket, one JSON frame per spawned tile.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/samdwyer/tilespawner/internal/app"
	"github.com/samdwyer/tilespawner/internal/config"
	"github.com/samdwyer/tilespawner/internal/palette"
	"github.com/samdwyer/tilespawner/internal/spawner"
)

const (
	DefaultCols = 32
	DefaultRows = 16
	MaxGridSide = config.MaxGridSide

	writeWait      = 5 * time.Second
	maxMessageSize = 512
)

// Handler upgrades requests to websocket and streams a fresh walk on each
// connection. Query parameters: seed, cols, rows.
type Handler struct {
	cfg      config.Config
	palette  *palette.Palette
	logger   *log.Logger
	recorder app.Recorder
	upgrader websocket.Upgrader
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithRecorder records every streamed walk.
func WithRecorder(r app.Recorder) Option {
	return func(h *Handler) {
		h.recorder = r
	}
}

// NewHandler creates a websocket stream handler.
func NewHandler(cfg config.Config, pal *palette.Palette, opts ...Option) *Handler {
	h := &Handler{
		cfg:     cfg,
		palette: pal,
		logger:  log.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// params are the per-connection walk settings.
type params struct {
	seed       int64
	cols, rows int
}

func parseParams(q url.Values) (params, error) {
	p := params{cols: DefaultCols, rows: DefaultRows}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return p, fmt.Errorf("invalid seed %q", v)
		}
		p.seed = seed
	}
	var err error
	if p.cols, err = gridSide(q, "cols", DefaultCols); err != nil {
		return p, err
	}
	if p.rows, err = gridSide(q, "rows", DefaultRows); err != nil {
		return p, err
	}
	return p, nil
}

func gridSide(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > MaxGridSide {
		return 0, fmt.Errorf("%s must be between 1 and %d", name, MaxGridSide)
	}
	return n, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, err := parseParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readPump(conn, cancel)

	logger := h.logger.With("remote", r.RemoteAddr)
	if err := h.stream(ctx, conn, p, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("stream ended", "err", err)
	}
}

// readPump discards client messages and cancels the stream once the client
// goes away. Control frames are handled by the connection while reading.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) stream(ctx context.Context, conn *websocket.Conn, p params, logger *log.Logger) error {
	cfg := h.cfg
	if p.seed != 0 {
		cfg.Seed = p.seed
	}
	opts := []app.SessionOption{app.WithLogger(logger)}
	if h.recorder != nil {
		opts = append(opts, app.WithRecorder(h.recorder, "stream"))
	}
	session := app.NewSession(cfg, h.palette, p.cols, p.rows, opts...)
	defer session.Close(context.WithoutCancel(ctx))

	if err := session.Reload(ctx); err != nil {
		_ = writeJSON(conn, ErrorFrame{Type: TypeError, Message: err.Error()})
		closeConn(conn, websocket.CloseInternalServerErr, "walk did not start")
		return err
	}
	if err := writeJSON(conn, h.hello(session)); err != nil {
		return err
	}

	ticker := time.NewTicker(session.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		res, err := session.Step(ctx)
		if errors.Is(err, spawner.ErrExhausted) || errors.Is(err, app.ErrTileLimit) {
			if err := writeJSON(conn, complete(session)); err != nil {
				return err
			}
			closeConn(conn, websocket.CloseNormalClosure, "walk complete")
			return nil
		}
		if err != nil {
			return err
		}
		if err := writeJSON(conn, h.step(res)); err != nil {
			return err
		}
	}
}

func (h *Handler) hello(session *app.Session) HelloFrame {
	s := session.Spawner()
	b := s.Bounds()
	cols, rows := session.Size()
	return HelloFrame{
		Type:    TypeHello,
		Seed:    session.Seed(),
		Cols:    cols,
		Rows:    rows,
		Bounds:  BoundsJSON{MinX: b.MinX, MaxX: b.MaxX, MinY: b.MinY, MaxY: b.MaxY},
		Palette: h.palette.Colors,
		Start:   h.tile(s.Tiles()[0]),
	}
}

func (h *Handler) step(res spawner.StepResult) StepFrame {
	f := StepFrame{
		Type:         TypeStep,
		Tile:         h.tile(res.Tile),
		From:         cellPos(res.Segment.From),
		NewExcursion: res.NewExcursion,
	}
	for _, c := range res.Backtracked {
		f.Backtracked = append(f.Backtracked, cellPos(c))
	}
	return f
}

func (h *Handler) tile(t spawner.Tile) TileJSON {
	return TileJSON{
		Index:     t.Index,
		Pos:       cellPos(t.Cell),
		Excursion: t.Excursion,
		Color:     h.palette.Hex(t.Excursion),
	}
}

func complete(session *app.Session) CompleteFrame {
	stats := session.Spawner().Stats()
	return CompleteFrame{
		Type:       TypeComplete,
		Tiles:      stats.Tiles,
		Excursions: stats.Excursions,
		Backtracks: stats.Backtracks,
		Cells:      stats.Cells,
		Coverage:   stats.Coverage(),
		Exhausted:  stats.Complete,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func closeConn(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

// NewServer returns an HTTP server exposing h at /ws.
func NewServer(addr string, h *Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
