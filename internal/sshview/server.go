package sshview

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"

	"github.com/samdwyer/tilespawner/internal/app"
	"github.com/samdwyer/tilespawner/internal/config"
	"github.com/samdwyer/tilespawner/internal/palette"
)

// Server serves one walk per SSH session.
type Server struct {
	cfg      config.Config
	palette  *palette.Palette
	logger   *log.Logger
	recorder app.Recorder
	limiter  *limiter
	ssh      *ssh.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRecorder records every walk viewed over SSH.
func WithRecorder(r app.Recorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// NewServer creates an SSH server listening on cfg.SSH.Addr. A host key is
// generated at cfg.SSH.HostKeyPath if none exists.
func NewServer(cfg config.Config, pal *palette.Palette, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		palette: pal,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = newLimiter(cfg.SSH.MaxSessionsPerIP, s.logger)

	srv, err := wish.NewServer(
		wish.WithAddress(cfg.SSH.Addr),
		wish.WithHostKeyPath(cfg.SSH.HostKeyPath),
		wish.WithMiddleware(
			bubbletea.Middleware(s.teaHandler),
			logging.Middleware(),
			activeterm.Middleware(),
			s.limiter.middleware,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create ssh server: %w", err)
	}
	s.ssh = srv
	return s, nil
}

// ListenAndServe serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting ssh server", "addr", s.cfg.SSH.Addr)
	if err := s.ssh.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting sessions and waits for open ones until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping ssh server")
	if err := s.ssh.Shutdown(ctx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) teaHandler(sess ssh.Session) (tea.Model, []tea.ProgramOption) {
	pty, _, _ := sess.Pty()
	cols, rows := GridSize(pty.Window.Width, pty.Window.Height)

	logger := s.logger.With("user", sess.User(), "ip", remoteIP(sess.RemoteAddr()))
	opts := []app.SessionOption{app.WithLogger(logger)}
	if s.recorder != nil {
		opts = append(opts, app.WithRecorder(s.recorder, "ssh"))
	}
	session := app.NewSession(s.cfg, s.palette, cols, rows, opts...)

	model := NewModel(sess.Context(), session, logger, pty.Window.Width, pty.Window.Height)
	return model, []tea.ProgramOption{tea.WithAltScreen()}
}

// limiter caps concurrent sessions per remote IP.
type limiter struct {
	max    int
	logger *log.Logger

	mu     sync.Mutex
	counts map[string]int
}

func newLimiter(limit int, logger *log.Logger) *limiter {
	return &limiter{max: limit, logger: logger, counts: make(map[string]int)}
}

// acquire reserves a slot for ip. It returns the count after the attempt and
// whether the slot was granted.
func (l *limiter) acquire(ip string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max > 0 && l.counts[ip] >= l.max {
		return l.counts[ip], false
	}
	l.counts[ip]++
	return l.counts[ip], true
}

func (l *limiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[ip]--
	if l.counts[ip] <= 0 {
		delete(l.counts, ip)
	}
}

func (l *limiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[ip]
}

func (l *limiter) middleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		ip := remoteIP(sess.RemoteAddr())
		count, ok := l.acquire(ip)
		if !ok {
			l.logger.Warn("connection denied: ip limit exceeded", "ip", ip, "count", count, "limit", l.max)
			wish.Fatalf(sess, "Too many active connections from your IP (%d/%d). Please try again later.\n", count, l.max)
			return
		}
		defer l.release(ip)

		l.logger.Info("connection accepted", "ip", ip, "count", count, "limit", l.max)
		next(sess)
	}
}

func remoteIP(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	return addr.String()
}
