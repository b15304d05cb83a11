package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ulrichando/ParentShield/internal/domain"
	"github.com/ulrichando/ParentShield/internal/ipc"
	"github.com/ulrichando/ParentShield/internal/settings"
)

// socketMode lets unprivileged clients reach the privileged daemon.
const socketMode = 0666

// Config holds server timing and the control socket location.
type Config struct {
	SocketPath         string
	EnforceInterval    time.Duration
	AcceptPollInterval time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

// ConfigFromSettings extracts the server config from runtime settings.
func ConfigFromSettings(s *settings.Settings) Config {
	return Config{
		SocketPath:         s.SocketPath,
		EnforceInterval:    s.EnforceInterval,
		AcceptPollInterval: s.AcceptPollInterval,
		ReadTimeout:        s.ReadTimeout,
		WriteTimeout:       s.WriteTimeout,
	}
}

// DefaultConfig returns the server config for default settings.
func DefaultConfig() Config {
	return ConfigFromSettings(settings.Default())
}

// Server is the enforcement daemon. It serves control requests on a Unix
// socket and runs the enforcement loop until stopped.
type Server struct {
	config   Config
	enforcer domain.Enforcer
	handler  *Handler
	state    *State
	logger   *zap.Logger

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer creates a daemon server. activity may be nil.
func NewServer(
	config Config,
	enforcer domain.Enforcer,
	store domain.ConfigStore,
	activity domain.ActivityLog,
	logger *zap.Logger,
) *Server {
	state := NewState(time.Now())
	return &Server{
		config:   config,
		enforcer: enforcer,
		handler:  NewHandler(enforcer, store, activity, state, logger),
		state:    state,
		logger:   logger,
		conns:    make(map[net.Conn]struct{}),
	}
}

// State returns the shared daemon state.
func (s *Server) State() *State {
	return s.state
}

// Stop asks Run to return.
func (s *Server) Stop() {
	s.state.Stop()
}

// Run binds the control socket and serves until ctx is cancelled or a
// Shutdown request arrives. The socket file is removed on return.
func (s *Server) Run(ctx context.Context) error {
	ln, err := listen(s.config.SocketPath)
	if err != nil {
		s.logger.Error("failed to bind control socket", zap.String("path", s.config.SocketPath), zap.Error(err))
		return err
	}
	defer func() {
		ln.Close()
		if err := os.Remove(s.config.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove control socket", zap.Error(err))
		}
	}()

	s.logger.Info("daemon started",
		zap.Int("pid", os.Getpid()),
		zap.String("socket", s.config.SocketPath),
		zap.Duration("enforce_interval", s.config.EnforceInterval))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.enforcementLoop(ctx)
	}()

	s.acceptLoop(ctx, ln, &wg)

	s.state.Stop()
	s.interruptConns()
	wg.Wait()

	s.logger.Info("daemon stopped",
		zap.Uint64("blocked_count", s.state.BlockedCount()),
		zap.Uint64("uptime_secs", s.state.Uptime(time.Now())))
	return nil
}

// listen binds path, replacing a stale socket left by an unclean exit.
func listen(path string) (*net.UnixListener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, socketMode); err != nil {
		ln.Close()
		return nil, err
	}
	return ln, nil
}

// acceptLoop polls for connections so a Shutdown request is observed
// within one poll interval.
func (s *Server) acceptLoop(ctx context.Context, ln *net.UnixListener, wg *sync.WaitGroup) {
	for s.state.Running() && ctx.Err() == nil {
		_ = ln.SetDeadline(time.Now().Add(s.config.AcceptPollInterval))
		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if !s.state.Running() {
				return
			}
			s.logger.Warn("accept failed", zap.Error(err))
			time.Sleep(s.config.AcceptPollInterval)
			continue
		}

		s.track(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.untrack(conn)
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn answers requests on conn one at a time until the peer
// disconnects, a deadline passes or the daemon stops.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		// Checked after the deadline is set so interruptConns cannot be
		// overwritten by a late SetReadDeadline.
		if !s.state.Running() {
			return
		}
		var req ipc.Request
		if err := ipc.ReadMessage(conn, &req); err != nil {
			s.readFailed(conn, err)
			return
		}

		resp := s.handler.Handle(ctx, req)

		_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := ipc.WriteMessage(conn, resp); err != nil {
			s.logger.Warn("failed to send response", zap.String("type", string(req.Type)), zap.Error(err))
			return
		}
	}
}

func (s *Server) readFailed(conn net.Conn, err error) {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
		return
	case errors.As(err, &ne) && ne.Timeout():
		s.logger.Debug("client idle, closing connection")
		return
	case errors.Is(err, domain.ErrMalformedMessage), errors.Is(err, domain.ErrMessageTooLarge):
		s.logger.Warn("rejected client message", zap.Error(err))
		_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		_ = ipc.WriteMessage(conn, ipc.ErrorResponse(err))
		return
	}
	if s.state.Running() {
		s.logger.Warn("failed to read request", zap.Error(err))
	}
}

func (s *Server) enforcementLoop(ctx context.Context) {
	s.runEnforcement(ctx)

	ticker := time.NewTicker(s.config.EnforceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.state.Done():
			return
		case <-ticker.C:
			s.runEnforcement(ctx)
		}
	}
}

// runEnforcement executes one pass. Failures are logged and retried on the
// next tick.
func (s *Server) runEnforcement(ctx context.Context) {
	result, err := s.enforcer.Enforce(ctx)
	if err != nil {
		s.logger.Warn("enforcement failed", zap.Error(err))
		return
	}

	s.state.AddBlocked(len(result.Terminated))
	if len(result.Terminated) > 0 || len(result.Errors) > 0 {
		s.logger.Info("enforcement completed",
			zap.Bool("blocking_active", result.BlockingActive),
			zap.Int("processes_killed", len(result.Terminated)),
			zap.Int("domains_blocked", len(result.BlockedDomains)),
			zap.Int("errors", len(result.Errors)),
			zap.Int64("duration_ms", result.DurationMs))
	}
}

func (s *Server) track(conn net.Conn) {
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
}

// interruptConns wakes connections blocked in a read. A response already
// being written is not affected.
func (s *Server) interruptConns() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for conn := range s.conns {
		_ = conn.SetReadDeadline(time.Now())
	}
}
