package mysql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/go-mysql-org/go-mysql/server"
	"github.com/google/uuid"
)

// Config holds configuration for the MySQL server.
type Config struct {
	Processor Processor
	Port      int
	User      string
	Password  string
	Logger    *slog.Logger
}

// Server accepts MySQL client connections.
type Server struct {
	session  *Session
	port     int
	user     string
	password string
	logger   *slog.Logger
}

// NewServer creates a new MySQL server instance. The user defaults to root.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	user := cfg.User
	if user == "" {
		user = "root"
	}
	return &Server{
		session:  NewSession(cfg.Processor, logger),
		port:     cfg.Port,
		user:     user,
		password: cfg.Password,
		logger:   logger,
	}
}

// Serve listens on the configured port and blocks until the context is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	s.logger.Info("starting mysql server", "addr", ln.Addr().String())
	return s.ServeListener(ctx, ln)
}

// ServeListener accepts connections from ln until the context is
// cancelled, one goroutine per connection.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("mysql accept failed: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, c)
		}()
	}
}

func (s *Server) handle(ctx context.Context, c net.Conn) {
	id := uuid.NewString()
	logger := s.logger.With("conn", id, "remote", c.RemoteAddr().String())

	conn, err := server.NewConn(c, s.user, s.password, NewHandler(ctx, s.session, logger))
	if err != nil {
		logger.Warn("mysql handshake failed", "error", err)
		_ = c.Close()
		return
	}
	logger.Debug("mysql client connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for !conn.Closed() {
		if err := conn.HandleCommand(); err != nil {
			if !conn.Closed() {
				logger.Debug("mysql connection ended", "error", err)
			}
			break
		}
	}
	logger.Debug("mysql client disconnected")
}
