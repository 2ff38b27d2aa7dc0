// Package server implements the TCP listener and connection lifecycle for
// the line-based protocol: one goroutine per connection, an optional
// connection limit, per-connection rate limiting and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mrosetti/forchetta/internal/dispatch"
	"github.com/mrosetti/forchetta/internal/logger"
	"github.com/mrosetti/forchetta/pkg/metrics"
)

// Config holds the TCP server configuration. Zero timeout values are
// replaced with defaults; MaxConnections 0 means unlimited.
type Config struct {
	// Port is the TCP port to listen on. 0 lets the OS pick one.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConnections rejects new clients beyond this count. 0 = unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// ReadTimeout bounds reading one request line.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing one response line.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// IdleTimeout closes connections with no traffic between requests.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout bounds the graceful-shutdown drain; stragglers are
	// force-closed after it expires.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// RateLimit throttles requests per connection. Zero rate disables it.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig is the per-connection token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int     `mapstructure:"burst" validate:"min=0"`
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid rate limit %v: must be >= 0", c.RateLimit.RequestsPerSecond)
	}
	return nil
}

// Server accepts client connections and serves the request/response loop on
// each. Requests within a connection are processed strictly in order;
// connections are independent.
//
// Shutdown flow: context cancelled -> listener closed -> in-flight
// connections drain up to ShutdownTimeout -> stragglers force-closed.
type Server struct {
	config     Config
	dispatcher *dispatch.Dispatcher
	metrics    metrics.ServerMetrics

	mu       sync.Mutex
	listener net.Listener

	// activeConns tracks connection handler goroutines for the drain.
	activeConns sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}

	connCount atomic.Int32

	// connSemaphore holds MaxConnections slots; nil when unlimited.
	connSemaphore chan struct{}

	// shutdownCtx is cancelled on shutdown so in-flight requests abort.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// openConns maps connection id to net.Conn for forced closure.
	openConns sync.Map
}

// New builds a Server over the given dispatcher. A nil ServerMetrics selects
// the no-op implementation. Panics on an invalid config; pkg/config validates
// before this is reached.
func New(config Config, dispatcher *dispatch.Dispatcher, m metrics.ServerMetrics) *Server {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid server config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
	}

	if m == nil {
		m = metrics.NewNoopServerMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &Server{
		config:         config,
		dispatcher:     dispatcher,
		metrics:        m,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// Serve listens on the configured port and blocks until ctx is cancelled or
// the listener fails. Each accepted connection is handled on its own
// goroutine.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.config.Port, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	logger.Info("server listening on %s", listener.Addr())
	logger.Debug("server config: max_connections=%d read_timeout=%v write_timeout=%v idle_timeout=%v",
		s.config.MaxConnections, s.config.ReadTimeout, s.config.WriteTimeout, s.config.IdleTimeout)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
			// Stop drove the shutdown; nothing to do here.
		}
	}()

	for {
		tcpConn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("accept error: %v", err)
				continue
			}
		}

		// Over the connection limit the client gets an explicit refusal
		// rather than a silent hang.
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			default:
				s.metrics.RecordConnectionRejected("max_connections")
				logger.Warn("connection from %s rejected: limit of %d reached",
					tcpConn.RemoteAddr(), s.config.MaxConnections)
				_ = writeRejection(tcpConn, s.config.WriteTimeout)
				_ = tcpConn.Close()
				continue
			}
		}

		conn := newConnection(s, tcpConn)

		s.activeConns.Add(1)
		s.openConns.Store(conn.id, tcpConn)
		active := s.connCount.Add(1)

		s.metrics.RecordConnectionAccepted()
		s.metrics.SetActiveConnections(active)
		logger.Debug("connection %s accepted from %s (active: %d)", conn.id, tcpConn.RemoteAddr(), active)

		go func() {
			defer func() {
				s.openConns.Delete(conn.id)
				s.activeConns.Done()
				active := s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
				s.metrics.RecordConnectionClosed()
				s.metrics.SetActiveConnections(active)
				logger.Debug("connection %s closed (active: %d)", conn.id, active)
			}()

			conn.serve(s.shutdownCtx)
		}()
	}
}

// Stop initiates shutdown and waits for connections to drain (bounded by
// ctx, or by ShutdownTimeout when ctx is nil). Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("shutdown context cancelled with %d connection(s) still active", remaining)
		return ctx.Err()
	}
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.mu.Lock()
		listener := s.listener
		s.mu.Unlock()
		if listener != nil {
			if err := listener.Close(); err != nil {
				logger.Debug("close listener: %v", err)
			}
		}

		s.cancelRequests()
	})
}

// gracefulShutdown waits for active connections to finish or force-closes
// them after ShutdownTimeout.
func (s *Server) gracefulShutdown() error {
	active := s.connCount.Load()
	logger.Info("graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		active, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		s.forceCloseConnections()
		return fmt.Errorf("shutdown timeout: %d connection(s) force-closed", remaining)
	}
}

func (s *Server) forceCloseConnections() {
	closed := 0
	s.openConns.Range(func(key, value any) bool {
		if err := value.(net.Conn).Close(); err == nil {
			closed++
		}
		return true
	})
	if closed > 0 {
		logger.Warn("force-closed %d connection(s)", closed)
	}
}

// Addr returns the bound listener address, or "" before Serve has started
// listening. Used by tests that listen on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ActiveConnections returns the number of currently open connections.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

func writeRejection(conn net.Conn, timeout time.Duration) error {
	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	_, err := conn.Write([]byte("ERROR:server busy\n"))
	return err
}
