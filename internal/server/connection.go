package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrosetti/forchetta/internal/logger"
	"github.com/mrosetti/forchetta/internal/protocol"
	"github.com/mrosetti/forchetta/internal/ratelimiter"
)

// maxLineLength caps a single request line so one client cannot exhaust
// server memory.
const maxLineLength = 64 * 1024

// connection runs the request/response loop for one client.
type connection struct {
	server  *Server
	conn    net.Conn
	id      string
	limiter *ratelimiter.RateLimiter
}

func newConnection(s *Server, conn net.Conn) *connection {
	return &connection{
		server:  s,
		conn:    conn,
		id:      uuid.NewString(),
		limiter: ratelimiter.New(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst),
	}
}

// serve reads request lines until the client disconnects, sends EXIT, a
// timeout fires or the server shuts down. A panic in request handling is
// recovered here so one client cannot take the server down.
func (c *connection) serve(ctx context.Context) {
	remote := c.conn.RemoteAddr().String()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic on connection %s from %s: %v", c.id, remote, r)
		}
		_ = c.conn.Close()
	}()

	if c.server.config.IdleTimeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.server.config.IdleTimeout)); err != nil {
			logger.Warn("set deadline for %s: %v", remote, err)
		}
	}

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("connection %s: closing, server shutting down", c.id)
			return
		default:
		}

		if c.server.config.ReadTimeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout)); err != nil {
				return
			}
		}

		if !scanner.Scan() {
			err := scanner.Err()
			if errors.Is(err, bufio.ErrTooLong) {
				// Tell the client why before dropping the connection; the
				// rest of the oversize line cannot be resynchronized.
				_ = c.writeLine(protocol.EncodeError("request line too long"))
			}
			c.logReadEnd(remote, err)
			return
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if !c.limiter.Allow() {
			if err := c.writeLine(protocol.EncodeError("rate limit exceeded")); err != nil {
				return
			}
			continue
		}

		exit, err := c.handleRequest(ctx, line)
		if err != nil || exit {
			return
		}

		if c.server.config.IdleTimeout > 0 {
			if err := c.conn.SetDeadline(time.Now().Add(c.server.config.IdleTimeout)); err != nil {
				return
			}
		}
	}
}

// handleRequest decodes and dispatches one line and writes the response.
// exit reports that the client asked to close the connection.
func (c *connection) handleRequest(ctx context.Context, line string) (exit bool, err error) {
	start := time.Now()

	verb := "INVALID"
	var response string

	cmd, decodeErr := protocol.Decode(line)
	if decodeErr != nil {
		response = protocol.EncodeError(decodeErr.Error())
	} else {
		verb = cmd.Verb()
		response = c.server.dispatcher.Handle(ctx, cmd)
		_, exit = cmd.(protocol.Exit)
	}

	status := "ok"
	if strings.HasPrefix(response, "ERROR:") {
		status = "error"
	}
	c.server.metrics.RecordRequest(verb, status, time.Since(start))

	return exit, c.writeLine(response)
}

func (c *connection) writeLine(line string) error {
	if c.server.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write([]byte(line + "\n"))
	if err != nil {
		logger.Debug("connection %s: write failed: %v", c.id, err)
	}
	return err
}

func (c *connection) logReadEnd(remote string, err error) {
	switch {
	case err == nil, errors.Is(err, io.EOF):
		logger.Debug("connection %s: closed by client %s", c.id, remote)
	case isTimeout(err):
		logger.Debug("connection %s: idle timeout for %s", c.id, remote)
	case errors.Is(err, net.ErrClosed):
		logger.Debug("connection %s: closed during shutdown", c.id)
	case errors.Is(err, bufio.ErrTooLong):
		logger.Warn("connection %s: request line from %s exceeds %d bytes", c.id, remote, maxLineLength)
	default:
		logger.Debug("connection %s: read error from %s: %v", c.id, remote, err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
