package handler

/*
 * A tcp.Handler implements the protocol server
 */

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	databaseface "minikv/interface/database"
	"minikv/interface/resp"
	"minikv/lib/metrics"
	libatomic "minikv/lib/sync/atomic"
	"minikv/resp/command"
	"minikv/resp/connection"
	"minikv/resp/parser"
	"minikv/resp/reply"
)

var (
	maxClientsErrReply = reply.MakeErrReply("ERR max number of clients reached")
	rateLimitErrReply  = reply.MakeErrReply("ERR rate limit exceeded")
)

// label used in metrics for requests that never became a command
const invalidCommand = "invalid"

// Config bounds what a single server accepts
type Config struct {
	// MaxClients limits open connections, 0 means unlimited
	MaxClients int
	// RateLimit limits commands per second on one connection, 0 disables it
	RateLimit int
}

// RespHandler implements tcp.Handler and serves as a protocol handler
type RespHandler struct {
	cfg        Config
	activeConn sync.Map // *connection.Connection -> struct{}
	connCount  int64
	db         databaseface.Database
	metrics    *metrics.Metrics
	closing    libatomic.Boolean // refusing new client and new request
}

// MakeHandler creates a RespHandler serving db. cfg and m may be nil.
func MakeHandler(cfg *Config, db databaseface.Database, m *metrics.Metrics) *RespHandler {
	h := &RespHandler{
		db:      db,
		metrics: m,
	}
	if cfg != nil {
		h.cfg = *cfg
	}
	return h
}

func (h *RespHandler) closeClient(client *connection.Connection) {
	_ = client.Close()
	h.db.AfterClientClose(client)
	h.activeConn.Delete(client)
	atomic.AddInt64(&h.connCount, -1)
	h.metrics.ConnClosed()
}

// Handle serves one client until it disconnects, sends a malformed frame
// or a reply can not be written
func (h *RespHandler) Handle(ctx context.Context, conn net.Conn) {
	if h.closing.Get() {
		// closing handler refuse new connection
		_ = conn.Close()
		return
	}

	client := connection.NewConn(conn)
	logger := log.WithFields(log.Fields{
		"conn":   client.ID(),
		"remote": client.RemoteAddr().String(),
	})

	n := atomic.AddInt64(&h.connCount, 1)
	if h.cfg.MaxClients > 0 && n > int64(h.cfg.MaxClients) {
		atomic.AddInt64(&h.connCount, -1)
		h.metrics.ConnRejected()
		logger.Warn("max number of clients reached")
		_ = client.Write(maxClientsErrReply.ToBytes())
		_ = client.Close()
		return
	}
	h.activeConn.Store(client, struct{}{})
	h.metrics.ConnOpened()
	logger.Debug("connection accepted")

	defer func() {
		if err := recover(); err != nil {
			logger.Errorf("connection handler panic: %v", err)
		}
		h.closeClient(client)
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})
	defer stop()

	var limiter *rate.Limiter
	if h.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.cfg.RateLimit), h.cfg.RateLimit)
	}

	for {
		frame, err := client.ReadFrame()
		if err != nil {
			h.readFailed(client, logger, err)
			return
		}

		result := h.dispatch(client, limiter, frame)

		if err := client.WriteFrame(result); err != nil {
			logger.WithError(err).Info("write reply failed")
			return
		}
		// pipelined requests are answered in one write
		if client.Buffered() == 0 {
			if err := client.Flush(); err != nil {
				logger.WithError(err).Info("write reply failed")
				return
			}
		}
	}
}

func (h *RespHandler) readFailed(client *connection.Connection, logger *log.Entry, err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.Info("connection closed")
	case errors.Is(err, parser.ErrProtocol):
		// the stream can not be resynchronized, answer once and hang up
		h.metrics.ProtocolError()
		logger.WithError(err).Warn("protocol error")
		_ = client.Write(reply.MakeProtocolErrReply(err.Error()).ToBytes())
	case errors.Is(err, net.ErrClosed) || h.closing.Get():
		logger.Debug("connection closed by server")
	default:
		logger.WithError(err).Info("connection lost")
	}
}

// dispatch turns a request frame into its reply. Command errors are
// answered with an error frame and never reach the store.
func (h *RespHandler) dispatch(client resp.Connection, limiter *rate.Limiter, frame resp.Reply) resp.Reply {
	if limiter != nil && !limiter.Allow() {
		h.metrics.CommandDone(invalidCommand, true, 0)
		return rateLimitErrReply
	}
	cmd, err := command.FromFrame(frame)
	if err != nil {
		h.metrics.CommandDone(invalidCommand, true, 0)
		return command.ErrorReply(err)
	}
	start := time.Now()
	result := h.db.Exec(client, cmd)
	h.metrics.CommandDone(cmd.Name(), reply.IsErrorReply(result), time.Since(start))
	return result
}

// ActiveConnections returns the number of connections being served
func (h *RespHandler) ActiveConnections() int {
	count := 0
	h.activeConn.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// Close stops handler
func (h *RespHandler) Close() error {
	if !h.closing.CompareAndSet(false, true) {
		return nil
	}
	log.Info("handler shutting down...")
	h.activeConn.Range(func(key, _ any) bool {
		client := key.(*connection.Connection)
		_ = client.Close()
		return true
	})
	h.db.Close()
	return nil
}
