// Package supervisor implements the per-connection event loop of
// spec.md §4.9: a reader goroutine driving framer→parser→dispatcher,
// a writer goroutine drained by the wakeup primitive, and the single
// cleanup path shared by QUIT, transport errors and ping timeout.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/fenag/yaIRCd-sub000/internal/client"
	"github.com/fenag/yaIRCd-sub000/internal/dispatch"
	"github.com/fenag/yaIRCd-sub000/internal/events"
	"github.com/fenag/yaIRCd-sub000/internal/framer"
	"github.com/fenag/yaIRCd-sub000/internal/ircmsg"
	"github.com/fenag/yaIRCd-sub000/internal/metrics"
)

// readBufSize is the per-read chunk size; independent of the framer's fixed
// 512-byte message cap.
const readBufSize = 4096

// Supervisor owns one client's lifetime from accept to cleanup.
type Supervisor struct {
	env      *dispatch.Env
	client   *client.Client
	logger   *zap.Logger
	events   *events.Publisher
	metrics  *metrics.Registry
	pingFreq time.Duration
	timeout  time.Duration
}

// New returns a supervisor for an already-constructed client.
func New(env *dispatch.Env, c *client.Client, logger *zap.Logger, pub *events.Publisher, reg *metrics.Registry, pingFreq, timeout time.Duration) *Supervisor {
	return &Supervisor{env: env, client: c, logger: logger, events: pub, metrics: reg, pingFreq: pingFreq, timeout: timeout}
}

// Run drives the connection until it terminates, then performs cleanup.
// It blocks until the connection closes, so callers invoke it from its
// own goroutine per accepted connection.
func (s *Supervisor) Run(ctx context.Context) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(connCtx)
	}()

	if s.pingFreq > 0 {
		go s.pingLoop(connCtx)
	}

	s.readLoop(connCtx)
	cancel()
	<-writerDone

	s.cleanup()
}

func (s *Supervisor) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.client.Wake.C():
			s.client.Queue.Drain(func(line string) {
				if _, err := io.WriteString(s.client.Conn, line); err != nil {
					s.logger.Debug("write error", zap.Error(err), zap.Uint64("client_id", s.client.ID))
				}
			})
		}
	}
}

func (s *Supervisor) readLoop(ctx context.Context) {
	buf := make([]byte, readBufSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if s.timeout > 0 {
			_ = s.client.Conn.SetReadDeadline(time.Now().Add(s.timeout))
		}

		n, err := s.client.Conn.Read(buf)
		if n > 0 {
			s.feedAndDispatch(ctx, buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("read error", zap.Error(err), zap.Uint64("client_id", s.client.ID))
			}
			return
		}
	}
}

func (s *Supervisor) feedAndDispatch(ctx context.Context, data []byte) {
	data = data[s.client.Framer.Feed(data):]
	for {
		line, res := s.client.Framer.Next()
		switch res {
		case framer.NeedMore:
			if len(data) == 0 {
				return
			}
			data = data[s.client.Framer.Feed(data):]
		case framer.Overflow:
			// Open question in spec.md §9 resolved here: reset and
			// continue rather than terminate — a misbehaving client
			// that resynchronises should not be punished for one
			// oversized line. See DESIGN.md.
			s.logger.Warn("framing violation: line exceeded 512 bytes", zap.Uint64("client_id", s.client.ID))
			if s.metrics != nil {
				s.metrics.FramingViolations.Inc()
			}
			continue
		case framer.Ready:
			if s.client.Flood != nil {
				if err := s.client.Flood.Wait(ctx); err != nil {
					if s.metrics != nil {
						s.metrics.FloodDisconnects.Inc()
					}
					s.client.SetQuitReason("Excess Flood")
					return
				}
			}
			s.dispatchLine(line)
		}
	}
}

func (s *Supervisor) dispatchLine(line []byte) {
	if len(line) == 0 {
		return
	}
	cp := make([]byte, len(line))
	copy(cp, line)

	msg, err := ircmsg.Parse(cp)
	if err != nil {
		s.logger.Debug("parse error", zap.Error(err), zap.Uint64("client_id", s.client.ID))
		return
	}
	if len(msg.Command) == 0 {
		return
	}
	if dispatch.Dispatch(s.env, s.client, msg) {
		_ = s.client.Conn.Close()
	}
}

func (s *Supervisor) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.client.Registered() {
				continue
			}
			if s.timeout > 0 && time.Since(s.client.LastPong()) > s.timeout {
				s.client.SetQuitReason("Ping timeout")
				_ = s.client.Conn.Close()
				return
			}
			s.client.Send(fmt.Sprintf("PING :%s\r\n", s.env.ServerName))
		}
	}
}

// cleanup is the single unregistration path shared by QUIT, transport
// errors and ping timeout. It must not call any primitive that could
// re-enter a lock already held on this goroutine's stack, per spec.md
// §4.9 — channel.Engine.Part and clients.Registry.Unregister each take
// and release their own lock independently, never nested.
func (s *Supervisor) cleanup() {
	defer s.client.Conn.Close()

	if !s.client.Registered() {
		return
	}

	reason := s.client.QuitReason()
	if reason == "" {
		reason = "Connection closed"
	}
	notice := fmt.Sprintf(":%s QUIT :%s\r\n", s.client.Hostmask(), reason)

	for _, name := range s.client.Channels() {
		s.env.Channels.Part(name, s.client, notice)
	}
	s.env.Clients.Unregister(s.client.FoldedNick())

	s.logger.Info("client disconnected", zap.String("nick", s.client.Nick()), zap.String("reason", reason))
	if s.events != nil {
		s.events.Publish("client.disconnected", map[string]string{"nick": s.client.Nick(), "reason": reason})
	}
}
