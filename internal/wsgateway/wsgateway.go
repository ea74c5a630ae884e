// Package wsgateway adds an optional WebSocket listen socket carrying
// the identical line protocol of spec.md §6 as text frames, per
// SPEC_FULL.md §D.4. It is a transport adapter, not a parallel protocol
// engine: each upgraded connection is wrapped to look like a plain
// net.Conn and handed to the same listener/supervisor pipeline used for
// raw TCP, grounded in go-server-3/internal/transport's ws.Upgrade +
// wsutil usage.
package wsgateway

import (
	"io"
	"net"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn adapts a WebSocket connection to the net.Conn interface the rest
// of the protocol engine expects: each Read returns one framed text
// message's payload (newline-terminated so the inbound framer's scan
// for '\n' still works unmodified); each Write sends its argument as
// one outbound text frame with any trailing "\r\n" stripped.
type Conn struct {
	net.Conn
	reader  *wsutil.Reader
	pending []byte
}

// Upgrade performs the server-side WebSocket handshake on conn and
// returns a net.Conn wrapping it.
func Upgrade(conn net.Conn) (*Conn, error) {
	if _, err := ws.Upgrade(conn); err != nil {
		return nil, err
	}
	return &Conn{
		Conn:   conn,
		reader: wsutil.NewReader(conn, ws.StateServerSide),
	}, nil
}

// Read implements io.Reader by decoding the next text frame (skipping
// control frames transparently) and appending a newline so the
// consuming framer treats each message as one terminated line.
func (c *Conn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		head, err := c.reader.NextFrame()
		if err != nil {
			return 0, err
		}
		switch head.OpCode {
		case ws.OpClose:
			return 0, io.EOF
		case ws.OpPing:
			if err := wsutil.WriteServerMessage(c.Conn, ws.OpPong, nil); err != nil {
				return 0, err
			}
		case ws.OpText, ws.OpBinary:
			payload := make([]byte, head.Length+1)
			if _, err := io.ReadFull(c.reader, payload[:head.Length]); err != nil {
				return 0, err
			}
			payload[head.Length] = '\n'
			c.pending = payload
		default:
			if _, err := io.CopyN(io.Discard, c.reader, head.Length); err != nil {
				return 0, err
			}
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write implements io.Writer by sending data as one outbound text
// frame, stripping the trailing CRLF the write queue always appends.
func (c *Conn) Write(data []byte) (int, error) {
	trimmed := strings.TrimRight(string(data), "\r\n")
	if err := wsutil.WriteServerText(c.Conn, []byte(trimmed)); err != nil {
		return 0, err
	}
	return len(data), nil
}

// SetReadDeadline and SetDeadline are delegated but tolerate a deadline
// already in the past, matching the underlying socket's own contract.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.Conn.SetReadDeadline(t) }
func (c *Conn) SetDeadline(t time.Time) error     { return c.Conn.SetDeadline(t) }

// Listener wraps a plain TCP net.Listener so that every accepted
// connection performs the WebSocket handshake before it is handed to a
// caller expecting net.Conn — this is what lets internal/listener treat
// the gateway exactly like the raw TCP and TLS sockets.
type Listener struct {
	net.Listener
}

// Wrap returns a Listener that upgrades every accepted connection.
func Wrap(ln net.Listener) *Listener {
	return &Listener{Listener: ln}
}

// Accept blocks for the next connection and performs its WS handshake
// before returning it. A connection that fails the handshake is closed
// and Accept retries rather than surfacing a single bad client as a
// listener-fatal error.
func (l *Listener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		wsConn, err := Upgrade(conn)
		if err != nil {
			conn.Close()
			continue
		}
		return wsConn, nil
	}
}
