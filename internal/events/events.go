// Package events publishes server lifecycle notifications to an external
// NATS subject, per SPEC_FULL.md §D.5. This is a one-way, best-effort
// fan-out for bridges and analytics — not the server-to-server
// federation spec.md §1 excludes. Only internal/supervisor wires a
// Publish call today (client.disconnected on cleanup); §D.5 also lists
// client-registered and channel created/destroyed as event kinds a
// consumer could use, but nothing yet threads a Publisher into
// completeRegistration or channel.Engine to emit them.
package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher wraps a NATS connection. A Publisher built from an empty URL
// (the default, since events.url defaults to "") is a no-op; the
// Events.Enabled setting is not consulted. Every method becomes a
// cheap early return, so callers never branch on whether events are
// configured.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// New connects to url and returns a Publisher bound to subject. An empty
// url yields a no-op Publisher.
func New(url, subject string, logger *zap.Logger) (*Publisher, error) {
	if url == "" {
		return &Publisher{logger: logger}, nil
	}
	conn, err := nats.Connect(url,
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, subject: subject, logger: logger}, nil
}

// event is the JSON envelope every published message shares.
type event struct {
	Kind string            `json:"kind"`
	Data map[string]string `json:"data"`
}

// Publish fires kind/data at the configured subject. Errors are logged
// and swallowed — an event bus outage must never affect protocol
// delivery to connected clients.
func (p *Publisher) Publish(kind string, data map[string]string) {
	if p == nil || p.conn == nil {
		return
	}
	payload, err := json.Marshal(event{Kind: kind, Data: data})
	if err != nil {
		p.logger.Warn("event marshal failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn("event publish failed", zap.String("kind", kind), zap.Error(err))
	}
}

// Close flushes and closes the underlying NATS connection, if any.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}
