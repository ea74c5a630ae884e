// Package client models one connected IRC session: its identity,
// framing buffer, outbound queue and wakeup, and the registration state
// machine from unregistered to registered.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fenag/yaIRCd-sub000/internal/framer"
	"github.com/fenag/yaIRCd-sub000/internal/metrics"
	"github.com/fenag/yaIRCd-sub000/internal/queue"
	"golang.org/x/time/rate"
)

// MaxNickLength bounds NICK per spec.md §4.7.
const MaxNickLength = 30

// Client is owned by its connection supervisor; other goroutines only
// touch it through the small, explicitly-guarded surface below (mu),
// through its Queue/Wake (independently synchronized), or by reading
// identity fields set once before the client is published into the
// registry — publication happens under the registry's own lock, which
// supplies the happens-before edge later readers rely on.
type Client struct {
	ID   uint64
	Conn net.Conn
	TLS  bool

	Framer *framer.Framer
	Queue  *queue.WriteQueue
	Wake   *queue.Wakeup
	Flood  *rate.Limiter

	// Metrics is set by the listener after construction; nil in tests
	// that don't care about observability, so Send guards every use.
	Metrics *metrics.Registry

	RawHost     string
	CloakedHost string

	// Set once, before registration; read afterward without mu by any
	// goroutine holding a registry-synchronized reference.
	Username string
	Realname string

	mu           sync.RWMutex
	nick         string // as given by NICK, for display
	foldedNick   string // registry key
	registered   bool
	channels     map[string]struct{}
	lastPong     time.Time
	connectedAt  time.Time
	quitReason   string
}

// New constructs an unregistered client around an accepted connection.
func New(id uint64, conn net.Conn, isTLS bool, rawHost, cloakedHost string, flood *rate.Limiter) *Client {
	return &Client{
		ID:          id,
		Conn:        conn,
		TLS:         isTLS,
		Framer:      framer.New(),
		Queue:       queue.New(),
		Wake:        queue.NewWakeup(),
		Flood:       flood,
		RawHost:     rawHost,
		CloakedHost: cloakedHost,
		channels:    make(map[string]struct{}),
		lastPong:    time.Now(),
		connectedAt: time.Now(),
	}
}

// Nick returns the nickname as last set by NICK.
func (c *Client) Nick() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nick
}

// FoldedNick returns the case-folded registry key for the client's
// nickname, or "" if NICK has not yet run.
func (c *Client) FoldedNick() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.foldedNick
}

// SetNick records a newly-claimed nickname.
func (c *Client) SetNick(display, folded string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nick = display
	c.foldedNick = folded
}

// MarkRegistered flips the registration flag once NICK and USER have
// both completed.
func (c *Client) MarkRegistered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered = true
}

// Registered reports whether the client has completed NICK+USER.
func (c *Client) Registered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

// AddChannel records that the client has joined name.
func (c *Client) AddChannel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[name] = struct{}{}
}

// RemoveChannel records that the client has left name.
func (c *Client) RemoveChannel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, name)
}

// HasChannel reports whether the client currently has name joined.
func (c *Client) HasChannel(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[name]
	return ok
}

// ChannelCount reports how many channels the client currently has
// joined, for the chanlimit check.
func (c *Client) ChannelCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.channels)
}

// Channels returns a snapshot of the client's joined-channel names.
func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.channels))
	for name := range c.channels {
		out = append(out, name)
	}
	return out
}

// Touch records a liveness signal (PONG received).
func (c *Client) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPong = time.Now()
}

// LastPong reports the last recorded liveness timestamp.
func (c *Client) LastPong() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong
}

// SetQuitReason records the reason given by QUIT (or synthesized by the
// supervisor on transport error/timeout), read back by cleanup when
// composing the implicit quit broadcast.
func (c *Client) SetQuitReason(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quitReason = reason
}

// QuitReason returns the recorded quit reason, or "" if none was set.
func (c *Client) QuitReason() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quitReason
}

// Hostmask renders "nick!user@host" for message prefixes.
func (c *Client) Hostmask() string {
	return fmt.Sprintf("%s!%s@%s", c.Nick(), c.Username, c.CloakedHost)
}

// Send enqueues line for delivery and fires the wakeup. It is the
// primitive every cross-connection delivery path (PRIVMSG, JOIN/PART
// notices, QUIT broadcasts) funnels through.
func (c *Client) Send(line string) queue.Result {
	res := c.Queue.Enqueue(line)
	if res == queue.Full && c.Metrics != nil {
		c.Metrics.QueueFullDrops.Inc()
	}
	c.Wake.Fire()
	return res
}

// FoldNick case-folds a nickname per the IRC "Scandinavian" rule: {}|^
// are equivalent to []\~ respectively, and ASCII letters are
// lower-cased, so two nicknames differing only in that mapping collide
// in the registry.
func FoldNick(nick string) string {
	out := make([]byte, len(nick))
	for i := 0; i < len(nick); i++ {
		out[i] = foldByte(nick[i])
	}
	return string(out)
}

func foldByte(b byte) byte {
	switch b {
	case '{':
		return '['
	case '}':
		return ']'
	case '|':
		return '\\'
	case '^':
		return '~'
	}
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// ValidNickChar reports whether b is allowed anywhere in a nickname.
func ValidNickChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '-', '[', ']', '\\', '`', '^', '{', '}', '|':
		return true
	}
	return false
}
