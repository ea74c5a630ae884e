// Package listener accepts new connections on the plaintext and TLS
// ports of spec.md §6: it performs reverse DNS and host cloaking on
// accept, then spawns a connection supervisor for each client — the
// acceptLoop/handleConnection split is grounded in
// go-server-3/internal/transport.Server.
package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fenag/yaIRCd-sub000/internal/client"
	"github.com/fenag/yaIRCd-sub000/internal/cloak"
	"github.com/fenag/yaIRCd-sub000/internal/config"
	"github.com/fenag/yaIRCd-sub000/internal/dispatch"
	"github.com/fenag/yaIRCd-sub000/internal/events"
	"github.com/fenag/yaIRCd-sub000/internal/metrics"
	"github.com/fenag/yaIRCd-sub000/internal/reversedns"
	"github.com/fenag/yaIRCd-sub000/internal/supervisor"
)

// Listener owns one listen socket (plaintext or TLS) and the supervisors
// it spawns.
type Listener struct {
	name     string
	ln       net.Listener
	env      *dispatch.Env
	cloakKey cloak.Keys
	resolver reversedns.Resolver
	flood    config.Flood
	pingFreq time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Registry
	events   *events.Publisher

	nextID  uint64
	wg      sync.WaitGroup
}

// New wraps an already-bound net.Listener (the caller decides plaintext
// vs tls.Listen) with the yaIRCd accept/cloak/spawn pipeline.
func New(name string, ln net.Listener, env *dispatch.Env, cloakKey cloak.Keys, resolver reversedns.Resolver,
	flood config.Flood, pingFreq, timeout time.Duration, logger *zap.Logger, reg *metrics.Registry, pub *events.Publisher) *Listener {
	return &Listener{
		name: name, ln: ln, env: env, cloakKey: cloakKey, resolver: resolver,
		flood: flood, pingFreq: pingFreq, timeout: timeout, logger: logger, metrics: reg, events: pub,
	}
}

// ListenTCP binds a plaintext TCP socket for the given config.Socket.
func ListenTCP(s config.Socket) (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", s.IP, s.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return ln, nil
}

// ListenTLS binds a TLS-wrapped TCP socket using the configured
// certificate and key files.
func ListenTLS(s config.Socket, certFile, keyFile string) (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls keypair: %w", err)
	}
	addr := fmt.Sprintf("%s:%d", s.IP, s.Port)
	ln, err := tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		return nil, fmt.Errorf("listen tls: %w", err)
	}
	return ln, nil
}

// Serve runs the accept loop until ctx is cancelled or the listener is
// closed. It blocks, so callers invoke it from its own goroutine.
func (l *Listener) Serve(ctx context.Context) {
	l.logger.Info("listener up", zap.String("listener", l.name), zap.String("addr", l.ln.Addr().String()))
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			l.logger.Error("accept error", zap.String("listener", l.name), zap.Error(err))
			return
		}

		if l.metrics != nil {
			l.metrics.ConnectionsAccepted.Inc()
		}

		l.wg.Add(1)
		go func(c net.Conn) {
			defer l.wg.Done()
			l.handle(ctx, c)
			if l.metrics != nil {
				l.metrics.ConnectionsClosed.Inc()
			}
		}(conn)
	}
}

// Close stops accepting and waits for every connection this listener
// has spawned to finish.
func (l *Listener) Close() {
	_ = l.ln.Close()
	l.wg.Wait()
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) {
	id := atomic.AddUint64(&l.nextID, 1)
	rawHost, cloakedHost := l.resolveAndCloak(conn)

	_, isTLS := conn.(*tls.Conn)

	var limiter *rate.Limiter
	if l.flood.Enabled {
		limiter = rate.NewLimiter(rate.Limit(l.flood.RefillRate), l.flood.BurstLines)
	}

	c := client.New(id, conn, isTLS, rawHost, cloakedHost, limiter)
	c.Metrics = l.metrics
	l.logger.Debug("connection accepted", zap.Uint64("client_id", id), zap.String("raw_host", rawHost))

	sup := supervisor.New(l.env, c, l.logger, l.events, l.metrics, l.pingFreq, l.timeout)
	sup.Run(ctx)
}

// resolveAndCloak implements spec.md §6's accept-time contract: reverse
// DNS first, falling back to the dotted IP; cloak whichever one is used.
func (l *Listener) resolveAndCloak(conn net.Conn) (rawHost, cloakedHost string) {
	ip := hostOf(conn.RemoteAddr())
	if name, ok := l.resolver.Lookup(ip); ok {
		return name, l.cloakKey.Hostname(name)
	}
	return ip, l.cloakKey.IPv4(ip)
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return strings.TrimSuffix(addr.String(), ":0")
	}
	return host
}
