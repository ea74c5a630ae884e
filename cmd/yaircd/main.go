// Command yaircd is the yaIRCd entry point: it loads configuration,
// wires the shared client/channel registries into one dispatch.Env,
// and runs a listener per configured transport (plaintext, TLS, and the
// optional WebSocket gateway) until a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	_ "go.uber.org/automaxprocs"

	"github.com/fenag/yaIRCd-sub000/internal/channel"
	"github.com/fenag/yaIRCd-sub000/internal/clients"
	"github.com/fenag/yaIRCd-sub000/internal/cloak"
	"github.com/fenag/yaIRCd-sub000/internal/config"
	"github.com/fenag/yaIRCd-sub000/internal/dispatch"
	"github.com/fenag/yaIRCd-sub000/internal/events"
	"github.com/fenag/yaIRCd-sub000/internal/listener"
	"github.com/fenag/yaIRCd-sub000/internal/logging"
	"github.com/fenag/yaIRCd-sub000/internal/metrics"
	"github.com/fenag/yaIRCd-sub000/internal/motd"
	"github.com/fenag/yaIRCd-sub000/internal/reversedns"
	"github.com/fenag/yaIRCd-sub000/internal/wsgateway"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	motdLines, err := motd.Load(cfg.Files.MOTD)
	if err != nil {
		logger.Fatal("failed to load motd", zap.Error(err))
	}

	pub, err := events.New(cfg.Events.URL, cfg.Events.Subject, logger)
	if err != nil {
		logger.Fatal("failed to connect event publisher", zap.Error(err))
	}
	defer pub.Close()

	reg := metrics.NewRegistry()

	env := &dispatch.Env{
		ServerName: cfg.Identity.ServName,
		NetName:    cfg.Identity.NetName,
		ServDesc:   cfg.Identity.ServDesc,
		Created:    time.Now().Format(time.RFC1123),
		ChanLimit:  cfg.Channels.ChanLimit,
		Clients:    clients.New(),
		Channels:   channel.NewEngine(),
		Logger:     logger,
		Metrics:    reg,
	}
	env.Admin.Name = cfg.Admin.Name
	env.Admin.Nick = cfg.Admin.Nick
	env.Admin.Email = cfg.Admin.Email
	env.Channels.Metrics = reg
	env.MOTD = motdLines

	cloakKeys := cloak.Keys{
		NetPrefix: cfg.Cloak.NetPrefix,
		K1:        cfg.Cloak.Key1,
		K2:        cfg.Cloak.Key2,
		K3:        cfg.Cloak.Key3,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reg.RunSampler(ctx, 15*time.Second, logger)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Endpoint, reg.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			logger.Info("metrics server starting", zap.String("addr", cfg.Metrics.ListenAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	listeners := make([]*listener.Listener, 0, 3)

	plainLn, err := listener.ListenTCP(cfg.Listen.Standard)
	if err != nil {
		logger.Fatal("failed to bind standard listener", zap.Error(err))
	}
	listeners = append(listeners, listener.New("standard", plainLn, env, cloakKeys, reversedns.Default{},
		cfg.Flood, cfg.Timeouts.PingFreq, cfg.Timeouts.Timeout, logger, reg, pub))

	if cfg.TLS.Certificate != "" && cfg.TLS.PKey != "" {
		secureLn, err := listener.ListenTLS(cfg.Listen.Secure, cfg.TLS.Certificate, cfg.TLS.PKey)
		if err != nil {
			logger.Fatal("failed to bind secure listener", zap.Error(err))
		}
		listeners = append(listeners, listener.New("secure", secureLn, env, cloakKeys, reversedns.Default{},
			cfg.Flood, cfg.Timeouts.PingFreq, cfg.Timeouts.Timeout, logger, reg, pub))
	} else {
		logger.Info("secure listener disabled: no certificate/pkey configured")
	}

	if cfg.Gateway.Enabled {
		gwLn, err := listener.ListenTCP(config.Socket{IP: cfg.Gateway.IP, Port: cfg.Gateway.Port})
		if err != nil {
			logger.Fatal("failed to bind gateway listener", zap.Error(err))
		}
		listeners = append(listeners, listener.New("gateway", wsgateway.Wrap(gwLn), env, cloakKeys, reversedns.Default{},
			cfg.Flood, cfg.Timeouts.PingFreq, cfg.Timeouts.Timeout, logger, reg, pub))
	}

	for _, l := range listeners {
		go l.Serve(ctx)
	}

	logger.Info("yaircd up", zap.Int("listeners", len(listeners)), zap.Int("clients_max_chan", cfg.Channels.ChanLimit))
	<-ctx.Done()
	logger.Info("shutdown signal received")

	for _, l := range listeners {
		l.Close()
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}
