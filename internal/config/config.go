// Package config loads yaIRCd's configuration surface once at startup
// into a read-only snapshot, exactly as spec.md §6 requires: nothing
// past Load re-reads or mutates it.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Identity names the server to its own users and to the network.
type Identity struct {
	ServID   string `mapstructure:"serv_id"`
	ServName string `mapstructure:"serv_name"`
	ServDesc string `mapstructure:"serv_desc"`
	NetName  string `mapstructure:"net_name"`
}

// Admin names the server administrator. It is copied into
// dispatch.Env.Admin; no command handler renders it in a reply.
type Admin struct {
	Name  string `mapstructure:"name"`
	Nick  string `mapstructure:"nick"`
	Email string `mapstructure:"email"`
}

// TLS points at the certificate/key pair for the secure listen socket.
type TLS struct {
	Certificate string `mapstructure:"certificate"`
	PKey        string `mapstructure:"pkey"`
}

// Cloak carries the three salts and prefix the cloak package folds
// hostnames and dotted IPv4 addresses with.
type Cloak struct {
	NetPrefix string `mapstructure:"net_prefix"`
	Key1      string `mapstructure:"key1"`
	Key2      string `mapstructure:"key2"`
	Key3      string `mapstructure:"key3"`
}

// Timeouts controls the PING/PONG liveness cycle of §5.
type Timeouts struct {
	PingFreq time.Duration `mapstructure:"ping_freq"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Socket describes one listen endpoint.
type Socket struct {
	IP               string `mapstructure:"ip"`
	Port             int    `mapstructure:"port"`
	MaxHangupClients int    `mapstructure:"max_hangup_clients"`
}

// Listen groups the plaintext and TLS endpoints spec.md §6 requires.
type Listen struct {
	Standard Socket `mapstructure:"standard"`
	Secure   Socket `mapstructure:"secure"`
}

// Files points at on-disk ancillary content (presently just the MOTD).
type Files struct {
	MOTD string `mapstructure:"motd"`
}

// Channels holds channel-engine tunables.
type Channels struct {
	ChanLimit int `mapstructure:"chanlimit"`
}

// Flood configures the supplemental per-connection token-bucket limiter
// (spec.md is silent on flood control; see SPEC_FULL.md §D.3).
type Flood struct {
	Enabled    bool    `mapstructure:"enabled"`
	BurstLines int     `mapstructure:"burst_lines"`
	RefillRate float64 `mapstructure:"refill_rate"`
}

// Gateway configures the optional WebSocket IRC transport of §D.4.
type Gateway struct {
	Enabled bool   `mapstructure:"enabled"`
	IP      string `mapstructure:"ip"`
	Port    int    `mapstructure:"port"`
}

// Events configures the optional NATS server-event publisher of §D.5.
type Events struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// Logging controls the zap logger's level and encoding.
type Logging struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Metrics controls the Prometheus exposition endpoint of §D.6.
type Metrics struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Endpoint   string `mapstructure:"endpoint"`
}

// Config is the fully-resolved, immutable snapshot threaded explicitly
// into every component that needs it — never an ambient global, per
// spec.md §9.
type Config struct {
	Identity Identity `mapstructure:"identity"`
	Admin    Admin    `mapstructure:"admin"`
	TLS      TLS      `mapstructure:"tls"`
	Cloak    Cloak    `mapstructure:"cloak"`
	Timeouts Timeouts `mapstructure:"timeouts"`
	Listen   Listen   `mapstructure:"listen"`
	Files    Files    `mapstructure:"files"`
	Channels Channels `mapstructure:"channels"`
	Flood    Flood    `mapstructure:"flood"`
	Gateway  Gateway  `mapstructure:"gateway"`
	Events   Events   `mapstructure:"events"`
	Logging  Logging  `mapstructure:"logging"`
	Metrics  Metrics  `mapstructure:"metrics"`
}

// Load resolves configuration from defaults, an optional config file
// named yaircd.{yaml,json,toml} under "." or "./config", and
// YAIRCD_-prefixed environment variables, in that ascending precedence.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("identity.serv_id", "001")
	v.SetDefault("identity.serv_name", "irc.example.net")
	v.SetDefault("identity.serv_desc", "yaIRCd test server")
	v.SetDefault("identity.net_name", "ExampleNet")

	v.SetDefault("admin.name", "Administrator")
	v.SetDefault("admin.nick", "admin")
	v.SetDefault("admin.email", "admin@example.net")

	v.SetDefault("tls.certificate", "")
	v.SetDefault("tls.pkey", "")

	v.SetDefault("cloak.net_prefix", "net")
	v.SetDefault("cloak.key1", "")
	v.SetDefault("cloak.key2", "")
	v.SetDefault("cloak.key3", "")

	v.SetDefault("timeouts.ping_freq", 90*time.Second)
	v.SetDefault("timeouts.timeout", 180*time.Second)

	v.SetDefault("listen.standard.ip", "0.0.0.0")
	v.SetDefault("listen.standard.port", 6667)
	v.SetDefault("listen.standard.max_hangup_clients", 128)
	v.SetDefault("listen.secure.ip", "0.0.0.0")
	v.SetDefault("listen.secure.port", 6697)
	v.SetDefault("listen.secure.max_hangup_clients", 128)

	v.SetDefault("files.motd", "")

	v.SetDefault("channels.chanlimit", 20)

	v.SetDefault("flood.enabled", true)
	v.SetDefault("flood.burst_lines", 10)
	v.SetDefault("flood.refill_rate", 2.0)

	v.SetDefault("gateway.enabled", false)
	v.SetDefault("gateway.ip", "0.0.0.0")
	v.SetDefault("gateway.port", 8067)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.url", "")
	v.SetDefault("events.subject", "yaircd.events")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9096")
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetConfigName("yaircd")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("YAIRCD")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}
	if cfg.Channels.ChanLimit <= 0 {
		cfg.Channels.ChanLimit = 20
	}
	return cfg, nil
}
