// Package metrics wraps Prometheus collectors for yaIRCd's protocol
// engine and a background process resource sampler, per SPEC_FULL.md
// §D.6 — grounded in go-server-3/internal/metrics's promauto Registry
// and go-server/internal/metrics/system.go's gopsutil sampling.
package metrics

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Registry holds every Prometheus collector the protocol engine touches.
type Registry struct {
	ConnectionsAccepted prometheus.Counter
	ConnectionsClosed   prometheus.Counter
	CommandsDispatched  *prometheus.CounterVec
	PrivmsgsRouted      prometheus.Counter
	ChannelsCreated     prometheus.Counter
	ChannelsDestroyed   prometheus.Counter
	FramingViolations   prometheus.Counter
	QueueFullDrops      prometheus.Counter
	FloodDisconnects    prometheus.Counter

	ProcessCPUPercent prometheus.Gauge
	ProcessRSSBytes   prometheus.Gauge
}

// NewRegistry registers every collector with the default registerer.
func NewRegistry() *Registry {
	return &Registry{
		ConnectionsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yaircd_connections_accepted_total",
			Help: "Total number of accepted connections.",
		}),
		ConnectionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yaircd_connections_closed_total",
			Help: "Total number of connections that have terminated.",
		}),
		CommandsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "yaircd_commands_dispatched_total",
			Help: "Total number of commands dispatched, by command name.",
		}, []string{"command"}),
		PrivmsgsRouted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yaircd_privmsgs_routed_total",
			Help: "Total number of PRIVMSGs routed to a recipient.",
		}),
		ChannelsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yaircd_channels_created_total",
			Help: "Total number of channels created on first join.",
		}),
		ChannelsDestroyed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yaircd_channels_destroyed_total",
			Help: "Total number of channels destroyed on last part.",
		}),
		FramingViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yaircd_framing_violations_total",
			Help: "Total number of inbound lines discarded for exceeding 512 bytes.",
		}),
		QueueFullDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yaircd_queue_full_drops_total",
			Help: "Total number of outbound lines dropped because a recipient's queue was full.",
		}),
		FloodDisconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "yaircd_flood_disconnects_total",
			Help: "Total number of connections dropped for excess flood.",
		}),
		ProcessCPUPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "yaircd_process_cpu_percent",
			Help: "Process CPU usage percentage, sampled periodically.",
		}),
		ProcessRSSBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "yaircd_process_rss_bytes",
			Help: "Process resident set size in bytes, sampled periodically.",
		}),
	}
}

// Handler exposes the default Prometheus registry for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// RunSampler periodically refreshes the process CPU/RSS gauges until ctx
// is cancelled. It is meant to run in its own goroutine for the lifetime
// of the process.
func (r *Registry) RunSampler(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("metrics: could not open self process handle", zap.Error(err))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pct, err := proc.CPUPercent(); err == nil {
				r.ProcessCPUPercent.Set(pct)
			}
			if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
				r.ProcessRSSBytes.Set(float64(mem.RSS))
			}
		}
	}
}
