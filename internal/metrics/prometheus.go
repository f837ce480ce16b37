// Package metrics exports server metrics in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rdbserver"

// Prometheus implements redisrdb.MetricsCollector on a private registry
type Prometheus struct {
	registry *prometheus.Registry

	commandsTotal     *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	keyCount          prometheus.Gauge
	snapshotKeys      prometheus.Gauge
	snapshotLoadTime  prometheus.Gauge
}

// New creates the collector and registers its metrics
func New() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands processed, by command name.",
		}, []string{"command"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command execution time, by command name.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}, []string{"command"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors, by kind.",
		}, []string{"kind"}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Currently open client connections.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Client connections accepted.",
		}),
		keyCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "keys",
			Help:      "Keys every new connection starts with.",
		}),
		snapshotKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_keys",
			Help:      "Keys read from the snapshot file.",
		}),
		snapshotLoadTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_load_seconds",
			Help:      "Time spent decoding the snapshot file.",
		}),
	}

	p.registry.MustRegister(
		p.commandsTotal,
		p.commandDuration,
		p.errorsTotal,
		p.connectionsActive,
		p.connectionsTotal,
		p.keyCount,
		p.snapshotKeys,
		p.snapshotLoadTime,
	)

	return p
}

// Registry returns the underlying registry
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) RecordSnapshotLoad(duration time.Duration, keys int) {
	p.snapshotLoadTime.Set(duration.Seconds())
	p.snapshotKeys.Set(float64(keys))
}

func (p *Prometheus) RecordCommandProcessed(cmd string, duration time.Duration) {
	p.commandsTotal.WithLabelValues(cmd).Inc()
	p.commandDuration.WithLabelValues(cmd).Observe(duration.Seconds())
}

func (p *Prometheus) RecordConnection(open bool) {
	if open {
		p.connectionsActive.Inc()
		p.connectionsTotal.Inc()
		return
	}
	p.connectionsActive.Dec()
}

func (p *Prometheus) RecordKeyCount(count int64) {
	p.keyCount.Set(float64(count))
}

func (p *Prometheus) RecordError(errorType string) {
	p.errorsTotal.WithLabelValues(errorType).Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// ListenAndServe serves /metrics on addr until ctx is done
func (p *Prometheus) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
