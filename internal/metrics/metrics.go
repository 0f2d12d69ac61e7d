package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveSessions prometheus.Gauge
	RunningTrips   prometheus.Gauge

	SessionsCreated prometheus.Counter
	RunsStarted     prometheus.Counter
	RunsFinished    prometheus.Counter
	RunsCancelled   *prometheus.CounterVec // reason label: stopped|reset|closed

	Notifications *prometheus.CounterVec // type label: info|success|warning
	WSClients     prometheus.Gauge

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	JournalWrites    prometheus.Counter
	JournalWriteErrs prometheus.Counter
	JournalDropped   prometheus.Counter

	EffectLag       prometheus.Histogram
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "masari_active_sessions",
			Help: "Number of open simulation sessions.",
		}),
		RunningTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "masari_running_trips",
			Help: "Number of sessions with a trip run in progress.",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "masari_sessions_created_total",
			Help: "Total sessions created.",
		}),
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "masari_runs_started_total",
			Help: "Total trip runs started.",
		}),
		RunsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "masari_runs_finished_total",
			Help: "Total trip runs that reached school.",
		}),
		RunsCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "masari_runs_cancelled_total",
			Help: "Trip runs cancelled before reaching school.",
		}, []string{"reason"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "masari_notifications_total",
			Help: "Notifications emitted by type.",
		}, []string{"type"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "masari_websocket_clients",
			Help: "Connected live feed clients.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "masari_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "masari_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "masari_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		JournalWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "masari_journal_writes_total",
			Help: "Trip events written to the journal.",
		}),
		JournalWriteErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "masari_journal_write_errors_total",
			Help: "Failed journal writes.",
		}),
		JournalDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "masari_journal_dropped_total",
			Help: "Trip events dropped because the journal queue was full.",
		}),
		EffectLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "masari_effect_lag_seconds",
			Help:    "Delay between a timeline effect's deadline and its application.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "masari_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.ActiveSessions, c.RunningTrips,
		c.SessionsCreated, c.RunsStarted, c.RunsFinished, c.RunsCancelled,
		c.Notifications, c.WSClients,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.JournalWrites, c.JournalWriteErrs, c.JournalDropped,
		c.EffectLag, c.PublishDuration,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
	logger.Info("metrics listening", slog.String("addr", addr))
	return srv
}
