package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MohammedFaisal0/masari-safe/internal/api"
	"github.com/MohammedFaisal0/masari-safe/internal/config"
	"github.com/MohammedFaisal0/masari-safe/internal/db"
	"github.com/MohammedFaisal0/masari-safe/internal/i18n"
	"github.com/MohammedFaisal0/masari-safe/internal/logging"
	"github.com/MohammedFaisal0/masari-safe/internal/metrics"
	"github.com/MohammedFaisal0/masari-safe/internal/publisher"
	"github.com/MohammedFaisal0/masari-safe/internal/route"
	"github.com/MohammedFaisal0/masari-safe/internal/sim"
	"github.com/MohammedFaisal0/masari-safe/internal/websocket"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mcol := metrics.NewCollector()
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = mcol.Serve(cfg.MetricsAddr, logger)
	}

	rt := route.Default()
	if cfg.RouteGTFSPath != "" {
		rt, err = route.LoadGTFSShape(cfg.RouteGTFSPath, cfg.RouteShapeID)
		if err != nil {
			fatal(logger, "load route", err, slog.String("path", cfg.RouteGTFSPath))
		}
	}
	logging.LogOperation(logger, "route loaded",
		slog.String("name", rt.Name),
		slog.Int("points", len(rt.Points())),
		slog.Float64("length_m", rt.LengthMeters()))

	hub := websocket.NewHub(logger, mcol)
	sinks := []sim.Sink{hub}

	// NATS fan-out is optional
	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err = publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSPrefix, cfg.LogNATSSubjects, logger, wrapPublisherMetrics(mcol))
		if err != nil {
			fatal(logger, "nats connect", err)
		}
		sinks = append(sinks, pub)
	}

	// Event journal is optional
	var journal *db.Journal
	var history api.History
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			fatal(logger, "db open", err)
		}
		defer sqlDB.Close()
		if err := db.Ping(ctx, sqlDB); err != nil {
			fatal(logger, "db ping", err)
		}
		if err := db.EnsureSchema(ctx, sqlDB); err != nil {
			fatal(logger, "db schema", err)
		}
		journal = db.NewJournal(sqlDB, cfg.JournalQueue, logger, mcol)
		journal.Start(ctx)
		sinks = append(sinks, journal)
		history = journal
	}

	mgr := sim.NewManager(sim.Options{
		Route:     rt,
		Localizer: i18n.New(cfg.Locale),
		Location:  cfg.Location,
		Logger:    logger,
		Sinks:     sinks,
	}, mcol)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Manager:     mgr,
			Route:       rt,
			Hub:         hub,
			History:     history,
			Logger:      logger,
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http listening", slog.String("addr", cfg.HTTPAddr), slog.String("locale", cfg.Locale))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.LogError(logger, "http server error", err)
			cancel()
		}
	}()

	// Block until context cancelled
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(logger, "http shutdown", err)
	}
	// Sessions close first so their final events still reach every sink.
	mgr.Stop()
	hub.Close()
	if pub != nil {
		pub.Close()
	}
	if journal != nil {
		journal.Close()
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logger.Info("shutdown complete")
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...slog.Attr) {
	logging.LogError(logger, msg, err, attrs...)
	os.Exit(1)
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
