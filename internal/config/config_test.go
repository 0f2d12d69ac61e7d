package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{
	"HTTP_ADDR", "METRICS_ADDR", "DATABASE_URL", "PG_DSN", "PGHOST", "PGPORT", "PGUSER",
	"PGPASSWORD", "PGDATABASE", "PGSSLMODE", "JOURNAL_QUEUE_SIZE", "NATS_URL",
	"NATS_SUBJECT_PREFIX", "LOG_NATS_SUBJECTS", "TZ", "LOCALE", "LOG_LEVEL",
	"CORS_ORIGINS", "ROUTE_GTFS_PATH", "ROUTE_SHAPE_ID", "SHUTDOWN_TIMEOUT_SEC",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allVars {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, "trip", cfg.NATSPrefix)
	assert.False(t, cfg.LogNATSSubjects)
	assert.Equal(t, time.Local, cfg.Location)
	assert.Equal(t, "ar", cfg.Locale)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 256, cfg.JournalQueue)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("NATS_SUBJECT_PREFIX", "school")
	t.Setenv("LOG_NATS_SUBJECTS", "yes")
	t.Setenv("TZ", "Asia/Riyadh")
	t.Setenv("LOCALE", "EN")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("SHUTDOWN_TIMEOUT_SEC", "12")
	t.Setenv("ROUTE_GTFS_PATH", "/data/feed.zip")
	t.Setenv("ROUTE_SHAPE_ID", "shape-7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "nats://nats:4222", cfg.NATSURL)
	assert.Equal(t, "school", cfg.NATSPrefix)
	assert.True(t, cfg.LogNATSSubjects)
	assert.Equal(t, "Asia/Riyadh", cfg.Location.String())
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 12*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/data/feed.zip", cfg.RouteGTFSPath)
	assert.Equal(t, "shape-7", cfg.RouteShapeID)
}

func TestLoadDSN(t *testing.T) {
	t.Run("database url wins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_URL", "postgres://u@db/x")
		t.Setenv("PG_DSN", "postgres://other@db/y")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "postgres://u@db/x", cfg.DatabaseURL)
	})

	t.Run("built from PG vars", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PGDATABASE", "masari")
		t.Setenv("PGUSER", "bus")
		t.Setenv("PGPASSWORD", "p@ss:word")
		t.Setenv("PGHOST", "db")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "postgres://bus:p%40ss%3Aword@db:5432/masari?sslmode=disable", cfg.DatabaseURL)
	})

	t.Run("PG vars without database disable the journal", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PGHOST", "db")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Empty(t, cfg.DatabaseURL)
	})
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"TZ":                   "Mars/Olympus",
		"LOCALE":               "fr",
		"LOG_LEVEL":            "loud",
		"SHUTDOWN_TIMEOUT_SEC": "0",
		"JOURNAL_QUEUE_SIZE":   "many",
		"ROUTE_SHAPE_ID":       "shape-without-feed",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(k, v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), k)
		})
	}
}
