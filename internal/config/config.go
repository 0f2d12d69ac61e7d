package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string
	MetricsAddr     string
	DatabaseURL     string // empty disables the event journal
	JournalQueue    int
	NATSURL         string // empty disables NATS fan-out
	NATSPrefix      string
	LogNATSSubjects bool
	Location        *time.Location
	Locale          string
	LogLevel        string
	CORSOrigins     []string
	RouteGTFSPath   string
	RouteShapeID    string
	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	// Journal DSN: prefer DATABASE_URL / PG_DSN, else build from PG* vars when PGDATABASE is set
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		if name := os.Getenv("PGDATABASE"); name != "" {
			host := getenvDefault("PGHOST", "127.0.0.1")
			port := getenvDefault("PGPORT", "5432")
			user := getenvDefault("PGUSER", "postgres")
			pass := os.Getenv("PGPASSWORD")
			sslmode := getenvDefault("PGSSLMODE", "disable")
			if pass != "" {
				dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, name, sslmode)
			} else {
				dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, name, sslmode)
			}
		}
	}
	cfg.DatabaseURL = dsn

	if v := os.Getenv("JOURNAL_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid JOURNAL_QUEUE_SIZE: %q", v)
		}
		cfg.JournalQueue = n
	} else {
		cfg.JournalQueue = 256
	}

	cfg.NATSURL = strings.TrimSpace(os.Getenv("NATS_URL"))
	cfg.NATSPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "trip")

	// Debug logging for NATS publish subjects
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		cfg.LogNATSSubjects = parseBool(v)
	}

	// Time zone of the notification clock
	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	cfg.Locale = strings.ToLower(getenvDefault("LOCALE", "ar"))
	switch cfg.Locale {
	case "ar", "en":
	default:
		return nil, fmt.Errorf("invalid LOCALE: %q", cfg.Locale)
	}

	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q", cfg.LogLevel)
	}

	cfg.CORSOrigins = splitList(getenvDefault("CORS_ORIGINS", "*"))
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	// Optional GTFS feed providing the route shape
	cfg.RouteGTFSPath = os.Getenv("ROUTE_GTFS_PATH")
	cfg.RouteShapeID = os.Getenv("ROUTE_SHAPE_ID")
	if cfg.RouteGTFSPath == "" && cfg.RouteShapeID != "" {
		return nil, fmt.Errorf("ROUTE_SHAPE_ID %q set without ROUTE_GTFS_PATH", cfg.RouteShapeID)
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT_SEC: %q", v)
		}
		cfg.ShutdownTimeout = time.Duration(sec) * time.Second
	} else {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
