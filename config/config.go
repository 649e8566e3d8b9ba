package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Pipeline  PipelineConfig
	Segment   SegmentConfig
	Alert     AlertConfig
	Ports     PortsConfig
	Providers ProvidersConfig
	Notify    NotifyConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Redis     RedisConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
	RequestsPerMinute       int
}

type DatabaseConfig struct {
	URL             string
	SQLitePath      string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type PipelineConfig struct {
	WorkerCount   int
	QueueSize     int
	BatchSize     int
	BatchWait     time.Duration
	SweepInterval time.Duration
	PollInterval  time.Duration
	PollFanOut    int
	RetryAttempts int
	RetryDelay    time.Duration
	DedupTTL      time.Duration
	// NotifySenders and NotifyQueueSize bound asynchronous notification delivery
	NotifySenders   int
	NotifyQueueSize int
	TrackedVessels  []string
}

// SegmentConfig tunes the voyage state machine
type SegmentConfig struct {
	MinSpeedKnots      float64
	MinDistanceKm      float64
	MaxStationaryHours float64
}

type AlertConfig struct {
	MovementThresholdKnots float64
}

type PortsConfig struct {
	File     string
	RadiusKm float64
}

type ProvidersConfig struct {
	Digitraffic DigitrafficConfig
	VesselAPI   VesselAPIConfig
	AISStream   AISStreamConfig
	HTTPTimeout time.Duration
}

type DigitrafficConfig struct {
	Enabled  bool
	URL      string
	User     string
	MaxCalls int
	Period   time.Duration
}

type VesselAPIConfig struct {
	URL      string
	Key      string
	MaxCalls int
	Period   time.Duration
}

type AISStreamConfig struct {
	URL          string
	Key          string
	BBox         string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

type NotifyConfig struct {
	WebhookURL       string
	WebhookRateLimit float64
	RedisChannel     string
	InboxSize        int
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestsPerMinute:       getEnvInt("SERVER_REQUESTS_PER_MINUTE", 600),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			SQLitePath:      getEnv("SQLITE_PATH", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Pipeline: PipelineConfig{
			WorkerCount:     getEnvInt("PIPELINE_WORKER_COUNT", 4),
			QueueSize:       getEnvInt("PIPELINE_QUEUE_SIZE", 1000),
			BatchSize:       getEnvInt("PIPELINE_BATCH_SIZE", 100),
			BatchWait:       getEnvDuration("PIPELINE_BATCH_WAIT", 30*time.Second),
			SweepInterval:   getEnvDuration("PIPELINE_SWEEP_INTERVAL", 5*time.Minute),
			PollInterval:    getEnvDuration("PIPELINE_POLL_INTERVAL", 5*time.Minute),
			PollFanOut:      getEnvInt("PIPELINE_POLL_FANOUT", 8),
			RetryAttempts:   getEnvInt("PIPELINE_RETRY_ATTEMPTS", 3),
			RetryDelay:      getEnvDuration("PIPELINE_RETRY_DELAY", 5*time.Second),
			DedupTTL:        getEnvDuration("PIPELINE_DEDUP_TTL", 24*time.Hour),
			NotifySenders:   getEnvInt("PIPELINE_NOTIFY_SENDERS", 2),
			NotifyQueueSize: getEnvInt("PIPELINE_NOTIFY_QUEUE_SIZE", 1000),
			TrackedVessels:  getEnvList("TRACKED_VESSELS"),
		},
		Segment: SegmentConfig{
			MinSpeedKnots:      getEnvFloat("SEGMENT_MIN_SPEED_KNOTS", 2.0),
			MinDistanceKm:      getEnvFloat("SEGMENT_MIN_DISTANCE_KM", 10.0),
			MaxStationaryHours: getEnvFloat("SEGMENT_MAX_STATIONARY_HOURS", 6.0),
		},
		Alert: AlertConfig{
			MovementThresholdKnots: getEnvFloat("ALERT_MOVEMENT_THRESHOLD_KNOTS", 0.5),
		},
		Ports: PortsConfig{
			File:     getEnv("PORTS_FILE", ""),
			RadiusKm: getEnvFloat("PORT_RADIUS_KM", 500),
		},
		Providers: ProvidersConfig{
			HTTPTimeout: getEnvDuration("PROVIDER_HTTP_TIMEOUT", 10*time.Second),
			Digitraffic: DigitrafficConfig{
				Enabled:  getEnvBool("DIGITRAFFIC_ENABLED", false),
				URL:      getEnv("DIGITRAFFIC_URL", "https://meri.digitraffic.fi/api/ais/v1"),
				User:     getEnv("DIGITRAFFIC_USER", "vesselwatch"),
				MaxCalls: getEnvInt("DIGITRAFFIC_MAX_CALLS", 60),
				Period:   getEnvDuration("DIGITRAFFIC_PERIOD", 60*time.Second),
			},
			VesselAPI: VesselAPIConfig{
				URL:      getEnv("VESSELAPI_URL", ""),
				Key:      getEnv("VESSELAPI_KEY", ""),
				MaxCalls: getEnvInt("VESSELAPI_MAX_CALLS", 10),
				Period:   getEnvDuration("VESSELAPI_PERIOD", 60*time.Second),
			},
			AISStream: AISStreamConfig{
				URL:          getEnv("AISSTREAM_URL", "wss://stream.aisstream.io/v0/stream"),
				Key:          getEnv("AISSTREAM_KEY", ""),
				BBox:         getEnv("AISSTREAM_BBOX", ""),
				ReconnectMin: getEnvDuration("STREAM_RECONNECT_MIN", 1*time.Second),
				ReconnectMax: getEnvDuration("STREAM_RECONNECT_MAX", 32*time.Second),
			},
		},
		Notify: NotifyConfig{
			WebhookURL:       getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookRateLimit: getEnvFloat("NOTIFY_WEBHOOK_RATE_LIMIT", 2),
			RedisChannel:     getEnv("NOTIFY_REDIS_CHANNEL", "vesselwatch:notifications"),
			InboxSize:        getEnvInt("NOTIFY_INBOX_SIZE", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Pipeline.WorkerCount < 1 {
		return fmt.Errorf("pipeline worker count must be at least 1")
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline batch size must be at least 1")
	}
	if c.Segment.MaxStationaryHours <= 0 {
		return fmt.Errorf("max stationary hours must be positive")
	}
	if c.Ports.RadiusKm <= 0 {
		return fmt.Errorf("port radius must be positive")
	}
	if c.Providers.Digitraffic.Enabled && c.Providers.Digitraffic.MaxCalls < 1 {
		return fmt.Errorf("digitraffic max calls must be at least 1")
	}
	if c.Providers.VesselAPI.URL != "" && c.Providers.VesselAPI.Key == "" {
		return fmt.Errorf("VESSELAPI_KEY is required when VESSELAPI_URL is set")
	}
	if c.Providers.AISStream.ReconnectMin > c.Providers.AISStream.ReconnectMax {
		return fmt.Errorf("stream reconnect min %s exceeds max %s",
			c.Providers.AISStream.ReconnectMin, c.Providers.AISStream.ReconnectMax)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
