package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Shortener ShortenerConfig
	Geo       GeoConfig
	Redis     RedisConfig
	Collector CollectorConfig
	Kafka     KafkaConfig
	OTel      OTelConfig
}

type AppConfig struct {
	Name     string
	Version  string
	Env      string
	LogLevel string
}

type ServerConfig struct {
	Port           string
	Host           string
	AllowedOrigins []string
}

type ShortenerConfig struct {
	BaseURL         string
	SlugLength      int
	DefaultValidity time.Duration
	RedirectStatus  int // 301 or 302
}

type GeoConfig struct {
	Enabled       bool
	APIURL        string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	RateBurst     int
	CacheTTL      time.Duration
}

// RedisConfig backs the geolocation cache; an empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CollectorConfig points at the external log collector; an empty URL
// disables forwarding.
type CollectorConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// KafkaConfig enables the click event stream when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string
	ClickTopic string
}

type OTelConfig struct {
	Enabled     bool
	Endpoint    string
	SampleRatio float64
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		App: AppConfig{
			Name:     GetEnv("APP_NAME", "linkstats"),
			Version:  GetEnv("APP_VERSION", "0.1.0"),
			Env:      GetEnv("APP_ENV", "development"),
			LogLevel: GetEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           GetEnv("APP_PORT", "7000"),
			Host:           GetEnv("APP_HOST", "localhost"),
			AllowedOrigins: SplitCSV(GetEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Shortener: ShortenerConfig{
			BaseURL:         GetEnv("SHORTENER_BASE_URL", "http://localhost:7000"),
			SlugLength:      GetEnvInt("SLUG_LENGTH", 6),
			DefaultValidity: time.Duration(GetEnvInt("DEFAULT_VALIDITY_MINUTES", 30)) * time.Minute,
			RedirectStatus:  GetEnvInt("REDIRECT_STATUS", 302),
		},
		Geo: GeoConfig{
			Enabled:       GetEnvBool("GEO_ENABLED", true),
			APIURL:        GetEnv("GEO_API_URL", "http://api.ipapi.com"),
			APIKey:        GetEnv("GEO_API_KEY", ""),
			Timeout:       GetEnvDuration("GEO_TIMEOUT", 2*time.Second),
			RatePerSecond: GetEnvFloat("GEO_RATE_PER_SECOND", 10),
			RateBurst:     GetEnvInt("GEO_RATE_BURST", 20),
			CacheTTL:      GetEnvDuration("GEO_CACHE_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     GetEnv("REDIS_ADDR", ""),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvInt("REDIS_DB", 0),
		},
		Collector: CollectorConfig{
			URL:     GetEnv("COLLECTOR_URL", ""),
			Token:   GetEnv("COLLECTOR_TOKEN", ""),
			Timeout: GetEnvDuration("COLLECTOR_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    SplitCSV(GetEnv("KAFKA_BROKERS", "")),
			ClickTopic: GetEnv("KAFKA_CLICK_TOPIC", "clicks.recorded"),
		},
		OTel: OTelConfig{
			Enabled:     GetEnvBool("OTEL_ENABLED", false),
			Endpoint:    GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			SampleRatio: GetEnvFloat("OTEL_SAMPLE_RATIO", 1),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Shortener.RedirectStatus != 301 && c.Shortener.RedirectStatus != 302 {
		return fmt.Errorf("REDIRECT_STATUS must be 301 or 302 (got %d)", c.Shortener.RedirectStatus)
	}
	if c.Shortener.SlugLength < 4 || c.Shortener.SlugLength > 32 {
		return fmt.Errorf("SLUG_LENGTH must be between 4 and 32 (got %d)", c.Shortener.SlugLength)
	}
	if c.Shortener.DefaultValidity <= 0 {
		return fmt.Errorf("DEFAULT_VALIDITY_MINUTES must be > 0 (got %s)", c.Shortener.DefaultValidity)
	}
	if c.Geo.Timeout <= 0 {
		return fmt.Errorf("GEO_TIMEOUT must be > 0")
	}
	if c.Geo.RatePerSecond <= 0 || c.Geo.RateBurst <= 0 {
		return fmt.Errorf("GEO_RATE_PER_SECOND and GEO_RATE_BURST must be > 0")
	}
	if c.Collector.Timeout <= 0 {
		return fmt.Errorf("COLLECTOR_TIMEOUT must be > 0")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.ClickTopic == "" {
		return fmt.Errorf("KAFKA_CLICK_TOPIC must not be empty when KAFKA_BROKERS is set")
	}
	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0, 1] (got %g)", c.OTel.SampleRatio)
	}
	return nil
}

// GeoActive reports whether clicks should be geolocated at all.
func (c *Config) GeoActive() bool {
	return c.Geo.Enabled && c.Geo.APIKey != ""
}
