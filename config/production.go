// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Cache    CacheConfig    `json:"cache"`
	Dispatch DispatchConfig `json:"dispatch"`
	Holiday  HolidayConfig  `json:"holiday"`
	Delivery DeliveryConfig `json:"delivery"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	EnableMetrics   bool          `json:"enable_metrics"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	RedisURL    string        `json:"redis_url"`
	RedisPrefix string        `json:"redis_prefix"`
	DefaultTTL  time.Duration `json:"default_ttl"`
}

// DispatchConfig tunes the campaign dispatch engine
type DispatchConfig struct {
	TickInterval       time.Duration `json:"tick_interval"`
	QueueBufferSize    int           `json:"queue_buffer_size"`
	StalenessThreshold time.Duration `json:"staleness_threshold"`
	CatchupTolerance   time.Duration `json:"catchup_tolerance"`
	RecoveryTolerance  time.Duration `json:"recovery_tolerance"`
	RecoveryIdle       time.Duration `json:"recovery_idle"`
	RecoveryCooldown   time.Duration `json:"recovery_cooldown"`
	HandoffJitterMax   time.Duration `json:"handoff_jitter_max"`
	WorkerCount        int           `json:"worker_count"`
	WorkerQueueSize    int           `json:"worker_queue_size"`
	RetentionPeriod    time.Duration `json:"retention_period"`
	Timezone           string        `json:"timezone"`
}

type HolidayConfig struct {
	APIBaseURL        string        `json:"api_base_url"`
	Timeout           time.Duration `json:"timeout"`
	PrefetchCountries []string      `json:"prefetch_countries"`
}

type DeliveryConfig struct {
	RelayURL string        `json:"relay_url"`
	Timeout  time.Duration `json:"timeout"`
	UseMock  bool          `json:"use_mock"`
}

type LoggingConfig struct {
	Level    string `json:"level"`
	Output   string `json:"output"` // stdout, file, both
	FilePath string `json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			EnableMetrics:   getEnvBool("SERVER_ENABLE_METRICS", true),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "kreativia:"),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", 12*time.Hour),
		},
		Dispatch: DispatchConfig{
			TickInterval:       getEnvDuration("DISPATCH_TICK_INTERVAL", 30*time.Second),
			QueueBufferSize:    getEnvInt("DISPATCH_QUEUE_BUFFER_SIZE", 20),
			StalenessThreshold: getEnvDuration("DISPATCH_STALENESS_THRESHOLD", 10*time.Minute),
			CatchupTolerance:   getEnvDuration("DISPATCH_CATCHUP_TOLERANCE", 5*time.Minute),
			RecoveryTolerance:  getEnvDuration("DISPATCH_RECOVERY_TOLERANCE", 120*time.Minute),
			RecoveryIdle:       getEnvDuration("DISPATCH_RECOVERY_IDLE", 1*time.Hour),
			RecoveryCooldown:   getEnvDuration("DISPATCH_RECOVERY_COOLDOWN", 1*time.Hour),
			HandoffJitterMax:   getEnvDuration("DISPATCH_HANDOFF_JITTER_MAX", 15*time.Second),
			WorkerCount:        getEnvInt("DISPATCH_WORKER_COUNT", 4),
			WorkerQueueSize:    getEnvInt("DISPATCH_WORKER_QUEUE_SIZE", 64),
			RetentionPeriod:    getEnvDuration("DISPATCH_RETENTION_PERIOD", 24*time.Hour),
			Timezone:           getEnvString("DISPATCH_TIMEZONE", "Europe/Warsaw"),
		},
		Holiday: HolidayConfig{
			APIBaseURL:        getEnvString("HOLIDAY_API_BASE_URL", "https://date.nager.at/api/v3"),
			Timeout:           getEnvDuration("HOLIDAY_API_TIMEOUT", 10*time.Second),
			PrefetchCountries: getEnvStringSlice("HOLIDAY_PREFETCH_COUNTRIES", []string{"PL", "DE", "GB"}),
		},
		Delivery: DeliveryConfig{
			RelayURL: getEnvString("DELIVERY_RELAY_URL", "http://localhost:8090/send"),
			Timeout:  getEnvDuration("DELIVERY_TIMEOUT", 60*time.Second),
			UseMock:  getEnvBool("DELIVERY_USE_MOCK", false),
		},
		Logging: LoggingConfig{
			Level:    getEnvString("LOG_LEVEL", "info"),
			Output:   getEnvString("LOG_OUTPUT", "both"),
			FilePath: getEnvString("LOG_FILE_PATH", "data/dispatch.log"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateProductionConfig checks configuration invariants before startup
func ValidateProductionConfig(cfg *ProductionConfig) error {
	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Dispatch.TickInterval <= 0 {
		return fmt.Errorf("dispatch tick interval must be positive")
	}
	if cfg.Dispatch.QueueBufferSize <= 0 {
		return fmt.Errorf("dispatch queue buffer size must be positive")
	}
	if cfg.Dispatch.WorkerCount <= 0 {
		return fmt.Errorf("dispatch worker count must be positive")
	}
	if cfg.Dispatch.RecoveryTolerance < cfg.Dispatch.CatchupTolerance {
		return fmt.Errorf("recovery tolerance must not be smaller than catch-up tolerance")
	}
	if _, err := time.LoadLocation(cfg.Dispatch.Timezone); err != nil {
		return fmt.Errorf("invalid dispatch timezone %q: %w", cfg.Dispatch.Timezone, err)
	}
	return nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
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

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
