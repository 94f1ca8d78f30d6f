package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	State      StateConfig      `mapstructure:"state"`
	Security   SecurityConfig   `mapstructure:"security"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	AI         AIConfig         `mapstructure:"ai"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Demo       DemoConfig       `mapstructure:"demo"`
}

type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Mode           string `mapstructure:"mode"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig is optional; an empty Host selects the in-memory repositories.
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
	Issuer      string `mapstructure:"issuer"`
}

func (j JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

type StateConfig struct {
	// Backend is "memory" or "redis".
	Backend string `mapstructure:"backend"`
	// SingleSlot keeps at most one live request; a submission replaces the others.
	SingleSlot bool `mapstructure:"single_slot"`
	// LegacyMirror also writes the latest request to the patient_request key.
	LegacyMirror bool `mapstructure:"legacy_mirror"`
	// LegacyCancelClearsEmergency clears the emergency flag on any cancellation.
	LegacyCancelClearsEmergency bool          `mapstructure:"legacy_cancel_clears_emergency"`
	DoctorName                  string        `mapstructure:"doctor_name"`
	Slots                       []string      `mapstructure:"slots"`
	StaffPollInterval           time.Duration `mapstructure:"staff_poll_interval"`
	PatientPollInterval         time.Duration `mapstructure:"patient_poll_interval"`
	SubscriberBuffer            int           `mapstructure:"subscriber_buffer"`
}

type SecurityConfig struct {
	StaffAccessKey   string `mapstructure:"staff_access_key"`
	EncryptionSecret string `mapstructure:"encryption_secret"`
	BcryptCost       int    `mapstructure:"bcrypt_cost"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type AIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SMTPConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	NotifyTo []string `mapstructure:"notify_to"`
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && len(s.NotifyTo) > 0
}

type WorkerConfig struct {
	// RetentionHours keeps confirmed requests in the live store this long.
	RetentionHours       int           `mapstructure:"retention_hours"`
	ArchiveRetentionDays int           `mapstructure:"archive_retention_days"`
	CleanupInterval      time.Duration `mapstructure:"cleanup_interval"`
	HealthPort           int           `mapstructure:"health_port"`
	RetryAttempts        int           `mapstructure:"retry_attempts"`
}

func (w WorkerConfig) Retention() time.Duration {
	return time.Duration(w.RetentionHours) * time.Hour
}

func (w WorkerConfig) ArchiveRetention() time.Duration {
	return time.Duration(w.ArchiveRetentionDays) * 24 * time.Hour
}

// DemoConfig seeds the demo accounts and inventory on startup.
type DemoConfig struct {
	Seed     bool   `mapstructure:"seed"`
	Password string `mapstructure:"password"`
}

type MonitoringConfig struct {
	MetricsNamespace string `mapstructure:"metrics_namespace"`
}

// secrets are read straight from the environment and win over the file.
type secrets struct {
	JWTSecret        string `envconfig:"CLINIC_JWT_SECRET"`
	APIKey           string `envconfig:"API_KEY"`
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	StaffAccessKey   string `envconfig:"STAFF_ACCESS_KEY"`
	EncryptionSecret string `envconfig:"ARCHIVE_ENCRYPTION_SECRET"`
	DatabasePassword string `envconfig:"DB_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.mode", "release")
	v.SetDefault("logging.level", "info")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("jwt.expiry_hours", 90*24)
	v.SetDefault("jwt.issuer", "clinique-gamma")
	v.SetDefault("state.backend", "memory")
	v.SetDefault("state.legacy_mirror", true)
	v.SetDefault("state.doctor_name", "Dr. Kossi")
	v.SetDefault("state.slots", []string{"08:00", "09:00", "09:30", "10:00", "10:30", "11:00", "14:00", "15:00", "15:30", "16:00"})
	v.SetDefault("state.staff_poll_interval", "1s")
	v.SetDefault("state.patient_poll_interval", "2s")
	v.SetDefault("state.subscriber_buffer", 64)
	v.SetDefault("security.staff_access_key", "KEY_DEV")
	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("rate_limit.rps", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("worker.retention_hours", 24)
	v.SetDefault("worker.archive_retention_days", 365)
	v.SetDefault("worker.cleanup_interval", "10m")
	v.SetDefault("worker.health_port", 8081)
	v.SetDefault("worker.retry_attempts", 3)
	v.SetDefault("monitoring.metrics_namespace", "clinic")
	v.SetDefault("demo.seed", true)
	v.SetDefault("demo.password", "gamma-demo-2024")
}

// LoadConfig reads .env, then config.yaml from paths (default "." and
// "./config"), then the environment. A missing config file is not an error.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var s secrets
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("failed to process secrets: %w", err)
	}
	config.applySecrets(s)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applySecrets(s secrets) {
	if s.JWTSecret != "" {
		c.JWT.Secret = s.JWTSecret
	}
	switch {
	case s.GeminiAPIKey != "":
		c.AI.APIKey = s.GeminiAPIKey
	case s.APIKey != "":
		c.AI.APIKey = s.APIKey
	}
	if s.SMTPPassword != "" {
		c.SMTP.Password = s.SMTPPassword
	}
	if s.StaffAccessKey != "" {
		c.Security.StaffAccessKey = s.StaffAccessKey
	}
	if s.EncryptionSecret != "" {
		c.Security.EncryptionSecret = s.EncryptionSecret
	}
	if s.DatabasePassword != "" {
		c.Database.Password = s.DatabasePassword
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required (CLINIC_JWT_SECRET)")
	}
	if c.JWT.ExpiryHours <= 0 {
		return errors.New("jwt expiry_hours must be positive")
	}
	switch c.State.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			return errors.New("state backend redis requires redis.url")
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}
	if len(c.State.Slots) == 0 {
		return errors.New("at least one confirmation slot is required")
	}
	if c.State.StaffPollInterval <= 0 || c.State.PatientPollInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if c.Database.Enabled() && c.Security.EncryptionSecret == "" {
		return errors.New("archive encryption secret is required with a database (ARCHIVE_ENCRYPTION_SECRET)")
	}
	if c.Demo.Seed && len(c.Demo.Password) < 8 {
		return errors.New("demo password must be at least 8 characters")
	}
	return nil
}
