package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/timmy/timesheet/internal/domain"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Jobs         JobsConfig         `mapstructure:"jobs"`
	Signature    SignatureConfig    `mapstructure:"signature"`
	Document     DocumentConfig     `mapstructure:"document"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Confirmation ConfirmationConfig `mapstructure:"confirmation"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type StorageConfig struct {
	Type      string `mapstructure:"type"` // s3, r2, s3compatible, minio, memory
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type AuthConfig struct {
	JWTSecret    string `mapstructure:"jwt_secret"`
	RequiredRole string `mapstructure:"required_role"`
}

type JobsConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type SignatureConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

type DocumentConfig struct {
	LogoPath       string `mapstructure:"logo_path"`
	Title          string `mapstructure:"title"`
	CompanyName    string `mapstructure:"company_name"`
	CompanyAddress string `mapstructure:"company_address"`
	CompanyContact string `mapstructure:"company_contact"`
	KeyPrefix      string `mapstructure:"key_prefix"`
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	QueueSize  int           `mapstructure:"queue_size"`
	RetryCount int           `mapstructure:"retry_count"`
	RetryWait  time.Duration `mapstructure:"retry_wait"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ConfirmationConfig struct {
	// AtomicBatch commits a confirmation batch in a single transaction.
	// When false, entries persisted before a failing entry stay committed.
	AtomicBatch bool `mapstructure:"atomic_batch"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("notify.webhook_url", "NOTIFY_WEBHOOK_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/timesheet.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "timesheet")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "timesheets")

	v.SetDefault("auth.required_role", string(domain.RoleSupervisor))

	v.SetDefault("jobs.timeout", 60*time.Second)
	v.SetDefault("jobs.retention", time.Hour)
	v.SetDefault("jobs.sweep_interval", 5*time.Minute)

	v.SetDefault("signature.max_attempts", 3)
	v.SetDefault("signature.retry_delay", 2*time.Second)

	v.SetDefault("document.title", "Timesheet")
	v.SetDefault("document.key_prefix", "timesheets")

	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.retry_count", 3)
	v.SetDefault("notify.retry_wait", 500*time.Millisecond)
	v.SetDefault("notify.timeout", 10*time.Second)

	v.SetDefault("confirmation.atomic_batch", false)
}

// Validate reports missing runtime configuration the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return domain.NewDependencyConfigError("auth.jwt_secret is required (set JWT_SECRET)")
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.Jobs.Timeout <= 0 {
		return domain.NewDependencyConfigError("jobs.timeout must be positive")
	}
	if c.Signature.MaxAttempts < 1 {
		return domain.NewDependencyConfigError("signature.max_attempts must be at least 1")
	}
	return nil
}

// Validate checks the storage section. The in-memory backend needs nothing else.
func (c *StorageConfig) Validate() error {
	if c.Type == "memory" {
		return nil
	}
	if c.Bucket == "" {
		return domain.NewDependencyConfigError("storage.bucket is required")
	}
	if c.Endpoint == "" {
		return domain.NewDependencyConfigError("storage.endpoint is required")
	}
	if c.Type != "minio" && c.PublicURL == "" {
		return domain.NewDependencyConfigError("storage.public_url is required for %q storage (set STORAGE_PUBLIC_URL)", c.Type)
	}
	return nil
}
