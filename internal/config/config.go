package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	cfg       *Config
	once      sync.Once
	mu        sync.RWMutex
	listeners []func(*Config)
)

// Config represents the application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Security SecurityConfig `mapstructure:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// DatabaseConfig selects the ticket and identity store. Driver "memory" keeps
// everything in process; otherwise DSN wins over the discrete connection fields.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig backs the shared rate-limit counters. Disabled means per-process counters.
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	KeyPrefix    string `mapstructure:"key_prefix"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type AuthConfig struct {
	JWT struct {
		Secret string `mapstructure:"secret"`
		Issuer string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	RememberMeTTL time.Duration `mapstructure:"remember_me_ttl"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
}

type StorageConfig struct {
	Type  string `mapstructure:"type"`
	Local struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"local"`
	Minio struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
		UseSSL    bool   `mapstructure:"use_ssl"`
	} `mapstructure:"minio"`
	MaxUploadSize int64 `mapstructure:"max_upload_size"`
}

// SecurityConfig holds the request guards in front of the application.
type SecurityConfig struct {
	LoginAttempts    int           `mapstructure:"login_attempts"`
	LoginWindow      time.Duration `mapstructure:"login_window"`
	UploadLimit      int           `mapstructure:"upload_limit"`
	UploadWindow     time.Duration `mapstructure:"upload_window"`
	SuspiciousAgents []string      `mapstructure:"suspicious_agents"`
	AdminIPWhitelist []string      `mapstructure:"admin_ip_whitelist"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Read loads default.yaml and an optional config.yaml from configPath, then applies
// ITDESK_* environment overrides. It does not touch the global configuration.
func Read(configPath string) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetConfigName("default")
	v.AddConfigPath(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to read default config: %w", err)
	}

	// Environment-specific overrides are optional.
	v.SetConfigName("config")
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	v.SetEnvPrefix("ITDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return c, v, nil
}

// Load initializes the global configuration with hot reload support
func Load(configPath string) error {
	var err error
	once.Do(func() {
		var v *viper.Viper
		var loaded *Config
		loaded, v, err = Read(configPath)
		if err != nil {
			return
		}
		set(loaded)

		v.OnConfigChange(func(e fsnotify.Event) {
			log.Printf("Config file changed: %s", e.Name)
			newCfg := &Config{}
			if err := v.Unmarshal(newCfg); err != nil {
				log.Printf("Failed to reload config: %v", err)
				return
			}
			set(newCfg)
			log.Println("Configuration reloaded successfully")
		})
		v.WatchConfig()
	})
	return err
}

// LoadFromFile loads configuration from a specific file (useful for testing)
func LoadFromFile(configFile string) error {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	set(c)
	return nil
}

// MustLoad loads configuration and panics on error
func MustLoad(configPath string) {
	if err := Load(configPath); err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
}

// Get returns the current configuration (thread-safe)
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// OnChange registers fn to run after every successful reload.
func OnChange(fn func(*Config)) {
	mu.Lock()
	defer mu.Unlock()
	listeners = append(listeners, fn)
}

func set(c *Config) {
	mu.Lock()
	cfg = c
	fns := append([]func(*Config){}, listeners...)
	mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// GetDSN returns the connection string for the configured driver.
func (c *DatabaseConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch strings.ToLower(c.Driver) {
	case "mysql", "mariadb":
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true",
			c.User, c.Password, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.Name)
	case "sqlite", "sqlite3":
		return c.Name
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// InMemory reports whether the in-process store is selected.
func (c *DatabaseConfig) InMemory() bool {
	return c.Driver == "" || strings.EqualFold(c.Driver, "memory")
}

// GetRedisAddr returns the Redis server address
func (c *RedisConfig) GetRedisAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// GetServerAddr returns the server listen address
func (c *ServerConfig) GetServerAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsProduction returns true if running in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// IsDevelopment returns true if running in development mode
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}
