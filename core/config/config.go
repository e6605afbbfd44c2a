package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig      `mapstructure:"app"`
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Redis     RedisConfig    `mapstructure:"redis"`
	JWT       JWTConfig      `mapstructure:"jwt"`
	Session   SessionConfig  `mapstructure:"session"`
	Frontend  FrontendConfig `mapstructure:"frontend"`
	GitHub    OAuthConfig    `mapstructure:"github"`
	GoogleAPI OAuthConfig    `mapstructure:"google"`
	S3        S3Config       `mapstructure:"s3"`
	Worker    WorkerConfig   `mapstructure:"worker"`
}

type AppConfig struct {
	Name      string `mapstructure:"name"`
	Env       string `mapstructure:"env"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in minutes
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type SessionConfig struct {
	CookieName string `mapstructure:"cookie_name"`
}

type FrontendConfig struct {
	URL string `mapstructure:"url"`
}

type OAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
}

type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// IsProduction reports whether cookies should be marked Secure.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// Configured reports whether the provider has the credentials needed for the OAuth flow.
func (c OAuthConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

var (
	mu       sync.RWMutex
	instance *Config
)

const developmentSecret = "syncup-development-secret"

var defaults = map[string]any{
	"app.name":                   "syncup-api",
	"app.env":                    "development",
	"app.log_level":              "info",
	"app.log_format":             "text",
	"server.host":                "0.0.0.0",
	"server.port":                3000,
	"server.read_timeout":        "15s",
	"server.shutdown_timeout":    "10s",
	"database.host":              "localhost",
	"database.port":              5432,
	"database.user":              "postgres",
	"database.password":          "",
	"database.name":              "syncup",
	"database.sslmode":           "disable",
	"database.max_open_conns":    25,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": 30,
	"redis.addr":                 "localhost:6379",
	"redis.password":             "",
	"redis.db":                   0,
	"jwt.secret":                 developmentSecret,
	"jwt.access_token_ttl":       "1h",
	"session.cookie_name":        "syncup_session",
	"frontend.url":               "http://localhost:5173",
	"github.client_id":           "",
	"github.client_secret":       "",
	"github.redirect_uri":        "",
	"google.client_id":           "",
	"google.client_secret":       "",
	"google.redirect_uri":        "",
	"s3.bucket":                  "",
	"s3.region":                  "us-east-1",
	"s3.endpoint":                "",
	"s3.access_key_id":           "",
	"s3.secret_access_key":       "",
	"s3.prefix":                  "",
	"worker.concurrency":         10,
}

// Load reads .env (if present), an optional config file, and environment variables.
// Environment variables use the upper-cased key with dots replaced by underscores,
// e.g. FRONTEND_URL or GITHUB_CLIENT_ID.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// PORT is what most hosting platforms inject.
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port (got %d)", c.Server.Port)
	}
	if c.JWT.Secret == "" || (c.IsProduction() && c.JWT.Secret == developmentSecret) {
		return fmt.Errorf("jwt.secret must be set")
	}
	if c.JWT.AccessTokenTTL <= 0 {
		return fmt.Errorf("jwt.access_token_ttl must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	return nil
}

// Init loads the configuration and stores it as the process singleton.
func Init(configFile string) (*Config, error) {
	cfg, err := Load(configFile)
	if err != nil {
		return nil, err
	}
	Set(cfg)
	return cfg, nil
}

func Set(cfg *Config) {
	mu.Lock()
	instance = cfg
	mu.Unlock()
}

// Get returns the loaded configuration and panics if Init was never called.
func Get() *Config {
	cfg, ok := GetSafe()
	if !ok {
		panic("config not initialized")
	}
	return cfg
}

func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}
