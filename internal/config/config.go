package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the operator
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Operator OperatorConfig `mapstructure:"operator"`
	JWKS     JWKSConfig     `mapstructure:"jwks"`
	Events   EventsConfig   `mapstructure:"events"`
	PDS      PDSConfig      `mapstructure:"pds"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Hostname     string        `mapstructure:"hostname"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds Postgres configuration
type DatabaseConfig struct {
	Hostname        string        `mapstructure:"hostname"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectRetries  uint64        `mapstructure:"connect_retries"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds the pending consent request cache configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OperatorConfig holds the operator identity
type OperatorConfig struct {
	// Host is the public base URI of the operator, used as iss in issued tokens.
	Host              string `mapstructure:"host"`
	PrivateKey        string `mapstructure:"private_key"`
	PrivateKeyFile    string `mapstructure:"private_key_file"`
	Environment       string `mapstructure:"environment"`
	AccessTokenSecret string `mapstructure:"access_token_secret"`
}

// JWKSConfig holds settings for fetching counterpart keys
type JWKSConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// EventsConfig holds webhook delivery settings
type EventsConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// PDSConfig holds personal data store backend settings
type PDSConfig struct {
	Local   LocalPDSConfig   `mapstructure:"local"`
	Dropbox DropboxPDSConfig `mapstructure:"dropbox"`
	S3      S3PDSConfig      `mapstructure:"s3"`
}

// LocalPDSConfig configures the on-disk backend
type LocalPDSConfig struct {
	Root string `mapstructure:"root"`
}

// DropboxPDSConfig configures the Dropbox OAuth application
type DropboxPDSConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	Host         string `mapstructure:"host"`
}

// S3PDSConfig configures the S3 compatible backend
type S3PDSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Bucket   string `mapstructure:"bucket"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty configPath searches ./configs and the working directory for config.yaml;
// a missing file is not an error, in which case defaults and env apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("OPERATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Operator.PrivateKey == "" && config.Operator.PrivateKeyFile != "" {
		pem, err := os.ReadFile(config.Operator.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key file: %w", err)
		}
		config.Operator.PrivateKey = string(pem)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.hostname", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.hostname", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgresuser")
	v.SetDefault("database.password", "postgrespassword")
	v.SetDefault("database.database", "egendata")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.connect_retries", 7)
	v.SetDefault("database.connect_backoff", time.Second)

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("operator.host", "http://localhost:3000")
	v.SetDefault("operator.environment", "production")

	v.SetDefault("jwks.timeout", 10*time.Second)
	v.SetDefault("events.timeout", 10*time.Second)

	v.SetDefault("pds.dropbox.host", "https://api.dropbox.com")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Hostname == "" {
		return fmt.Errorf("database hostname is required")
	}

	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if config.Operator.Host == "" {
		return fmt.Errorf("operator host is required")
	}

	if strings.HasSuffix(config.Operator.Host, "/") {
		return fmt.Errorf("operator host must not end with a slash: %s", config.Operator.Host)
	}

	if config.Operator.PrivateKey == "" {
		return fmt.Errorf("operator private key is required")
	}

	if config.Operator.AccessTokenSecret == "" {
		return fmt.Errorf("operator access token secret is required")
	}

	return nil
}

// GetDSN returns the Postgres connection string
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Hostname,
		d.Port,
		d.Database,
		d.SSLMode,
	)
}

// GetServerAddress returns the server address in host:port format
func (s *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", s.Hostname, s.Port)
}

// IsUnsafe reports whether plain http counterpart URIs are accepted.
func (o *OperatorConfig) IsUnsafe() bool {
	return o.Environment == "development" || o.Environment == "test"
}

// OperatorKeyID returns the kid the operator signs with.
func (o *OperatorConfig) OperatorKeyID() string {
	return o.Host + "/jwks/operator_key"
}
