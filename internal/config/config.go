package config

import (
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/unimak/dftrack/internal/envutil"
	"github.com/unimak/dftrack/internal/slogging"
	"gopkg.in/yaml.v3"
)

// Supported database backends
const (
	DatabaseTypePostgres  = "postgres"
	DatabaseTypeMySQL     = "mysql"
	DatabaseTypeSQLServer = "sqlserver"
	DatabaseTypeSQLite    = "sqlite"
	DatabaseTypeOracle    = "oracle"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Session  SessionConfig  `yaml:"session"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Auth     AuthConfig     `yaml:"auth"`
	Display  DisplayConfig  `yaml:"display"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string        `yaml:"port" env:"SERVER_PORT"`
	Interface      string        `yaml:"interface" env:"SERVER_INTERFACE"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	TLSEnabled     bool          `yaml:"tls_enabled" env:"SERVER_TLS_ENABLED"`
	TLSCertFile    string        `yaml:"tls_cert_file" env:"SERVER_TLS_CERT_FILE"`
	TLSKeyFile     string        `yaml:"tls_key_file" env:"SERVER_TLS_KEY_FILE"`
	MetricsEnabled bool          `yaml:"metrics_enabled" env:"SERVER_METRICS_ENABLED"`
	SlowRequest    time.Duration `yaml:"slow_request" env:"SERVER_SLOW_REQUEST"`
}

// DatabaseConfig selects a backend and holds the settings for each
type DatabaseConfig struct {
	Type string `yaml:"type" env:"DB_TYPE"`
	// URL is a raw DSN handed to the selected driver, bypassing the per-backend fields
	URL       string          `yaml:"url" env:"DATABASE_URL"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	SQLServer SQLServerConfig `yaml:"sqlserver"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Oracle    OracleConfig    `yaml:"oracle"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     string `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database string `yaml:"database" env:"POSTGRES_DATABASE"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSL_MODE"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host     string `yaml:"host" env:"MYSQL_HOST"`
	Port     string `yaml:"port" env:"MYSQL_PORT"`
	User     string `yaml:"user" env:"MYSQL_USER"`
	Password string `yaml:"password" env:"MYSQL_PASSWORD"`
	Database string `yaml:"database" env:"MYSQL_DATABASE"`
}

// SQLServerConfig holds SQL Server configuration
type SQLServerConfig struct {
	Host     string `yaml:"host" env:"SQLSERVER_HOST"`
	Port     string `yaml:"port" env:"SQLSERVER_PORT"`
	User     string `yaml:"user" env:"SQLSERVER_USER"`
	Password string `yaml:"password" env:"SQLSERVER_PASSWORD"`
	Database string `yaml:"database" env:"SQLSERVER_DATABASE"`
}

// SQLiteConfig holds SQLite configuration
type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH"`
}

// OracleConfig holds Oracle configuration
type OracleConfig struct {
	User          string `yaml:"user" env:"ORACLE_USER"`
	Password      string `yaml:"password" env:"ORACLE_PASSWORD"`
	ConnectString string `yaml:"connect_string" env:"ORACLE_CONNECT_STRING"`
}

// RedisConfig holds Redis configuration for the session store
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST"`
	Port     string `yaml:"port" env:"REDIS_PORT"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// SessionConfig holds the login session cookie settings
type SessionConfig struct {
	CookieName string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME"`
	TTL        time.Duration `yaml:"ttl" env:"SESSION_TTL"`
	Secure     bool          `yaml:"secure" env:"SESSION_SECURE"`
}

// UploadsConfig holds photo storage settings
type UploadsConfig struct {
	Root     string `yaml:"root" env:"UPLOADS_ROOT"`
	MaxBytes int64  `yaml:"max_bytes" env:"UPLOADS_MAX_BYTES"`
}

// AuthConfig holds account settings
type AuthConfig struct {
	// AdminUsernames receive the admin role when they register
	AdminUsernames []string `yaml:"admin_usernames" env:"AUTH_ADMIN_USERNAMES"`
	BcryptCost     int      `yaml:"bcrypt_cost" env:"AUTH_BCRYPT_COST"`
}

// DisplayConfig holds listing sizes
type DisplayConfig struct {
	RecentProblems int `yaml:"recent_problems" env:"DISPLAY_RECENT_PROBLEMS"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level" env:"LOGGING_LEVEL"`
	IsDev            bool   `yaml:"is_dev" env:"LOGGING_IS_DEV"`
	IsTest           bool   `yaml:"is_test" env:"LOGGING_IS_TEST"`
	LogDir           string `yaml:"log_dir" env:"LOGGING_LOG_DIR"`
	MaxAgeDays       int    `yaml:"max_age_days" env:"LOGGING_MAX_AGE_DAYS"`
	MaxSizeMB        int    `yaml:"max_size_mb" env:"LOGGING_MAX_SIZE_MB"`
	MaxBackups       int    `yaml:"max_backups" env:"LOGGING_MAX_BACKUPS"`
	AlsoLogToConsole bool   `yaml:"also_log_to_console" env:"LOGGING_ALSO_LOG_TO_CONSOLE"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load(configFile string) (*Config, error) {
	config := getDefaultConfig()

	if configFile != "" {
		if err := loadFromYAML(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from YAML: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, fmt.Errorf("failed to override with environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns a configuration with default values
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Interface:      "0.0.0.0",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MetricsEnabled: true,
			SlowRequest:    2 * time.Second,
		},
		Database: DatabaseConfig{
			Type: DatabaseTypeSQLite,
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     "5432",
				User:     "postgres",
				Database: "unimak",
				SSLMode:  "disable",
			},
			MySQL: MySQLConfig{
				Host:     "localhost",
				Port:     "3306",
				User:     "root",
				Database: "unimak",
			},
			SQLServer: SQLServerConfig{
				Host:     "localhost",
				Port:     "1433",
				User:     "sa",
				Database: "unimak",
			},
			SQLite: SQLiteConfig{
				Path: "unimak.db",
			},
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		Session: SessionConfig{
			CookieName: "unimak_session",
			TTL:        24 * time.Hour,
		},
		Uploads: UploadsConfig{
			Root:     "static/files/uploads",
			MaxBytes: 32 << 20,
		},
		Auth: AuthConfig{
			BcryptCost: 10,
		},
		Display: DisplayConfig{
			RecentProblems: 20,
		},
		Logging: LoggingConfig{
			Level:            "info",
			IsDev:            true,
			LogDir:           "logs",
			MaxAgeDays:       7,
			MaxSizeMB:        100,
			MaxBackups:       10,
			AlsoLogToConsole: true,
		},
	}
}

// loadFromYAML loads configuration from a YAML file
func loadFromYAML(config *Config, filename string) error {
	data, err := os.ReadFile(filename) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// overrideWithEnv overrides configuration values with environment variables
func overrideWithEnv(config *Config) error {
	return overrideStructWithEnv(reflect.ValueOf(config).Elem())
}

// overrideStructWithEnv recursively overrides struct fields with environment variables.
// Each env tag is also honored with the UNIMAK_ prefix.
func overrideStructWithEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := overrideStructWithEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue, ok := envutil.Lookup(envTag)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldFromString(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldFromString sets a struct field value from a string based on the field type
func setFieldFromString(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value: %s", value)
		}
		field.SetBool(boolVal)
	case reflect.Int:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid int value: %s", value)
		}
		field.SetInt(int64(intVal))
	case reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration value: %s", value)
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid int64 value: %s", value)
			}
			field.SetInt(intVal)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				slice = append(slice, trimmed)
			}
		}
		field.Set(reflect.ValueOf(slice))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.TLSEnabled && (c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "") {
		return fmt.Errorf("tls cert and key files are required when tls is enabled")
	}

	switch c.Database.Type {
	case DatabaseTypePostgres, DatabaseTypeMySQL, DatabaseTypeSQLServer, DatabaseTypeOracle:
	case DatabaseTypeSQLite:
		if c.Database.SQLite.Path == "" && c.Database.URL == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.Database.Type)
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}
	if c.Redis.Port == "" {
		return fmt.Errorf("redis port is required")
	}

	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie name is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be greater than 0")
	}

	if c.Uploads.Root == "" {
		return fmt.Errorf("uploads root is required")
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("uploads max bytes must be greater than 0")
	}

	if c.Display.RecentProblems <= 0 {
		return fmt.Errorf("display recent problems must be greater than 0")
	}

	return nil
}

// IsTestMode returns true if running in test mode
func (c *Config) IsTestMode() bool {
	return c.Logging.IsTest || flag.Lookup("test.v") != nil
}

// GetLogLevel returns the parsed log level
func (c *Config) GetLogLevel() slogging.LogLevel {
	return slogging.ParseLogLevel(c.Logging.Level)
}

// LoggerConfig converts the logging section for slogging.Initialize
func (c *Config) LoggerConfig() slogging.Config {
	return slogging.Config{
		Level:            c.GetLogLevel(),
		IsDev:            c.Logging.IsDev,
		LogDir:           c.Logging.LogDir,
		MaxAgeDays:       c.Logging.MaxAgeDays,
		MaxSizeMB:        c.Logging.MaxSizeMB,
		MaxBackups:       c.Logging.MaxBackups,
		AlsoLogToConsole: c.Logging.AlsoLogToConsole,
	}
}

// IsAdminUsername reports whether a newly registered user gets the admin role.
// Usernames are stored case-sensitively, so the match is exact.
func (c *Config) IsAdminUsername(username string) bool {
	for _, name := range c.Auth.AdminUsernames {
		if name == username {
			return true
		}
	}
	return false
}

// ListenAddress returns the interface:port the server binds to
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Interface, c.Server.Port)
}
