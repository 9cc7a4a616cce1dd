package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Screener  ScreenerConfig  `yaml:"screener" envconfig:"SCREENER"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Workbook  WorkbookConfig  `yaml:"workbook" envconfig:"WORKBOOK"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
	// RateLimitRPS caps API requests per second; zero disables the limiter
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
}

// Addr returns the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// DatabaseConfig locates the Postgres time-series store. URL wins over the parts.
type DatabaseConfig struct {
	URL            string        `yaml:"url" envconfig:"URL"`
	Username       string        `yaml:"username" envconfig:"USERNAME"`
	Password       string        `yaml:"password" envconfig:"PASSWORD"`
	Hostname       string        `yaml:"hostname" envconfig:"HOSTNAME"`
	Port           int           `yaml:"port" envconfig:"PORT"`
	Name           string        `yaml:"name" envconfig:"NAME"`
	SSLMode        string        `yaml:"ssl_mode" envconfig:"SSL_MODE"`
	MaxConns       int32         `yaml:"max_conns" envconfig:"MAX_CONNS"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`
	BatchSize      int           `yaml:"batch_size" envconfig:"BATCH_SIZE"`
}

// Configured reports whether enough is set to reach a database
func (d DatabaseConfig) Configured() bool {
	return d.URL != "" || d.Hostname != ""
}

// DSN returns the connection string for the database
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Hostname, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.Username != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.Username, d.Password)
		} else {
			u.User = url.User(d.Username)
		}
	}

	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	if d.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(d.ConnectTimeout/time.Second)))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// ScreenerConfig contains the statement source settings
type ScreenerConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL"`
	Email          string        `yaml:"email" envconfig:"EMAIL"`
	Password       string        `yaml:"password" envconfig:"PASSWORD"`
	UserAgent      string        `yaml:"user_agent" envconfig:"USER_AGENT"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	FetchDelay     time.Duration `yaml:"fetch_delay" envconfig:"FETCH_DELAY"`
}

// HasCredentials reports whether a login can be attempted
func (s ScreenerConfig) HasCredentials() bool {
	return s.Email != "" && s.Password != ""
}

// PathsConfig contains file system paths configuration.
// Relative directories resolve against BaseDir, or the working directory when empty.
type PathsConfig struct {
	BaseDir      string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR"`
	DownloadsDir string `yaml:"downloads_dir" envconfig:"DOWNLOADS_DIR"`
	ReportsDir   string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// TelemetryConfig toggles metrics and tracing
type TelemetryConfig struct {
	ServiceName   string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment   string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	Metrics       bool    `yaml:"metrics" envconfig:"METRICS"`
	Tracing       bool    `yaml:"tracing" envconfig:"TRACING"`
	TraceExporter string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"` // stdout or none
	SampleRatio   float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// WorkbookConfig describes the export workbook layout
type WorkbookConfig struct {
	SheetName string `yaml:"sheet_name" envconfig:"SHEET_NAME"`
}

// Load resolves configuration from defaults, the config file, .env and the
// environment, in increasing order of precedence
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(EnvFileName); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", EnvFileName, err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file keep their value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server max upload bytes must be positive")
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server rate limit must not be negative")
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("server rate limit burst must be positive when rate limiting is on")
	}

	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid logging output: %q", c.Logging.Output)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging file path required for output %q", c.Logging.Output)
	}

	if c.Database.URL == "" && c.Database.Hostname != "" {
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name required when hostname is set")
		}
	}
	if c.Database.BatchSize <= 0 {
		return fmt.Errorf("database batch size must be positive")
	}

	if _, err := url.ParseRequestURI(c.Screener.BaseURL); err != nil {
		return fmt.Errorf("invalid screener base url %q: %w", c.Screener.BaseURL, err)
	}
	if c.Screener.RequestTimeout <= 0 {
		return fmt.Errorf("screener request timeout must be positive")
	}
	if c.Screener.FetchDelay < 0 {
		return fmt.Errorf("screener fetch delay must not be negative")
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("invalid trace exporter: %q", c.Telemetry.TraceExporter)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("trace sample ratio must be within [0, 1]: %v", c.Telemetry.SampleRatio)
	}

	if c.Workbook.SheetName == "" {
		return fmt.Errorf("workbook sheet name required")
	}

	return nil
}

// getConfigFilePath returns the path to the config file, or "" when none exists
func getConfigFilePath() string {
	if p := os.Getenv(ConfigFileEnvVar); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultServerPort,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  32 << 20, // 32MB
			RateLimitRPS:    10,
			RateLimitBurst:  20,
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "console",
			FilePath: "logs/finsheet.log",
		},
		Database: DatabaseConfig{
			Port:           5432,
			SSLMode:        "disable",
			MaxConns:       4,
			ConnectTimeout: 10 * time.Second,
			BatchSize:      DefaultUpsertBatchSize,
		},
		Screener: ScreenerConfig{
			BaseURL:        DefaultScreenerBaseURL,
			UserAgent:      DefaultUserAgent,
			RequestTimeout: DefaultHTTPTimeout,
			FetchDelay:     DefaultFetchDelay,
		},
		Paths: PathsConfig{
			DataDir:      DefaultDataDir,
			DownloadsDir: DefaultDownloadsDir,
			ReportsDir:   DefaultReportsDir,
			LogsDir:      DefaultLogsDir,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   AppName,
			Environment:   "development",
			Metrics:       true,
			TraceExporter: "stdout",
			SampleRatio:   1.0,
		},
		Workbook: WorkbookConfig{
			SheetName: DefaultSheetName,
		},
	}
}
