package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "finsheet"

	// Configuration sources
	ConfigFileEnvVar = "FINSHEET_CONFIG"
	EnvFileName      = ".env"

	// Server
	DefaultServerPort = 8080

	// Network Timeouts
	DefaultHTTPTimeout = 60 * time.Second
	DefaultFetchDelay  = 2 * time.Second

	// Statement source
	DefaultScreenerBaseURL = "https://www.screener.in"
	DefaultUserAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	// Workbook layout
	DefaultSheetName = "Data Sheet"

	// File Paths (relative to the base directory)
	DefaultDataDir      = "data"
	DefaultDownloadsDir = "data/downloads"
	DefaultReportsDir   = "data/reports"
	DefaultLogsDir      = "logs"

	// Persistence
	DefaultUpsertBatchSize = 500

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// API Endpoints (internal)
	APIBasePath     = "/api/v1"
	HealthEndpoint  = "/api/health"
	MetricsEndpoint = "/metrics"
)
