// Package config provides centralized configuration management for finsheet.
// It handles loading configuration from multiple sources, validation, and
// path resolution for downloaded workbooks, reports and logs.
//
// # Configuration Sources
//
// Configuration is resolved in the following order, later sources winning:
//
//	1. Default values
//	2. YAML file (FINSHEET_CONFIG, config.yaml or configs/config.yaml)
//	3. .env file in the working directory (never overrides the real environment)
//	4. Environment variables
//
// # Environment Variables
//
// Variables are named SECTION_FIELD without an application prefix:
//
//	SCREENER_EMAIL=analyst@example.com
//	SCREENER_PASSWORD=...
//	DATABASE_URL=postgres://...            (or DATABASE_USERNAME, DATABASE_PASSWORD,
//	                                        DATABASE_HOSTNAME, DATABASE_PORT, DATABASE_NAME)
//	SERVER_PORT=8080
//	LOGGING_LEVEL=debug
//	TELEMETRY_TRACING=true
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	paths, err := cfg.Paths.ResolvePaths()
package config
