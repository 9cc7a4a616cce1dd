package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Paths contains the resolved, absolute application paths
type Paths struct {
	BaseDir      string
	DataDir      string
	DownloadsDir string
	ReportsDir   string
	LogsDir      string
}

// ResolvePaths turns the configured directories into absolute paths. Relative
// entries resolve against BaseDir; an empty BaseDir means the working directory.
func (p PathsConfig) ResolvePaths() (*Paths, error) {
	base := p.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolve := func(dir, fallback string) string {
		if dir == "" {
			dir = fallback
		}
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}
		return filepath.Join(base, dir)
	}

	return &Paths{
		BaseDir:      base,
		DataDir:      resolve(p.DataDir, DefaultDataDir),
		DownloadsDir: resolve(p.DownloadsDir, DefaultDownloadsDir),
		ReportsDir:   resolve(p.ReportsDir, DefaultReportsDir),
		LogsDir:      resolve(p.LogsDir, DefaultLogsDir),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.DownloadsDir,
		p.ReportsDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetReportPath returns the path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// ExportWorkbookName is the file name a company's export workbook is saved under
func ExportWorkbookName(symbol string) string {
	return fmt.Sprintf("export_%s.xlsx", SanitizeFileComponent(symbol))
}

// EventsReportName is the file name of a company's long-event CSV
func EventsReportName(symbol string) string {
	return fmt.Sprintf("%s_timeseries.csv", SanitizeFileComponent(symbol))
}

// SanitizeFileComponent keeps a symbol safe to embed in a file name
func SanitizeFileComponent(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '&':
			return r
		}
		return '_'
	}, strings.TrimSpace(s))
}

// LogPathResolution logs the resolved directories
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("downloads", p.DownloadsDir),
			slog.String("reports", p.ReportsDir),
			slog.String("logs", p.LogsDir),
		))
}
