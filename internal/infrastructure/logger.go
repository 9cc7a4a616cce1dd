package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"finsheet/internal/config"
)

// processLog is the logger InitializeLogger installs, plus the file it writes to
var processLog struct {
	once   sync.Once
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// InitializeLogger builds the process logger once and installs it as the slog default.
// Later calls return the first logger regardless of cfg.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	processLog.once.Do(func() {
		var out io.Writer
		if out, err = logOutput(cfg); err != nil {
			return
		}
		processLog.logger = NewLogger(cfg, out)
		slog.SetDefault(processLog.logger)
	})
	return processLog.logger, err
}

// GetLogger returns the process logger, or slog.Default before InitializeLogger ran
func GetLogger() *slog.Logger {
	if processLog.logger == nil {
		return slog.Default()
	}
	return processLog.logger
}

// NewLogger builds a logger writing to w with the configured level and format,
// without touching the global logger. File output settings are ignored.
func NewLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: cfg.Development,
		Level:     parseLogLevel(cfg.Level),
	}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(&contextHandler{Handler: h})
}

// logOutput resolves Output into a writer: console (default), file or both
func logOutput(cfg config.LoggingConfig) (io.Writer, error) {
	mode := strings.ToLower(cfg.Output)
	if mode != "file" && mode != "both" {
		return os.Stdout, nil
	}

	file, err := openLogFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	processLog.mu.Lock()
	processLog.file = file
	processLog.mu.Unlock()

	if mode == "both" {
		return io.MultiWriter(os.Stdout, file), nil
	}
	return file, nil
}

// contextHandler stamps every record with the trace_id and symbol carried by its context
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, kv := range [...][2]string{{"trace_id", GetTraceID(ctx)}, {"symbol", GetSymbol(ctx)}} {
		if kv[1] != "" {
			r.AddAttrs(slog.String(kv[0], kv[1]))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

// parseLogLevel accepts slog level names plus "warning"; anything else is info
func parseLogLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// CloseLogFile closes the file InitializeLogger opened, if any
func CloseLogFile() error {
	processLog.mu.Lock()
	defer processLog.mu.Unlock()

	if processLog.file == nil {
		return nil
	}
	err := processLog.file.Close()
	processLog.file = nil
	return err
}

// ResetLoggerForTesting lets a test initialize the process logger again
func ResetLoggerForTesting() {
	CloseLogFile()
	processLog.logger = nil
	processLog.once = sync.Once{}
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
