package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"finsheet/internal/config"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes report files. Relative paths land in the reports directory.
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{paths: paths, logger: logger.With(slog.String("component", "csv_writer"))}
}

// WriteOptions describes one WriteCSV call. Append onto a non-empty file
// skips the BOM and headers already present.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool
}

// WriteCSV writes a whole report in one call
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) (err error) {
	file, existing, err := w.open(filePath, options.Append)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	w.logger.Debug("Writing CSV file",
		slog.String("path", file.Name()),
		slog.Int("records", len(options.Records)),
		slog.Bool("append", existing > 0))

	if existing > 0 {
		options.Headers, options.BOMPrefix = nil, false
	}
	return writeRecords(file, options)
}

func writeRecords(out io.Writer, options WriteOptions) error {
	cw, err := startCSV(out, options.BOMPrefix, options.Headers)
	if err != nil {
		return err
	}
	for i := range options.Records {
		if err := cw.Write(options.Records[i]); err != nil {
			return fmt.Errorf("csv record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// startCSV writes the optional BOM and header row
func startCSV(out io.Writer, bom bool, headers []string) (*csv.Writer, error) {
	if bom {
		if _, err := out.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("csv BOM: %w", err)
		}
	}
	cw := csv.NewWriter(out)
	if len(headers) == 0 {
		return cw, nil
	}
	if err := cw.Write(headers); err != nil {
		return nil, fmt.Errorf("csv headers: %w", err)
	}
	return cw, nil
}

// StreamWriter appends records one at a time to a report that is always BOM-prefixed
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	file, _, err := w.open(filePath, false)
	if err != nil {
		return nil, err
	}
	cw, err := startCSV(file, true, headers)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &StreamWriter{file: file, writer: cw}, nil
}

func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes buffered records before closing the file
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// open creates the parent directory and opens the report, truncating unless
// appending. It also returns the size the file had before opening.
func (w *CSVWriter) open(filePath string, appendMode bool) (*os.File, int64, error) {
	fullPath := w.resolvePath(filePath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, 0, fmt.Errorf("create report directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(fullPath, flags, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("open report %s: %w", fullPath, err)
	}

	var size int64
	if appendMode {
		if info, err := file.Stat(); err == nil {
			size = info.Size()
		}
	}
	return file, size, nil
}

func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil {
		return filePath
	}
	return w.paths.GetReportPath(filePath)
}
