package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	exportPrefix = "export_"
	exportExt    = ".xlsx"
)

// Workbook is an export workbook found on disk
type Workbook struct {
	Symbol  string
	Path    string
	Size    int64
	ModTime time.Time
}

// Discovery finds export workbooks under a base directory
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// FindExportWorkbooks lists the export_<symbol>.xlsx files in dir, ordered by
// symbol. Relative dirs resolve against the base path. Office lock files
// (~$...) and empty files are skipped.
func (d *Discovery) FindExportWorkbooks(dir string) ([]Workbook, error) {
	fullPath := dir
	if !filepath.IsAbs(dir) {
		fullPath = filepath.Join(d.basePath, dir)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var workbooks []Workbook
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		symbol, ok := SymbolFromWorkbookName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}

		workbooks = append(workbooks, Workbook{
			Symbol:  symbol,
			Path:    filepath.Join(fullPath, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(workbooks, func(i, j int) bool {
		return workbooks[i].Symbol < workbooks[j].Symbol
	})

	return workbooks, nil
}

// SymbolFromWorkbookName recovers the upper-cased symbol from an export file name
func SymbolFromWorkbookName(name string) (string, bool) {
	if strings.HasPrefix(name, "~$") {
		return "", false
	}
	lower := strings.ToLower(name)
	if !strings.HasPrefix(lower, exportPrefix) || !strings.HasSuffix(lower, exportExt) {
		return "", false
	}
	symbol := name[len(exportPrefix) : len(name)-len(exportExt)]
	if symbol == "" {
		return "", false
	}
	return strings.ToUpper(symbol), true
}

// ValidateWorkbookFile checks path names a readable, non-empty .xlsx file
func ValidateWorkbookFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file %s is empty", path)
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext != exportExt {
		return fmt.Errorf("file %s is not an Excel workbook (extension: %s)", path, ext)
	}
	if strings.HasPrefix(filepath.Base(path), "~$") {
		return fmt.Errorf("file %s is a temporary Excel file", path)
	}

	return nil
}
