package collector

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileCollector reads log lines from a file
type FileCollector struct {
	BaseCollector
	filePath string
}

// NewFileCollector creates a new file collector
func NewFileCollector(path string) (*FileCollector, error) {
	if path == "" {
		return nil, fmt.Errorf("empty file path")
	}
	cleanPath := filepath.Clean(path)

	return &FileCollector{
		BaseCollector: BaseCollector{
			name:   filepath.Base(cleanPath),
			source: fmt.Sprintf("file://%s", cleanPath),
		},
		filePath: cleanPath,
	}, nil
}

// Open implements the Collector interface
func (fc *FileCollector) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(fc.filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot access file %s: %w", fc.filePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", fc.filePath)
	}

	file, err := os.Open(fc.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", fc.filePath, err)
	}
	return file, nil
}

// StdinCollector reads log lines from standard input
type StdinCollector struct {
	BaseCollector
	in io.Reader
}

// NewStdinCollector creates a collector over os.Stdin
func NewStdinCollector() *StdinCollector {
	return &StdinCollector{
		BaseCollector: BaseCollector{name: "stdin", source: "-"},
		in:            os.Stdin,
	}
}

// Open implements the Collector interface. Closing the returned reader
// leaves standard input open.
func (sc *StdinCollector) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(sc.in), nil
}
