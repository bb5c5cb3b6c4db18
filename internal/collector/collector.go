package collector

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Collector opens one input stream of log lines
type Collector interface {
	// Open starts reading the input; the caller closes the reader
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name returns the collector's name
	Name() string
	// Source returns the source identifier
	Source() string
}

// NewCollector creates a collector from a source URI. Plain paths and
// file:// URIs read files, "-" reads standard input, http(s) URLs are
// fetched.
func NewCollector(sourceURI string) (Collector, error) {
	if sourceURI == "-" {
		return NewStdinCollector(), nil
	}

	uri, err := url.Parse(sourceURI)
	if err != nil {
		// Not a URI; file names may contain characters a URI can't
		return NewFileCollector(sourceURI)
	}

	switch strings.ToLower(uri.Scheme) {
	case "":
		return NewFileCollector(sourceURI)
	case "file":
		return NewFileCollector(uri.Path)
	case "http", "https":
		return NewHTTPCollector(sourceURI)
	default:
		return nil, fmt.Errorf("unsupported collector type: %s", uri.Scheme)
	}
}

// BaseCollector provides common functionality for collectors
type BaseCollector struct {
	name   string
	source string
}

// Name implements Collector
func (b *BaseCollector) Name() string {
	return b.name
}

// Source implements Collector
func (b *BaseCollector) Source() string {
	return b.source
}
