package config

import (
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/mariasu11/grepstream/internal/metrics"
)

// Store holds the current filter set and swaps it on reload. Readers get an
// immutable snapshot, so pipelines built from one snapshot never see a
// half-applied reload.
type Store struct {
	path   string
	logger hclog.Logger

	mu  sync.RWMutex
	set *FilterSet
}

// NewStore creates a store for the filter set at path. An empty path gives
// a store holding an empty set.
func NewStore(path string, logger hclog.Logger) *Store {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Store{
		path:   path,
		logger: logger.Named("filterset"),
		set:    NewFilterSet(),
	}
}

// NewStaticStore creates a store around an already loaded filter set
func NewStaticStore(set *FilterSet) *Store {
	if set == nil {
		set = NewFilterSet()
	}
	return &Store{logger: hclog.NewNullLogger(), set: set}
}

// Path returns the file the store loads from
func (s *Store) Path() string {
	return s.path
}

// Get returns the current filter set
func (s *Store) Get() *FilterSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// Set replaces the current filter set
func (s *Store) Set(set *FilterSet) {
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
}

// Reload reads the file again. On error the previous set stays live.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	reloads := metrics.GetMetrics().FilterSetReloads
	set, err := LoadFilterSet(s.path)
	if err != nil {
		reloads.WithLabelValues("error").Inc()
		s.logger.Error("Failed to reload filter set, keeping previous", "path", s.path, "error", err)
		return err
	}

	s.Set(set)
	reloads.WithLabelValues("success").Inc()
	s.logger.Info("Filter set loaded", "path", s.path, "configs", len(set.IDs()))
	return nil
}
