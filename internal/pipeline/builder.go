package pipeline

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mariasu11/grepstream/internal/config"
	"github.com/mariasu11/grepstream/internal/filter"
	"github.com/mariasu11/grepstream/internal/metrics"
)

// Options selects the stages of a pipeline. Explicit values win over the
// config id; stages built from explicit values are not refreshable.
type Options struct {
	// ConfigID names the saved config, date format and filter alias to use
	ConfigID string
	// EntryPattern overrides the entry start pattern
	EntryPattern string
	// Pattern overrides the compound filter pattern
	Pattern string
	// DateRegex and DateFormat override the timestamp extraction
	DateRegex  string
	DateFormat string
	// From and To bound the window; zero means unset
	From time.Time
	To   time.Time
	// Stateless disables the from-passed latch of the date filter
	Stateless bool
	// Location is the time zone of timestamps without zone; nil means local
	Location *time.Location
}

// Builder assembles pipelines in the canonical stage order: entry, pattern,
// date. A stage is left out when nothing configures it.
type Builder struct {
	source  config.Source
	logger  hclog.Logger
	metrics *metrics.Metrics
}

// NewBuilder creates a builder reading config ids from src
func NewBuilder(src config.Source, logger hclog.Logger, m *metrics.Metrics) *Builder {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if src == nil {
		src = config.NewFilterSet()
	}
	return &Builder{source: src, logger: logger, metrics: m}
}

// Build creates a pipeline for opts
func (b *Builder) Build(opts Options) (*Pipeline, error) {
	var stages []filter.Filter

	if opts.ConfigID != "" && !b.knows(opts.ConfigID) {
		return nil, fmt.Errorf("config id %q: %w", opts.ConfigID, filter.ErrConfigNotFound)
	}

	entry, err := b.entryStage(opts)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		stages = append(stages, entry)
	}

	pattern, err := b.patternStage(opts)
	if err != nil {
		return nil, err
	}
	if pattern != nil {
		stages = append(stages, pattern)
	}

	date, err := b.dateStage(opts)
	if err != nil {
		return nil, err
	}
	if date != nil {
		stages = append(stages, date)
	}

	b.logger.Debug("Pipeline built", "config_id", opts.ConfigID, "stages", len(stages))
	p := New(b.logger, b.metrics, stages...)
	p.configID = opts.ConfigID
	return p, nil
}

func (b *Builder) entryStage(opts Options) (*filter.EntryFilter, error) {
	if opts.EntryPattern != "" {
		f, err := filter.NewEntryFilter(opts.EntryPattern, b.logger)
		if err != nil {
			return nil, fmt.Errorf("entry stage: %w", err)
		}
		return f, nil
	}

	if opts.ConfigID == "" {
		return nil, nil
	}
	if _, ok := b.source.SavedConfig(opts.ConfigID); !ok {
		return nil, nil
	}

	f, err := filter.NewEntryFilterFromConfig(b.source, opts.ConfigID, b.logger)
	if err != nil {
		return nil, fmt.Errorf("entry stage: %w", err)
	}
	return f, nil
}

func (b *Builder) patternStage(opts Options) (*filter.PatternFilter, error) {
	if opts.Pattern != "" {
		f := filter.NewPatternFilter(b.logger)
		if err := f.SetPattern(opts.Pattern); err != nil {
			return nil, fmt.Errorf("pattern stage: %w", err)
		}
		return f, nil
	}

	if opts.ConfigID == "" {
		return nil, nil
	}
	if _, ok := b.source.FilterAlias(opts.ConfigID); !ok {
		return nil, nil
	}

	f, err := filter.NewPatternFilterFromConfig(b.source, opts.ConfigID, b.logger)
	if err != nil {
		return nil, fmt.Errorf("pattern stage: %w", err)
	}
	return f, nil
}

func (b *Builder) dateStage(opts Options) (*filter.DateFilter, error) {
	if opts.From.IsZero() && opts.To.IsZero() {
		return nil, nil
	}

	dopts := []filter.DateOption{
		filter.WithLocation(opts.Location),
		filter.WithFrom(opts.From),
		filter.WithTo(opts.To),
		filter.WithStateful(!opts.Stateless),
	}

	switch {
	case opts.DateRegex != "" || opts.DateFormat != "":
		dopts = append(dopts, filter.WithDateRegex(opts.DateRegex), filter.WithDateFormat(opts.DateFormat))
	case opts.ConfigID != "" && b.hasDateFormat(opts.ConfigID):
		dopts = append(dopts, filter.WithSource(b.source, opts.ConfigID))
	}

	f, err := filter.NewDateFilter(b.logger, dopts...)
	if err != nil {
		return nil, fmt.Errorf("date stage: %w", err)
	}
	return f, nil
}

// Export binds a fresh stage of each kind configID defines and merges what
// the stages export. Date bounds are not needed to export a date format.
func (b *Builder) Export(configID string) (*config.FilterSet, error) {
	if configID == "" {
		return nil, fmt.Errorf("empty config id: %w", filter.ErrInvalidArgument)
	}
	if !b.knows(configID) {
		return nil, fmt.Errorf("config id %q: %w", configID, filter.ErrConfigNotFound)
	}

	var stages []filter.Filter
	if sc, ok := b.source.SavedConfig(configID); ok && (sc.Starter != "" || sc.DateFormat != nil && sc.DateFormat.Regex != "") {
		f, err := filter.NewEntryFilterFromConfig(b.source, configID, b.logger)
		if err != nil {
			return nil, fmt.Errorf("entry stage: %w", err)
		}
		stages = append(stages, f)
	}
	if _, ok := b.source.FilterAlias(configID); ok {
		f, err := filter.NewPatternFilterFromConfig(b.source, configID, b.logger)
		if err != nil {
			return nil, fmt.Errorf("pattern stage: %w", err)
		}
		stages = append(stages, f)
	}
	if b.hasDateFormat(configID) {
		f, err := filter.NewDateFilter(b.logger, filter.WithSource(b.source, configID))
		if err != nil {
			return nil, fmt.Errorf("date stage: %w", err)
		}
		stages = append(stages, f)
	}

	return New(b.logger, b.metrics, stages...).Export(configID)
}

func (b *Builder) knows(id string) bool {
	_, saved := b.source.SavedConfig(id)
	_, logged := b.source.LogDateFormat(id)
	_, aliased := b.source.FilterAlias(id)
	return saved || logged || aliased
}

func (b *Builder) hasDateFormat(id string) bool {
	if sc, ok := b.source.SavedConfig(id); ok && sc.DateFormat != nil {
		return true
	}
	_, ok := b.source.LogDateFormat(id)
	return ok
}
