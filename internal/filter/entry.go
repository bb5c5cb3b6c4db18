package filter

import (
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/mariasu11/grepstream/internal/config"
)

// EntryFilter groups lines into log entries. A line matching the boundary
// pattern starts a new entry; every following line that doesn't match is
// appended to it. The finished entry is emitted when the next boundary
// arrives or when the chunk ends.
//
// Lines seen before the first boundary belong to no entry and are dropped.
type EntryFilter struct {
	binding

	boundary *regexp.Regexp

	// config parts the boundary was built from
	starter   string
	dateRegex string

	buf   strings.Builder
	lines int
	open  bool
}

// NewEntryFilter creates an entry filter splitting on boundary
func NewEntryFilter(boundary string, logger hclog.Logger) (*EntryFilter, error) {
	f := &EntryFilter{
		binding: newBinding(logger, "entry"),
	}
	if err := f.SetBoundary(boundary); err != nil {
		return nil, err
	}
	return f, nil
}

// NewEntryFilterFromConfig creates an entry filter bound to
// savedConfigs.<configID> of src
func NewEntryFilterFromConfig(src config.Source, configID string, logger hclog.Logger) (*EntryFilter, error) {
	f := &EntryFilter{
		binding: newBinding(logger, "entry"),
	}
	f.SetSource(src)
	if err := f.Configure(configID); err != nil {
		return nil, err
	}
	return f, nil
}

// Name implements Filter
func (f *EntryFilter) Name() string {
	return "entry"
}

// SetBoundary replaces the pattern that marks the start of an entry. The
// filter is no longer bound to a config id afterwards.
func (f *EntryFilter) SetBoundary(boundary string) error {
	if boundary == "" {
		return errors.Wrap(ErrInvalidArgument, "entry pattern was not supplied")
	}
	re, err := regexp.Compile(boundary)
	if err != nil {
		return errors.Wrapf(ErrInvalidArgument, "entry pattern /%s/: %v", boundary, err)
	}
	f.boundary = re
	f.starter, f.dateRegex = boundary, ""
	f.configID = ""
	f.logger.Debug("Entry pattern", "pattern", boundary)
	return nil
}

// Boundary returns the entry start pattern, or "" when unset
func (f *EntryFilter) Boundary() string {
	if f.boundary == nil {
		return ""
	}
	return f.boundary.String()
}

// Open reports whether an entry is being accumulated
func (f *EntryFilter) Open() bool {
	return f.open
}

// Filter implements Filter
func (f *EntryFilter) Filter(line string) (Result, error) {
	if f.boundary == nil {
		return Suppressed(), errors.Wrap(ErrIllegalState, "entry pattern is not set")
	}

	if !f.boundary.MatchString(line) {
		if !f.open {
			f.logger.Trace("Dropping line outside of any entry")
			return Suppressed(), nil
		}
		f.logger.Trace("Appending")
		f.appendLine(line)
		return Suppressed(), nil
	}

	if !f.open {
		f.logger.Trace("Starting first entry")
		f.open = true
		f.appendLine(line)
		return Suppressed(), nil
	}

	f.logger.Trace("Returning entry")
	entry := f.buf.String()
	f.buf.Reset()
	f.lines = 0
	f.appendLine(line)
	return Emitted(entry), nil
}

// OnEvent implements Filter. ChunkEnded emits the entry being accumulated,
// so the last entry of a chunk is not lost for want of a closing boundary.
// With no entry open there is nothing to emit, not even an empty entry.
func (f *EntryFilter) OnEvent(ev Event) (Result, error) {
	switch ev {
	case ChunkEnded:
		if !f.open {
			return Suppressed(), nil
		}
		entry := f.buf.String()
		f.Flush()
		return Emitted(entry), nil
	default:
		return Suppressed(), nil
	}
}

// Flush implements Filter. It drops the accumulated entry.
func (f *EntryFilter) Flush() {
	f.buf.Reset()
	f.lines = 0
	f.open = false
}

// IsStateful implements Filter
func (f *EntryFilter) IsStateful() bool {
	return true
}

// Bind implements Refreshable
func (f *EntryFilter) Bind(configID string) (bool, error) {
	return f.bind(configID, f.fill)
}

// Configure implements Refreshable
func (f *EntryFilter) Configure(configID string) error {
	return f.configure(configID, f.fill)
}

// ExportConfig implements Refreshable
func (f *EntryFilter) ExportConfig(configID string) (*config.FilterSet, error) {
	id, err := f.exportID(configID)
	if err != nil {
		return nil, err
	}
	if f.boundary == nil {
		return nil, errors.Wrap(ErrIllegalState, "no entry pattern to export")
	}

	fs := config.NewFilterSet()
	sc := fs.SavedConfigFor(id)
	sc.Starter = f.starter
	if f.dateRegex != "" {
		sc.DateFormat = &config.DateFormat{Regex: f.dateRegex}
	}
	return fs, nil
}

// fill builds the boundary from savedConfigs.<id>.starter followed by
// savedConfigs.<id>.dateFormat.regex; at least one must be present
func (f *EntryFilter) fill(src config.Source, id string) error {
	sc, ok := src.SavedConfig(id)
	if !ok {
		return errors.Wrapf(ErrConfigNotFound, "%s.%s", config.SavedConfigsKey, id)
	}

	var dateRegex string
	if sc.DateFormat != nil {
		dateRegex = sc.DateFormat.Regex
	}
	if sc.Starter == "" && dateRegex == "" {
		return errors.Wrapf(ErrPropertyMissing, "either starter or dateFormat.regex should be filled for config: %s", id)
	}

	if err := f.SetBoundary(sc.Starter + dateRegex); err != nil {
		return err
	}
	f.starter, f.dateRegex = sc.Starter, dateRegex
	return nil
}

func (f *EntryFilter) appendLine(line string) {
	if f.lines > 0 {
		f.buf.WriteByte('\n')
	}
	f.buf.WriteString(line)
	f.lines++
}
