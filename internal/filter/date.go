package filter

import (
	"regexp"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/mariasu11/grepstream/internal/config"
	"github.com/mariasu11/grepstream/pkg/dateformat"
)

// DateFilter passes entries whose timestamp falls in [from, to]. Once an
// entry is past to, it answers Terminate: for logs written in time order
// nothing after it can be in range.
//
// When stateful and no upper bound is set, the first entry at or after from
// latches the filter open and later entries pass without being parsed.
type DateFilter struct {
	binding

	from     time.Time
	to       time.Time
	regex    *regexp.Regexp
	format   *dateformat.Format
	location *time.Location
	stateful bool

	fromPassed bool
}

// DateOption configures a DateFilter
type DateOption func(*DateFilter) error

// WithFrom sets the inclusive lower bound
func WithFrom(from time.Time) DateOption {
	return func(f *DateFilter) error {
		f.from = from
		return nil
	}
}

// WithTo sets the inclusive upper bound
func WithTo(to time.Time) DateOption {
	return func(f *DateFilter) error {
		f.to = to
		return nil
	}
}

// WithDateRegex sets the regex whose first group holds the entry timestamp
func WithDateRegex(expr string) DateOption {
	return func(f *DateFilter) error {
		return f.SetDateRegex(expr)
	}
}

// WithDateFormat sets the format timestamps are parsed with
func WithDateFormat(pattern string) DateOption {
	return func(f *DateFilter) error {
		return f.SetDateFormat(pattern)
	}
}

// WithLocation sets the time zone of timestamps without zone information.
// It must come before WithDateFormat to take effect on it.
func WithLocation(loc *time.Location) DateOption {
	return func(f *DateFilter) error {
		if loc != nil {
			f.location = loc
		}
		return nil
	}
}

// WithStateful turns the from-passed latch on or off
func WithStateful(stateful bool) DateOption {
	return func(f *DateFilter) error {
		f.stateful = stateful
		return nil
	}
}

// WithSource attaches a configuration library and binds configID from it
func WithSource(src config.Source, configID string) DateOption {
	return func(f *DateFilter) error {
		f.SetSource(src)
		return f.Configure(configID)
	}
}

// NewDateFilter creates a date filter. Options apply in order.
func NewDateFilter(logger hclog.Logger, opts ...DateOption) (*DateFilter, error) {
	f := &DateFilter{
		binding:  newBinding(logger, "date"),
		location: time.Local,
		stateful: true,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Name implements Filter
func (f *DateFilter) Name() string {
	return "date"
}

// SetFrom sets the inclusive lower bound; the zero time unsets it
func (f *DateFilter) SetFrom(from time.Time) {
	f.from = from
}

// SetTo sets the inclusive upper bound; the zero time unsets it
func (f *DateFilter) SetTo(to time.Time) {
	f.to = to
}

// From returns the lower bound
func (f *DateFilter) From() time.Time {
	return f.from
}

// To returns the upper bound
func (f *DateFilter) To() time.Time {
	return f.to
}

// SetDateRegex sets the regex locating the timestamp. The filter is no
// longer bound to a config id afterwards.
func (f *DateFilter) SetDateRegex(expr string) error {
	re, err := compileDateRegex(expr)
	if err != nil {
		return err
	}
	f.regex = re
	f.configID = ""
	return nil
}

// DateRegex returns the regex locating the timestamp, or ""
func (f *DateFilter) DateRegex() string {
	if f.regex == nil {
		return ""
	}
	return f.regex.String()
}

// SetDateFormat sets the format timestamps are parsed with. The filter is
// no longer bound to a config id afterwards.
func (f *DateFilter) SetDateFormat(pattern string) error {
	df, err := compileDateFormat(pattern, f.location)
	if err != nil {
		return err
	}
	f.format = df
	f.configID = ""
	return nil
}

// DateFormat returns the date format pattern, or ""
func (f *DateFilter) DateFormat() string {
	if f.format == nil {
		return ""
	}
	return f.format.Pattern()
}

// FromPassed reports whether the latch is set
func (f *DateFilter) FromPassed() bool {
	return f.fromPassed
}

// Filter implements Filter
func (f *DateFilter) Filter(entry string) (Result, error) {
	if f.from.IsZero() && f.to.IsZero() {
		return Suppressed(), errors.Wrap(ErrIllegalState, "either from or to should be supplied to the date filter")
	}

	if f.regex == nil && f.format == nil {
		if f.logger.IsTrace() {
			f.logger.Trace("Date check was totally skipped, no date pattern")
		}
		return Emitted(entry), nil
	}
	if f.regex == nil || f.format == nil {
		return Suppressed(), errors.Wrap(ErrIllegalState, "date regex and date format must both be set")
	}

	if f.fromPassed && f.to.IsZero() {
		if f.logger.IsTrace() {
			f.logger.Trace("Date check was skipped, from already passed")
		}
		return Emitted(entry), nil
	}

	m := f.regex.FindStringSubmatch(entry)
	if m == nil {
		if f.logger.IsTrace() {
			f.logger.Trace("No signs of time in entry")
		}
		return Suppressed(), nil
	}

	ts, err := f.format.Parse(m[1])
	if err != nil {
		return Suppressed(), errors.Wrapf(ErrDateParse, "%q with format %q: %v", m[1], f.format.Pattern(), err)
	}

	if !f.from.IsZero() && ts.Before(f.from) {
		if f.logger.IsTrace() {
			f.logger.Trace("Before from", "timestamp", m[1])
		}
		return Suppressed(), nil
	}

	if f.stateful {
		f.fromPassed = true
	}

	if !f.to.IsZero() && ts.After(f.to) {
		f.logger.Debug("Upper bound passed", "timestamp", m[1])
		return Terminated(f.format.Format(ts)), nil
	}
	return Emitted(entry), nil
}

// OnEvent implements Filter. ChunkEnded resets the latch.
func (f *DateFilter) OnEvent(ev Event) (Result, error) {
	switch ev {
	case ChunkEnded:
		f.Flush()
		return Suppressed(), nil
	default:
		return Suppressed(), nil
	}
}

// Flush implements Filter
func (f *DateFilter) Flush() {
	f.fromPassed = false
}

// IsStateful implements Filter
func (f *DateFilter) IsStateful() bool {
	return f.stateful
}

// Bind implements Refreshable
func (f *DateFilter) Bind(configID string) (bool, error) {
	return f.bind(configID, f.fill)
}

// Configure implements Refreshable
func (f *DateFilter) Configure(configID string) error {
	return f.configure(configID, f.fill)
}

// ExportConfig implements Refreshable. The date format is written both to
// logDateFormats.<id> and to savedConfigs.<id>.dateFormat.
func (f *DateFilter) ExportConfig(configID string) (*config.FilterSet, error) {
	id, err := f.exportID(configID)
	if err != nil {
		return nil, err
	}
	if f.regex == nil || f.format == nil {
		return nil, errors.Wrap(ErrIllegalState, "no date format to export")
	}

	df := config.DateFormat{
		Regex: f.regex.String(),
		Value: f.format.Pattern(),
	}
	fs := config.NewFilterSet()
	logDF := df
	fs.LogDateFormats[id] = &logDF
	fs.SavedConfigFor(id).DateFormat = &df
	return fs, nil
}

// fill prefers savedConfigs.<id>.dateFormat and falls back to
// logDateFormats.<id>
func (f *DateFilter) fill(src config.Source, id string) error {
	var (
		df   *config.DateFormat
		path string
	)
	sc, saved := src.SavedConfig(id)
	ldf, logged := src.LogDateFormat(id)
	switch {
	case saved && sc.DateFormat != nil:
		df = sc.DateFormat
		path = config.SavedConfigsKey + "." + id + ".dateFormat"
	case logged:
		df = ldf
		path = config.LogDateFormatsKey + "." + id
	case saved:
		return errors.Wrapf(ErrPropertyMissing, "%s.%s.dateFormat is not filled", config.SavedConfigsKey, id)
	default:
		return errors.Wrapf(ErrConfigNotFound, "%s|%s.%s", config.SavedConfigsKey, config.LogDateFormatsKey, id)
	}

	if df.Regex == "" {
		return errors.Wrapf(ErrPropertyMissing, "%s.regex is not filled", path)
	}
	if df.Value == "" {
		return errors.Wrapf(ErrPropertyMissing, "%s.value is not filled", path)
	}

	re, err := compileDateRegex(df.Regex)
	if err != nil {
		return err
	}
	format, err := compileDateFormat(df.Value, f.location)
	if err != nil {
		return err
	}

	f.regex = re
	f.format = format
	f.logger.Debug("Date format", "config_id", id, "regex", df.Regex, "format", df.Value)
	return nil
}

func compileDateRegex(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "date regex was not supplied")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "date regex /%s/: %v", expr, err)
	}
	if re.NumSubexp() < 1 {
		return nil, errors.Wrapf(ErrInvalidArgument, "date regex /%s/ needs a capturing group", expr)
	}
	return re, nil
}

func compileDateFormat(pattern string, loc *time.Location) (*dateformat.Format, error) {
	if pattern == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "date format was not supplied")
	}
	df, err := dateformat.Compile(pattern, loc)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "%v", err)
	}
	return df, nil
}
