package filter

import (
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/mariasu11/grepstream/internal/config"
)

// Qualifier says how a pattern fragment joins the fragments before it
type Qualifier string

const (
	// NoQualifier marks a fragment that starts the pattern
	NoQualifier Qualifier = ""
	// And requires the fragment to follow the previous one
	And Qualifier = "and"
	// Or accepts the fragment as an alternative to everything before it
	Or Qualifier = "or"
)

// qualifiers is the closed set of qualifiers in declaration order
var qualifiers = []Qualifier{And, Or}

// joins maps every qualifier to the regex text placed before its fragment
var joins = map[Qualifier]string{
	NoQualifier: "",
	And:         "",
	Or:          "|",
}

// modePrefix makes ^ and $ match at line breaks and lets . match newlines,
// so fragments may span the lines of an entry
const modePrefix = "(?ms)"

// qualifierToken matches any %qualifier% marker in a compound pattern
var qualifierToken = regexp.MustCompile(qualifierTokenExpr())

func qualifierTokenExpr() string {
	tokens := make([]string, 0, len(qualifiers))
	for _, q := range qualifiers {
		tokens = append(tokens, "%"+regexp.QuoteMeta(string(q))+"%")
	}
	return strings.Join(tokens, "|")
}

// ParseQualifier returns the qualifier named s
func ParseQualifier(s string) (Qualifier, bool) {
	for _, q := range qualifiers {
		if string(q) == s {
			return q, true
		}
	}
	return NoQualifier, false
}

// Join returns the regex text that joins the qualified fragment to the pattern
func (q Qualifier) Join() string {
	return joins[q]
}

// Token returns the marker that introduces the qualifier in a compound pattern
func (q Qualifier) Token() string {
	if q == NoQualifier {
		return ""
	}
	return "%" + string(q) + "%"
}

type fragment struct {
	text      string
	qualifier Qualifier
}

// PatternFilter passes entries that contain a match of a compound pattern.
// A compound pattern is a list of regex fragments joined by qualifiers, as in
// "Exception%and%.*at com\.acme%or%FATAL". All fragments compile into one
// multiline regex.
type PatternFilter struct {
	binding

	fragments []fragment
	compiled  *regexp.Regexp

	// text the pattern was set from, until a fragment is added or removed
	raw string
}

// NewPatternFilter creates a pattern filter with no pattern set
func NewPatternFilter(logger hclog.Logger) *PatternFilter {
	return &PatternFilter{
		binding: newBinding(logger, "pattern"),
	}
}

// NewPatternFilterFromConfig creates a pattern filter bound to
// filterAliases.<configID> of src
func NewPatternFilterFromConfig(src config.Source, configID string, logger hclog.Logger) (*PatternFilter, error) {
	f := NewPatternFilter(logger)
	f.SetSource(src)
	if err := f.Configure(configID); err != nil {
		return nil, err
	}
	return f, nil
}

// Name implements Filter
func (f *PatternFilter) Name() string {
	return "pattern"
}

// SetPattern parses pattern and replaces the current pattern with it. On error
// the current pattern stays in place. The filter is no longer bound to a
// config id afterwards.
func (f *PatternFilter) SetPattern(pattern string) error {
	frags, err := parsePattern(pattern)
	if err != nil {
		return err
	}
	if err := f.apply(frags); err != nil {
		return err
	}
	f.raw = pattern
	f.configID = ""
	return nil
}

// Pattern returns the current pattern in its %and%/%or% form. A pattern set
// as a whole is returned as written; after AddPattern or RemovePattern it is
// rebuilt from the fragments.
func (f *PatternFilter) Pattern() string {
	if f.raw != "" {
		return f.raw
	}
	var b strings.Builder
	for _, frag := range f.fragments {
		b.WriteString(frag.qualifier.Token())
		b.WriteString(frag.text)
	}
	return b.String()
}

// Compiled returns the regex the filter matches with, or "" when no pattern is set
func (f *PatternFilter) Compiled() string {
	if f.compiled == nil {
		return ""
	}
	return f.compiled.String()
}

// AddPattern appends a fragment joined by q
func (f *PatternFilter) AddPattern(text string, q Qualifier) error {
	if _, ok := joins[q]; !ok {
		return errors.Wrapf(ErrInvalidArgument, "unknown qualifier %q", string(q))
	}

	f.logger.Trace("Adding pattern fragment", "fragment", text, "qualifier", string(q))

	frags := make([]fragment, len(f.fragments), len(f.fragments)+1)
	copy(frags, f.fragments)
	frags = append(frags, fragment{text: text, qualifier: q})
	if err := f.apply(frags); err != nil {
		return err
	}
	f.raw = ""
	return nil
}

// RemovePattern removes the most recently added fragment equal to text with
// qualifier q. It reports whether anything was removed.
func (f *PatternFilter) RemovePattern(text string, q Qualifier) bool {
	idx := -1
	for i := len(f.fragments) - 1; i >= 0; i-- {
		if f.fragments[i].text == text && f.fragments[i].qualifier == q {
			idx = i
			break
		}
	}
	if idx == -1 {
		f.logger.Trace("Fragment to remove not found", "fragment", text, "qualifier", string(q))
		return false
	}

	frags := make([]fragment, 0, len(f.fragments)-1)
	frags = append(frags, f.fragments[:idx]...)
	frags = append(frags, f.fragments[idx+1:]...)
	if err := f.apply(frags); err != nil {
		f.logger.Debug("Removal leaves an invalid pattern, keeping fragment", "fragment", text, "error", err)
		return false
	}
	f.raw = ""
	return true
}

// Match reports whether the pattern occurs anywhere in entry
func (f *PatternFilter) Match(entry string) (bool, error) {
	if f.compiled == nil {
		return false, errors.Wrap(ErrIllegalState, "filtering pattern is not set; supply it via config id or explicitly")
	}
	return f.compiled.MatchString(entry), nil
}

// Filter implements Filter
func (f *PatternFilter) Filter(entry string) (Result, error) {
	ok, err := f.Match(entry)
	if err != nil {
		return Suppressed(), err
	}
	if !ok {
		return Suppressed(), nil
	}
	return Emitted(entry), nil
}

// OnEvent implements Filter; the pattern filter ignores events
func (f *PatternFilter) OnEvent(Event) (Result, error) {
	return Suppressed(), nil
}

// Flush implements Filter
func (f *PatternFilter) Flush() {}

// IsStateful implements Filter
func (f *PatternFilter) IsStateful() bool {
	return false
}

// Bind implements Refreshable
func (f *PatternFilter) Bind(configID string) (bool, error) {
	return f.bind(configID, f.fill)
}

// Configure implements Refreshable
func (f *PatternFilter) Configure(configID string) error {
	return f.configure(configID, f.fill)
}

// ExportConfig implements Refreshable
func (f *PatternFilter) ExportConfig(configID string) (*config.FilterSet, error) {
	id, err := f.exportID(configID)
	if err != nil {
		return nil, err
	}
	if f.compiled == nil {
		return nil, errors.Wrap(ErrIllegalState, "no pattern to export")
	}

	fs := config.NewFilterSet()
	fs.FilterAliases[id] = f.Pattern()
	return fs, nil
}

func (f *PatternFilter) fill(src config.Source, id string) error {
	alias, ok := src.FilterAlias(id)
	if !ok {
		return errors.Wrapf(ErrConfigNotFound, "%s.%s", config.FilterAliasesKey, id)
	}
	if alias == "" {
		return errors.Wrapf(ErrPropertyMissing, "%s.%s is empty", config.FilterAliasesKey, id)
	}
	return f.SetPattern(alias)
}

func (f *PatternFilter) apply(frags []fragment) error {
	var b strings.Builder
	b.WriteString(modePrefix)
	for _, frag := range frags {
		b.WriteString(frag.qualifier.Join())
		b.WriteString(frag.text)
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return errors.Wrapf(ErrInvalidArgument, "check your pattern /%s/: %v", b.String()[len(modePrefix):], err)
	}

	f.fragments = frags
	f.compiled = re
	if f.logger.IsTrace() {
		f.logger.Trace("Pattern compiled", "regex", re.String(), "fragments", len(frags))
	}
	return nil
}

// parsePattern splits pattern into qualified fragments. A pattern without any
// %qualifier% marker is a single plain regex. Empty tokens left by the split
// are skipped, and a leading fragment never keeps a qualifier.
func parsePattern(pattern string) ([]fragment, error) {
	if !qualifierToken.MatchString(pattern) {
		return []fragment{{text: pattern}}, nil
	}

	var frags []fragment
	next := NoQualifier
	for _, tok := range strings.Split(pattern, "%") {
		if q, ok := ParseQualifier(tok); ok {
			next = q
			continue
		}
		if tok == "" {
			continue
		}
		if len(frags) == 0 {
			next = NoQualifier
		}
		frags = append(frags, fragment{text: tok, qualifier: next})
		next = NoQualifier
	}

	if len(frags) == 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "check your complex pattern: /%s/", pattern)
	}
	return frags, nil
}
