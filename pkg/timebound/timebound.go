// Package timebound parses the lower and upper bounds of a time window from
// user input.
package timebound

import (
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mariasu11/grepstream/pkg/dateformat"
)

// Layouts tried, in order, for absolute bounds
var Layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parser turns bound expressions into absolute times
type Parser struct {
	clock  clock.Clock
	loc    *time.Location
	format *dateformat.Format
}

// Option configures a Parser
type Option func(*Parser)

// WithClock sets the clock used for "now" and relative bounds
func WithClock(c clock.Clock) Option {
	return func(p *Parser) {
		p.clock = c
	}
}

// WithLocation sets the time zone for bounds without zone information
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithFormat makes the parser accept bounds written in the log's own date format
func WithFormat(f *dateformat.Format) Option {
	return func(p *Parser) {
		p.format = f
	}
}

// NewParser creates a new bound parser
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		clock: clock.New(),
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses expr. An empty expr returns the zero time, meaning "unset".
// Accepted forms: "now", a signed duration relative to now ("-2h", "+30m"),
// an unsigned duration meaning that long ago ("15m"), one of Layouts, or
// the parser's date format.
func (p *Parser) Parse(expr string) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, nil
	}

	now := p.clock.Now().In(p.loc)
	if strings.EqualFold(expr, "now") {
		return now, nil
	}

	if d, err := time.ParseDuration(strings.TrimPrefix(expr, "+")); err == nil {
		switch {
		case strings.HasPrefix(expr, "+"), strings.HasPrefix(expr, "-"):
			return now.Add(d), nil
		default:
			return now.Add(-d), nil
		}
	}

	for _, layout := range Layouts {
		if t, err := time.ParseInLocation(layout, expr, p.loc); err == nil {
			return t, nil
		}
	}

	if p.format != nil {
		if t, err := p.format.Parse(expr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time %q", expr)
}

// Window parses both bounds and checks that from is not after to
func (p *Parser) Window(fromExpr, toExpr string) (from, to time.Time, err error) {
	if from, err = p.Parse(fromExpr); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %w", err)
	}
	if to, err = p.Parse(toExpr); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from %s is after to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return from, to, nil
}
