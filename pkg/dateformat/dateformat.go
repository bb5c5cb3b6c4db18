// Package dateformat parses timestamps with a date format given either as a
// Joda/Java-style pattern (yyyy-MM-dd HH:mm:ss,SSS) or, behind the "go:"
// prefix, as a Go reference layout (go:2006-01-02 15:04:05).
package dateformat

import (
	"fmt"
	"strings"
	"time"

	"github.com/vjeantet/jodaTime"
)

// GoLayoutPrefix marks a pattern written as a Go reference layout
const GoLayoutPrefix = "go:"

// Pattern letters with a Go layout equivalent. Hour letters k (1-24) and K
// (0-11) have none and are rejected rather than parsed with the wrong range.
const supportedLetters = "yYMdHhmsSaEzZ"

// Literal text must come out of a Go layout unchanged. Formatting it with a
// reference time whose fields differ from the layout tokens shows whether it
// does.
var literalCheck = time.Date(1999, time.November, 28, 21, 43, 37, 0, time.FixedZone("ABC", 3*3600))

// Format parses and formats timestamps for one date pattern
type Format struct {
	pattern string
	layout  string
	joda    bool
	loc     *time.Location
}

// Compile builds a Format from pattern. Timestamps without zone information
// are interpreted in loc (time.Local when nil).
func Compile(pattern string, loc *time.Location) (*Format, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty date format")
	}
	if loc == nil {
		loc = time.Local
	}

	f := &Format{pattern: pattern, loc: loc}
	if strings.HasPrefix(pattern, GoLayoutPrefix) {
		f.layout = strings.TrimPrefix(pattern, GoLayoutPrefix)
		if f.layout == "" {
			return nil, fmt.Errorf("empty Go layout in date format %q", pattern)
		}
		return f, nil
	}

	if err := validate(pattern); err != nil {
		return nil, err
	}
	f.joda = true
	f.layout = jodaTime.GetLayout(pattern)
	return f, nil
}

// MustCompile is like Compile but panics on error
func MustCompile(pattern string, loc *time.Location) *Format {
	f, err := Compile(pattern, loc)
	if err != nil {
		panic(err)
	}
	return f
}

// Pattern returns the pattern the format was compiled from
func (f *Format) Pattern() string {
	return f.pattern
}

// Location returns the default time zone
func (f *Format) Location() *time.Location {
	return f.loc
}

// Parse parses value with the format
func (f *Format) Parse(value string) (time.Time, error) {
	return time.ParseInLocation(f.layout, value, f.loc)
}

// Format renders t in the format's location
func (f *Format) Format(t time.Time) string {
	t = t.In(f.loc)
	if f.joda {
		return jodaTime.Format(f.pattern, t)
	}
	return t.Format(f.layout)
}

// validate rejects patterns the Go time parser would misread: unknown
// letters, unterminated quotes, fractions not preceded by '.' or ',' and
// literal text that collides with a Go layout token.
func validate(pattern string) error {
	var prev rune
	for i := 0; i < len(pattern); {
		c := rune(pattern[i])
		switch {
		case c == '\'':
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				return fmt.Errorf("unterminated quote in date format %q", pattern)
			}
			lit := pattern[i+1 : i+1+end]
			if err := checkLiteral(pattern, lit); err != nil {
				return err
			}
			i += end + 2
			prev = '\''
		case isLetter(c):
			if !strings.ContainsRune(supportedLetters, c) {
				return fmt.Errorf("unsupported letter %q in date format %q", c, pattern)
			}
			if c == 'S' && prev != 'S' && prev != '.' && prev != ',' {
				return fmt.Errorf("fraction of second must follow '.' or ',' in date format %q", pattern)
			}
			i++
			prev = c
		default:
			j := i
			for j < len(pattern) && pattern[j] != '\'' && !isLetter(rune(pattern[j])) {
				j++
			}
			if err := checkLiteral(pattern, pattern[i:j]); err != nil {
				return err
			}
			prev = rune(pattern[j-1])
			i = j
		}
	}
	return nil
}

func checkLiteral(pattern, lit string) error {
	if lit != "" && literalCheck.Format(lit) != lit {
		return fmt.Errorf("literal %q in date format %q reads as a date field", lit, pattern)
	}
	return nil
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
