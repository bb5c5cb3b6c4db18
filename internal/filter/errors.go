package filter

import (
	"github.com/pkg/errors"
)

// Error kinds returned by filters. Callers test them with errors.Is; the
// returned errors carry context added with errors.Wrapf.
var (
	// ErrConfigNotFound means the config id has no entry in the source.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrPropertyMissing means the config id exists but a required key is absent.
	ErrPropertyMissing = errors.New("required property missing")

	// ErrInvalidArgument means a setter or export got an unusable argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIllegalState means filtering was attempted before mandatory parameters were set.
	ErrIllegalState = errors.New("illegal state")

	// ErrDateParse means a timestamp matched by the date regex could not be
	// parsed by the date format, i.e. the two disagree.
	ErrDateParse = errors.New("date parse failure")
)

// IsBindingError reports whether err only means "this config id cannot be
// bound", as opposed to a misconfiguration that must stop the run.
func IsBindingError(err error) bool {
	return errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrPropertyMissing)
}
