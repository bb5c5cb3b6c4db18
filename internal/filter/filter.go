// Package filter implements the stages of a log entry pipeline: the entry
// reassembler, the compound pattern matcher and the date range filter.
//
// Every stage consumes one string at a time and answers with a Result. A
// stage may hold state across calls; the pipeline driver clears it through
// Flush or the ChunkEnded event.
package filter

import (
	"fmt"

	"github.com/mariasu11/grepstream/internal/config"
)

// Event is a lifecycle signal delivered to every stage by the driver.
type Event int

const (
	// ChunkStarted is sent before the first line of an input segment.
	ChunkStarted Event = iota
	// ChunkEnded is sent after the last line of an input segment.
	ChunkEnded
	// FileEnded is sent once an input file is exhausted.
	FileEnded
)

// String implements fmt.Stringer
func (e Event) String() string {
	switch e {
	case ChunkStarted:
		return "chunk_started"
	case ChunkEnded:
		return "chunk_ended"
	case FileEnded:
		return "file_ended"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Outcome tells the driver what a stage did with its input.
type Outcome int

const (
	// Suppress means there is nothing to pass on.
	Suppress Outcome = iota
	// Emit means Result.Entry goes to the next stage.
	Emit
	// Terminate means the stream is overdue and no more input should be read.
	Terminate
)

// String implements fmt.Stringer
func (o Outcome) String() string {
	switch o {
	case Suppress:
		return "suppress"
	case Emit:
		return "emit"
	case Terminate:
		return "terminate"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the tagged answer of a stage.
type Result struct {
	Outcome Outcome
	// Entry is set for Emit.
	Entry string
	// Overdue holds the formatted timestamp that passed the upper bound, for Terminate.
	Overdue string
}

// Emitted returns a Result passing entry on
func Emitted(entry string) Result {
	return Result{Outcome: Emit, Entry: entry}
}

// Suppressed returns a Result that passes nothing on
func Suppressed() Result {
	return Result{Outcome: Suppress}
}

// Terminated returns a Result signalling that the stream is overdue
func Terminated(overdue string) Result {
	return Result{Outcome: Terminate, Overdue: overdue}
}

// Filter is the contract every pipeline stage implements
type Filter interface {
	// Filter processes one line or entry
	Filter(entry string) (Result, error)
	// OnEvent handles a lifecycle event; unknown kinds are ignored
	OnEvent(ev Event) (Result, error)
	// Flush discards buffered or latched state without producing output
	Flush()
	// IsStateful reports whether the stage carries state across calls
	IsStateful() bool
	// Name returns the stage name used in logs and metrics
	Name() string
}

// Refreshable is implemented by stages that can be (re)configured from a
// filter configuration library.
type Refreshable interface {
	// Bind configures the stage from configID. It returns false, leaving the
	// stage untouched, when the id is already bound, the stage is locked,
	// no source is attached, or the id cannot be bound.
	Bind(configID string) (bool, error)
	// Configure is the strict form of Bind and returns binding errors.
	Configure(configID string) error
	// ExportConfig serializes the current parameters under configID, or
	// under the bound id when configID is empty.
	ExportConfig(configID string) (*config.FilterSet, error)
	// SetSource replaces the configuration library and drops the binding.
	SetSource(src config.Source)
	// ConfigID returns the bound config id, if any.
	ConfigID() string
	// Lock prevents further Bind calls from changing the stage.
	Lock()
}
