package pipeline

import (
	"bufio"
	"errors"
	"io"
)

// ErrSinkFull is returned by a SliceSink that reached its limit
var ErrSinkFull = errors.New("sink is full")

// Sink receives the entries leaving a pipeline
type Sink interface {
	Emit(entry string) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(entry string) error

// Emit implements Sink
func (f SinkFunc) Emit(entry string) error {
	return f(entry)
}

// WriterSink writes each entry followed by a newline
type WriterSink struct {
	w *bufio.Writer
}

// NewWriterSink creates a buffered sink over w; call Flush when done
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: bufio.NewWriter(w)}
}

// Emit implements Sink
func (s *WriterSink) Emit(entry string) error {
	if _, err := s.w.WriteString(entry); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

// Flush writes out buffered entries
func (s *WriterSink) Flush() error {
	return s.w.Flush()
}

// SliceSink collects entries in memory
type SliceSink struct {
	Entries []string
	limit   int
}

// NewSliceSink creates a sink keeping at most limit entries; 0 means no limit
func NewSliceSink(limit int) *SliceSink {
	return &SliceSink{limit: limit}
}

// Emit implements Sink
func (s *SliceSink) Emit(entry string) error {
	if s.limit > 0 && len(s.Entries) >= s.limit {
		return ErrSinkFull
	}
	s.Entries = append(s.Entries, entry)
	return nil
}
