package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/mariasu11/grepstream/internal/collector"
	"github.com/mariasu11/grepstream/internal/config"
	"github.com/mariasu11/grepstream/internal/filter"
	"github.com/mariasu11/grepstream/pkg/worker"
)

// SourceSummary is the summary of one source
type SourceSummary struct {
	Source string `json:"source"`
	Summary
	Err error `json:"-"`
}

// Report collects the summaries of a multi-source run
type Report struct {
	Sources []SourceSummary
}

// Entries returns the number of entries written over all sources
func (r Report) Entries() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Entries
	}
	return n
}

// Runner feeds a list of sources through pipelines and writes the entries
// to one writer. Each source is its own chunk: a stream that goes overdue
// stops only that source.
type Runner struct {
	builder      *Builder
	opts         Options
	workers      int
	withFilename bool
	logger       hclog.Logger

	mu     sync.Mutex
	live   map[*Pipeline]struct{}
	latest config.Source
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithWorkers sets how many sources are processed at once. With more than
// one worker entries of different sources interleave and the output order
// is nondeterministic.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithFilename prefixes each written entry with its source name
func WithFilename(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.withFilename = enabled
	}
}

// NewRunner creates a runner building its pipelines with b
func NewRunner(b *Builder, opts Options, logger hclog.Logger, ropts ...RunnerOption) *Runner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	r := &Runner{
		builder: b,
		opts:    opts,
		workers: 1,
		logger:  logger.Named("runner"),
		live:    make(map[*Pipeline]struct{}),
	}
	for _, opt := range ropts {
		opt(r)
	}
	return r
}

// Run processes every source and writes the passing entries to w. A
// source that cannot be opened or read is recorded in the report and the
// others continue; the returned error joins the failures. A filter error
// (bad timestamp, illegal state, invalid argument) stops the whole run.
func (r *Runner) Run(ctx context.Context, sources []collector.Collector, w io.Writer) (Report, error) {
	out := &lockedSink{sink: NewWriterSink(w)}
	report := Report{Sources: make([]SourceSummary, len(sources))}

	var err error
	if r.workers == 1 || len(sources) < 2 {
		err = r.runSequential(ctx, sources, out, report.Sources)
	} else {
		err = r.runConcurrent(ctx, sources, out, report.Sources)
	}

	if ferr := out.Flush(); ferr != nil && err == nil {
		err = fmt.Errorf("failed to write output: %w", ferr)
	}
	if err != nil {
		return report, err
	}

	var errs []error
	for _, s := range report.Sources {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Source, s.Err))
		}
	}
	return report, errors.Join(errs...)
}

// Reload passes a new filter set to the pipelines of a run in progress and
// to those built later in it. Stages bound to the run's config id pick it
// up before their next line.
func (r *Runner) Reload(src config.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latest = src
	for p := range r.live {
		p.Reload(src)
	}
	r.logger.Debug("Filter set handed to pipelines", "pipelines", len(r.live))
}

func (r *Runner) track(p *Pipeline) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.live[p] = struct{}{}
	if r.latest != nil {
		p.Reload(r.latest)
	}
	return func() {
		r.mu.Lock()
		delete(r.live, p)
		r.mu.Unlock()
	}
}

// runSequential shares one pipeline between all sources, flushing it
// between them
func (r *Runner) runSequential(ctx context.Context, sources []collector.Collector, out *lockedSink, results []SourceSummary) error {
	p, err := r.builder.Build(r.opts)
	if err != nil {
		return err
	}
	defer r.track(p)()

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		results[i] = r.runSource(ctx, p, src, out)
		p.Flush()
		if isFatal(results[i].Err) {
			return fmt.Errorf("%s: %w", results[i].Source, results[i].Err)
		}
	}
	return nil
}

// runConcurrent gives every source its own pipeline on the worker pool
func (r *Runner) runConcurrent(ctx context.Context, sources []collector.Collector, out *lockedSink, results []SourceSummary) error {
	// Build once up front so configuration errors surface before any work
	if _, err := r.builder.Build(r.opts); err != nil {
		return err
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		fatalOnce sync.Once
		fatalErr  error
	)

	pool := worker.NewPool(r.workers)
	pool.Start(ctx)

	var submitErr error
	for i, src := range sources {
		i, src := i, src
		err := pool.Submit(ctx, func(ctx context.Context) error {
			p, err := r.builder.Build(r.opts)
			if err != nil {
				results[i] = SourceSummary{Source: src.Source(), Err: err}
				return err
			}
			defer r.track(p)()
			results[i] = r.runSource(ctx, p, src, out)
			if isFatal(results[i].Err) {
				fatalOnce.Do(func() {
					fatalErr = fmt.Errorf("%s: %w", results[i].Source, results[i].Err)
					cancel()
				})
			}
			return results[i].Err
		})
		if err != nil {
			submitErr = err
			break
		}
	}

	pool.Stop(context.Background())
	if fatalErr != nil {
		return fatalErr
	}
	if submitErr != nil {
		return submitErr
	}
	return parent.Err()
}

// isFatal reports whether err comes from a filter rather than from opening
// or reading a source
func isFatal(err error) bool {
	return errors.Is(err, filter.ErrDateParse) ||
		errors.Is(err, filter.ErrIllegalState) ||
		errors.Is(err, filter.ErrInvalidArgument)
}

func (r *Runner) runSource(ctx context.Context, p *Pipeline, src collector.Collector, out *lockedSink) SourceSummary {
	result := SourceSummary{Source: src.Source()}
	logger := r.logger.With("source", src.Source())

	rc, err := src.Open(ctx)
	if err != nil {
		logger.Error("Failed to open source", "error", err)
		result.Err = err
		return result
	}
	defer rc.Close()

	prefix := ""
	if r.withFilename {
		prefix = src.Name() + ":"
	}

	summary, err := p.Run(ctx, rc, SinkFunc(func(entry string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return out.Emit(prefix + entry)
	}))
	result.Summary = summary
	if err != nil {
		logger.Error("Source failed", "error", err, "lines", summary.Lines)
		result.Err = err
		return result
	}

	if summary.Terminated {
		logger.Info("Source overdue", "overdue", summary.Overdue, "lines", summary.Lines, "entries", summary.Entries)
	} else {
		logger.Debug("Source done", "lines", summary.Lines, "entries", summary.Entries)
	}
	return result
}

// lockedSink serializes entries of concurrent pipelines
type lockedSink struct {
	mu   sync.Mutex
	sink *WriterSink
}

// Emit implements Sink
func (s *lockedSink) Emit(entry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.Emit(entry)
}

// Flush writes out buffered entries
func (s *lockedSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.Flush()
}
