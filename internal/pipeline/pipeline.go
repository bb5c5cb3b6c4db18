// Package pipeline drives lines through a fixed sequence of filter stages.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mariasu11/grepstream/internal/config"
	"github.com/mariasu11/grepstream/internal/filter"
	"github.com/mariasu11/grepstream/internal/metrics"
)

// MaxLineSize is the longest input line a pipeline accepts
const MaxLineSize = 4 << 20

// Summary describes one run of a pipeline over a chunk
type Summary struct {
	Lines      int    `json:"lines"`
	Entries    int    `json:"entries"`
	Terminated bool   `json:"terminated"`
	Overdue    string `json:"overdue,omitempty"`
}

// Pipeline feeds lines to its first stage and routes every emitted entry to
// the next stage, in order. Entries leaving the last stage go to the sink.
// A pipeline is not safe for concurrent use, except for Reload.
type Pipeline struct {
	stages   []filter.Filter
	logger   hclog.Logger
	metrics  *metrics.Metrics
	summary  Summary
	configID string

	mu      sync.Mutex
	pending config.Source
}

// New creates a pipeline over stages
func New(logger hclog.Logger, m *metrics.Metrics, stages ...filter.Filter) *Pipeline {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if m == nil {
		m = metrics.GetMetrics()
	}
	return &Pipeline{
		stages:  stages,
		logger:  logger.Named("pipeline"),
		metrics: m,
	}
}

// Stages returns the stages in order
func (p *Pipeline) Stages() []filter.Filter {
	return p.stages
}

// Summary returns the counters of the current or last run
func (p *Pipeline) Summary() Summary {
	return p.summary
}

// Push runs one line through the pipeline. It returns false once the
// stream is overdue; the caller must stop feeding lines then.
func (p *Pipeline) Push(line string, sink Sink) (bool, error) {
	if err := p.applyReload(); err != nil {
		return false, err
	}
	p.summary.Lines++
	p.metrics.LinesRead.Inc()
	return p.route(0, line, sink)
}

// EndChunk delivers ChunkEnded to every stage in order. Whatever a stage
// releases on the event is routed through the stages after it, so an entry
// buffered by the first stage still gets matched and date checked.
func (p *Pipeline) EndChunk(sink Sink) (bool, error) {
	return p.broadcast(filter.ChunkEnded, sink)
}

// Run reads r line by line until EOF, ctx is done or the stream is overdue.
// An overdue stream is not an error: the summary reports it and the stages
// are flushed so the pipeline can take the next chunk.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, sink Sink) (Summary, error) {
	start := time.Now()
	p.summary = Summary{}

	if _, err := p.broadcast(filter.ChunkStarted, sink); err != nil {
		return p.summary, err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return p.summary, err
		}

		more, err := p.Push(scanner.Text(), sink)
		if err != nil {
			return p.summary, err
		}
		if !more {
			p.terminate()
			return p.summary, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return p.summary, fmt.Errorf("failed to read input: %w", err)
	}

	more, err := p.EndChunk(sink)
	if err != nil {
		return p.summary, err
	}
	if !more {
		p.terminate()
		return p.summary, nil
	}

	p.metrics.ChunksProcessed.Inc()
	p.metrics.ChunkProcessingTime.Observe(time.Since(start).Seconds())
	p.logger.Debug("Chunk processed", "lines", p.summary.Lines, "entries", p.summary.Entries, "duration", time.Since(start).String())
	return p.summary, nil
}

// Flush discards the state of every stage
func (p *Pipeline) Flush() {
	for _, stage := range p.stages {
		stage.Flush()
	}
}

// Refresh binds every refreshable stage to configID. It reports whether
// any stage changed. Ids a stage can't bind leave that stage as it was.
func (p *Pipeline) Refresh(configID string) (bool, error) {
	refreshed := false
	for _, stage := range p.stages {
		r, ok := stage.(filter.Refreshable)
		if !ok {
			continue
		}
		changed, err := r.Bind(configID)
		if err != nil {
			p.metrics.ConfigRefreshes.WithLabelValues("error").Inc()
			return refreshed, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		refreshed = refreshed || changed
	}

	if refreshed {
		p.metrics.ConfigRefreshes.WithLabelValues("refreshed").Inc()
		p.logger.Info("Pipeline refreshed", "config_id", configID)
	} else {
		p.metrics.ConfigRefreshes.WithLabelValues("unchanged").Inc()
	}
	return refreshed, nil
}

// SetSource attaches src to every refreshable stage that already has a
// binding, dropping the binding so the next Refresh applies src
func (p *Pipeline) SetSource(src config.Source) {
	for _, stage := range p.stages {
		if r, ok := stage.(filter.Refreshable); ok && r.ConfigID() != "" {
			r.SetSource(src)
		}
	}
}

// ConfigID returns the config id the pipeline was built for, or ""
func (p *Pipeline) ConfigID() string {
	return p.configID
}

// Reload hands a new configuration source to the pipeline. It is applied
// before the next line is pushed: bound stages move to src and are
// refreshed with the pipeline's config id. Reload may be called from any
// goroutine; only the latest source is kept.
func (p *Pipeline) Reload(src config.Source) {
	p.mu.Lock()
	p.pending = src
	p.mu.Unlock()
}

func (p *Pipeline) applyReload() error {
	p.mu.Lock()
	src := p.pending
	p.pending = nil
	p.mu.Unlock()

	if src == nil || p.configID == "" {
		return nil
	}
	p.SetSource(src)
	if _, err := p.Refresh(p.configID); err != nil {
		return err
	}
	return nil
}

// Export merges the configuration of every refreshable stage under
// configID, or under each stage's bound id when configID is empty
func (p *Pipeline) Export(configID string) (*config.FilterSet, error) {
	fs := config.NewFilterSet()
	for _, stage := range p.stages {
		r, ok := stage.(filter.Refreshable)
		if !ok {
			continue
		}
		part, err := r.ExportConfig(configID)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}
		fs.Merge(part)
	}
	return fs, nil
}

// route runs entry through the stages starting at from
func (p *Pipeline) route(from int, entry string, sink Sink) (bool, error) {
	for i := from; i < len(p.stages); i++ {
		stage := p.stages[i]
		res, err := stage.Filter(entry)
		if err != nil {
			p.metrics.PipelineErrors.WithLabelValues(stage.Name()).Inc()
			return false, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		switch res.Outcome {
		case filter.Emit:
			entry = res.Entry
		case filter.Suppress:
			p.metrics.EntriesSuppressed.WithLabelValues(stage.Name()).Inc()
			return true, nil
		case filter.Terminate:
			p.summary.Terminated = true
			p.summary.Overdue = res.Overdue
			return false, nil
		default:
			return false, fmt.Errorf("stage %s: unknown outcome %v", stage.Name(), res.Outcome)
		}
	}

	if err := sink.Emit(entry); err != nil {
		return false, fmt.Errorf("failed to emit entry: %w", err)
	}
	p.summary.Entries++
	p.metrics.EntriesEmitted.Inc()
	return true, nil
}

// broadcast delivers ev to every stage. Once the stream is overdue the
// remaining stages still see the event but nothing more is emitted.
func (p *Pipeline) broadcast(ev filter.Event, sink Sink) (bool, error) {
	more := true
	for i, stage := range p.stages {
		res, err := stage.OnEvent(ev)
		if err != nil {
			p.metrics.PipelineErrors.WithLabelValues(stage.Name()).Inc()
			return false, fmt.Errorf("stage %s on %s: %w", stage.Name(), ev, err)
		}

		switch res.Outcome {
		case filter.Emit:
			if !more {
				continue
			}
			ok, err := p.route(i+1, res.Entry, sink)
			if err != nil {
				return false, err
			}
			more = ok
		case filter.Terminate:
			p.summary.Terminated = true
			p.summary.Overdue = res.Overdue
			more = false
		}
	}
	return more, nil
}

func (p *Pipeline) terminate() {
	p.metrics.StreamsTerminated.Inc()
	p.logger.Info("Upper time bound passed, stopping stream", "overdue", p.summary.Overdue, "lines", p.summary.Lines)
	p.Flush()
}
