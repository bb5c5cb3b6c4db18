package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mariasu11/grepstream/internal/collector"
	"github.com/mariasu11/grepstream/internal/config"
	"github.com/mariasu11/grepstream/internal/filter"
)

// memCollector serves a fixed body
type memCollector struct {
	name string
	body string
	err  error
}

func (c *memCollector) Open(ctx context.Context) (io.ReadCloser, error) {
	if c.err != nil {
		return nil, c.err
	}
	return io.NopCloser(strings.NewReader(c.body)), nil
}

func (c *memCollector) Name() string {
	return c.name
}

func (c *memCollector) Source() string {
	return "mem://" + c.name
}

// gatedCollector holds its body back until the run is cancelled or the
// delay passes
type gatedCollector struct {
	memCollector
	delay time.Duration
}

func (c *gatedCollector) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.delay):
	}
	return c.memCollector.Open(ctx)
}

// readerCollector serves whatever reader it holds
type readerCollector struct {
	memCollector
	r io.Reader
}

func (c *readerCollector) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(c.r), nil
}

// callReader runs fn on its first read and then reports EOF
type callReader struct {
	fn func()
}

func (r *callReader) Read(p []byte) (int, error) {
	if r.fn != nil {
		r.fn()
		r.fn = nil
	}
	return 0, io.EOF
}

func writeLog(t *testing.T, dir, name string, lines ...string) collector.Collector {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	c, err := collector.NewFileCollector(path)
	require.NoError(t, err)
	return c
}

func TestRunnerSequential(t *testing.T) {
	dir := t.TempDir()
	sources := []collector.Collector{
		writeLog(t, dir, "a.log", "#1", "a", "#2"),
		writeLog(t, dir, "b.log", "dangling", "#3", "b"),
	}

	r := NewRunner(NewBuilder(nil, nil, nil), Options{EntryPattern: "^#"}, nil)
	var out bytes.Buffer
	report, err := r.Run(context.Background(), sources, &out)
	require.NoError(t, err)

	// Entries never span sources
	assert.Equal(t, "#1\na\n#2\n#3\nb\n", out.String())
	require.Len(t, report.Sources, 2)
	assert.Equal(t, 2, report.Sources[0].Entries)
	assert.Equal(t, 1, report.Sources[1].Entries)
	assert.Equal(t, 3, report.Entries())
	assert.Equal(t, sources[0].Source(), report.Sources[0].Source)
}

func TestRunnerWithFilename(t *testing.T) {
	sources := []collector.Collector{
		&memCollector{name: "one", body: "x\ny\n"},
		&memCollector{name: "two", body: "z\n"},
	}

	r := NewRunner(NewBuilder(nil, nil, nil), Options{}, nil, WithFilename(true))
	var out bytes.Buffer
	_, err := r.Run(context.Background(), sources, &out)
	require.NoError(t, err)

	assert.Equal(t, "one:x\none:y\ntwo:z\n", out.String())
}

func TestRunnerOverdueStopsOnlyItsSource(t *testing.T) {
	sources := []collector.Collector{
		&memCollector{name: "old", body: "2024-01-01 a\n2024-02-01 late\n2024-01-02 unread\n"},
		&memCollector{name: "new", body: "2024-01-03 b\n"},
	}
	opts := Options{
		DateRegex:  `^(\d{4}-\d{2}-\d{2})`,
		DateFormat: "yyyy-MM-dd",
		To:         utc("2024-01-31"),
	}

	r := NewRunner(NewBuilder(nil, nil, nil), opts, nil)
	var out bytes.Buffer
	report, err := r.Run(context.Background(), sources, &out)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01 a\n2024-01-03 b\n", out.String())
	assert.True(t, report.Sources[0].Terminated)
	assert.Equal(t, "2024-02-01", report.Sources[0].Overdue)
	assert.Equal(t, 2, report.Sources[0].Lines)
	assert.False(t, report.Sources[1].Terminated)
}

func TestRunnerConcurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	var sources []collector.Collector
	var want []string
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		sources = append(sources, &memCollector{name: name, body: "ERROR " + name + "\nINFO " + name + "\n"})
		want = append(want, name+":ERROR "+name)
	}

	r := NewRunner(NewBuilder(nil, nil, nil), Options{Pattern: "ERROR"}, nil, WithWorkers(3), WithFilename(true))
	var out bytes.Buffer
	report, err := r.Run(context.Background(), sources, &out)
	require.NoError(t, err)

	got := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	sort.Strings(got)
	assert.Equal(t, want, got)
	assert.Equal(t, 5, report.Entries())

	// Summaries keep the order of the sources
	for i, s := range report.Sources {
		assert.Equal(t, sources[i].Source(), s.Source)
		assert.Equal(t, 2, s.Lines)
	}
}

func TestRunnerSourceErrors(t *testing.T) {
	boom := errors.New("unreachable")
	sources := []collector.Collector{
		&memCollector{name: "bad", err: boom},
		&memCollector{name: "good", body: "ok\n"},
	}

	for _, workers := range []int{1, 2} {
		r := NewRunner(NewBuilder(nil, nil, nil), Options{}, nil, WithWorkers(workers))
		var out bytes.Buffer
		report, err := r.Run(context.Background(), sources, &out)

		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "mem://bad")
		assert.Equal(t, "ok\n", out.String(), "workers=%d", workers)
		assert.ErrorIs(t, report.Sources[0].Err, boom)
		assert.NoError(t, report.Sources[1].Err)
	}
}

func TestRunnerStopsOnFilterError(t *testing.T) {
	opts := Options{
		DateRegex:  `^(\d{4}-\d{2}-\d{2})`,
		DateFormat: "yyyy-MM-dd",
		From:       utc("2020-01-01"),
	}

	for _, workers := range []int{1, 2} {
		sources := []collector.Collector{
			&memCollector{name: "bad", body: "2020-13-45 bad date\n"},
			&gatedCollector{memCollector: memCollector{name: "good", body: "2020-01-15 good\n"}, delay: 2 * time.Second},
		}

		r := NewRunner(NewBuilder(nil, nil, nil), opts, nil, WithWorkers(workers))
		var out bytes.Buffer
		report, err := r.Run(context.Background(), sources, &out)

		require.Error(t, err, "workers=%d", workers)
		assert.ErrorIs(t, err, filter.ErrDateParse)
		assert.Contains(t, err.Error(), "mem://bad")
		assert.NotContains(t, out.String(), "good", "workers=%d", workers)
		assert.Zero(t, report.Sources[1].Entries)
	}
}

func TestRunnerReload(t *testing.T) {
	fs := config.NewFilterSet()
	fs.FilterAliases["app"] = "ERROR"
	next := config.NewFilterSet()
	next.FilterAliases["app"] = "WARN"

	for _, workers := range []int{1, 2} {
		r := NewRunner(NewBuilder(fs, nil, nil), Options{ConfigID: "app"}, nil, WithWorkers(workers))

		// The filter set changes between the first and the second line
		body := io.MultiReader(
			strings.NewReader("ERROR a\n"),
			&callReader{fn: func() { r.Reload(next) }},
			strings.NewReader("ERROR b\nWARN c\n"),
		)
		sources := []collector.Collector{
			&readerCollector{memCollector: memCollector{name: "live"}, r: body},
		}

		var out bytes.Buffer
		_, err := r.Run(context.Background(), sources, &out)
		require.NoError(t, err)
		assert.Equal(t, "ERROR a\nWARN c\n", out.String(), "workers=%d", workers)
	}
}

func TestRunnerBuildError(t *testing.T) {
	r := NewRunner(NewBuilder(nil, nil, nil), Options{ConfigID: "missing"}, nil, WithWorkers(2))
	_, err := r.Run(context.Background(), []collector.Collector{
		&memCollector{name: "a"},
		&memCollector{name: "b"},
	}, io.Discard)
	assert.ErrorIs(t, err, filter.ErrConfigNotFound)
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(NewBuilder(nil, nil, nil), Options{}, nil)
	_, err := r.Run(ctx, []collector.Collector{&memCollector{name: "a", body: "x\n"}}, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}
