package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariasu11/grepstream/internal/config"
	"github.com/mariasu11/grepstream/internal/filter"
)

const testFilters = `
savedConfigs:
  app:
    starter: '^\['
    dateFormat:
      regex: '(\d{4}-\d{2}-\d{2})'
      value: yyyy-MM-dd
  plain:
    starter: '^>'
logDateFormats:
  syslog:
    regex: '^(\w{3} \d{2})'
    value: MMM dd
filterAliases:
  app: ERROR%or%WARN
  errors: ERROR
`

func testSource(t *testing.T) *config.FilterSet {
	t.Helper()
	fs, err := config.ParseFilterSet([]byte(testFilters))
	require.NoError(t, err)
	return fs
}

func stageNames(p *Pipeline) []string {
	var names []string
	for _, s := range p.Stages() {
		names = append(names, s.Name())
	}
	return names
}

func TestBuilderBuild(t *testing.T) {
	b := NewBuilder(testSource(t), nil, nil)
	from := utc("2024-01-02")

	tests := []struct {
		name   string
		opts   Options
		stages []string
	}{
		{
			name: "no options",
			opts: Options{},
		},
		{
			name:   "config id without bounds",
			opts:   Options{ConfigID: "app"},
			stages: []string{"entry", "pattern"},
		},
		{
			name:   "config id with bounds",
			opts:   Options{ConfigID: "app", From: from},
			stages: []string{"entry", "pattern", "date"},
		},
		{
			name:   "alias only",
			opts:   Options{ConfigID: "errors"},
			stages: []string{"pattern"},
		},
		{
			name:   "date format only",
			opts:   Options{ConfigID: "syslog", From: from},
			stages: []string{"date"},
		},
		{
			name:   "explicit values",
			opts:   Options{EntryPattern: "^x", Pattern: "y", From: from, DateRegex: "^(.{10})", DateFormat: "yyyy-MM-dd"},
			stages: []string{"entry", "pattern", "date"},
		},
		{
			name:   "explicit pattern over alias",
			opts:   Options{ConfigID: "plain", Pattern: "z"},
			stages: []string{"entry", "pattern"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := b.Build(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.stages, stageNames(p))
		})
	}
}

func TestBuilderBuildErrors(t *testing.T) {
	b := NewBuilder(testSource(t), nil, nil)

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"unknown config id", Options{ConfigID: "nope"}, filter.ErrConfigNotFound},
		{"bad entry pattern", Options{EntryPattern: "("}, filter.ErrInvalidArgument},
		{"bad pattern", Options{Pattern: "%and%"}, filter.ErrInvalidArgument},
		{"bad date regex", Options{From: utc("2024-01-01"), DateRegex: "no group", DateFormat: "yyyy"}, filter.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(tt.opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuilderPipelineFromConfig(t *testing.T) {
	b := NewBuilder(testSource(t), nil, nil)
	p, err := b.Build(Options{
		ConfigID: "app",
		From:     utc("2024-01-02"),
		Location: time.UTC,
	})
	require.NoError(t, err)

	input := strings.Join([]string{
		"[2024-01-01] ERROR old",
		"[2024-01-02] INFO skipped",
		"[2024-01-02] WARN disk",
		"  almost full",
		"[2024-01-03] ERROR boom",
	}, "\n")

	sink := NewSliceSink(0)
	_, err = p.Run(context.Background(), strings.NewReader(input), sink)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"[2024-01-02] WARN disk\n  almost full",
		"[2024-01-03] ERROR boom",
	}, sink.Entries)
}

func TestBuilderExport(t *testing.T) {
	b := NewBuilder(testSource(t), nil, nil)

	t.Run("AllParts", func(t *testing.T) {
		fs, err := b.Export("app")
		require.NoError(t, err)

		sc, ok := fs.SavedConfig("app")
		require.True(t, ok)
		assert.Equal(t, `^\[`, sc.Starter)
		require.NotNil(t, sc.DateFormat)
		assert.Equal(t, config.DateFormat{Regex: `(\d{4}-\d{2}-\d{2})`, Value: "yyyy-MM-dd"}, *sc.DateFormat)

		alias, ok := fs.FilterAlias("app")
		require.True(t, ok)
		assert.Equal(t, "ERROR%or%WARN", alias)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		fs, err := b.Export("app")
		require.NoError(t, err)
		data, err := fs.Marshal()
		require.NoError(t, err)

		again, err := config.ParseFilterSet(data)
		require.NoError(t, err)
		fs2, err := NewBuilder(again, nil, nil).Export("app")
		require.NoError(t, err)
		assert.Equal(t, fs, fs2)
	})

	t.Run("DateFormatOnly", func(t *testing.T) {
		fs, err := b.Export("syslog")
		require.NoError(t, err)

		df, ok := fs.LogDateFormat("syslog")
		require.True(t, ok)
		assert.Equal(t, "MMM dd", df.Value)
		_, ok = fs.FilterAlias("syslog")
		assert.False(t, ok)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := b.Export("nope")
		assert.ErrorIs(t, err, filter.ErrConfigNotFound)
	})

	t.Run("EmptyID", func(t *testing.T) {
		_, err := b.Export("")
		assert.ErrorIs(t, err, filter.ErrInvalidArgument)
	})
}
