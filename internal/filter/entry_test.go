package filter_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mariasu11/grepstream/internal/config"
	"github.com/mariasu11/grepstream/internal/filter"
)

// feed runs lines through f and returns every emitted entry, including the
// one released by ChunkEnded
func feed(t *testing.T, f filter.Filter, lines ...string) []string {
	t.Helper()

	var out []string
	for _, line := range lines {
		res, err := f.Filter(line)
		require.NoError(t, err)
		if res.Outcome == filter.Emit {
			out = append(out, res.Entry)
		}
	}
	res, err := f.OnEvent(filter.ChunkEnded)
	require.NoError(t, err)
	if res.Outcome == filter.Emit {
		out = append(out, res.Entry)
	}
	return out
}

func TestEntryFilter(t *testing.T) {
	t.Run("GroupsContinuationLines", func(t *testing.T) {
		f, err := filter.NewEntryFilter(`^\d{4}-`, nil)
		require.NoError(t, err)

		entries := feed(t, f,
			"2024-01-01 ERROR boom",
			"  at com.acme.Foo",
			"  at com.acme.Bar",
			"2024-01-01 INFO ok",
		)

		assert.Equal(t, []string{
			"2024-01-01 ERROR boom\n  at com.acme.Foo\n  at com.acme.Bar",
			"2024-01-01 INFO ok",
		}, entries)
	})

	t.Run("DropsLinesBeforeFirstBoundary", func(t *testing.T) {
		f, err := filter.NewEntryFilter(`^\[`, nil)
		require.NoError(t, err)

		entries := feed(t, f, "orphan", "another orphan", "[1] first", "tail")
		assert.Equal(t, []string{"[1] first\ntail"}, entries)
	})

	t.Run("KeepsEmptyLines", func(t *testing.T) {
		f, err := filter.NewEntryFilter(`^#`, nil)
		require.NoError(t, err)

		entries := feed(t, f, "#a", "", "", "#b", "")
		assert.Equal(t, []string{"#a\n\n", "#b\n"}, entries)
	})

	t.Run("TransitionOutcomes", func(t *testing.T) {
		f, err := filter.NewEntryFilter(`^S`, nil)
		require.NoError(t, err)

		res, err := f.Filter("x")
		require.NoError(t, err)
		assert.Equal(t, filter.Suppress, res.Outcome)
		assert.False(t, f.Open())

		res, err = f.Filter("S1")
		require.NoError(t, err)
		assert.Equal(t, filter.Suppress, res.Outcome)
		assert.True(t, f.Open())

		res, err = f.Filter("c")
		require.NoError(t, err)
		assert.Equal(t, filter.Suppress, res.Outcome)

		res, err = f.Filter("S2")
		require.NoError(t, err)
		assert.Equal(t, filter.Emitted("S1\nc"), res)
		assert.True(t, f.Open())
	})

	t.Run("ChunkEndedWhenIdle", func(t *testing.T) {
		f, err := filter.NewEntryFilter(`^S`, nil)
		require.NoError(t, err)

		res, err := f.OnEvent(filter.ChunkEnded)
		require.NoError(t, err)
		assert.Equal(t, filter.Suppress, res.Outcome)
	})

	t.Run("ChunkEndedResetsState", func(t *testing.T) {
		f, err := filter.NewEntryFilter(`^S`, nil)
		require.NoError(t, err)

		_, err = f.Filter("S1")
		require.NoError(t, err)
		res, err := f.OnEvent(filter.ChunkEnded)
		require.NoError(t, err)
		assert.Equal(t, filter.Emitted("S1"), res)
		assert.False(t, f.Open())

		// A continuation line after the chunk ended belongs to nothing
		res, err = f.Filter("tail")
		require.NoError(t, err)
		assert.Equal(t, filter.Suppress, res.Outcome)
	})

	t.Run("OtherEventsAreIgnored", func(t *testing.T) {
		f, err := filter.NewEntryFilter(`^S`, nil)
		require.NoError(t, err)
		_, err = f.Filter("S1")
		require.NoError(t, err)

		for _, ev := range []filter.Event{filter.ChunkStarted, filter.FileEnded} {
			res, err := f.OnEvent(ev)
			require.NoError(t, err)
			assert.Equal(t, filter.Suppress, res.Outcome)
		}
		assert.True(t, f.Open())
	})

	t.Run("FlushDropsBuffer", func(t *testing.T) {
		f, err := filter.NewEntryFilter(`^S`, nil)
		require.NoError(t, err)

		_, err = f.Filter("S1")
		require.NoError(t, err)
		f.Flush()

		assert.Empty(t, feed(t, f, "continuation"))
	})

	t.Run("Reconstruction", func(t *testing.T) {
		f, err := filter.NewEntryFilter(`^S`, nil)
		require.NoError(t, err)

		lines := []string{"junk", "S1", "a", "", "S2", "S3", "b", "c"}
		entries := feed(t, f, lines...)

		// Every line from the first boundary on comes back, in order
		assert.Equal(t, strings.Join(lines[1:], "\n"), strings.Join(entries, "\n"))
	})

	t.Run("InvalidBoundary", func(t *testing.T) {
		_, err := filter.NewEntryFilter("", nil)
		assert.ErrorIs(t, err, filter.ErrInvalidArgument)

		_, err = filter.NewEntryFilter("(", nil)
		assert.ErrorIs(t, err, filter.ErrInvalidArgument)
	})

	t.Run("NotConfigured", func(t *testing.T) {
		f, err := filter.NewEntryFilterFromConfig(config.NewFilterSet(), "missing", nil)
		assert.ErrorIs(t, err, filter.ErrConfigNotFound)
		assert.Nil(t, f)
	})

	t.Run("IsStateful", func(t *testing.T) {
		f, err := filter.NewEntryFilter(`^S`, nil)
		require.NoError(t, err)
		assert.True(t, f.IsStateful())
		assert.Equal(t, "entry", f.Name())
	})
}

func TestEntryFilterFromConfig(t *testing.T) {
	fs := config.NewFilterSet()
	fs.SavedConfigs["app"] = &config.SavedConfig{
		Starter:    `^\[`,
		DateFormat: &config.DateFormat{Regex: `(\d{4}-\d{2}-\d{2})`, Value: "yyyy-MM-dd"},
	}
	fs.SavedConfigs["plain"] = &config.SavedConfig{Starter: "^>"}
	fs.SavedConfigs["dateonly"] = &config.SavedConfig{
		DateFormat: &config.DateFormat{Regex: `^(\d{2}:\d{2})`, Value: "HH:mm"},
	}
	fs.SavedConfigs["empty"] = &config.SavedConfig{}

	t.Run("StarterAndDateRegex", func(t *testing.T) {
		f, err := filter.NewEntryFilterFromConfig(fs, "app", nil)
		require.NoError(t, err)
		assert.Equal(t, `^\[(\d{4}-\d{2}-\d{2})`, f.Boundary())
		assert.Equal(t, "app", f.ConfigID())

		entries := feed(t, f, "[2024-01-02] a", "b", "[x] not a boundary", "[2024-01-03] c")
		assert.Equal(t, []string{"[2024-01-02] a\nb\n[x] not a boundary", "[2024-01-03] c"}, entries)
	})

	t.Run("StarterOnly", func(t *testing.T) {
		f, err := filter.NewEntryFilterFromConfig(fs, "plain", nil)
		require.NoError(t, err)
		assert.Equal(t, "^>", f.Boundary())
	})

	t.Run("DateRegexOnly", func(t *testing.T) {
		f, err := filter.NewEntryFilterFromConfig(fs, "dateonly", nil)
		require.NoError(t, err)
		assert.Equal(t, `^(\d{2}:\d{2})`, f.Boundary())
	})

	t.Run("NeitherStarterNorDateRegex", func(t *testing.T) {
		_, err := filter.NewEntryFilterFromConfig(fs, "empty", nil)
		assert.ErrorIs(t, err, filter.ErrPropertyMissing)
	})

	t.Run("Export", func(t *testing.T) {
		f, err := filter.NewEntryFilterFromConfig(fs, "app", nil)
		require.NoError(t, err)

		out, err := f.ExportConfig("")
		require.NoError(t, err)
		sc, ok := out.SavedConfig("app")
		require.True(t, ok)
		assert.Equal(t, `^\[`, sc.Starter)
		require.NotNil(t, sc.DateFormat)
		assert.Equal(t, `(\d{4}-\d{2}-\d{2})`, sc.DateFormat.Regex)

		out, err = f.ExportConfig("copy")
		require.NoError(t, err)
		_, ok = out.SavedConfig("copy")
		assert.True(t, ok)
	})

	t.Run("SetBoundaryDropsBinding", func(t *testing.T) {
		f, err := filter.NewEntryFilterFromConfig(fs, "app", nil)
		require.NoError(t, err)

		require.NoError(t, f.SetBoundary("^>"))
		assert.Equal(t, "", f.ConfigID())
		_, err = f.ExportConfig("")
		assert.ErrorIs(t, err, filter.ErrInvalidArgument)

		changed, err := f.Bind("app")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, `^\[(\d{4}-\d{2}-\d{2})`, f.Boundary())
	})

	t.Run("ExportWithoutID", func(t *testing.T) {
		f, err := filter.NewEntryFilter("^>", nil)
		require.NoError(t, err)

		_, err = f.ExportConfig("")
		assert.ErrorIs(t, err, filter.ErrInvalidArgument)
	})
}
