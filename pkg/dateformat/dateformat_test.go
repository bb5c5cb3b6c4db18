package dateformat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		want    time.Time
	}{
		{"yyyy-MM-dd", "2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"yyyy-MM-dd HH:mm:ss", "2024-03-05 07:08:09", time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC)},
		{"dd/MMM/yyyy:HH:mm:ss", "05/Mar/2024:07:08:09", time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC)},
		{"yyyy-MM-dd'T'HH:mm", "2024-03-05T07:08", time.Date(2024, 3, 5, 7, 8, 0, 0, time.UTC)},
		{"MMM dd HH:mm:ss", "Mar 05 07:08:09", time.Date(0, 3, 5, 7, 8, 9, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			f, err := Compile(tt.pattern, time.UTC)
			require.NoError(t, err)

			ts, err := f.Parse(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ts)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	for _, pattern := range []string{
		"",
		"yyyy-MM-dd QQ",
		"HH:mm:ssSSS",
		"'unterminated",
		"yyyy 'Q1'",
		"kk:mm",
		"KK:mm",
		"yyyy-MM-dd 'Monday'",
		"go:",
	} {
		_, err := Compile(pattern, time.UTC)
		assert.Error(t, err, pattern)
	}
}

func TestFormat(t *testing.T) {
	t.Run("JodaPattern", func(t *testing.T) {
		f, err := Compile("dd/MMM/yyyy:HH:mm:ss", time.UTC)
		require.NoError(t, err)
		assert.Equal(t, "dd/MMM/yyyy:HH:mm:ss", f.Pattern())

		ts := time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC)
		assert.Equal(t, "05/Mar/2024:07:08:09", f.Format(ts))
	})

	t.Run("QuotedLiteral", func(t *testing.T) {
		f, err := Compile("yyyy-MM-dd 'at' HH:mm", time.UTC)
		require.NoError(t, err)

		ts, err := f.Parse("2024-03-05 at 07:08")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 5, 7, 8, 0, 0, time.UTC), ts)
	})

	t.Run("GoLayout", func(t *testing.T) {
		f, err := Compile(GoLayoutPrefix+time.RFC3339, time.UTC)
		require.NoError(t, err)

		ts, err := f.Parse("2024-03-05T07:08:09+02:00")
		require.NoError(t, err)
		assert.True(t, ts.Equal(time.Date(2024, 3, 5, 5, 8, 9, 0, time.UTC)))
		assert.Equal(t, "2024-03-05T05:08:09Z", f.Format(ts))
	})

	t.Run("GoLayoutNeedsPrefix", func(t *testing.T) {
		// Without the prefix digits are literal text, not layout tokens
		_, err := Compile("2006-01-02", time.UTC)
		assert.Error(t, err)
	})

	t.Run("Location", func(t *testing.T) {
		loc := time.FixedZone("X", 3600)
		f, err := Compile("yyyy-MM-dd HH:mm", loc)
		require.NoError(t, err)
		assert.Equal(t, loc, f.Location())

		ts, err := f.Parse("2024-01-01 10:00")
		require.NoError(t, err)
		assert.True(t, ts.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
		assert.Equal(t, "2024-01-01 10:00", f.Format(ts.UTC()))
	})

	t.Run("NilLocationIsLocal", func(t *testing.T) {
		f, err := Compile("HH:mm", nil)
		require.NoError(t, err)
		assert.Equal(t, time.Local, f.Location())
	})

	t.Run("Errors", func(t *testing.T) {
		f := MustCompile("yyyy-MM-dd", time.UTC)
		_, err := f.Parse("not a date")
		assert.Error(t, err)

		assert.Panics(t, func() { MustCompile("QQ", nil) })
	})
}
