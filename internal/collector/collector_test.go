package collector

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	tests := []struct {
		uri     string
		want    interface{}
		source  string
		wantErr bool
	}{
		{uri: "-", want: &StdinCollector{}, source: "-"},
		{uri: "/var/log/app.log", want: &FileCollector{}, source: "file:///var/log/app.log"},
		{uri: "logs/../app.log", want: &FileCollector{}, source: "file://app.log"},
		{uri: "file:///tmp/x.log", want: &FileCollector{}, source: "file:///tmp/x.log"},
		{uri: "http://example.com/log", want: &HTTPCollector{}, source: "http://example.com/log"},
		{uri: "ftp://example.com/log", wantErr: true},
		{uri: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			c, err := NewCollector(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, c)
			assert.Equal(t, tt.source, c.Source())
		})
	}
}

func TestFileCollector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0o644))

	c, err := NewFileCollector(path)
	require.NoError(t, err)
	assert.Equal(t, "app.log", c.Name())

	rc, err := c.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestFileCollectorErrors(t *testing.T) {
	dir := t.TempDir()

	c, err := NewFileCollector(filepath.Join(dir, "missing.log"))
	require.NoError(t, err)
	_, err = c.Open(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	c, err = NewFileCollector(dir)
	require.NoError(t, err)
	_, err = c.Open(context.Background())
	assert.ErrorContains(t, err, "is a directory")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStdinCollector(t *testing.T) {
	c := NewStdinCollector()
	c.in = strings.NewReader("piped\n")
	assert.Equal(t, "stdin", c.Name())

	rc, err := c.Open(context.Background())
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "piped\n", string(data))
	assert.NoError(t, rc.Close())
}

func TestHTTPCollector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logs":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte("remote line\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	t.Run("Success", func(t *testing.T) {
		c, err := NewHTTPCollector(server.URL + "/logs")
		require.NoError(t, err)
		c.WithMethod(http.MethodPost).
			WithHeader("Authorization", "Bearer token").
			WithClient(server.Client())

		rc, err := c.Open(context.Background())
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "remote line\n", string(data))
	})

	t.Run("NonSuccessStatus", func(t *testing.T) {
		c, err := NewHTTPCollector(server.URL + "/missing")
		require.NoError(t, err)

		_, err = c.Open(context.Background())
		assert.ErrorContains(t, err, "404")
	})

	t.Run("InvalidURL", func(t *testing.T) {
		_, err := NewHTTPCollector("example.com/logs")
		assert.Error(t, err)
	})
}
