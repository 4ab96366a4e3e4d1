package model

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestEnsureDownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("model-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	m := NewManager(srv.URL+"/ggml-base.en.bin", dir, testLogger())
	m.retry = fastRetry()

	path, err := m.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ggml-base.en.bin"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(data))

	// Second call hits the cache.
	_, err = m.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestEnsureRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("model-bytes"))
	}))
	defer srv.Close()

	m := NewManager(srv.URL+"/ggml-base.en.bin", t.TempDir(), testLogger())
	m.retry = fastRetry()

	_, err := m.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestEnsureMissingModelIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := NewManager(srv.URL+"/ggml-base.en.bin", t.TempDir(), testLogger())
	m.retry = fastRetry()

	_, err := m.Ensure(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.Equal(t, int32(1), hits.Load())
}

func TestEnsureLeavesNoPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Announce more than is sent so the download looks truncated.
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("short"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	m := NewManager(srv.URL+"/ggml-base.en.bin", dir, testLogger())
	m.retry = fastRetry()

	_, err := m.Ensure(context.Background())
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEnsureBadURL(t *testing.T) {
	m := NewManager("https://example.com/", t.TempDir(), testLogger())
	_, err := m.Ensure(context.Background())
	assert.Error(t, err)
}
