// Package model resolves the whisper model file, downloading it into
// the user cache directory on first run.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"
)

var (
	ErrModelNotFound  = errors.New("whisper model not found")
	ErrDownloadFailed = errors.New("failed to download whisper model")
)

type Manager struct {
	url    string
	dir    string
	client *http.Client
	retry  RetryConfig
	logger *slog.Logger
}

func NewManager(modelURL, dir string, logger *slog.Logger) *Manager {
	return &Manager{
		url:    modelURL,
		dir:    dir,
		client: &http.Client{Timeout: 30 * time.Minute},
		retry:  DefaultRetryConfig(),
		logger: logger,
	}
}

// DefaultDir is the per-user model cache.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(base, "speak", "models"), nil
}

// Ensure returns the local path of the model, fetching it if the cache
// is empty. Interrupted downloads leave only a .partial file behind and
// are retried from scratch.
func (m *Manager) Ensure(ctx context.Context) (string, error) {
	u, err := url.Parse(m.url)
	if err != nil {
		return "", fmt.Errorf("model url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("model url %q has no file name", m.url)
	}

	dest := filepath.Join(m.dir, name)
	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		m.logger.Debug("model cached", "path", dest, "bytes", fi.Size())
		return dest, nil
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}

	m.logger.Info("downloading model", "url", m.url, "dest", dest)

	err = withRetry(ctx, m.retry, func() error {
		return m.download(ctx, dest)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	return dest, nil
}

func (m *Manager) download(ctx context.Context, dest string) error {
	partial := dest + ".partial"

	f, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("create %s: %w", partial, err)
	}
	defer os.Remove(partial)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		f.Close()
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		f.Close()
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.Close()
		if retryableStatus(resp.StatusCode) {
			return fmt.Errorf("fetch: status %d", resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d: %w", ErrModelNotFound, resp.StatusCode, errPermanent)
	}

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		return fmt.Errorf("copy body: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", partial, err)
	}

	if n == 0 {
		return fmt.Errorf("empty model body")
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return fmt.Errorf("short download: %d of %d bytes", n, resp.ContentLength)
	}

	// The cache only ever sees complete files.
	if err := os.Rename(partial, dest); err != nil {
		return fmt.Errorf("finalize %s: %w", dest, err)
	}

	m.logger.Info("model downloaded", "path", dest, "bytes", n)
	return nil
}
