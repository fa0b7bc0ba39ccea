package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
)

// DefaultMaxRedirects bounds redirect chains when Options leaves it unset.
const DefaultMaxRedirects = 5

// TempPrefix marks in-flight download files inside the destination directory.
const TempPrefix = ".download-"

// Options configures an Engine.
type Options struct {
	Client       *http.Client
	MaxRedirects int
	UserAgent    string
	Logger       zerolog.Logger
	// MeterProvider receives download metrics; nil uses the global provider.
	MeterProvider metric.MeterProvider
}

// Engine fetches files over HTTP(S), following redirects itself so that each
// hop is counted and logged.
type Engine struct {
	client       *http.Client
	maxRedirects int
	userAgent    string
	log          zerolog.Logger
	metrics      *metrics
}

// New builds an Engine. The supplied client is copied; its redirect policy is
// replaced.
func New(opts Options) *Engine {
	client := &http.Client{Timeout: 10 * time.Minute}
	if opts.Client != nil {
		copied := *opts.Client
		client = &copied
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "nplserver/1.0"
	}

	return &Engine{
		client:       client,
		maxRedirects: maxRedirects,
		userAgent:    userAgent,
		log:          opts.Logger.With().Str("component", "download").Logger(),
		metrics:      newMetrics(opts.MeterProvider),
	}
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// DownloadFile streams url into dest. On return dest either holds the full
// body or does not exist.
func (e *Engine) DownloadFile(ctx context.Context, url, dest string, sink ProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prepare download destination: %w", err)
	}

	current := url
	for hop := 0; ; hop++ {
		resp, err := e.get(ctx, current)
		if err != nil {
			e.deleteQuietly(dest)
			e.metrics.record(ctx, "error", 0)
			return fmt.Errorf("download %s: %w", current, err)
		}

		if isRedirect(resp.StatusCode) {
			next, rerr := e.nextLocation(resp, current)
			resp.Body.Close()
			e.deleteQuietly(dest)
			if rerr != nil {
				e.metrics.record(ctx, "redirect_error", 0)
				return rerr
			}
			if hop >= e.maxRedirects {
				e.metrics.record(ctx, "redirect_error", 0)
				return fmt.Errorf("download %s: %w (limit %d)", url, ErrTooManyRedirects, e.maxRedirects)
			}
			e.log.Debug().Int("status", resp.StatusCode).Str("from", current).Str("to", next).Msg("following redirect")
			current = next
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			e.deleteQuietly(dest)
			e.metrics.record(ctx, "http_error", 0)
			return &HTTPStatusError{StatusCode: resp.StatusCode, URL: current}
		}

		written, err := e.writeBody(resp, dest, sink)
		resp.Body.Close()
		if err != nil {
			e.deleteQuietly(dest)
			e.metrics.record(ctx, "error", 0)
			return err
		}
		e.metrics.record(ctx, "success", written)
		e.log.Info().Str("url", current).Str("dest", dest).Int64("bytes", written).Msg("download complete")
		return nil
	}
}

func (e *Engine) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	return e.client.Do(req)
}

func (e *Engine) nextLocation(resp *http.Response, current string) (string, error) {
	location := resp.Header.Get("Location")
	if location == "" {
		return "", &RedirectError{StatusCode: resp.StatusCode, URL: current}
	}
	next, err := resp.Request.URL.Parse(location)
	if err != nil {
		return "", &RedirectError{StatusCode: resp.StatusCode, URL: current, Reason: fmt.Sprintf("invalid Location %q", location)}
	}
	return next.String(), nil
}

func (e *Engine) writeBody(resp *http.Response, dest string, sink ProgressFunc) (int64, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), TempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	pw := newProgressWriter(sink, resp.ContentLength)
	written, err := io.Copy(io.MultiWriter(tmpFile, pw), resp.Body)
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return 0, fmt.Errorf("short download: got %d of %d bytes", written, resp.ContentLength)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("finalize download: %w", err)
	}
	pw.finish()
	return written, nil
}

func (e *Engine) deleteQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.log.Warn().Err(err).Str("path", path).Msg("remove partial download")
	}
}
