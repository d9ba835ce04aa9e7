// Package samples fetches, decodes and caches sample buffers. Concurrent
// requests for the same URL share one fetch.
package samples

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cwbudde/algo-polysynth/graph"
	"github.com/cwbudde/algo-polysynth/internal/wavio"
)

// Loader resolves sample URLs to buffers at a fixed output rate. Successful
// loads are cached; failures are not, so a later request retries.
type Loader struct {
	sampleRate int
	client     *http.Client
	log        *slog.Logger

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]*graph.Buffer
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the client used for http and https URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// NewLoader returns a loader that resamples everything to sampleRate.
func NewLoader(sampleRate int, opts ...Option) *Loader {
	l := &Loader{
		sampleRate: sampleRate,
		client:     http.DefaultClient,
		log:        slog.Default(),
		cache:      make(map[string]*graph.Buffer),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load fetches url in the background and calls onSuccess or onError.
func (l *Loader) Load(ctx context.Context, url string, onSuccess func(*graph.Buffer), onError func(error)) {
	go func() {
		b, err := l.Get(ctx, url)
		if err != nil {
			onError(err)
			return
		}
		onSuccess(b)
	}()
}

// Get returns the buffer for url, fetching it unless cached or in flight.
func (l *Loader) Get(ctx context.Context, url string) (*graph.Buffer, error) {
	if b, ok := l.cached(url); ok {
		return b, nil
	}
	ch := l.group.DoChan(url, func() (any, error) {
		if b, ok := l.cached(url); ok {
			return b, nil
		}
		// Detached: the fetch outlives any single waiter.
		b, err := l.fetch(context.WithoutCancel(ctx), url)
		if err != nil {
			l.log.Warn("sample load failed", "url", url, "err", err)
			return nil, err
		}
		l.mu.Lock()
		l.cache[url] = b
		l.mu.Unlock()
		l.log.Debug("sample loaded", "url", url, "frames", b.Frames(), "source_rate", b.SourceRate)
		return b, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*graph.Buffer), nil
	}
}

// Cached reports how many buffers are held.
func (l *Loader) Cached() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}

func (l *Loader) cached(url string) (*graph.Buffer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.cache[url]
	return b, ok
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (*graph.Buffer, error) {
	data, err := l.Read(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	channels, rate, err := wavio.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}
	for i, ch := range channels {
		if channels[i], err = wavio.Resample(ch, rate, l.sampleRate); err != nil {
			return nil, fmt.Errorf("%s: resample: %w", rawURL, err)
		}
	}
	return &graph.Buffer{
		SampleRate: float64(l.sampleRate),
		Channels:   channels,
		SourceRate: float64(rate),
	}, nil
}

// Read returns the raw bytes behind a path, file:// or http(s) URL.
func (l *Loader) Read(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path, including Windows drive letters.
		return os.ReadFile(rawURL)
	}
	switch u.Scheme {
	case "file":
		return os.ReadFile(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s: unexpected status %s", rawURL, resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
	return nil, fmt.Errorf("%s: unsupported scheme %q", rawURL, u.Scheme)
}
