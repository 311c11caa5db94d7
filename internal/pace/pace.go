package pace

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrTimeout marks a request that exceeded its deadline, distinct from
// other transport failures so callers can memoize it as such.
var ErrTimeout = errors.New("request timed out")

// Default minimum spacing between requests per hostname. Hosts not listed
// are not paced.
var defaultSpacing = map[string]time.Duration{
	"graphql.anilist.co": 250 * time.Millisecond,
	"kitsu.io":           250 * time.Millisecond,
	"api.themoviedb.org": 300 * time.Millisecond,
	"en.wikipedia.org":   300 * time.Millisecond,
}

// Client spaces outbound requests per hostname. A limiter with burst 1
// and interval-based refill enforces a minimum gap between any two
// requests to the same host.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	spacing  map[string]time.Duration
}

// New creates a paced client with the default per-host spacings.
func New(logger zerolog.Logger) *Client {
	spacing := make(map[string]time.Duration, len(defaultSpacing))
	for h, d := range defaultSpacing {
		spacing[h] = d
	}
	return &Client{
		httpClient: &http.Client{},
		logger:     logger.With().Str("component", "pace").Logger(),
		limiters:   make(map[string]*rate.Limiter),
		spacing:    spacing,
	}
}

// SetSpacing overrides the minimum spacing for a host.
func (c *Client) SetSpacing(host string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spacing[host] = d
	delete(c.limiters, host)
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.limiters[host]; ok {
		return l
	}
	d, ok := c.spacing[host]
	if !ok || d <= 0 {
		l := rate.NewLimiter(rate.Inf, 1)
		c.limiters[host] = l
		return l
	}
	l := rate.NewLimiter(rate.Every(d), 1)
	c.limiters[host] = l
	return l
}

// Do executes req after waiting out the per-host spacing. The timeout
// bounds the whole attempt including the pacing wait on the request
// itself (not the limiter wait), and surfaces as ErrTimeout.
func (c *Client) Do(ctx context.Context, req *http.Request, timeout time.Duration) (*http.Response, error) {
	host := req.URL.Hostname()

	if err := c.limiter(host).Wait(ctx); err != nil {
		return nil, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		// The caller owns resp.Body; tie cancellation to body close via
		// the response lifetime by deferring only on error paths.
		resp, err := c.httpClient.Do(req.WithContext(ctx))
		if err != nil {
			cancel()
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, err
		}
		resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrTimeout
	}
	return resp, err
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
