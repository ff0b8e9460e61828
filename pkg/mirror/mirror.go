// Package mirror copies traffic to an auxiliary logging endpoint. Posts are
// fire-and-forget relative to the caller: failures are logged, never
// retried, never surfaced.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const defaultMaxInFlight = 8

// Client posts JSON payloads to a single mirror endpoint from detached
// goroutines, capped by a semaphore so a slow endpoint cannot leak
// unbounded tasks. A zero-URL client is a no-op.
type Client struct {
	url     string
	http    *http.Client
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	logger  zerolog.Logger
	timeout time.Duration
}

// New creates a mirror client for url. An empty url disables mirroring.
func New(url string, maxInFlight int, logger zerolog.Logger) *Client {
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	return &Client{
		url:     url,
		http:    &http.Client{Timeout: 10 * time.Second},
		sem:     semaphore.NewWeighted(int64(maxInFlight)),
		logger:  logger.With().Str("component", "mirror").Logger(),
		timeout: 10 * time.Second,
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// Post mirrors payload in the background. It returns immediately; when the
// in-flight cap is reached the payload is dropped with a warning.
func (c *Client) Post(payload interface{}) {
	if !c.Enabled() {
		return
	}

	if !c.sem.TryAcquire(1) {
		c.logger.Warn().Str("url", c.url).Msg("Mirror saturated, payload dropped")
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error().Interface("panic", r).Msg("Panic in mirror post")
			}
		}()
		c.send(payload)
	}()
}

func (c *Client) send(payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal mirror payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error().Err(err).Str("url", c.url).Msg("Failed to build mirror request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", c.url).Msg("Mirror request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Str("url", c.url).
			Int("status", resp.StatusCode).
			Msg("Something wrong with mirror endpoint")
		return
	}

	c.logger.Debug().Str("url", c.url).Msg("Payload copied to mirror endpoint")
}

// Flush waits for in-flight posts to finish, up to the context deadline.
// Used during shutdown; new posts during a flush are still accepted.
func (c *Client) Flush(ctx context.Context) error {
	if c == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
