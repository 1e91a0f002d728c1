package eutils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"time"

	"PmcReader/internal/config"
	"PmcReader/internal/domain"
	"PmcReader/internal/ports"
)

// Client issues outbound requests with exponential-backoff retry behind
// a shared per-host rate gate. It never caches responses; that is the
// document cache's job.
type Client struct {
	http           *http.Client
	limiter        *HostLimiter
	baseURL        string
	apiKey         string
	userAgent      string
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

var _ ports.ArticleFetcher = (*Client)(nil)

// NewClient wires the upstream policy from config with an explicit
// limiter handle. A nil logger disables attempt diagnostics.
func NewClient(cfg config.UpstreamConfig, limiter *HostLimiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		http:           &http.Client{Timeout: cfg.Timeout.Std()},
		limiter:        limiter,
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		userAgent:      cfg.UserAgent,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff.Std(),
		maxBackoff:     cfg.MaxBackoff.Std(),
		logger:         logger,
	}
}

// FetchArticle retrieves the full-text XML for a canonical PMC id.
func (c *Client) FetchArticle(ctx context.Context, pmcid string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/efetch.fcgi?db=pmc&id=PMC%s&retmode=xml", c.baseURL, domain.NumericID(pmcid))
	if c.apiKey != "" {
		endpoint += "&api_key=" + url.QueryEscape(c.apiKey)
	}
	return c.Fetch(ctx, endpoint)
}

// Fetch downloads rawURL, retrying transient failures with exponential
// backoff and jitter. Permanent failures surface immediately; a
// transient failure that outlives the budget surfaces as
// RetriesExhaustedError.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := c.withRetry(ctx, rawURL, func(ctx context.Context) error {
		var attemptErr error
		body, attemptErr = c.do(ctx, rawURL)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Download streams rawURL into path, retrying whole attempts. The file
// is truncated at the start of every attempt so a retried download never
// concatenates partial bodies.
func (c *Client) Download(ctx context.Context, rawURL, path string) error {
	return c.withRetry(ctx, rawURL, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("request %s: %w", rawURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &domain.APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}

		out, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			out.Close()
			return fmt.Errorf("stream %s: %w", rawURL, err)
		}
		return out.Close()
	})
}

func (c *Client) withRetry(ctx context.Context, rawURL string, attempt func(context.Context) error) error {
	backoff := c.initialBackoff
	var lastErr error

	for try := 0; try <= c.maxRetries; try++ {
		if try > 0 {
			delay := withJitter(backoff)
			c.logger.Debug("retrying after backoff",
				"url", rawURL, "attempt", try+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = min(backoff*2, c.maxBackoff)
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}

		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) {
			return err
		}
		lastErr = err
		c.logger.Warn("transient fetch failure",
			"url", rawURL, "attempt", try+1, "error", err)
	}

	return &domain.RetriesExhaustedError{Attempts: c.maxRetries + 1, Last: lastErr}
}

func (c *Client) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// withJitter spreads a delay over [d/2, d) so coordinated retries from
// concurrent pipelines do not arrive in lockstep.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)))
}
