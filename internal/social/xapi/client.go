// Package xapi implements social.Publisher over the X API v2. Reads use the
// app bearer token; writes are signed with OAuth 1.0a user context.
package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chirpbot/internal/social"
	logx "chirpbot/pkg/logx"
)

const DefaultBaseURL = "https://api.twitter.com/2"

// Credentials for the acting account.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
	BearerToken    string
}

type Options struct {
	BaseURL     string
	RatePerSec  float64
	Burst       int
	MaxAttempts int
	BaseBackoff time.Duration
	Timeout     time.Duration
}

// Client talks to the X API. Trending tags come from a separate provider.
type Client struct {
	baseURL     string
	creds       Credentials
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
	trends      *Trends
	log         logx.Logger

	nowFn   func() time.Time
	nonceFn func() string

	selfMu sync.Mutex
	selfID string
}

func New(creds Credentials, opts Options, trends *Trends, log logx.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		creds:       creds,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
		trends:      trends,
		log:         log.With(logx.Component("xapi")),
		nowFn:       time.Now,
		nonceFn:     func() string { return strconv.FormatUint(rand.Uint64(), 36) },
	}
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	signed bool
}

// do sends c, retrying transport errors and 5xx with exponential backoff.
// A 429 is not retried here: the executor owns rate-limit backoff.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	var payload []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return err
		}
		payload = b
	}

	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := c.newRequest(ctx, cl, payload)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			apiErr := checkResponse(cl.op, resp)
			if apiErr == nil {
				defer resp.Body.Close()
				if out == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					return nil
				}
				if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
					return fmt.Errorf("%s: %w: %v", cl.op, social.ErrInvalidResponse, err)
				}
				return nil
			}
			if !apiErr.Temporary() || apiErr.Status == http.StatusTooManyRequests {
				return apiErr
			}
			lastErr = apiErr
			if apiErr.RetryAfter > 0 {
				backoff = apiErr.RetryAfter
			}
		}
		if attempt == c.maxAttempts {
			break
		}
		wait := backoff
		// jitter +/-20%
		if j := wait / 5; j > 0 {
			wait = wait - j + time.Duration(rand.Int64N(int64(2*j)+1))
		}
		c.log.Debug("retrying request", logx.String("op", cl.op), logx.Int("attempt", attempt), logx.Duration("wait", wait), logx.Err(lastErr))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", cl.op, c.maxAttempts, lastErr)
}

func (c *Client) newRequest(ctx context.Context, cl call, payload []byte) (*http.Request, error) {
	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.signed {
		c.oauth1Sign(req, cl.query)
	} else if c.creds.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.BearerToken)
	}
	return req, nil
}

// checkResponse converts a non-2xx response into an APIError, consuming
// and closing its body.
func checkResponse(op string, resp *http.Response) *social.APIError {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &social.APIError{
		Op:         op,
		Status:     resp.StatusCode,
		Body:       strings.TrimSpace(string(b)),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
