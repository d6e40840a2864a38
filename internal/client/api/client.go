// Package api is the HTTP transport the CuraMind client components share. It
// carries the session cookie, paces requests, and maps responses onto the
// client error taxonomy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/curamind/curamind/internal/contract"
)

// ErrUnauthenticated is returned for every 401. Callers route to login.
var ErrUnauthenticated = errors.New("api: not authenticated")

// Error is a non-2xx response other than 401.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: [%d] %s", e.Code, e.Message)
}

// StatusCode returns the HTTP status behind err, or 0 if err is not an *Error.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, ErrUnauthenticated) {
		return http.StatusUnauthorized
	}
	return 0
}

func IsConflict(err error) bool { return StatusCode(err) == http.StatusConflict }

// IsFatal reports whether retrying the same request cannot succeed: the
// session is gone, or the resource is forbidden or missing.
func IsFatal(err error) bool {
	switch StatusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// IsTransient reports whether err came from the network rather than from a
// response, so the action may be retried as is.
func IsTransient(err error) bool {
	if err == nil || StatusCode(err) != 0 {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

type Options struct {
	Timeout time.Duration
	// MaxRPS caps the request rate across every component sharing the
	// client. Zero disables pacing.
	MaxRPS     float64
	Logger     zerolog.Logger
	HTTPClient *http.Client
}

type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu       sync.Mutex
	onUnauth []func()
}

func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", baseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("api: cookie jar: %w", err)
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Jar: jar, Timeout: timeout}
	}
	c := &Client{base: base, http: hc, logger: opts.Logger}
	if opts.MaxRPS > 0 {
		burst := int(opts.MaxRPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), burst)
	}
	return c, nil
}

// OnUnauthenticated registers fn to run whenever a request comes back 401.
func (c *Client) OnUnauthenticated(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauth = append(c.onUnauth, fn)
}

func (c *Client) unauthenticated() {
	c.mu.Lock()
	hooks := append([]func(){}, c.onUnauth...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api call")

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		c.unauthenticated()
		return ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb contract.ErrorBody
	if json.Unmarshal(b, &eb) != nil || eb.Message == "" {
		eb.Message = strings.TrimSpace(string(b))
		if eb.Message == "" {
			eb.Message = http.StatusText(resp.StatusCode)
		}
	}
	return &Error{Code: resp.StatusCode, Message: eb.Message}
}
