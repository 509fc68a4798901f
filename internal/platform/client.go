// Package platform is the REST client for the wellness platform's admin
// API. Every method issues exactly one request; the client holds no state
// besides the operator token and the outbound limiter.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of a failed response is read for the message.
const maxErrorBody = 64 << 10

// APIError is any non-2xx platform response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform: status %d", e.Status)
	}
	return fmt.Sprintf("platform: status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a platform 404.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// IsForbidden reports whether the platform refused the operator access to
// the requested resource.
func IsForbidden(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusForbidden
}

// IsUnauthorized reports whether the platform rejected the operator token.
func IsUnauthorized(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && (ae.Status == http.StatusUnauthorized || ae.Status == http.StatusForbidden)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// RPS and Burst bound outbound requests across all operators. RPS <= 0
	// disables the limiter.
	RPS   float64
	Burst int
	// HTTPClient overrides the default client; tests pass httptest's.
	HTTPClient *http.Client
}

// Client talks to the platform. A Client returned by WithToken shares the
// transport and limiter of its parent.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	token   string
}

// New builds a Client for opts.BaseURL.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("platform: invalid base url %q", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return &Client{base: u, http: hc, limiter: lim}, nil
}

// WithToken returns a copy of c that authenticates as the operator holding
// token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// do sends one request and returns the raw success body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("platform: encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("platform: read %s %s: %w", method, path, err)
	}
	return raw, nil
}

// errorMessage pulls a human readable message out of an error body of
// unknown shape.
func errorMessage(raw []byte) string {
	if !gjson.ValidBytes(raw) {
		return strings.TrimSpace(string(raw))
	}
	for _, path := range []string{"message", "error.message", "error", "detail"} {
		if r := gjson.GetBytes(raw, path); r.Exists() && r.Type == gjson.String {
			return r.String()
		}
	}
	return ""
}

// payload unwraps the optional {"data": ...} envelope.
func payload(raw []byte) gjson.Result {
	r := gjson.ParseBytes(raw)
	if d := r.Get("data"); r.IsObject() && d.Exists() {
		return d
	}
	return r
}

// decode unmarshals the unwrapped payload into out.
func decode(raw []byte, out any) error {
	p := payload(raw)
	if !p.Exists() {
		return errors.New("platform: empty response body")
	}
	if err := json.Unmarshal([]byte(p.Raw), out); err != nil {
		return fmt.Errorf("platform: decode response: %w", err)
	}
	return nil
}

// succeeded interprets mutation bodies, which are either a bare boolean, an
// object with a success flag, an arbitrary object, or empty.
func succeeded(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	p := payload(raw)
	switch {
	case p.Type == gjson.False:
		return &APIError{Status: http.StatusOK, Message: "platform reported failure"}
	case p.IsObject() && p.Get("success").Type == gjson.False:
		return &APIError{Status: http.StatusOK, Message: errorMessage([]byte(p.Raw))}
	}
	return nil
}

func centerPath(prefix string, centerID int64) string {
	return fmt.Sprintf("%s/%d", prefix, centerID)
}

func idQuery(id int64) url.Values {
	return url.Values{"id": []string{fmt.Sprint(id)}}
}
