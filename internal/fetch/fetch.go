package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"lineupd/internal/errs"
)

// outboundLimiter bounds the rate of outbound playlist/guide requests this
// process issues across all providers, mirroring the teacher's receiver-side
// rate limiting applied to the direction it actually needs guarding here:
// outbound load against upstream IPTV providers rather than inbound API
// traffic.
var outboundLimiter = rate.NewLimiter(rate.Limit(5), 10)

// Result is the raw payload returned by a fetch, before parsing.
type Result struct {
	Bytes     []byte
	ByteCount int64
}

var envPlaceholder = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnv substitutes ${VAR} placeholders against the process
// environment. A placeholder whose variable is unset is a fetch error
// (§4.1): unlike os.Expand, missing variables do not silently collapse to
// an empty string.
func ExpandEnv(raw string) (string, error) {
	var missing []string
	expanded := envPlaceholder.ReplaceAllStringFunc(raw, func(m string) string {
		name := m[2 : len(m)-1]
		v, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: undefined environment variable(s): %s", errs.ErrFetchFailed, strings.Join(missing, ", "))
	}
	return expanded, nil
}

// NormalizeURL rewrites an https:// URL whose authority port is literally
// 80 to http:// (§4.1): some upstreams mislabel plain HTTP as HTTPS on
// port 80 and otherwise fail TLS immediately. Every other URL, including
// malformed ones, passes through unchanged.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Port() != "80" {
		return raw
	}
	u.Scheme = "http"
	return u.String()
}

// Fetch retrieves rawURL per §4.1: http(s) GET with headers/user-agent and
// timeout as a hard deadline, or a direct read for file:// URLs. rawURL may
// contain ${VAR} placeholders, expanded before scheme dispatch.
func Fetch(ctx context.Context, rawURL string, headers map[string]string, userAgent string, timeout time.Duration) (Result, error) {
	expanded, err := ExpandEnv(rawURL)
	if err != nil {
		return Result{}, err
	}
	expanded = NormalizeURL(expanded)

	u, err := url.Parse(expanded)
	if err != nil {
		return Result{}, fmt.Errorf("%w: invalid URL %q: %v", errs.ErrFetchFailed, expanded, err)
	}

	if u.Scheme == "file" {
		return fetchFile(u)
	}
	return fetchHTTP(ctx, expanded, headers, userAgent, timeout)
}

func fetchFile(u *url.URL) (Result, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read %s: %v", errs.ErrFetchFailed, path, err)
	}
	return Result{Bytes: b, ByteCount: int64(len(b))}, nil
}

func fetchHTTP(ctx context.Context, rawURL string, headers map[string]string, userAgent string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := outboundLimiter.Wait(reqCtx); err != nil {
		return Result{}, fmt.Errorf("%w: rate limit wait: %v", errs.ErrFetchFailed, err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", errs.ErrFetchFailed, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	client := newHTTPClient(timeout)
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errs.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("%w: status %d from %s", errs.ErrFetchFailed, resp.StatusCode, rawURL)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %v", errs.ErrFetchFailed, err)
	}
	return Result{Bytes: b, ByteCount: int64(len(b))}, nil
}
