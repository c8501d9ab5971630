package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/statusdeck/statusdeck/server/internal/config"
)

// Category identifies one proxied upstream service.
type Category string

const (
	Hypervisor Category = "hypervisor"
	Containers Category = "containers"
	Media      Category = "media"
	Chat       Category = "chat"
)

// MaxBodyBytes caps how much of an upstream response body is read.
const MaxBodyBytes = 4 << 20

// Target is the logical request a handler asks for. Credentials are never
// part of it.
type Target struct {
	// Path is appended to the category's base URL. Empty means the base URL itself.
	Path   string
	Query  url.Values
	Method string
	Body   []byte
}

// RawResponse is an upstream answer of any status.
type RawResponse struct {
	Status int
	Body   string
	Header http.Header
}

// OK reports whether the upstream answered 2xx.
func (r *RawResponse) OK() bool { return r.Status >= 200 && r.Status < 300 }

type scheme int

const (
	schemeNone scheme = iota
	schemePVEToken
	schemeQuery
	schemeBearer
)

type endpoint struct {
	base     string
	secret   Secret
	scheme   scheme
	param    string // query parameter name for schemeQuery
	required bool
	timeout  time.Duration
}

// Client performs authenticated calls to every configured upstream over one
// shared transport.
type Client struct {
	http      *http.Client
	endpoints map[Category]endpoint

	// scrub holds every credential form to remove from text, longest first
	// so a secret that contains another is never half replaced.
	scrub []string
}

// New builds the client and its transport once. Credentials are read from
// the environment here and never again.
func New(up config.UpstreamsConfig, tlsCfg config.TLSConfig) (*Client, error) {
	transport, err := buildTransport(tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("upstream: build transport: %w", err)
	}

	endpoints := map[Category]endpoint{
		Hypervisor: {
			base:     up.Hypervisor.BaseURL,
			secret:   Secret(up.Hypervisor.Token()),
			scheme:   schemePVEToken,
			required: true,
		},
		Containers: {
			base:     up.Containers.URL,
			secret:   Secret(up.Containers.Key()),
			scheme:   schemeQuery,
			param:    up.Containers.KeyParam,
			required: true,
		},
		Media: {
			base:     up.Media.BaseURL,
			secret:   Secret(up.Media.Key()),
			scheme:   schemeQuery,
			param:    "apikey",
			required: true,
		},
		Chat: {
			base:    up.Chat.Endpoint,
			secret:  Secret(up.Chat.Token()),
			scheme:  schemeBearer,
			timeout: up.Chat.Timeout,
		},
	}

	c := &Client{endpoints: endpoints, scrub: scrubForms(endpoints)}
	c.http = &http.Client{
		Transport: &authRoundTripper{base: transport, endpoints: endpoints},
		// Redirects would replay the injected credential to another host.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return c, nil
}

// Configured reports whether category has a credential set.
func (c *Client) Configured(category Category) bool {
	ep, ok := c.endpoints[category]
	return ok && !ep.secret.empty()
}

// URL returns the resolved upstream URL for target without any credential,
// for logging. Unknown or unconfigured categories yield "".
func (c *Client) URL(category Category, target Target) string {
	ep, ok := c.endpoints[category]
	if !ok || ep.base == "" {
		return ""
	}
	u, err := resolve(ep.base, target)
	if err != nil {
		return c.Scrub(ep.base)
	}
	if ep.scheme == schemeQuery && !ep.secret.empty() {
		// Name the injected parameter without its value.
		if pu, err := url.Parse(u); err == nil {
			q := pu.Query()
			q.Set(ep.param, Placeholder)
			pu.RawQuery = q.Encode()
			u = pu.String()
		}
	}
	return c.Scrub(u)
}

// Call performs one request against category. A non-2xx upstream status is
// not an error; callers inspect RawResponse.Status.
func (c *Client) Call(ctx context.Context, category Category, target Target) (*RawResponse, error) {
	ep, ok := c.endpoints[category]
	if !ok {
		return nil, &UpstreamError{Category: category, Cause: ErrUnknownCategory}
	}
	if ep.required && ep.secret.empty() {
		return nil, &UpstreamError{Category: category, Cause: ErrMissingCredential}
	}
	if ep.base == "" {
		return nil, &UpstreamError{Category: category, Cause: ErrNotConfigured}
	}

	u, err := resolve(ep.base, target)
	if err != nil {
		return nil, &UpstreamError{Category: category, Cause: err}
	}

	if ep.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ep.timeout)
		defer cancel()
	}

	method := target.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if target.Body != nil {
		body = bytes.NewReader(target.Body)
	}
	req, err := http.NewRequestWithContext(withCategory(ctx, category), method, u, body)
	if err != nil {
		return nil, &UpstreamError{Category: category, Cause: c.scrubErr(fmt.Errorf("build request: %w", err))}
	}
	req.Header.Set("Accept", "application/json")
	if target.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Category: category, Cause: c.classify(ctx, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, &UpstreamError{Category: category, Cause: c.classify(ctx, fmt.Errorf("read body: %w", err))}
	}

	return &RawResponse{
		Status: resp.StatusCode,
		Body:   string(data),
		Header: resp.Header.Clone(),
	}, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return c.scrubErr(err)
}

func (c *Client) scrubErr(err error) error {
	return &scrubbedError{msg: c.Scrub(err.Error()), err: err}
}

// Scrub replaces every configured credential value in text, raw or
// query-escaped, with Placeholder.
func (c *Client) Scrub(text string) string {
	for _, form := range c.scrub {
		text = strings.ReplaceAll(text, form, Placeholder)
	}
	return text
}

// scrubForms lists the raw, query-escaped and path-escaped form of every
// set credential, deduplicated and sorted longest first.
func scrubForms(endpoints map[Category]endpoint) []string {
	seen := make(map[string]bool)
	var forms []string
	for _, ep := range endpoints {
		if ep.secret.empty() {
			continue
		}
		raw := ep.secret.reveal()
		for _, f := range []string{raw, url.QueryEscape(raw), url.PathEscape(raw)} {
			if !seen[f] {
				seen[f] = true
				forms = append(forms, f)
			}
		}
	}
	sort.Slice(forms, func(i, j int) bool {
		if len(forms[i]) != len(forms[j]) {
			return len(forms[i]) > len(forms[j])
		}
		return forms[i] < forms[j]
	})
	return forms
}

// resolve joins base with target.Path and merges target.Query into any
// query the base already carries.
func resolve(base string, target Target) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if target.Path != "" {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(target.Path, "/")
		u.RawPath = ""
	}
	if len(target.Query) > 0 {
		q := u.Query()
		for k, vs := range target.Query {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

type categoryKey struct{}

func withCategory(ctx context.Context, c Category) context.Context {
	return context.WithValue(ctx, categoryKey{}, c)
}

// authRoundTripper injects the credential of the request's category.
type authRoundTripper struct {
	base      http.RoundTripper
	endpoints map[Category]endpoint
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	category, _ := req.Context().Value(categoryKey{}).(Category)
	ep, ok := t.endpoints[category]
	if !ok || ep.secret.empty() {
		return t.base.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	switch ep.scheme {
	case schemePVEToken:
		req.Header.Set("Authorization", "PVEAPIToken="+ep.secret.reveal())
	case schemeBearer:
		req.Header.Set("Authorization", "Bearer "+ep.secret.reveal())
	case schemeQuery:
		q := req.URL.Query()
		q.Set(ep.param, ep.secret.reveal())
		req.URL.RawQuery = q.Encode()
	}
	return t.base.RoundTrip(req)
}

// buildTransport constructs the single transport shared by every category.
func buildTransport(cfg config.TLSConfig) (*http.Transport, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if cfg.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs found in ca file %q", cfg.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     tlsCfg,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        32,
		IdleConnTimeout:     90 * time.Second,
	}, nil
}
