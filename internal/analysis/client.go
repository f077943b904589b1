package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	generatePath = "/aigen/"

	DefaultRequestTimeout  = 30 * time.Second
	DefaultResourceTimeout = 60 * time.Second
)

// Request is one analysis call. Content is plain text, or base64 JPEG when IsImage is set.
type Request struct {
	Tags    []string
	Content string
	IsImage bool
}

type wireRequest struct {
	Tags    []string `json:"tags"`
	Content string   `json:"content"`
	IsImage int      `json:"isimage"`
}

// Client posts memo content to the generation service. It never retries.
type Client struct {
	baseURL         string
	token           string
	requestTimeout  time.Duration
	resourceTimeout time.Duration
	transport       http.RoundTripper
	log             zerolog.Logger

	http *resty.Client
}

type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeouts sets the header wait and the total call budget. Zero keeps the default.
func WithTimeouts(request, resource time.Duration) Option {
	return func(c *Client) {
		if request > 0 {
			c.requestTimeout = request
		}
		if resource > 0 {
			c.resourceTimeout = resource
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTransport replaces the HTTP transport. The request timeout is then the transport's concern.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		requestTimeout:  DefaultRequestTimeout,
		resourceTimeout: DefaultResourceTimeout,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := c.transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = c.requestTimeout
		transport = t
	}

	c.http = resty.New().
		SetTransport(transport).
		SetTimeout(c.resourceTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if c.token != "" {
		c.http.SetAuthToken(c.token)
	}
	return c
}

// Generate performs one request and yields exactly one outcome. Every error is an *Error.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()
	resp, err := c.generate(ctx, req)
	elapsed := time.Since(started)
	observe(err, elapsed)

	ev := c.log.Debug()
	if err != nil {
		ev = c.log.Warn().Err(err)
	}
	ev.Bool("image", req.IsImage).
		Int("content_len", len(req.Content)).
		Dur("elapsed", elapsed).
		Msg("analysis request")
	return resp, err
}

func (c *Client) generate(ctx context.Context, req Request) (*Response, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, &Error{Kind: KindInvalidEndpoint, Err: err}
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, &Error{Kind: KindEmptyContent, Err: errors.New("content is empty")}
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	body := wireRequest{Tags: tags, Content: req.Content}
	if req.IsImage {
		body.IsImage = 1
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(&body).
		Post(endpoint)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}

	switch code := res.StatusCode(); {
	case code == http.StatusUnauthorized:
		return nil, &Error{Kind: KindUnauthorized, StatusCode: code}
	case code < 200 || code > 299:
		return nil, &Error{Kind: KindServer, StatusCode: code}
	}

	data := res.Body()
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &Error{Kind: KindNoData, StatusCode: res.StatusCode()}
	}
	out, err := Decode(data)
	if err != nil {
		return nil, &Error{Kind: KindDecode, StatusCode: res.StatusCode(), Err: err}
	}
	return out, nil
}

func (c *Client) endpoint() (string, error) {
	if c.baseURL == "" {
		return "", errors.New("base URL is not configured")
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("base URL %q is not an http(s) URL", c.baseURL)
	}
	return c.baseURL + generatePath, nil
}
