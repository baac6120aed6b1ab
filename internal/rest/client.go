// Package rest talks to the cluster over its JSON REST API. Client
// implements the remote interfaces the evaluation core depends on.
package rest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paveg/rapids/internal/config"
	"github.com/paveg/rapids/internal/remote"
	"github.com/paveg/rapids/internal/version"
	"github.com/tidwall/gjson"
)

const (
	rapidsPath   = "/99/Rapids"
	framesPath   = "/3/Frames/"
	dkvPath      = "/3/DKV/"
	downloadPath = "/3/DownloadDataset"
	createPath   = "/3/CreateFrame"
	jobsPath     = "/3/Jobs/"
)

var (
	_ remote.Transport    = (*Client)(nil)
	_ remote.Describer    = (*Client)(nil)
	_ remote.Downloader   = (*Client)(nil)
	_ remote.FrameCreator = (*Client)(nil)
)

// Client is a REST client for one cluster. It is safe for concurrent use.
type Client struct {
	baseURL      *url.URL
	http         *http.Client
	userAgent    string
	pollInterval time.Duration
	jobTimeout   time.Duration
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the cluster at cfg.URL.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing cluster URL: %w", err)
	}
	c := &Client{
		baseURL:      base,
		http:         &http.Client{Timeout: cfg.Timeout},
		userAgent:    cfg.UserAgent,
		pollInterval: cfg.PollInterval,
		jobTimeout:   cfg.JobTimeout,
		logger:       slog.Default(),
	}
	if c.userAgent == "" {
		c.userAgent = version.UserAgent()
	}
	if c.pollInterval <= 0 {
		c.pollInterval = config.DefaultPollInterval
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// HTTPError is a non-success response from the cluster.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap maps 404 to remote.ErrNotFound.
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return remote.ErrNotFound
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path += path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query, form url.Values) (*http.Response, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug("http request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))
	return resp, nil
}

// doJSON performs a request and returns the body of a 2xx response.
// Other statuses become an *HTTPError carrying the server's message.
func (c *Client) doJSON(ctx context.Context, method, path string, query, form url.Values) ([]byte, error) {
	resp, err := c.do(ctx, method, path, query, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		return data, &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    serverMessage(data),
		}
	}
	return data, nil
}

// serverMessage extracts the diagnostic from an error body.
func serverMessage(data []byte) string {
	if !gjson.ValidBytes(data) {
		return strings.TrimSpace(string(data))
	}
	for _, path := range []string{"exception_msg", "msg", "error"} {
		if r := gjson.GetBytes(data, path); r.Exists() && r.Type != gjson.Null {
			return r.String()
		}
	}
	return ""
}

// Submit implements remote.Transport. Evaluation failures reported by the
// cluster, whether in a 200 body or as a 4xx with a message, come back in
// Result.Error.
func (c *Client) Submit(ctx context.Context, ast string) (*remote.Result, error) {
	data, err := c.doJSON(ctx, http.MethodPost, rapidsPath, nil, url.Values{"ast": {ast}})
	if err != nil {
		if herr, ok := err.(*HTTPError); ok && herr.StatusCode < 500 && herr.Message != "" {
			return &remote.Result{Error: herr.Message}, nil
		}
		return nil, err
	}
	return parseRapids(data)
}

func parseRapids(data []byte) (*remote.Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("malformed Rapids response")
	}
	body := gjson.ParseBytes(data)
	res := &remote.Result{
		Key:  body.Get("key.name").String(),
		Rows: body.Get("num_rows").Int(),
		Cols: int(body.Get("num_cols").Int()),
	}
	if e := body.Get("error"); e.Exists() && e.Type != gjson.Null {
		res.Error = e.String()
	}
	res.Scalar = scalarValue(body)
	return res, nil
}

func scalarValue(body gjson.Result) remote.Value {
	if s := body.Get("scalar"); s.Exists() {
		switch s.Type {
		case gjson.Number:
			return remote.NumberValue(s.Float())
		case gjson.String:
			if f, err := strconv.ParseFloat(s.Str, 64); err == nil {
				return remote.NumberValue(f)
			}
			return remote.StringValue(s.Str)
		case gjson.True:
			return remote.NumberValue(1)
		case gjson.False:
			return remote.NumberValue(0)
		}
	}
	if s := body.Get("string"); s.Exists() && s.Type == gjson.String {
		return remote.StringValue(s.Str)
	}
	return remote.Value{}
}

// Delete implements remote.Transport. A missing key yields an error
// wrapping remote.ErrNotFound.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, dkvPath+url.PathEscape(key), nil, nil)
	return err
}

// Describe implements remote.Describer.
func (c *Client) Describe(ctx context.Context, key string) (*remote.Description, error) {
	query := url.Values{"row_count": {"0"}}
	data, err := c.doJSON(ctx, http.MethodGet, framesPath+url.PathEscape(key), query, nil)
	if err != nil {
		return nil, err
	}
	frame := gjson.GetBytes(data, "frames.0")
	if !frame.Exists() {
		return nil, fmt.Errorf("describing %s: %w", key, remote.ErrNotFound)
	}
	desc := &remote.Description{
		Key:  frame.Get("frame_id.name").String(),
		Rows: frame.Get("rows").Int(),
	}
	for _, label := range frame.Get("columns.#.label").Array() {
		desc.Columns = append(desc.Columns, label.String())
	}
	return desc, nil
}

// Download implements remote.Downloader. The caller closes the stream.
func (c *Client) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, downloadPath, url.Values{"frame_id": {key}}, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, &HTTPError{
			Method:     http.MethodGet,
			Path:       downloadPath,
			StatusCode: resp.StatusCode,
			Message:    serverMessage(data),
		}
	}
	return resp.Body, nil
}
