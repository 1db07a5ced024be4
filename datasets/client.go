package datasets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public ColabFit streaming service.
	DefaultBaseURL = "https://cf.hsrn.nyu.edu"

	DefaultResolvePath = "/po"
	DefaultFetchPath   = "/dataloader"

	// maxErrorBody bounds how much of a failed response is kept in StatusError.
	maxErrorBody = 512
)

// Client talks to the ColabFit streaming service. It implements both
// Resolver and Fetcher. A Client holds no per-request state and may be
// shared by any number of goroutines.
type Client struct {
	BaseURL     string
	ResolvePath string
	FetchPath   string

	// HTTPClient performs the requests. Its Timeout is the only deadline
	// applied besides the caller's context.
	HTTPClient *http.Client

	logger zerolog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.HTTPClient = hc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPaths overrides the resolve and fetch endpoint paths. Empty values
// keep the defaults.
func WithPaths(resolvePath, fetchPath string) ClientOption {
	return func(c *Client) {
		if resolvePath != "" {
			c.ResolvePath = resolvePath
		}
		if fetchPath != "" {
			c.FetchPath = fetchPath
		}
	}
}

// WithTimeout sets the timeout of the client's HTTP client. Zero means none.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.HTTPClient.Timeout = d
	}
}

// NewClient creates a client for the service at baseURL (DefaultBaseURL if
// empty). The default transport negotiates gzip and zstd compressed
// responses.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		ResolvePath: DefaultResolvePath,
		FetchPath:   DefaultFetchPath,
		HTTPClient: &http.Client{
			Transport: gzhttp.Transport(http.DefaultTransport),
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type resolveRequest struct {
	Datasets []string `json:"datasets"`
}

type fetchRequest struct {
	POList []string `json:"po_list"`
}

// ResolveRecords returns the identifiers of every record in the given
// datasets, in the order the service returns them.
func (c *Client) ResolveRecords(ctx context.Context, datasets []string) ([]string, error) {
	var ids []string
	if err := c.post(ctx, c.ResolvePath, resolveRequest{Datasets: datasets}, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		return nil, integrityErrorf("resolve response is not an array of record ids")
	}
	c.logger.Debug().
		Int("datasets", len(datasets)).
		Int("records", len(ids)).
		Msg("resolved record ids")
	return ids, nil
}

// FetchRecords fetches and decodes the payloads of the given records. Each
// payload is validated as it is decoded; the first invalid payload fails the
// whole call.
func (c *Client) FetchRecords(ctx context.Context, ids []string) ([]RecordPayload, error) {
	var payloads []RecordPayload
	if err := c.post(ctx, c.FetchPath, fetchRequest{POList: ids}, &payloads); err != nil {
		return nil, err
	}
	if payloads == nil {
		return nil, integrityErrorf("fetch response is not an array of records")
	}
	c.logger.Debug().
		Int("requested", len(ids)).
		Int("received", len(payloads)).
		Msg("fetched records")
	return payloads, nil
}

// post sends body as JSON to path and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	url := c.BaseURL + path

	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request for %s: %w", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %w", ErrTransport, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// Payload validation failures already carry ErrDataIntegrity.
		if isIntegrity(err) {
			return err
		}
		return fmt.Errorf("%w: decode response from %s: %w", ErrDataIntegrity, url, err)
	}

	c.logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request complete")
	return nil
}
