// Package apiclient performs Bearer-authenticated GETs against the upstream data provider.
package apiclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/carlmjohnson/requests"

	"github.com/tmdbsync/golang_services/internal/core_domain"
)

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client. baseURL is only used by Download; FetchString takes absolute URLs.
// A nil httpClient gets a client without an overall timeout; callers bound requests with ctx.
func New(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger.With("component", "api_client"),
	}
}

// Download streams the body of baseURL+path into w. Non-2xx responses are errors.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) error {
	start := time.Now()
	err := requests.
		URL(c.baseURL).
		Path(path).
		Client(c.httpClient).
		Bearer(c.apiKey).
		ToWriter(w).
		Fetch(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "Download failed", "path", path, "error", err)
		return core_domain.Wrap(core_domain.ErrNetwork, "downloading "+path, err)
	}
	c.logger.DebugContext(ctx, "Download complete", "path", path, "duration", time.Since(start))
	return nil
}

// FetchString returns the body of url as a string. Non-2xx responses are errors.
func (c *Client) FetchString(ctx context.Context, url string) (string, error) {
	var body string
	err := requests.
		URL(url).
		Client(c.httpClient).
		Bearer(c.apiKey).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return "", core_domain.Wrap(core_domain.ErrNetwork, "fetching "+url, err)
	}
	return body, nil
}
