package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"unlockstudio/internal/domain"
	"unlockstudio/internal/gate"
)

// Path is where the proxy handler is mounted.
const Path = "/api/proxy-image"

// Client fetches remote artifacts through a proxy endpoint. It implements
// gate.Fetcher and makes exactly one request per call.
type Client struct {
	endpoint   string
	httpClient *http.Client
	maxBytes   int64
}

// NewClient targets the proxy mounted at baseURL.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("proxy: base url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{endpoint: baseURL + Path, httpClient: httpClient, maxBytes: DefaultMaxBytes}, nil
}

var _ gate.Fetcher = (*Client)(nil)

// Fetch implements gate.Fetcher. Non-2xx responses are download errors.
func (c *Client) Fetch(ctx context.Context, rawURL string) (gate.Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?url="+url.QueryEscape(rawURL), nil)
	if err != nil {
		return gate.Blob{}, domain.NewError(domain.KindDownload, "invalid image url", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gate.Blob{}, domain.NewError(domain.KindDownload, "download proxy unavailable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gate.Blob{}, domain.NewError(domain.KindDownload, fmt.Sprintf("download failed with status %d", resp.StatusCode), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return gate.Blob{}, domain.NewError(domain.KindDownload, "failed to read image", err)
	}
	if int64(len(data)) > c.maxBytes {
		return gate.Blob{}, domain.NewError(domain.KindDownload, "image exceeds size limit", nil)
	}
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mt == "" {
		mt = http.DetectContentType(data)
	}
	return gate.Blob{MIME: mt, Data: data}, nil
}
