package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"quill/internal/services"
)

// embeddedListing matches the JSON payload the device inlines into its HTML
// directory pages.
var embeddedListing = regexp.MustCompile(`(?s)const json = '(\{.*?\})'`)

// HTTPDoer describes the HTTP client used by the device client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches listings and file contents from the device.
type Client struct {
	baseURL string
	client  HTTPDoer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.client = doer
		}
	}
}

// NewClient constructs a device client for the given base URL
// (e.g. "http://192.168.1.139:8089").
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches the folder at uri and returns its entries. The uri is
// device-absolute (e.g. "/Note" or "/Note/Projects").
func (c *Client) List(ctx context.Context, uri string) ([]Entry, error) {
	body, err := c.get(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	page, err := io.ReadAll(body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "device", "list", uri, err)
	}
	match := embeddedListing.FindSubmatch(page)
	if match == nil {
		return nil, services.Wrap(services.ErrTransport, "device", "list", fmt.Sprintf("%s: no embedded listing payload", uri), nil)
	}
	var payload listingPayload
	if err := json.Unmarshal(match[1], &payload); err != nil {
		return nil, services.Wrap(services.ErrTransport, "device", "list", fmt.Sprintf("%s: parse listing payload", uri), err)
	}
	return payload.FileList, nil
}

// Download streams the file at uri into destPath, creating parent directories
// as needed. The destination holds the file's exact bytes or the call fails.
func (c *Client) Download(ctx context.Context, uri, destPath string) error {
	body, err := c.get(ctx, uri)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return services.Wrap(services.ErrTransport, "device", "download", "create staging directory", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return services.Wrap(services.ErrTransport, "device", "download", "create file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, body); err != nil {
		os.Remove(destPath)
		return services.Wrap(services.ErrTransport, "device", "download", uri, err)
	}
	return out.Close()
}

func (c *Client) get(ctx context.Context, uri string) (io.ReadCloser, error) {
	target := c.baseURL + "/" + strings.TrimLeft(uri, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "device", "request", target, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "device", "request", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, services.Wrap(services.ErrTransport, "device", "request",
			fmt.Sprintf("%s: http %d", target, resp.StatusCode), nil)
	}
	return resp.Body, nil
}
