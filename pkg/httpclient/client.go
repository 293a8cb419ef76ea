// Package httpclient is a thin resty wrapper shared by outbound HTTP callers.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "berita-emiten/1.0 (+https://github.com/Adda-Baaj/berita-emiten)"

// Response is the subset of a resty response callers rely on.
type Response interface {
	StatusCode() int
	Body() []byte
}

// Client performs HTTP requests.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (Response, error)
}

type restyClient struct {
	r *resty.Client
}

// NewRestyClient returns a Client with the given per-request timeout.
func NewRestyClient(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	r := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", defaultUserAgent)
	return &restyClient{r: r}
}

func (c *restyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	return c.Do(ctx, http.MethodGet, url, headers, nil)
}

func (c *restyClient) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	req := c.r.R().SetContext(ctx).SetHeaders(headers)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	return resp, nil
}
