package nav

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFetcher fetches navigations with a plain net/http client. Redirects
// are followed; the resulting URL after redirects becomes Response.URL.
type HTTPFetcher struct {
	// BaseURL resolves relative targets ("/page") when the controller runs
	// outside a browser context. Empty means targets must be absolute.
	BaseURL string
	Client  *http.Client
}

// NewHTTPFetcher creates a fetcher with a 30 second timeout, matching the
// navigation timeout used by the browser adapter.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := req.Target
	if f.BaseURL != "" && len(target) > 0 && target[0] == '/' {
		target = f.BaseURL + target
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, req.Body)
	if err != nil {
		return nil, fmt.Errorf("nav: build request %s: %w", req.Target, err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "text/html")

	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("nav: fetch %s: %w", req.Target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nav: read body %s: %w", req.Target, err)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		URL:    resp.Request.URL.String(),
		Body:   string(body),
	}, nil
}
