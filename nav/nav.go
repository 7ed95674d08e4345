// Package nav is the single entry point for all navigation in a navkeeper
// page: programmatic visits, intercepted link clicks, intercepted form
// submissions, and browser back/forward re-entry.
//
// The Controller orchestrates the full cycle — save departing scroll, fetch,
// render, advance history, apply arriving scroll — and exposes a typed event
// stream for loading indicators and error surfaces. It renders no UI itself.
package nav

import (
	"context"
	"io"
	"net/http"

	"github.com/hazyhaar/navkeeper/scrollmem"
)

// Request describes one in-flight navigation. Created per navigation and
// discarded after the render attempt completes.
type Request struct {
	// Target is the requested URL or path, possibly carrying a fragment.
	Target string
	// Method is the HTTP method. Empty means GET.
	Method string
	// Body is the request body for non-GET submissions.
	Body io.Reader
	// ContentType is the body's content type.
	ContentType string
	// Push is true for forward navigation (new history entry), false for
	// a replay of an existing entry (back/forward, refresh).
	Push bool
	// Intent is the scroll intent attached to this navigation.
	Intent scrollmem.Intent
}

// Response is the settled fetch: status, final URL after redirects, and the
// body read out as text. A non-2xx status is not an error at this layer.
type Response struct {
	Status int
	Header http.Header
	// URL is the fetch's resulting URL — differs from the request target
	// when the server redirected.
	URL  string
	Body string
}

// Result is the outcome Visit returns to its caller.
type Result struct {
	// Rendered reports whether the render collaborator accepted the
	// fetched markup.
	Rendered bool
	Status   int
	Body     string
	// FinalURL is the fetch's resulting URL on redirect, else the
	// originally requested target.
	FinalURL string
}

// Renderer is the render collaborator contract: locate the mount point in
// the given markup and swap the live tree, or report failure with no side
// effects.
type Renderer interface {
	Render(ctx context.Context, html string) bool
}

// History is the slice of the browser history stack the controller drives:
// pushing new entries and reading the current location for pops/refreshes.
type History interface {
	// Push creates a new history entry with the given state and URL.
	Push(state map[string]any, url string) error
	// Location returns the current entry's URL.
	Location() (string, error)
}

// Fetcher performs the network fetch for a navigation. Transport failure is
// an error; HTTP error statuses are not.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}
