package nav

import (
	"context"
	"sync"

	"github.com/hazyhaar/navkeeper/scrollmem"
)

// fakeBrowser implements the history and DOM surfaces of both scrollmem and
// this package, mimicking one browser page: a history stack of (url, state)
// entries, a viewport region, and a set of fragment targets.
type fakeBrowser struct {
	mu       sync.Mutex
	entries  []fakeEntry
	index    int
	viewport fakeViewport
	ids      map[string]*fakeFragment
	pushErr  error
}

type fakeEntry struct {
	url   string
	state map[string]any
}

type fakeViewport struct {
	x, y    float64
	scrolls []scrollmem.Offset
}

type fakeFragment struct{ viewCalls int }

func newFakeBrowser(url string) *fakeBrowser {
	return &fakeBrowser{
		entries: []fakeEntry{{url: url}},
		ids:     make(map[string]*fakeFragment),
	}
}

// scrollmem.History

func (b *fakeBrowser) State() (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[b.index].state, nil
}

func (b *fakeBrowser) ReplaceState(state map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.index].state = state
	return nil
}

func (b *fakeBrowser) DisableNativeRestoration() error { return nil }

// nav.History

func (b *fakeBrowser) Push(state map[string]any, url string) error {
	if b.pushErr != nil {
		return b.pushErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries[:b.index+1], fakeEntry{url: url, state: state})
	b.index = len(b.entries) - 1
	return nil
}

func (b *fakeBrowser) Location() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[b.index].url, nil
}

// back moves the history index like a browser back button.
func (b *fakeBrowser) back() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index > 0 {
		b.index--
	}
}

func (b *fakeBrowser) entryCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// scrollmem.Document

func (b *fakeBrowser) ElementByID(id string) (scrollmem.Element, bool) {
	frag, ok := b.ids[id]
	if !ok {
		return nil, false
	}
	return frag, true
}

func (b *fakeBrowser) Query(string) (scrollmem.Element, bool) { return nil, false }

func (b *fakeBrowser) Viewport() scrollmem.Region { return &b.viewport }

func (v *fakeViewport) Offset() (scrollmem.Offset, error) {
	return scrollmem.Offset{X: v.x, Y: v.y}, nil
}

func (v *fakeViewport) ScrollTo(off scrollmem.Offset) error {
	v.scrolls = append(v.scrolls, off)
	v.x, v.y = off.X, off.Y
	return nil
}

func (f *fakeFragment) Parent() (scrollmem.Element, bool) { return nil, false }
func (f *fakeFragment) IsDocumentRoot() bool              { return false }
func (f *fakeFragment) OverflowY() (string, error)        { return "visible", nil }
func (f *fakeFragment) Region() scrollmem.Region          { return nil }
func (f *fakeFragment) ScrollIntoView() error {
	f.viewCalls++
	return nil
}

// fakeFetcher returns scripted responses and records requests.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*Response
	err       error
	requests  []*Request
	// blocked maps targets to gates: a fetch for such a target parks
	// until its gate is closed. Used to interleave concurrent visits.
	blocked map[string]chan struct{}
	// entered, when non-nil, receives each target as its fetch begins.
	entered chan string
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate := f.blocked[req.Target]
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- req.Target
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if resp, ok := f.responses[req.Target]; ok {
		return resp, nil
	}
	return &Response{Status: 200, URL: req.Target, Body: "<div id=\"app\">ok</div>"}, nil
}

func (f *fakeFetcher) lastRequest() *Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

// fakeRenderer reports scripted outcomes and records payloads.
type fakeRenderer struct {
	mu     sync.Mutex
	ok     bool
	bodies []string
}

func (r *fakeRenderer) Render(_ context.Context, html string) bool {
	r.mu.Lock()
	r.bodies = append(r.bodies, html)
	r.mu.Unlock()
	return r.ok
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}
