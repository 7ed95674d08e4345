package nav

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/hazyhaar/navkeeper/scrollmem"
)

func newTestController(t *testing.T) (*Controller, *fakeBrowser, *fakeFetcher, *fakeRenderer) {
	t.Helper()
	b := newFakeBrowser("http://app.local/")
	store := scrollmem.NewStore(b, b, scrollmem.NewMemoryKV(), nil)
	fetch := &fakeFetcher{}
	render := &fakeRenderer{ok: true}
	c := New(store, b, render, WithFetcher(fetch))
	return c, b, fetch, render
}

func kindsEqual(got, want []EventKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestVisit_PushSuccess(t *testing.T) {
	c, b, _, _ := newTestController(t)
	rec := &recorder{}
	c.Subscribe(rec.record)

	res, err := c.Visit(context.Background(), "/about", VisitOptions{
		Method: http.MethodGet,
		Push:   true,
		State:  map[string]any{"view": "about"},
	})
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}
	if !res.Rendered {
		t.Fatal("Visit: expected rendered result")
	}
	if res.FinalURL != "/about" {
		t.Fatalf("Visit: final URL %q, want /about", res.FinalURL)
	}

	if b.entryCount() != 2 {
		t.Fatalf("Visit: %d history entries, want 2", b.entryCount())
	}
	state := b.entries[1].state
	if state["view"] != "about" {
		t.Fatalf("Visit: host state lost, got %v", state)
	}
	if id, ok := state[scrollmem.StateKey].(string); !ok || id == "" {
		t.Fatalf("Visit: pushed entry lacks restoration id: %v", state)
	}

	want := []EventKind{EventNavStarted, EventRenderSucceeded, EventNavEnded}
	if got := rec.kinds(); !kindsEqual(got, want) {
		t.Fatalf("Visit: events %v, want %v", got, want)
	}

	// A plain push navigation ends at the top.
	last := b.viewport.scrolls[len(b.viewport.scrolls)-1]
	if last != (scrollmem.Offset{}) {
		t.Fatalf("Visit: push scrolled to %v, want (0,0)", last)
	}
}

func TestVisit_PreserveIntent(t *testing.T) {
	c, b, _, _ := newTestController(t)
	if _, err := c.Visit(context.Background(), "/feed", VisitOptions{
		Method: http.MethodGet,
		Push:   true,
		Intent: scrollmem.IntentPreserve,
	}); err != nil {
		t.Fatalf("Visit: %v", err)
	}
	if n := len(b.viewport.scrolls); n != 0 {
		t.Fatalf("Visit: preserve intent produced %d scroll calls, want 0", n)
	}
}

func TestVisit_RenderFailureIsInert(t *testing.T) {
	c, b, _, render := newTestController(t)
	render.ok = false
	rec := &recorder{}
	c.Subscribe(rec.record)

	res, err := c.Visit(context.Background(), "/broken", VisitOptions{
		Method: http.MethodGet,
		Push:   true,
	})
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}
	if res.Rendered {
		t.Fatal("Visit: result claims rendered after renderer refused")
	}
	if b.entryCount() != 1 {
		t.Fatalf("Visit: render failure still created a history entry (%d entries)", b.entryCount())
	}
	if n := len(b.viewport.scrolls); n != 0 {
		t.Fatalf("Visit: render failure still scrolled (%d calls)", n)
	}
	want := []EventKind{EventNavStarted, EventRenderFailed, EventNavEnded}
	if got := rec.kinds(); !kindsEqual(got, want) {
		t.Fatalf("Visit: events %v, want %v", got, want)
	}
}

func TestVisit_FetchErrorPropagates(t *testing.T) {
	c, _, fetch, _ := newTestController(t)
	fetch.err = errors.New("connection refused")
	rec := &recorder{}
	c.Subscribe(rec.record)

	_, err := c.Visit(context.Background(), "/away", VisitOptions{Method: http.MethodGet, Push: true})
	if err == nil {
		t.Fatal("Visit: expected transport error")
	}
	// Started fires, ended does not: the rejection propagates instead.
	want := []EventKind{EventNavStarted}
	if got := rec.kinds(); !kindsEqual(got, want) {
		t.Fatalf("Visit: events %v, want %v", got, want)
	}
}

func TestVisit_RedirectUsesFinalURL(t *testing.T) {
	c, b, fetch, _ := newTestController(t)
	fetch.responses = map[string]*Response{
		"/old": {Status: 200, URL: "/new", Body: "<div>moved</div>"},
	}
	res, err := c.Visit(context.Background(), "/old", VisitOptions{Method: http.MethodGet, Push: true})
	if err != nil {
		t.Fatalf("Visit: %v", err)
	}
	if res.FinalURL != "/new" {
		t.Fatalf("Visit: final URL %q, want /new", res.FinalURL)
	}
	if got := b.entries[1].url; got != "/new" {
		t.Fatalf("Visit: history entry URL %q, want /new", got)
	}
}

func TestBackForwardRestoresScroll(t *testing.T) {
	// Forward, scroll to 500, forward again, then browser back.
	c, b, _, _ := newTestController(t)
	ctx := context.Background()

	if _, err := c.Navigate(ctx, "/first", NavigateOptions{}); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	b.viewport.y = 500

	if _, err := c.Navigate(ctx, "/second", NavigateOptions{}); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	b.back()
	if err := c.OnPop(ctx); err != nil {
		t.Fatalf("OnPop: %v", err)
	}

	last := b.viewport.scrolls[len(b.viewport.scrolls)-1]
	if last != (scrollmem.Offset{X: 0, Y: 500}) {
		t.Fatalf("OnPop: restored %v, want (0,500)", last)
	}
	if b.entryCount() != 3 {
		t.Fatalf("OnPop: pop created a history entry (%d entries)", b.entryCount())
	}
}

func TestVisit_FragmentTargetScrolls(t *testing.T) {
	// Navigating to /page#section brings the element into view and never
	// scrolls the viewport to the top.
	c, b, _, _ := newTestController(t)
	frag := &fakeFragment{}
	b.ids["section"] = frag

	if _, err := c.Navigate(context.Background(), "/page#section", NavigateOptions{}); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if frag.viewCalls != 1 {
		t.Fatalf("Navigate: fragment scrolled into view %d times, want 1", frag.viewCalls)
	}
	if n := len(b.viewport.scrolls); n != 0 {
		t.Fatalf("Navigate: viewport scrolled %d times alongside a fragment", n)
	}
}

func TestVisit_SupersededSkipsMutations(t *testing.T) {
	c, b, fetch, _ := newTestController(t)
	gate := make(chan struct{})
	fetch.blocked = map[string]chan struct{}{"/slow": gate}
	fetch.entered = make(chan string, 2)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Visit(ctx, "/slow", VisitOptions{Method: http.MethodGet, Push: true})
		firstDone <- err
	}()
	<-fetch.entered // the slow visit is parked in its fetch

	// A second visit starts and fully completes while the first is in
	// flight, superseding it.
	if _, err := c.Visit(ctx, "/fast", VisitOptions{Method: http.MethodGet, Push: true}); err != nil {
		t.Fatalf("Visit fast: %v", err)
	}
	close(gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("Visit slow: %v", err)
	}

	// Only the newest visit may touch history: the superseded one renders
	// but pushes nothing.
	if b.entryCount() != 2 {
		t.Fatalf("Visit: %d history entries after racing visits, want 2", b.entryCount())
	}
	if got := b.entries[1].url; got != "/fast" {
		t.Fatalf("Visit: surviving entry %q, want /fast", got)
	}
}

func TestVisit_ResolvesDocumentRelativeTargets(t *testing.T) {
	cases := []struct {
		name   string
		target string
		want   string
	}{
		{"bare path", "about", "http://app.local/section/about"},
		{"query only", "?tab=2", "http://app.local/section/page?tab=2"},
		{"path with fragment", "guide#usage", "http://app.local/section/guide#usage"},
		{"rooted path", "/docs", "/docs"},
		{"absolute", "http://app.local/x", "http://app.local/x"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newFakeBrowser("http://app.local/section/page")
			store := scrollmem.NewStore(b, b, scrollmem.NewMemoryKV(), nil)
			fetch := &fakeFetcher{}
			c := New(store, b, &fakeRenderer{ok: true}, WithFetcher(fetch))

			if _, err := c.Visit(context.Background(), tc.target, VisitOptions{
				Method: http.MethodGet,
				Push:   true,
			}); err != nil {
				t.Fatalf("Visit: %v", err)
			}
			if got := fetch.lastRequest().Target; got != tc.want {
				t.Fatalf("Visit(%q): fetched %q, want %q", tc.target, got, tc.want)
			}
		})
	}
}

func TestSubscribe_Cancel(t *testing.T) {
	c, _, _, _ := newTestController(t)
	rec := &recorder{}
	sub := c.Subscribe(rec.record)
	sub.Cancel()

	if _, err := c.Navigate(context.Background(), "/x", NavigateOptions{}); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if n := len(rec.kinds()); n != 0 {
		t.Fatalf("Subscribe: cancelled listener still saw %d events", n)
	}
}

func TestRefresh_KeepsPosition(t *testing.T) {
	c, b, fetch, _ := newTestController(t)
	b.viewport.y = 250
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	req := fetch.lastRequest()
	if req.Push {
		t.Fatal("Refresh: refetch must not be a push")
	}
	if req.Target != "http://app.local/" {
		t.Fatalf("Refresh: fetched %q, want current location", req.Target)
	}
	// The position saved on departure is restored on arrival.
	last := b.viewport.scrolls[len(b.viewport.scrolls)-1]
	if last != (scrollmem.Offset{X: 0, Y: 250}) {
		t.Fatalf("Refresh: ended at %v, want (0,250)", last)
	}
}

func TestApplyPush_UsesPushRenderer(t *testing.T) {
	b := newFakeBrowser("http://app.local/")
	store := scrollmem.NewStore(b, b, scrollmem.NewMemoryKV(), nil)
	render := &fakeRenderer{ok: true}
	pushRender := &fakeRenderer{ok: true}
	c := New(store, b, render, WithFetcher(&fakeFetcher{}), WithPushRenderer(pushRender))

	if !c.ApplyPush(context.Background(), "<div id=\"app\">pushed</div>") {
		t.Fatal("ApplyPush: push renderer accepted markup but ApplyPush returned false")
	}
	if len(pushRender.bodies) != 1 || len(render.bodies) != 0 {
		t.Fatalf("ApplyPush: push renderer saw %d bodies, navigation renderer %d; want 1 and 0",
			len(pushRender.bodies), len(render.bodies))
	}

	// Fetched navigations keep using the navigation renderer.
	if _, err := c.Navigate(context.Background(), "/live", NavigateOptions{}); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if len(render.bodies) != 1 || len(pushRender.bodies) != 1 {
		t.Fatalf("Navigate: navigation renderer saw %d bodies, push renderer %d; want 1 and 1",
			len(render.bodies), len(pushRender.bodies))
	}
}

func TestApplyPush(t *testing.T) {
	c, b, _, render := newTestController(t)
	if !c.ApplyPush(context.Background(), "<div id=\"app\">pushed</div>") {
		t.Fatal("ApplyPush: renderer accepted markup but ApplyPush returned false")
	}
	if len(render.bodies) != 1 {
		t.Fatalf("ApplyPush: renderer called %d times, want 1", len(render.bodies))
	}
	if b.entryCount() != 1 {
		t.Fatal("ApplyPush: out-of-band markup mutated history")
	}
	if n := len(b.viewport.scrolls); n != 0 {
		t.Fatal("ApplyPush: out-of-band markup scrolled the page")
	}
}
