package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/navkeeper/scrollmem"
)

// ScrollContainerAttr is the opt-in attribute on the mount root naming an
// explicit scroll container selector.
const ScrollContainerAttr = "data-scroll-container"

// Tab wraps a Rod page and implements the core's browser surfaces:
// scrollmem.Document, scrollmem.History, scrollmem.KV, nav.History and
// hydrate.Applier.
type Tab struct {
	page   *rod.Page
	mount  string
	logger *slog.Logger
}

// OpenTab creates a new tab, navigates to the URL, and waits for load.
// mountSelector names the application's mount element within the page.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, mountSelector string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{
		page:   page,
		mount:  mountSelector,
		logger: mgr.cfg.Logger,
	}, nil
}

// Page exposes the underlying Rod page.
func (t *Tab) Page() *rod.Page { return t.page }

// Close closes the tab.
func (t *Tab) Close() error {
	if t.page != nil {
		return t.page.Close()
	}
	return nil
}

// ---- history surface ----

// State returns the current history entry's state object.
func (t *Tab) State() (map[string]any, error) {
	res, err := t.page.Eval(`() => history.state`)
	if err != nil {
		return nil, fmt.Errorf("browser: read history state: %w", err)
	}
	if res.Value.Nil() {
		return nil, nil
	}
	m, ok := res.Value.Val().(map[string]any)
	if !ok {
		return nil, nil
	}
	return m, nil
}

// ReplaceState swaps the current entry's state in place, no navigation.
func (t *Tab) ReplaceState(state map[string]any) error {
	_, err := t.page.Eval(`(s) => history.replaceState(s, "", location.href)`, state)
	if err != nil {
		return fmt.Errorf("browser: replace history state: %w", err)
	}
	return nil
}

// Push creates a new history entry carrying state at the given URL.
func (t *Tab) Push(state map[string]any, url string) error {
	_, err := t.page.Eval(`(s, u) => history.pushState(s, "", u)`, state, url)
	if err != nil {
		return fmt.Errorf("browser: push history state: %w", err)
	}
	return nil
}

// Location returns the current entry's URL.
func (t *Tab) Location() (string, error) {
	res, err := t.page.Eval(`() => location.href`)
	if err != nil {
		return "", fmt.Errorf("browser: read location: %w", err)
	}
	return res.Value.Str(), nil
}

// DisableNativeRestoration hands scroll restoration over to navkeeper.
func (t *Tab) DisableNativeRestoration() error {
	_, err := t.page.Eval(`() => {
		if ('scrollRestoration' in history) history.scrollRestoration = 'manual';
	}`)
	if err != nil {
		return fmt.Errorf("browser: disable native scroll restoration: %w", err)
	}
	return nil
}

// ---- session storage surface ----

// Get reads a sessionStorage key. Any failure reads as absent.
func (t *Tab) Get(key string) (string, bool) {
	res, err := t.page.Eval(`(k) => sessionStorage.getItem(k)`, key)
	if err != nil || res.Value.Nil() {
		return "", false
	}
	return res.Value.Str(), true
}

// Set writes a sessionStorage key.
func (t *Tab) Set(key, value string) error {
	_, err := t.page.Eval(`(k, v) => sessionStorage.setItem(k, v)`, key, value)
	if err != nil {
		return fmt.Errorf("browser: session storage write: %w", err)
	}
	return nil
}

// ---- document surface ----

// ElementByID finds an element by id.
func (t *Tab) ElementByID(id string) (scrollmem.Element, bool) {
	return t.query(fmt.Sprintf("[id=%q]", id))
}

// Query finds the first element matching a CSS selector.
func (t *Tab) Query(selector string) (scrollmem.Element, bool) {
	return t.query(selector)
}

func (t *Tab) query(selector string) (scrollmem.Element, bool) {
	has, el, err := t.page.Has(selector)
	if err != nil || !has {
		return nil, false
	}
	return &element{el: el, logger: t.logger}, true
}

// Viewport returns the window's scroll region.
func (t *Tab) Viewport() scrollmem.Region {
	return &viewportRegion{page: t.page}
}

// ScrollContainerSelector reads the mount root's explicit scroll container
// annotation, if present.
func (t *Tab) ScrollContainerSelector() string {
	has, el, err := t.page.Has(t.mount)
	if err != nil || !has {
		return ""
	}
	attr, err := el.Attribute(ScrollContainerAttr)
	if err != nil || attr == nil {
		return ""
	}
	return *attr
}

// ---- render application surface ----

// Apply swaps the live mount element's outerHTML for the given markup.
func (t *Tab) Apply(ctx context.Context, mountHTML string) error {
	_, err := t.page.Context(ctx).Eval(`(sel, html) => {
		const el = document.querySelector(sel);
		if (!el) throw new Error("mount element not found: " + sel);
		el.outerHTML = html;
	}`, t.mount, mountHTML)
	if err != nil {
		return fmt.Errorf("browser: apply markup: %w", err)
	}
	return nil
}

// ---- element and regions ----

type element struct {
	el     *rod.Element
	logger *slog.Logger
}

func (e *element) Parent() (scrollmem.Element, bool) {
	parent, err := e.el.Parent()
	if err != nil || parent == nil {
		return nil, false
	}
	return &element{el: parent, logger: e.logger}, true
}

func (e *element) IsDocumentRoot() bool {
	res, err := e.el.Eval(`() => this.tagName === 'HTML' || this.tagName === 'BODY'`)
	if err != nil {
		// Treat unknowns as the top of the tree so the walk stops.
		return true
	}
	return res.Value.Bool()
}

func (e *element) OverflowY() (string, error) {
	res, err := e.el.Eval(`() => getComputedStyle(this).overflowY`)
	if err != nil {
		return "", fmt.Errorf("browser: computed overflow: %w", err)
	}
	return res.Value.Str(), nil
}

func (e *element) Region() scrollmem.Region {
	return &elementRegion{el: e.el}
}

func (e *element) ScrollIntoView() error {
	return e.el.ScrollIntoView()
}

type elementRegion struct {
	el *rod.Element
}

func (r *elementRegion) Offset() (scrollmem.Offset, error) {
	res, err := r.el.Eval(`() => ({x: this.scrollLeft, y: this.scrollTop})`)
	if err != nil {
		return scrollmem.Offset{}, fmt.Errorf("browser: element scroll offset: %w", err)
	}
	return scrollmem.Offset{
		X: res.Value.Get("x").Num(),
		Y: res.Value.Get("y").Num(),
	}, nil
}

func (r *elementRegion) ScrollTo(off scrollmem.Offset) error {
	_, err := r.el.Eval(`(x, y) => this.scrollTo({left: x, top: y, behavior: "instant"})`, off.X, off.Y)
	if err != nil {
		return fmt.Errorf("browser: element scroll: %w", err)
	}
	return nil
}

type viewportRegion struct {
	page *rod.Page
}

func (r *viewportRegion) Offset() (scrollmem.Offset, error) {
	res, err := r.page.Eval(`() => ({x: window.scrollX, y: window.scrollY})`)
	if err != nil {
		return scrollmem.Offset{}, fmt.Errorf("browser: viewport scroll offset: %w", err)
	}
	return scrollmem.Offset{
		X: res.Value.Get("x").Num(),
		Y: res.Value.Get("y").Num(),
	}, nil
}

func (r *viewportRegion) ScrollTo(off scrollmem.Offset) error {
	_, err := r.page.Eval(`(x, y) => window.scrollTo({left: x, top: y, behavior: "instant"})`, off.X, off.Y)
	if err != nil {
		return fmt.Errorf("browser: viewport scroll: %w", err)
	}
	return nil
}
