package nav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/hazyhaar/navkeeper/scrollmem"
)

// Controller ties fetch, render, history and scroll together. Create one
// per page with New; all collaborators are passed in, none are global.
type Controller struct {
	store  *scrollmem.Store
	hist   History
	fetch  Fetcher
	render Renderer
	// pushRender, when set, renders out-of-band pushed markup instead of
	// render. Pushed markup is less trusted than a same-origin fetch, so
	// the caller may want a sanitizing renderer here and a plain one for
	// navigations.
	pushRender Renderer
	logger     *slog.Logger

	// seq orders visits. A visit whose sequence is superseded before its
	// side-effect phase skips history and scroll mutation, so concurrent
	// in-flight visits cannot corrupt the stack: the last visit started
	// owns the shared state.
	seq atomic.Uint64

	events *eventHub
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithFetcher replaces the default net/http fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Controller) { c.fetch = f }
}

// WithPushRenderer sets a dedicated renderer for markup arriving over the
// push channel. Without it, pushed markup goes through the same renderer as
// fetched navigations.
func WithPushRenderer(r Renderer) Option {
	return func(c *Controller) { c.pushRender = r }
}

// New creates a Controller.
func New(store *scrollmem.Store, hist History, render Renderer, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		hist:   hist,
		render: render,
		fetch:  NewHTTPFetcher(""),
		logger: slog.Default(),
		events: newEventHub(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Subscribe registers a listener for all navigation lifecycle events.
func (c *Controller) Subscribe(fn func(Event)) *Subscription {
	return c.events.add(fn)
}

// VisitOptions carries the per-navigation parameters of Visit.
type VisitOptions struct {
	Method      string
	Body        io.Reader
	ContentType string
	// State is merged into the history entry state on a successful push,
	// alongside the restoration id.
	State  map[string]any
	Push   bool
	Intent scrollmem.Intent
}

// Visit performs one navigation cycle: save the departing scroll position,
// fetch the target, hand the body to the render collaborator, and — only on
// render success — advance or resynchronize history and apply the scroll
// action for the arriving entry.
//
// A render failure leaves the visible page and the history stack exactly as
// they were; listeners still see render-failed and nav-ended. A transport
// failure propagates as the returned error with no retry and no nav-ended.
func (c *Controller) Visit(ctx context.Context, target string, opts VisitOptions) (*Result, error) {
	seq := c.seq.Add(1)
	target = c.resolveTarget(target)

	req := &Request{
		Target:      target,
		Method:      opts.Method,
		Body:        opts.Body,
		ContentType: opts.ContentType,
		Push:        opts.Push,
		Intent:      opts.Intent,
	}

	c.store.Save()
	c.events.emit(Event{Kind: EventNavStarted, Request: req})

	resp, err := c.fetch.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	finalURL := resp.URL
	if finalURL == "" {
		finalURL = target
	}

	res := &Result{
		Status:   resp.Status,
		Body:     resp.Body,
		FinalURL: finalURL,
	}

	if !c.render.Render(ctx, resp.Body) {
		c.logger.Warn("nav: render failed", "target", target, "status", resp.Status)
		c.events.emit(Event{Kind: EventRenderFailed, Request: req, Result: res})
		c.events.emit(Event{Kind: EventNavEnded, Request: req, Result: res})
		return res, nil
	}
	res.Rendered = true

	if c.seq.Load() == seq {
		c.applySideEffects(req, opts.State, finalURL)
	} else {
		c.logger.Debug("nav: visit superseded, skipping history and scroll",
			"target", target, "seq", seq)
	}

	c.events.emit(Event{Kind: EventRenderSucceeded, Request: req, Result: res})
	c.events.emit(Event{Kind: EventNavEnded, Request: req, Result: res})
	return res, nil
}

// resolveTarget makes document-relative targets ("about", "?tab=2") absolute
// against the current location. Rooted paths and absolute URLs pass through
// untouched; the fetcher already knows what to do with those.
func (c *Controller) resolveTarget(target string) string {
	ref, err := url.Parse(target)
	if err != nil || ref.Scheme != "" || ref.Host != "" || strings.HasPrefix(ref.Path, "/") {
		return target
	}
	loc, err := c.hist.Location()
	if err != nil {
		c.logger.Warn("nav: read location for relative target", "target", target, "error", err)
		return target
	}
	base, err := url.Parse(loc)
	if err != nil || base.Scheme == "" {
		return target
	}
	return base.ResolveReference(ref).String()
}

func (c *Controller) applySideEffects(req *Request, hostState map[string]any, finalURL string) {
	if req.Push {
		frag := c.store.Push()
		state := make(map[string]any, len(hostState)+len(frag))
		for k, v := range hostState {
			state[k] = v
		}
		for k, v := range frag {
			state[k] = v
		}
		if err := c.hist.Push(state, finalURL); err != nil {
			c.logger.Warn("nav: history push failed", "url", finalURL, "error", err)
		}
	} else {
		c.store.Pop()
	}
	c.store.Scroll(req.Push, req.Intent, finalURL)
}

// NavigateOptions carries the optional parameters of Navigate.
type NavigateOptions struct {
	// Intent overrides the default scroll-to-top policy.
	Intent scrollmem.Intent
	// State is merged into the pushed history entry.
	State map[string]any
}

// Navigate is the programmatic equivalent of a link click.
func (c *Controller) Navigate(ctx context.Context, path string, opts NavigateOptions) (*Result, error) {
	return c.Visit(ctx, path, VisitOptions{
		Method: http.MethodGet,
		Push:   true,
		Intent: opts.Intent,
		State:  opts.State,
	})
}

// OnPop re-enters the controller for a browser back/forward event: refetch
// the now-current location as a pop, restoring the saved scroll position.
func (c *Controller) OnPop(ctx context.Context) error {
	loc, err := c.hist.Location()
	if err != nil {
		return fmt.Errorf("nav: read location on pop: %w", err)
	}
	_, err = c.Visit(ctx, loc, VisitOptions{Method: http.MethodGet, Push: false})
	return err
}

// Refresh refetches the current location in place, keeping the user's
// scroll position. The push channel calls this on a refetch signal.
func (c *Controller) Refresh(ctx context.Context) error {
	loc, err := c.hist.Location()
	if err != nil {
		return fmt.Errorf("nav: read location on refresh: %w", err)
	}
	_, err = c.Visit(ctx, loc, VisitOptions{
		Method: http.MethodGet,
		Push:   false,
		Intent: scrollmem.IntentPreserve,
	})
	return err
}

// ApplyPush hands out-of-band markup straight to the render collaborator.
// No fetch, no history mutation, no scroll action.
func (c *Controller) ApplyPush(ctx context.Context, html string) bool {
	render := c.render
	if c.pushRender != nil {
		render = c.pushRender
	}
	ok := render.Render(ctx, html)
	if !ok {
		c.logger.Warn("nav: pushed markup rejected by renderer")
	}
	return ok
}
