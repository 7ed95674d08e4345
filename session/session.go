package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/navkeeper/browser"
	"github.com/hazyhaar/navkeeper/hydrate"
	"github.com/hazyhaar/navkeeper/nav"
	"github.com/hazyhaar/navkeeper/push"
	"github.com/hazyhaar/navkeeper/scrollmem"
	"github.com/hazyhaar/navkeeper/store"
)

// Session drives one browser tab: scroll memory, navigation interception,
// rendering and the optional server push channel.
type Session struct {
	cfg    *Config
	logger *slog.Logger

	mgr      *browser.Manager
	tab      *browser.Tab
	store    *scrollmem.Store
	ctrl     *nav.Controller
	listener *push.Listener
	router   *Router
	sub      *nav.Subscription
	sqlite   *store.SQLiteKV
}

// SessionOption customises New.
type SessionOption func(*Session)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// New creates an unstarted session from cfg.
func New(cfg *Config, opts ...SessionOption) *Session {
	s := &Session{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches or connects Chrome, opens the page and wires everything
// together. The session runs until Stop or ctx cancellation.
func (s *Session) Start(ctx context.Context) error {
	s.mgr = browser.NewManager(browser.Config{
		RemoteURL: s.cfg.Browser.Remote,
		Headful:   s.cfg.Browser.Headful,
		Stealth:   s.cfg.Browser.Stealth,
		Logger:    s.logger,
	})
	if _, err := s.mgr.Start(ctx); err != nil {
		return err
	}

	tab, err := browser.OpenTab(ctx, s.mgr, s.cfg.Page.URL, s.cfg.Page.Mount)
	if err != nil {
		s.mgr.Close()
		return err
	}
	s.tab = tab

	kv, err := s.openKV()
	if err != nil {
		s.teardown()
		return err
	}

	container := s.cfg.Page.ScrollContainer
	if container == "" {
		container = tab.ScrollContainerSelector()
	}
	region := scrollmem.ResolveRegion(tab, s.cfg.Page.Mount, container)
	s.store = scrollmem.NewStore(tab, tab, kv, region,
		scrollmem.WithLogger(s.logger))

	// Same-origin fetches are applied as-is; only pushed markup goes
	// through the sanitizer, so server-rendered custom elements survive
	// ordinary navigations.
	hyd, err := hydrate.New(s.cfg.Page.Mount, tab,
		hydrate.WithLogger(s.logger))
	if err != nil {
		s.teardown()
		return fmt.Errorf("session: mount selector: %w", err)
	}
	pushHyd, err := hydrate.New(s.cfg.Page.Mount, tab,
		hydrate.WithSanitizer(pushPolicy()),
		hydrate.WithLogger(s.logger))
	if err != nil {
		s.teardown()
		return fmt.Errorf("session: mount selector: %w", err)
	}

	origin, err := pageOrigin(s.cfg.Page.URL)
	if err != nil {
		s.teardown()
		return err
	}
	s.ctrl = nav.New(s.store, tab, hyd,
		nav.WithLogger(s.logger),
		nav.WithFetcher(nav.NewHTTPFetcher(origin)),
		nav.WithPushRenderer(pushHyd))

	sinks, err := buildSinks(s.cfg.Sinks)
	if err != nil {
		s.teardown()
		return err
	}
	s.router = NewRouter(s.logger, sinks...)
	s.sub = s.ctrl.Subscribe(func(ev nav.Event) {
		s.router.Send(ctx, ev)
	})

	if err := tab.CaptureEvents(ctx, s.ctrl, s.store.Persist); err != nil {
		s.teardown()
		return err
	}

	if s.cfg.Page.Push != "" {
		s.listener = push.NewListener(s.cfg.Page.Push, s.ctrl,
			push.WithLogger(s.logger))
		s.listener.Start(ctx)
	}

	s.logger.Info("session: started",
		"url", s.cfg.Page.URL,
		"mount", s.cfg.Page.Mount,
		"storage", s.cfg.Storage.Backend)
	return nil
}

// Controller exposes the navigation controller, for programmatic visits.
func (s *Session) Controller() *nav.Controller { return s.ctrl }

// Stop persists positions one last time and releases everything.
func (s *Session) Stop() {
	if s.store != nil {
		s.store.Persist()
	}
	s.teardown()
	s.logger.Info("session: stopped")
}

func (s *Session) teardown() {
	if s.listener != nil {
		s.listener.Close()
	}
	if s.sub != nil {
		s.sub.Cancel()
	}
	if s.router != nil {
		s.router.Close()
	}
	if s.sqlite != nil {
		s.sqlite.Close()
	}
	if s.tab != nil {
		s.tab.Close()
	}
	if s.mgr != nil {
		s.mgr.Close()
	}
}

func (s *Session) openKV() (scrollmem.KV, error) {
	switch s.cfg.Storage.Backend {
	case "memory":
		return scrollmem.NewMemoryKV(), nil
	case "browser":
		return s.tab, nil
	case "sqlite":
		kv, err := store.Open(s.cfg.Storage.Path, s.cfg.Storage.Profile,
			store.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.sqlite = kv
		return kv, nil
	default:
		return nil, fmt.Errorf("session: unknown storage backend %q", s.cfg.Storage.Backend)
	}
}

func buildSinks(cfgs []SinkConfig) ([]Sink, error) {
	var sinks []Sink
	for _, c := range cfgs {
		switch c.Type {
		case "stdout":
			sinks = append(sinks, NewStdout(nil))
		case "webhook":
			sinks = append(sinks, NewWebhook(c.URL))
		case "sqlite":
			s, err := NewSQLite(c.Path)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, s)
		default:
			return nil, fmt.Errorf("session: unknown sink type %q", c.Type)
		}
	}
	return sinks, nil
}

// pushPolicy sanitizes pushed markup while keeping everything navigation
// interception depends on: ids for fragment targets, data-scroll intents and
// full link and form attributes.
func pushPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("id", "class", "data-scroll", "data-scroll-container").Globally()
	p.AllowAttrs("target", "rel", "download").OnElements("a")
	p.AllowElements("form", "input", "select", "option", "textarea", "button", "label")
	p.AllowAttrs("action", "method", "target", "rel").OnElements("form")
	p.AllowAttrs("type", "name", "value", "placeholder").OnElements("input", "button")
	p.AllowAttrs("name").OnElements("select", "textarea")
	p.AllowAttrs("value", "selected").OnElements("option")
	p.AllowAttrs("for").OnElements("label")
	return p
}

// pageOrigin derives the scheme://host origin relative fetches resolve
// against.
func pageOrigin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("session: page url %q is not absolute", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}
