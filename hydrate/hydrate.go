// Package hydrate is the render collaborator: it locates the designated
// mount element inside fetched or pushed markup and swaps the live tree's
// mount for it. When the mount is absent it reports failure with no side
// effects, which is what keeps failed navigations inert.
package hydrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Applier swaps the live mount element for the given markup. The browser
// adapter implements it by replacing the mount's outerHTML.
type Applier interface {
	Apply(ctx context.Context, mountHTML string) error
}

// Hydrator implements the render contract against an Applier.
type Hydrator struct {
	sel     selector
	policy  *bluemonday.Policy
	applier Applier
	logger  *slog.Logger
}

// Option configures a Hydrator.
type Option func(*Hydrator)

// WithSanitizer runs every extracted mount fragment through the given
// policy before applying it. Used for markup arriving over the push
// channel, which is less trusted than same-origin fetches.
func WithSanitizer(p *bluemonday.Policy) Option {
	return func(h *Hydrator) { h.policy = p }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hydrator) { h.logger = l }
}

// New creates a Hydrator locating the mount by mountSelector.
func New(mountSelector string, applier Applier, opts ...Option) (*Hydrator, error) {
	sel, err := parseSelector(mountSelector)
	if err != nil {
		return nil, err
	}
	h := &Hydrator{
		sel:     sel,
		applier: applier,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Render parses the markup, finds the mount element, and applies its
// subtree to the live page. Returns false — with the live page untouched —
// when the markup does not parse, the mount is absent, or the apply fails.
func (h *Hydrator) Render(ctx context.Context, markup string) bool {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		h.logger.Warn("hydrate: parse failed", "error", err)
		return false
	}

	mount := findFirst(doc, h.sel)
	if mount == nil {
		h.logger.Debug("hydrate: mount element absent from markup", "selector", h.sel)
		return false
	}

	var b strings.Builder
	if err := html.Render(&b, mount); err != nil {
		h.logger.Warn("hydrate: serialize mount failed", "error", err)
		return false
	}
	out := b.String()
	if h.policy != nil {
		out = h.policy.Sanitize(out)
	}

	if err := h.applier.Apply(ctx, out); err != nil {
		h.logger.Warn("hydrate: apply failed", "error", err)
		return false
	}
	return true
}

// findFirst walks the parsed tree depth-first for the first match.
func findFirst(n *html.Node, sel selector) *html.Node {
	if n.Type == html.ElementNode && sel.matches(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, sel); found != nil {
			return found
		}
	}
	return nil
}

// selector is a simple CSS selector: an optional tag name plus at most one
// of #id, .class or [attr], [attr=value]. Enough for a mount point.
type selector struct {
	tag      string
	id       string
	class    string
	attrKey  string
	attrVal  string
	matchVal bool
}

func (s selector) String() string {
	var b strings.Builder
	b.WriteString(s.tag)
	if s.id != "" {
		b.WriteString("#" + s.id)
	}
	if s.class != "" {
		b.WriteString("." + s.class)
	}
	if s.attrKey != "" {
		if s.matchVal {
			fmt.Fprintf(&b, "[%s=%s]", s.attrKey, s.attrVal)
		} else {
			fmt.Fprintf(&b, "[%s]", s.attrKey)
		}
	}
	return b.String()
}

func parseSelector(raw string) (selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return selector{}, fmt.Errorf("hydrate: empty mount selector")
	}

	var s selector
	rest := raw
	if i := strings.IndexAny(rest, "#.["); i > 0 {
		s.tag = rest[:i]
		rest = rest[i:]
	} else if i < 0 {
		s.tag = rest
		return s, nil
	}

	switch rest[0] {
	case '#':
		s.id = rest[1:]
		if s.id == "" {
			return selector{}, fmt.Errorf("hydrate: bad selector %q", raw)
		}
	case '.':
		s.class = rest[1:]
		if s.class == "" {
			return selector{}, fmt.Errorf("hydrate: bad selector %q", raw)
		}
	case '[':
		if !strings.HasSuffix(rest, "]") {
			return selector{}, fmt.Errorf("hydrate: bad selector %q", raw)
		}
		inner := rest[1 : len(rest)-1]
		if k, v, ok := strings.Cut(inner, "="); ok {
			s.attrKey, s.attrVal = k, strings.Trim(v, `"'`)
			s.matchVal = true
		} else {
			s.attrKey = inner
		}
		if s.attrKey == "" {
			return selector{}, fmt.Errorf("hydrate: bad selector %q", raw)
		}
	}
	return s, nil
}

func (s selector) matches(n *html.Node) bool {
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && attrValue(n, "id") != s.id {
		return false
	}
	if s.class != "" && !hasClass(attrValue(n, "class"), s.class) {
		return false
	}
	if s.attrKey != "" {
		val, ok := lookupAttr(n, s.attrKey)
		if !ok {
			return false
		}
		if s.matchVal && val != s.attrVal {
			return false
		}
	}
	return true
}

func attrValue(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(classAttr, class string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == class {
			return true
		}
	}
	return false
}
