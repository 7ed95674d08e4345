package nav

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/hazyhaar/navkeeper/scrollmem"
)

// LinkActivation describes a click on an anchor element, as captured by the
// browser adapter. The controller decides whether it takes the navigation
// over or leaves it to the browser.
type LinkActivation struct {
	// Href is the anchor's raw href attribute.
	Href string
	// Button is the mouse button: 0 is primary.
	Button int
	// Modifier keys. Any of them means the user wants the browser's own
	// open-in-new-tab/window gesture.
	Alt, Ctrl, Meta, Shift bool
	// DefaultPrevented is true when an earlier handler already claimed
	// the click.
	DefaultPrevented bool
	// Download is true for anchors carrying a download attribute.
	Download bool
	// RelExternal is true for rel="external" anchors.
	RelExternal bool
	// Target is the anchor's target attribute; anything other than the
	// default frame stays native.
	Target string
	// ScrollIntent is the anchor's data-scroll annotation, if any.
	ScrollIntent string
	// State is optional host state to attach to the pushed entry.
	State map[string]any
}

// OnLinkActivate handles an intercepted link click. It returns handled =
// false — untouched, native browser behavior — for anything that is not a
// plain primary-button click on a same-document-relative link. Otherwise it
// performs a push visit with the link's scroll intent.
func (c *Controller) OnLinkActivate(ctx context.Context, a LinkActivation) (bool, error) {
	if !shouldHandleLink(a) {
		return false, nil
	}
	_, err := c.Visit(ctx, a.Href, VisitOptions{
		Method: http.MethodGet,
		Push:   true,
		Intent: scrollmem.ParseIntent(a.ScrollIntent),
		State:  a.State,
	})
	return true, err
}

func shouldHandleLink(a LinkActivation) bool {
	if a.DefaultPrevented || a.Download || a.RelExternal {
		return false
	}
	if a.Button != 0 || a.Alt || a.Ctrl || a.Meta || a.Shift {
		return false
	}
	if !defaultFrame(a.Target) {
		return false
	}
	return relativeHref(a.Href)
}

// relativeHref reports whether href is a same-document-relative target this
// system should take over. Absolute URLs with a scheme, protocol-relative
// URLs and bare fragments all stay with the browser.
func relativeHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "//") {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// defaultFrame reports whether a target attribute keeps the navigation in
// the default browsing context.
func defaultFrame(target string) bool {
	return target == "" || target == "_self"
}
