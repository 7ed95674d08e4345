package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ysmood/gson"

	"github.com/hazyhaar/navkeeper/nav"
)

// Activations is the slice of the navigation controller the captured DOM
// events are fed into.
type Activations interface {
	OnLinkActivate(ctx context.Context, a nav.LinkActivation) (bool, error)
	OnFormActivate(ctx context.Context, f nav.FormActivation) (bool, error)
	OnPop(ctx context.Context) error
}

// linkPayload mirrors the JSON the capture script sends for a click.
type linkPayload struct {
	Href         string `json:"href"`
	Button       int    `json:"button"`
	Alt          bool   `json:"alt"`
	Ctrl         bool   `json:"ctrl"`
	Meta         bool   `json:"meta"`
	Shift        bool   `json:"shift"`
	Download     bool   `json:"download"`
	RelExternal  bool   `json:"relExternal"`
	Target       string `json:"target"`
	ScrollIntent string `json:"scrollIntent"`
}

// formPayload mirrors the JSON the capture script sends for a submission.
type formPayload struct {
	Action       string      `json:"action"`
	Method       string      `json:"method"`
	Target       string      `json:"target"`
	RelExternal  bool        `json:"relExternal"`
	Fields       [][2]string `json:"fields"`
	Submitter    *[2]string  `json:"submitter"`
	ScrollIntent string      `json:"scrollIntent"`
}

// CaptureEvents wires the page's click, submit, popstate and pagehide
// events into the controller. The injected script pre-filters only what it
// must decide synchronously (modifier clicks, downloads, foreign targets,
// absolute URLs stay native); the Go side remains the authority, and a
// declined or failed link activation falls back to a native navigation.
//
// onUnload runs on pagehide — the store's chance to persist.
func (t *Tab) CaptureEvents(ctx context.Context, h Activations, onUnload func()) error {
	expose := func(name string, fn func(gson.JSON) (any, error)) error {
		if _, err := t.page.Expose(name, fn); err != nil {
			return fmt.Errorf("browser: expose %s: %w", name, err)
		}
		return nil
	}

	if err := expose("__navkeeperLink", func(g gson.JSON) (any, error) {
		var p linkPayload
		if err := decode(g, &p); err != nil {
			t.logger.Warn("browser: bad link payload", "error", err)
			return nil, nil
		}
		handled, err := h.OnLinkActivate(ctx, nav.LinkActivation{
			Href:         p.Href,
			Button:       p.Button,
			Alt:          p.Alt,
			Ctrl:         p.Ctrl,
			Meta:         p.Meta,
			Shift:        p.Shift,
			Download:     p.Download,
			RelExternal:  p.RelExternal,
			Target:       p.Target,
			ScrollIntent: p.ScrollIntent,
		})
		if err != nil {
			// The click was already default-prevented; let the browser
			// finish the navigation rather than dead-end the link.
			t.logger.Warn("browser: link visit failed, going native", "href", p.Href, "error", err)
			t.nativeNavigate(p.Href)
			return nil, nil
		}
		if !handled {
			t.nativeNavigate(p.Href)
		}
		return nil, nil
	}); err != nil {
		return err
	}

	if err := expose("__navkeeperSubmit", func(g gson.JSON) (any, error) {
		var p formPayload
		if err := decode(g, &p); err != nil {
			t.logger.Warn("browser: bad form payload", "error", err)
			return nil, nil
		}
		f := nav.FormActivation{
			Action:       p.Action,
			Method:       p.Method,
			Target:       p.Target,
			RelExternal:  p.RelExternal,
			ScrollIntent: p.ScrollIntent,
		}
		for _, pair := range p.Fields {
			f.Fields = append(f.Fields, nav.Field{Name: pair[0], Value: pair[1]})
		}
		if p.Submitter != nil {
			f.Submitter = &nav.Field{Name: p.Submitter[0], Value: p.Submitter[1]}
		}
		handled, err := h.OnFormActivate(ctx, f)
		if err != nil {
			t.logger.Warn("browser: form visit failed", "action", p.Action, "error", err)
			return nil, nil
		}
		if !handled {
			t.logger.Debug("browser: form left to native handling", "action", p.Action)
		}
		return nil, nil
	}); err != nil {
		return err
	}

	if err := expose("__navkeeperPop", func(gson.JSON) (any, error) {
		if err := h.OnPop(ctx); err != nil {
			t.logger.Warn("browser: pop visit failed", "error", err)
		}
		return nil, nil
	}); err != nil {
		return err
	}

	if err := expose("__navkeeperUnload", func(gson.JSON) (any, error) {
		onUnload()
		return nil, nil
	}); err != nil {
		return err
	}

	if _, err := t.page.EvalOnNewDocument(captureScript); err != nil {
		return fmt.Errorf("browser: install capture script: %w", err)
	}
	// The current document predates EvalOnNewDocument; inject directly.
	if _, err := t.page.Eval(`() => {` + captureScript + `}`); err != nil {
		return fmt.Errorf("browser: inject capture script: %w", err)
	}
	return nil
}

// nativeNavigate lets the browser perform a navigation the controller
// declined to intercept.
func (t *Tab) nativeNavigate(href string) {
	if _, err := t.page.Eval(`(u) => location.assign(u)`, href); err != nil {
		t.logger.Warn("browser: native navigate failed", "href", href, "error", err)
	}
}

func decode(g gson.JSON, out any) error {
	data, err := json.Marshal(g.Val())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// captureScript runs in the page at document start. It forwards candidate
// activations to the exposed Go callbacks, preventing only defaults it can
// decide synchronously. Idempotent across re-injection.
const captureScript = `
if (!window.__navkeeperCaptured) {
	window.__navkeeperCaptured = true;

	const candidateHref = (href) =>
		href && !href.startsWith('#') && !href.startsWith('//') && !/^[a-zA-Z][a-zA-Z0-9+.-]*:/.test(href);

	document.addEventListener('click', (e) => {
		if (e.defaultPrevented || e.button !== 0) return;
		if (e.altKey || e.ctrlKey || e.metaKey || e.shiftKey) return;
		const a = e.target.closest && e.target.closest('a[href]');
		if (!a) return;
		const href = a.getAttribute('href');
		if (!candidateHref(href)) return;
		if (a.hasAttribute('download') || (a.getAttribute('rel') || '').split(/\s+/).includes('external')) return;
		const target = a.getAttribute('target') || '';
		if (target && target !== '_self') return;
		e.preventDefault();
		window.__navkeeperLink({
			href: href,
			button: e.button,
			alt: e.altKey, ctrl: e.ctrlKey, meta: e.metaKey, shift: e.shiftKey,
			download: false,
			relExternal: false,
			target: target,
			scrollIntent: a.dataset.scroll || ''
		});
	}, true);

	document.addEventListener('submit', (e) => {
		if (e.defaultPrevented) return;
		const form = e.target;
		const action = form.getAttribute('action') || '';
		if (action && !candidateHref(action)) return;
		const target = form.getAttribute('target') || '';
		if (target && target !== '_self') return;
		if ((form.getAttribute('rel') || '').split(/\s+/).includes('external')) return;
		e.preventDefault();
		const fields = [];
		for (const [k, v] of new FormData(form).entries()) {
			if (typeof v === 'string') fields.push([k, v]);
		}
		let submitter = null;
		if (e.submitter && e.submitter.name) {
			submitter = [e.submitter.name, e.submitter.value || ''];
		}
		window.__navkeeperSubmit({
			action: action,
			method: form.getAttribute('method') || '',
			target: target,
			relExternal: false,
			fields: fields,
			submitter: submitter,
			scrollIntent: form.dataset.scroll || ''
		});
	}, true);

	window.addEventListener('popstate', () => window.__navkeeperPop(null));
	window.addEventListener('pagehide', () => window.__navkeeperUnload(null));
}
`
