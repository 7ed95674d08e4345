package nav

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/hazyhaar/navkeeper/scrollmem"
)

// Field is one name/value pair of a submitted form.
type Field struct {
	Name  string
	Value string
}

// FormActivation describes an intercepted form submission.
type FormActivation struct {
	// Action is the form's action attribute. Empty means the current
	// location.
	Action string
	// Method is the form's method attribute. Empty means GET.
	Method string
	// Target is the form's target attribute.
	Target string
	// RelExternal is true for rel="external" forms.
	RelExternal bool
	// DefaultPrevented is true when an earlier handler claimed the event.
	DefaultPrevented bool
	// Fields are the form's successful controls, in document order.
	Fields []Field
	// Submitter is the activating control's own name/value pair, if it
	// carries one (e.g. one of several submit buttons).
	Submitter *Field
	// ScrollIntent is the form's data-scroll annotation, if any.
	ScrollIntent string
	// State is optional host state to attach to the pushed entry.
	State map[string]any
}

// OnFormActivate handles an intercepted form submission. Filtering matches
// links: absolute action URLs, non-default frame targets and rel=external
// forms stay native. GET-equivalent methods serialize fields into the
// action's query string, merging with any existing query; other methods
// send a multipart body.
func (c *Controller) OnFormActivate(ctx context.Context, f FormActivation) (bool, error) {
	if !shouldHandleForm(f) {
		return false, nil
	}

	action := f.Action
	if action == "" {
		loc, err := c.hist.Location()
		if err != nil {
			return false, fmt.Errorf("nav: resolve empty form action: %w", err)
		}
		action = loc
	}

	method := strings.ToUpper(f.Method)
	if method == "" {
		method = http.MethodGet
	}

	fields := f.Fields
	if f.Submitter != nil {
		fields = append(append([]Field{}, f.Fields...), *f.Submitter)
	}

	opts := VisitOptions{
		Method: method,
		Push:   true,
		Intent: scrollmem.ParseIntent(f.ScrollIntent),
		State:  f.State,
	}

	if method == http.MethodGet || method == http.MethodHead {
		merged, err := mergeQuery(action, fields)
		if err != nil {
			return false, err
		}
		_, err = c.Visit(ctx, merged, opts)
		return true, err
	}

	body, contentType, err := multipartBody(fields)
	if err != nil {
		return false, err
	}
	opts.Body = body
	opts.ContentType = contentType
	_, err = c.Visit(ctx, action, opts)
	return true, err
}

func shouldHandleForm(f FormActivation) bool {
	if f.DefaultPrevented || f.RelExternal {
		return false
	}
	if !defaultFrame(f.Target) {
		return false
	}
	if f.Action == "" {
		return true
	}
	return relativeHref(f.Action)
}

// mergeQuery appends the form fields to the action URL's query string,
// keeping any parameters already present on the action.
func mergeQuery(action string, fields []Field) (string, error) {
	u, err := url.Parse(action)
	if err != nil {
		return "", fmt.Errorf("nav: parse form action %q: %w", action, err)
	}
	q := u.Query()
	for _, f := range fields {
		q.Add(f.Name, f.Value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func multipartBody(fields []Field) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("nav: encode form field %q: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("nav: finalize form body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
