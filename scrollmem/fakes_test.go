package scrollmem

import "errors"

// Hand-written fakes for the browser surfaces. Each records the calls the
// tests assert on.

type fakeRegion struct {
	x, y      float64
	offsetErr error
	scrollErr error
	scrolls   []Offset
}

func (r *fakeRegion) Offset() (Offset, error) {
	if r.offsetErr != nil {
		return Offset{}, r.offsetErr
	}
	return Offset{X: r.x, Y: r.y}, nil
}

func (r *fakeRegion) ScrollTo(off Offset) error {
	if r.scrollErr != nil {
		return r.scrollErr
	}
	r.scrolls = append(r.scrolls, off)
	r.x, r.y = off.X, off.Y
	return nil
}

type fakeElement struct {
	parent    *fakeElement
	root      bool
	overflowY string
	region    *fakeRegion
	viewCalls int
}

func (e *fakeElement) Parent() (Element, bool) {
	if e.parent == nil {
		return nil, false
	}
	return e.parent, true
}

func (e *fakeElement) IsDocumentRoot() bool { return e.root }

func (e *fakeElement) OverflowY() (string, error) {
	if e.overflowY == "" {
		return "visible", nil
	}
	return e.overflowY, nil
}

func (e *fakeElement) Region() Region { return e.region }

func (e *fakeElement) ScrollIntoView() error {
	e.viewCalls++
	return nil
}

type fakeDoc struct {
	byID     map[string]*fakeElement
	bySel    map[string]*fakeElement
	viewport *fakeRegion
}

func newFakeDoc() *fakeDoc {
	return &fakeDoc{
		byID:     make(map[string]*fakeElement),
		bySel:    make(map[string]*fakeElement),
		viewport: &fakeRegion{},
	}
}

func (d *fakeDoc) ElementByID(id string) (Element, bool) {
	el, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return el, true
}

func (d *fakeDoc) Query(selector string) (Element, bool) {
	el, ok := d.bySel[selector]
	if !ok {
		return nil, false
	}
	return el, true
}

func (d *fakeDoc) Viewport() Region { return d.viewport }

type fakeHistory struct {
	state    map[string]any
	stateErr error
	replaced []map[string]any
	disabled int
}

func (h *fakeHistory) State() (map[string]any, error) {
	if h.stateErr != nil {
		return nil, h.stateErr
	}
	return h.state, nil
}

func (h *fakeHistory) ReplaceState(state map[string]any) error {
	h.replaced = append(h.replaced, state)
	h.state = state
	return nil
}

func (h *fakeHistory) DisableNativeRestoration() error {
	h.disabled++
	return nil
}

type failingKV struct{}

func (failingKV) Get(string) (string, bool) { return "", false }
func (failingKV) Set(string, string) error  { return errors.New("storage disabled") }
