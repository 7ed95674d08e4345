// Package scrollmem remembers where the user was scrolled to, per browser
// history entry, and decides what the scroll position should be after each
// navigation.
//
// The package owns no browser state of its own: the history stack, the DOM
// and the session storage are reached through the narrow interfaces below,
// implemented against a live Chrome page by the browser package and by
// hand-written fakes in tests. One Store exists per page; it is constructed
// explicitly and passed by reference, never looked up globally.
package scrollmem

import "sync"

// Offset is a 2D scroll position of one scroll region.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Intent is a per-navigation override of the default scroll-to-top policy.
type Intent string

const (
	// IntentDefault applies the default policy: top on push, restore on pop.
	IntentDefault Intent = ""
	// IntentTop forces a scroll to (0,0) on push.
	IntentTop Intent = "top"
	// IntentPreserve suppresses any scroll on push.
	IntentPreserve Intent = "preserve"
)

// ParseIntent maps a data-scroll annotation value to an Intent.
// Unknown values mean default policy.
func ParseIntent(s string) Intent {
	switch s {
	case "preserve":
		return IntentPreserve
	case "top":
		return IntentTop
	default:
		return IntentDefault
	}
}

// Region is a scrollable area: the viewport or a single overflowing element.
type Region interface {
	// Offset reads the region's current scroll position.
	Offset() (Offset, error)
	// ScrollTo moves the region to the given position.
	ScrollTo(Offset) error
}

// Element is the slice of a DOM element the store and the region resolver
// need: ancestry, computed overflow, and scroll access.
type Element interface {
	// Parent returns the parent element, or ok=false at the top of the tree.
	Parent() (Element, bool)
	// IsDocumentRoot reports whether this is the document's html or body
	// element. Those never count as scroll containers.
	IsDocumentRoot() bool
	// OverflowY returns the computed overflow-y style value.
	OverflowY() (string, error)
	// Region exposes the element as a scroll region.
	Region() Region
	// ScrollIntoView brings the element into the visible area.
	ScrollIntoView() error
}

// Document is the DOM query surface for fragment targeting and scroll
// container resolution.
type Document interface {
	// ElementByID finds an element by its id attribute.
	ElementByID(id string) (Element, bool)
	// Query finds the first element matching a CSS selector.
	Query(selector string) (Element, bool)
	// Viewport returns the window's scroll region.
	Viewport() Region
}

// History is the slice of the browser history stack the store consumes:
// the current entry's state object and same-entry replacement.
type History interface {
	// State returns the current history entry's state object. A nil map
	// means the entry carries no state.
	State() (map[string]any, error)
	// ReplaceState swaps the current entry's state without creating a new
	// entry and without navigating.
	ReplaceState(state map[string]any) error
	// DisableNativeRestoration turns off the browser's own scroll
	// restoration on back/forward. The store owns restoration exclusively.
	DisableNativeRestoration() error
}

// KV is a synchronous string key-value store scoped to the browsing
// session. sessionStorage in the browser, sqlite or memory elsewhere.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// MemoryKV is a process-lifetime KV for tests and browserless runs.
type MemoryKV struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]string)}
}

func (s *MemoryKV) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemoryKV) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}
