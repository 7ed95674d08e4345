package scrollmem

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/hazyhaar/navkeeper/idgen"
)

// StateKey is the history-state field carrying the restoration id. Every
// history entry the store touches has exactly one.
const StateKey = "restorationId"

// storageKey is the session-store key holding the serialized position table.
const storageKey = "navkeeper:scroll-positions"

// Store is the per-page scroll position table keyed by restoration id.
// It is mutated synchronously; the mutex only guards against the Go side
// being driven from multiple goroutines (browser callbacks, push channel).
type Store struct {
	mu      sync.Mutex
	table   map[string]Offset
	current string

	region Region
	doc    Document
	hist   History
	kv     KV
	newID  idgen.Generator
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIDGenerator sets a custom restoration-id generator.
func WithIDGenerator(gen idgen.Generator) StoreOption {
	return func(s *Store) { s.newID = gen }
}

// WithLogger sets a custom logger for the store.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates the page's scroll store. region is the governing scroll
// region (see ResolveRegion); nil means the viewport.
//
// Construction hydrates the table from kv, disables the browser's native
// scroll restoration, and bootstraps the current history entry with a
// restoration id if it lacks one — merging into the existing state object,
// never replacing it, and never creating a new entry. All failures on this
// path degrade to "no scroll memory" without erroring.
func NewStore(doc Document, hist History, kv KV, region Region, opts ...StoreOption) *Store {
	s := &Store{
		table:  make(map[string]Offset),
		doc:    doc,
		hist:   hist,
		kv:     kv,
		region: region,
		newID:  idgen.Restoration,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.region == nil {
		s.region = doc.Viewport()
	}

	s.hydrate()

	if err := s.hist.DisableNativeRestoration(); err != nil {
		s.logger.Warn("scrollmem: disable native restoration failed", "error", err)
	}

	s.bootstrap()
	return s
}

// bootstrap ensures the current history entry carries a restoration id.
func (s *Store) bootstrap() {
	state, err := s.hist.State()
	if err != nil {
		s.logger.Warn("scrollmem: read history state failed", "error", err)
		state = nil
	}

	if id, ok := state[StateKey].(string); ok && id != "" {
		s.current = id
		return
	}

	id := s.newID()
	merged := make(map[string]any, len(state)+1)
	for k, v := range state {
		merged[k] = v
	}
	merged[StateKey] = id
	if err := s.hist.ReplaceState(merged); err != nil {
		s.logger.Warn("scrollmem: bootstrap replace state failed", "error", err)
	}
	s.current = id
}

// Save records the region's current offset under the current restoration
// id. It never fails: a geometry error skips the save.
func (s *Store) Save() {
	off, err := s.region.Offset()
	if err != nil {
		s.logger.Debug("scrollmem: read offset failed, skipping save", "error", err)
		return
	}
	s.mu.Lock()
	s.table[s.current] = off
	s.mu.Unlock()
}

// Push allocates a fresh restoration id, makes it current, and returns the
// state fragment the caller merges into the history entry it pushes.
func (s *Store) Push() map[string]any {
	id := s.newID()
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	return map[string]any{StateKey: id}
}

// Pop re-reads the restoration id from the current history entry's state.
// Called after a back/forward navigation has already moved the underlying
// entry. Absent or mistyped state leaves the current id unchanged.
func (s *Store) Pop() {
	state, err := s.hist.State()
	if err != nil {
		s.logger.Debug("scrollmem: read history state on pop failed", "error", err)
		return
	}
	if id, ok := state[StateKey].(string); ok && id != "" {
		s.mu.Lock()
		s.current = id
		s.mu.Unlock()
	}
}

// Scroll applies the scroll action for the arriving entry. Priority order,
// first match wins:
//
//  1. target carries a fragment naming an existing element: scroll it into
//     view, push or pop alike. A fragment with no matching element falls
//     through as if absent.
//  2. pop: restore the saved offset for the current id if one exists,
//     otherwise do nothing at all (no fallback to top).
//  3. push with intent preserve: do nothing.
//  4. push otherwise: scroll to (0,0).
func (s *Store) Scroll(isPush bool, intent Intent, target string) {
	if frag := fragmentOf(target); frag != "" {
		if el, ok := s.doc.ElementByID(frag); ok {
			if err := el.ScrollIntoView(); err != nil {
				s.logger.Debug("scrollmem: scroll into view failed", "fragment", frag, "error", err)
			}
			return
		}
	}

	if !isPush {
		s.mu.Lock()
		off, ok := s.table[s.current]
		s.mu.Unlock()
		if ok {
			s.scrollTo(off)
		}
		return
	}

	if intent == IntentPreserve {
		return
	}
	s.scrollTo(Offset{})
}

// CurrentID returns the active restoration id.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) scrollTo(off Offset) {
	if err := s.region.ScrollTo(off); err != nil {
		s.logger.Debug("scrollmem: scroll failed", "x", off.X, "y", off.Y, "error", err)
	}
}

// fragmentOf extracts the fragment identifier from a URL or path, if any.
func fragmentOf(target string) string {
	i := strings.IndexByte(target, '#')
	if i < 0 {
		return ""
	}
	return target[i+1:]
}
