// Package push consumes an out-of-band server channel. Frames either carry
// replacement markup for the mount or signal that the page content is stale
// and should be refetched; the navigation controller does the rest. The
// wire format beyond that is the server's business.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Target is the slice of the navigation controller the listener drives.
type Target interface {
	// ApplyPush hands pushed markup to the render collaborator.
	ApplyPush(ctx context.Context, html string) bool
	// Refresh refetches the current location in place.
	Refresh(ctx context.Context) error
}

// frame is one message from the server.
type frame struct {
	HTML    string `json:"html,omitempty"`
	Refetch bool   `json:"refetch,omitempty"`
}

// Listener maintains a websocket connection to the push endpoint and
// forwards messages to the target. Connection loss reconnects with capped
// backoff until Close or context cancellation.
type Listener struct {
	url    string
	target Target
	dialer *websocket.Dialer
	logger *slog.Logger

	maxBackoff time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Listener) { p.logger = l }
}

// WithMaxBackoff caps the reconnect backoff. Default: 30s.
func WithMaxBackoff(d time.Duration) Option {
	return func(p *Listener) { p.maxBackoff = d }
}

// NewListener creates a Listener for the given ws:// or wss:// URL.
func NewListener(url string, target Target, opts ...Option) *Listener {
	p := &Listener{
		url:        url,
		target:     target,
		dialer:     websocket.DefaultDialer,
		logger:     slog.Default(),
		maxBackoff: 30 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start begins listening in a background goroutine.
func (p *Listener) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.run(ctx)
	}()
}

// Close stops the listener and waits for the loop to exit.
func (p *Listener) Close() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Listener) run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
		if err != nil {
			p.logger.Warn("push: connect failed", "url", p.url, "error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff = min(backoff*2, p.maxBackoff)
			continue
		}

		p.logger.Info("push: connected", "url", p.url)
		backoff = time.Second

		// Unblock ReadMessage when the context is cancelled.
		stop := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-stop:
			}
		}()

		p.readLoop(ctx, conn)
		close(stop)
		conn.Close()
	}
}

func (p *Listener) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("push: read failed, reconnecting", "error", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			p.logger.Warn("push: bad frame", "error", err)
			continue
		}

		switch {
		case f.HTML != "":
			if !p.target.ApplyPush(ctx, f.HTML) {
				p.logger.Warn("push: pushed markup rejected")
			}
		default:
			// Empty frame or explicit refetch: the page is stale.
			if err := p.target.Refresh(ctx); err != nil {
				p.logger.Warn("push: refetch failed", "error", err)
			}
		}
	}
}
