// Command navdemo serves fixture pages for exercising navkeeper by hand:
// same-origin links with scroll intents, a fragment-heavy page, a form with
// several submit buttons and a websocket push channel.
//
// Usage:
//
//	navdemo -addr :8080
//	navkeeper -url http://localhost:8080/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *addr); err != nil {
		logger.Error("navdemo: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, addr string) error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", page("Home", homeBody))
	r.Get("/about", page("About", aboutBody))
	r.Get("/feed", pageAttrs("Feed", ` data-scroll-container="#feed-box"`, feedBody()))
	r.Get("/docs", page("Docs", docsBody()))
	r.Get("/search", searchHandler)
	r.Post("/orders", ordersHandler)
	r.Get("/push", pushHandler(logger))

	srv := &http.Server{Addr: addr, Handler: r}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("navdemo: listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// page wraps body in the shared layout. Every route returns the full
// document so both native loads and intercepted fetches work.
func page(title, body string) http.HandlerFunc {
	return pageAttrs(title, "", body)
}

// pageAttrs additionally sets attributes on the mount element, e.g. the
// scroll container annotation.
func pageAttrs(title, mountAttrs, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, layout, title, mountAttrs, body)
	}
}

func searchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	body := fmt.Sprintf(`<h1>Search</h1>
<form action="/search" method="get" data-scroll="preserve">
  <input type="text" name="q" value="%s">
  <button type="submit">Search</button>
</form>
<p>Results for <strong>%s</strong>: nothing yet.</p>
%s`, q, q, navLinks)
	page("Search", body)(w, r)
}

func ordersHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	action := r.FormValue("decision")
	item := r.FormValue("item")
	body := fmt.Sprintf(`<h1>Order</h1>
<p>Decision <strong>%s</strong> recorded for %s.</p>
%s`, action, item, navLinks)
	page("Order", body)(w, r)
}

// pushHandler sends one HTML frame shortly after connect, then periodic
// refetch signals, so both push paths get exercised.
func pushHandler(logger *slog.Logger) http.HandlerFunc {
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		time.Sleep(2 * time.Second)
		pushed := fmt.Sprintf(`<div id="app"><h1>Pushed</h1><p>Server-rendered at %s.</p>%s</div>`,
			time.Now().Format(time.RFC3339), navLinks)
		if err := conn.WriteJSON(map[string]any{"html": pushed}); err != nil {
			return
		}

		tick := time.NewTicker(30 * time.Second)
		defer tick.Stop()
		for range tick.C {
			if err := conn.WriteJSON(map[string]any{"refetch": true}); err != nil {
				logger.Debug("navdemo: push client gone", "error", err)
				return
			}
		}
	}
}

const layout = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title>
<style>
  body { font-family: sans-serif; margin: 2rem; }
  #feed-box { height: 200px; overflow-y: auto; border: 1px solid #999; }
  .spacer { height: 1200px; background: linear-gradient(#eee, #ccc); }
</style>
</head>
<body>
<div id="app"%s>%s</div>
</body>
</html>
`

const navLinks = `<nav>
  <a href="/">Home</a>
  <a href="/about">About</a>
  <a href="/feed">Feed</a>
  <a href="/docs">Docs</a>
  <a href="/docs#section-9">Docs §9</a>
  <a href="/search?q=go" data-scroll="preserve">Search</a>
  <a href="https://example.com">External</a>
  <a href="/about" target="_blank">About (new tab)</a>
  <a href="/about" download>Download</a>
</nav>`

const homeBody = `<h1>Home</h1>` + navLinks + `
<div class="spacer">scroll me</div>
<p id="bottom">You reached the bottom of Home.</p>`

const aboutBody = `<h1>About</h1>` + navLinks + `
<form action="/orders" method="post">
  <input type="hidden" name="item" value="coffee">
  <button type="submit" name="decision" value="approve">Approve</button>
  <button type="submit" name="decision" value="reject">Reject</button>
</form>
<div class="spacer">scroll me</div>`

func feedBody() string {
	var b strings.Builder
	b.WriteString(`<h1>Feed</h1>`)
	b.WriteString(navLinks)
	b.WriteString(`<div id="feed-box">`)
	for i := 1; i <= 50; i++ {
		fmt.Fprintf(&b, `<p>Feed item %d</p>`, i)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func docsBody() string {
	var b strings.Builder
	b.WriteString(`<h1>Docs</h1>`)
	b.WriteString(navLinks)
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&b, `<h2 id="section-%d">Section %d</h2><div class="spacer"></div>`, i, i)
	}
	return b.String()
}
