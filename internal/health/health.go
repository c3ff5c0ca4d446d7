// SPDX-License-Identifier: MIT

// Package health provides an HTTP health check endpoint for the
// tizonia-player daemon.
//
// The health check exposes per-graph status at /healthz as JSON, suitable
// for systemd watchdog, load balancer probes, or monitoring systems. A
// hand-rolled Prometheus-text /metrics endpoint and a richer
// prometheus/client_golang-backed /metrics/prometheus endpoint are both
// served, and an optional /events WebSocket stream pushes FSM transitions
// and metadata emissions to connected live-UI clients.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	graphUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tizonia_graph_up",
		Help: "Whether the named graph is currently healthy (1) or not (0).",
	}, []string{"graph"})

	graphBacklog = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tizonia_graph_expected_backlog",
		Help: "Outstanding expected-transition/port acknowledgments for the named graph.",
	}, []string{"graph"})

	graphErrors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tizonia_graph_errors_total",
		Help: "Total internal errors recorded by the named graph so far.",
	}, []string{"graph"})

	graphUptime = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tizonia_graph_uptime_seconds",
		Help: "Seconds since the named graph last reached Executing.",
	}, []string{"graph"})
)

// GraphInfo describes the health state of a single running graph.
type GraphInfo struct {
	Name    string        `json:"name"`
	State   string        `json:"state"`
	Uptime  time.Duration `json:"uptime_ns"`
	Healthy bool          `json:"healthy"`
	Error   string        `json:"error,omitempty"`
	Backlog int           `json:"backlog,omitempty"`      // outstanding expected transition/port acks
	Errors  int           `json:"errors_total,omitempty"` // cumulative internal errors
}

// StatusProvider returns the current health status of all graphs. The
// daemon's supervisor implements this to supply live data.
type StatusProvider interface {
	Graphs() []GraphInfo
}

// Response is the JSON body returned by /healthz.
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Graphs    []GraphInfo `json:"graphs"`
}

// TransitionEvent is one FSM transition or metadata emission, pushed to
// connected /events WebSocket clients (spec section 2 observability: a
// live UI wants to see state changes without polling /healthz).
type TransitionEvent struct {
	Graph     string    `json:"graph"`
	Kind      string    `json:"kind"` // "transition" or "metadata"
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster fans TransitionEvents out to every connected /events client.
// Publish is safe to call from any graph's worker goroutine; each
// subscriber gets its own buffered channel so one slow client can't stall
// another's delivery or the publisher.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan TransitionEvent]struct{}
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[chan TransitionEvent]struct{})}
}

// Publish fans ev out to every current subscriber. A subscriber whose
// buffer is full drops the event rather than blocking the publisher.
func (b *Broadcaster) Publish(ev TransitionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Broadcaster) subscribe() chan TransitionEvent {
	ch := make(chan TransitionEvent, 32)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) unsubscribe(ch chan TransitionEvent) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

// Handler serves /healthz, /metrics, /metrics/prometheus, and /events.
type Handler struct {
	provider StatusProvider
	events   *Broadcaster
	upgrader websocket.Upgrader
	promMux  http.Handler
}

// NewHandler creates a health check HTTP handler.
func NewHandler(provider StatusProvider) *Handler {
	return &Handler{
		provider: provider,
		upgrader: websocket.Upgrader{
			// The health server is consumed by local/trusted tooling; any
			// origin is accepted the way the rest of the ambient stack's
			// websocket servers do for internal dashboards.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		promMux: promhttp.Handler(),
	}
}

// WithEvents attaches a Broadcaster, enabling the /events endpoint.
func (h *Handler) WithEvents(b *Broadcaster) *Handler {
	h.events = b
	return h
}

// ServeHTTP implements http.Handler, routing to /healthz, /metrics,
// /metrics/prometheus, and /events.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/metrics":
		h.serveMetrics(w, r)
	case "/metrics/prometheus":
		h.updatePromMetrics()
		h.promMux.ServeHTTP(w, r)
	case "/events":
		h.serveEvents(w, r)
	default:
		h.serveHealth(w, r)
	}
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp := Response{Timestamp: time.Now()}

	var graphs []GraphInfo
	if h.provider != nil {
		graphs = h.provider.Graphs()
	}
	resp.Graphs = graphs

	healthy := len(graphs) > 0
	for _, g := range graphs {
		if !g.Healthy {
			healthy = false
			break
		}
	}

	if healthy {
		resp.Status = "healthy"
	} else {
		resp.Status = "unhealthy"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// serveMetrics writes a Prometheus text-format response without any
// external dependency, kept for operators who just want to curl a plain
// endpoint. /metrics/prometheus carries the richer client_golang-backed
// view of the same data.
func (h *Handler) serveMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var sb strings.Builder

	var graphs []GraphInfo
	if h.provider != nil {
		graphs = h.provider.Graphs()
	}

	if len(graphs) > 0 {
		fmt.Fprintln(&sb, "# HELP tizonia_graph_healthy Is the graph currently healthy (1=healthy, 0=not).")
		fmt.Fprintln(&sb, "# TYPE tizonia_graph_healthy gauge")
		for _, g := range graphs {
			v := 0
			if g.Healthy {
				v = 1
			}
			fmt.Fprintf(&sb, "tizonia_graph_healthy{graph=%q} %d\n", g.Name, v)
		}

		fmt.Fprintln(&sb, "# HELP tizonia_graph_uptime_seconds Seconds since the graph last reached Executing.")
		fmt.Fprintln(&sb, "# TYPE tizonia_graph_uptime_seconds gauge")
		for _, g := range graphs {
			fmt.Fprintf(&sb, "tizonia_graph_uptime_seconds{graph=%q} %.3f\n", g.Name, g.Uptime.Seconds())
		}

		fmt.Fprintln(&sb, "# HELP tizonia_graph_backlog Outstanding expected transition/port acknowledgments.")
		fmt.Fprintln(&sb, "# TYPE tizonia_graph_backlog gauge")
		for _, g := range graphs {
			fmt.Fprintf(&sb, "tizonia_graph_backlog{graph=%q} %d\n", g.Name, g.Backlog)
		}

		fmt.Fprintln(&sb, "# HELP tizonia_graph_errors_total Total internal errors recorded by the graph.")
		fmt.Fprintln(&sb, "# TYPE tizonia_graph_errors_total counter")
		for _, g := range graphs {
			fmt.Fprintf(&sb, "tizonia_graph_errors_total{graph=%q} %d\n", g.Name, g.Errors)
		}
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

// updatePromMetrics refreshes the promauto gauges from the provider just
// before a /metrics/prometheus scrape, since GraphInfo is a point-in-time
// snapshot rather than something the graphs push on every change.
func (h *Handler) updatePromMetrics() {
	if h.provider == nil {
		return
	}
	for _, g := range h.provider.Graphs() {
		up := 0.0
		if g.Healthy {
			up = 1
		}
		graphUp.WithLabelValues(g.Name).Set(up)
		graphBacklog.WithLabelValues(g.Name).Set(float64(g.Backlog))
		graphErrors.WithLabelValues(g.Name).Set(float64(g.Errors))
		graphUptime.WithLabelValues(g.Name).Set(g.Uptime.Seconds())
	}
}

// serveEvents upgrades the connection to a WebSocket and forwards every
// published TransitionEvent until the client disconnects.
func (h *Handler) serveEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		http.Error(w, "event stream not configured", http.StatusNotImplemented)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := h.events.subscribe()
	defer h.events.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// ListenAndServe starts the health check HTTP server on the given address.
// It shuts down gracefully when ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	return ListenAndServeReady(ctx, addr, handler, nil)
}

// ListenAndServeReady starts the health check HTTP server and signals
// readiness once bound, so bind failures (e.g. port already in use) are
// detected immediately rather than being silently swallowed in a
// goroutine.
func ListenAndServeReady(ctx context.Context, addr string, handler http.Handler, ready chan<- struct{}) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	if ready != nil {
		close(ready)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-errCh
}
