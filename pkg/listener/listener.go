// Package listener exposes BLIP over an HTTP endpoint: it upgrades
// WebSocket handshakes into BLIP connections and dispatches inbound
// requests to handlers registered by Profile.
//
// The listener also serves Prometheus metrics and a health probe, so a
// single chi router covers the whole operational surface:
//
//	l := listener.New(listener.Config{AppProtocolID: "echo"})
//	l.Dispatcher().Register("echo", echoHandler)
//	http.ListenAndServe(":4984", l.Router())
package listener

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blip-dev/blip/pkg/blip"
	"github.com/blip-dev/blip/pkg/wstransport"
)

// Config configures a Listener. Zero values take defaults.
type Config struct {
	// AppProtocolID names the application protocol for WebSocket
	// subprotocol negotiation. Required.
	AppProtocolID string

	// Path is the WebSocket endpoint path. Default: "/blip".
	Path string

	// MaxUnackedBytes is the per-message flow-control window handed to
	// each connection. Zero means unbounded.
	MaxUnackedBytes int

	// Transport holds WebSocket-level options (frame size, timeouts,
	// heartbeats). AppProtocolID and Logger are filled in from this
	// config.
	Transport wstransport.Options

	// CheckOrigin overrides the WebSocket origin check. Nil allows
	// same-origin only.
	CheckOrigin func(*http.Request) bool

	// Namespace is the Prometheus metrics namespace. Default: "blip".
	Namespace string

	// Registry is the Prometheus registry to use. Default: the global
	// default registry.
	Registry *prometheus.Registry

	// Logger receives listener logs.
	// Default: slog.Default() with a "component" field.
	Logger *slog.Logger
}

// Listener accepts BLIP-over-WebSocket connections.
type Listener struct {
	cfg        Config
	dispatcher *Dispatcher
	metrics    *metrics
	logger     *slog.Logger
}

// New creates a Listener from cfg, filling in defaults for unset fields.
func New(cfg Config) *Listener {
	if cfg.Path == "" {
		cfg.Path = "/blip"
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "blip"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "blip-listener")
	}
	cfg.Transport.AppProtocolID = cfg.AppProtocolID
	if cfg.Transport.Logger == nil {
		cfg.Transport.Logger = cfg.Logger
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	if cfg.Registry != nil {
		registerer = cfg.Registry
	}
	m := newMetrics(cfg.Namespace, registerer)

	d := NewDispatcher(cfg.Logger)
	d.metrics = m

	return &Listener{
		cfg:        cfg,
		dispatcher: d,
		metrics:    m,
		logger:     cfg.Logger,
	}
}

// Dispatcher returns the profile dispatcher shared by every connection
// this listener accepts.
func (l *Listener) Dispatcher() *Dispatcher {
	return l.dispatcher
}

// Router returns an http.Handler serving the WebSocket endpoint plus
// /metrics and /healthz.
func (l *Listener) Router() http.Handler {
	r := chi.NewRouter()
	r.Get(l.cfg.Path, l.ServeWebSocket)
	if l.cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(l.cfg.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}

// ServeWebSocket upgrades one HTTP request into a BLIP connection and
// starts it. The connection runs until either peer closes it.
func (l *Listener) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	t, err := wstransport.Upgrade(w, r, l.cfg.Transport, l.cfg.CheckOrigin)
	if err != nil {
		l.logger.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	conn := blip.NewConnection(t, blip.ConnectionOptions{
		Delegate:        l.dispatcher,
		Logger:          l.logger,
		MaxUnackedBytes: l.cfg.MaxUnackedBytes,
	})
	l.metrics.connectionsTotal.Inc()
	l.metrics.connectionsActive.Inc()
	l.logger.Info("connection accepted", "remote", r.RemoteAddr)
	conn.Start()

	go func() {
		<-conn.Done()
		stats := conn.Stats()
		l.metrics.connectionsActive.Dec()
		l.metrics.bytesSent.Add(float64(stats.BytesSent))
		l.metrics.bytesReceived.Add(float64(stats.BytesReceived))
	}()
}
