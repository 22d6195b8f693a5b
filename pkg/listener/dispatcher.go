package listener

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blip-dev/blip/pkg/blip"
)

// tracerName identifies this package's OpenTelemetry tracer.
const tracerName = "github.com/blip-dev/blip/pkg/listener"

// Handler processes one inbound BLIP request. Handlers respond via
// req.Respond or req.RespondWithError unless the request has NoReply set.
type Handler func(ctx context.Context, req *blip.MessageIn)

// Dispatcher routes inbound requests to handlers registered by Profile
// property. It implements blip.Delegate; one Dispatcher may serve many
// connections. A request whose profile has no handler is answered with a
// BLIP 404 error.
type Dispatcher struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics

	mu       sync.RWMutex
	handlers map[string]Handler
	def      Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default().With("component", "blip-listener")
	}
	return &Dispatcher{
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		handlers: make(map[string]Handler),
	}
}

// Register installs a handler for requests carrying the given Profile
// value. Registering twice for one profile replaces the handler.
func (d *Dispatcher) Register(profile string, h Handler) {
	d.mu.Lock()
	d.handlers[profile] = h
	d.mu.Unlock()
}

// SetDefault installs a fallback handler for profiles with no registered
// handler, replacing the built-in 404 error response.
func (d *Dispatcher) SetDefault(h Handler) {
	d.mu.Lock()
	d.def = h
	d.mu.Unlock()
}

// handlerFor looks up the handler for a profile.
func (d *Dispatcher) handlerFor(profile string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if h, ok := d.handlers[profile]; ok {
		return h, true
	}
	if d.def != nil {
		return d.def, true
	}
	return nil, false
}

// OnRequestReceived implements blip.Delegate. Each request runs under its
// own trace span with the profile and message number as attributes.
func (d *Dispatcher) OnRequestReceived(req *blip.MessageIn) {
	profile := req.Profile()
	ctx, span := d.tracer.Start(context.Background(), "blip.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("blip.profile", profile),
			attribute.Int64("blip.message_number", int64(req.Number())),
		))
	defer span.End()

	h, ok := d.handlerFor(profile)
	if !ok {
		d.logger.Warn("no handler for profile", "profile", profile)
		if d.metrics != nil {
			d.metrics.unhandledTotal.Inc()
		}
		if !req.NoReply() {
			if err := req.RespondWithError("BLIP", 404, "no handler for profile"); err != nil {
				d.logger.Error("error response failed", "error", err)
			}
		}
		return
	}

	if d.metrics != nil {
		d.metrics.requestsTotal.WithLabelValues(profile).Inc()
	}
	h(ctx, req)
}

// OnResponseReceived implements blip.Delegate. Responses resolve their
// futures on the requesting side; the dispatcher only logs them.
func (d *Dispatcher) OnResponseReceived(resp *blip.MessageIn) {
	d.logger.Debug("response received",
		"type", resp.Type().String(), "number", uint64(resp.Number()))
}

// OnClose implements blip.Delegate.
func (d *Dispatcher) OnClose(reason error) {
	if reason != nil {
		d.logger.Info("connection closed", "reason", reason)
	} else {
		d.logger.Info("connection closed")
	}
}
