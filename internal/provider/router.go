package provider

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"

	soap "github.com/merchantcapital/comcorp-idx-connector"
	"github.com/merchantcapital/comcorp-idx-connector/internal/observability"
)

// SecurityVerifier checks the security header of an inbound envelope.
type SecurityVerifier interface {
	Verify(envelope *etree.Element) soap.Result
}

type route struct {
	typ     MessageType
	handler Handler
}

// Router verifies inbound envelopes and dispatches the business message to
// the handler registered for its exact qualified name.
type Router struct {
	verifier SecurityVerifier
	routes   map[soap.QName]route
	log      logrus.FieldLogger
	metrics  *observability.Metrics
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithHandler replaces the handler for a known message type.
func WithHandler(t MessageType, h Handler) RouterOption {
	return func(r *Router) {
		if name, ok := MessageNames[t]; ok {
			r.routes[name] = route{typ: t, handler: h}
		}
	}
}

// WithRouterLogger sets the logger.
func WithRouterLogger(log logrus.FieldLogger) RouterOption {
	return func(r *Router) { r.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// NewRouter returns a router with the default handlers.
func NewRouter(verifier SecurityVerifier, opts ...RouterOption) *Router {
	r := &Router{
		verifier: verifier,
		routes:   make(map[soap.QName]route, len(MessageNames)),
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	for t, h := range DefaultHandlers(r.log) {
		name := MessageNames[t]
		if _, ok := r.routes[name]; !ok {
			r.routes[name] = route{typ: t, handler: h}
		}
	}
	return r
}

// Process reports whether the envelope was accepted.
func (r *Router) Process(envelope *etree.Element) bool {
	return r.Route(envelope).Accepted
}

// Route runs the inbound pipeline and returns the full outcome. It never panics.
func (r *Router) Route(envelope *etree.Element) (out Outcome) {
	out.Type = MessageUnknown
	out.enter(StateReceived)

	defer func() {
		if p := recover(); p != nil {
			out = out.reject(RejectHandlerFailed, fmt.Sprintf("Error processing Submit request: %v", p))
		}
		r.record(out)
	}()

	res := r.verifier.Verify(envelope)
	if !res.Verified {
		r.metrics.ObserveVerificationFailure(res.Kind.String())
		return out.reject(RejectSecurityInvalid, res.Reason)
	}
	out.enter(StateVerified)

	r.logSecureXHeader(envelope)

	body := soap.FindBody(envelope)
	if body == nil {
		return out.reject(RejectBodyMissing, "No Body element found in the request")
	}
	children := body.ChildElements()
	switch {
	case len(children) == 0:
		return out.reject(RejectContentMissing, "No content found in Body element")
	case len(children) > 1:
		return out.reject(RejectContentMissing, fmt.Sprintf("Body carries %d elements, expected exactly one", len(children)))
	}

	msg := children[0]
	name := soap.NameOf(msg)
	r.log.WithField("message", name.String()).Info("Processing message")

	rt, ok := r.routes[name]
	if !ok {
		return out.reject(RejectUnknownType, "Unknown message type: "+name.String())
	}
	out.Type = rt.typ
	out.enter(StateRouted)

	summary, err := safeHandle(rt.handler, msg)
	if err != nil {
		return out.reject(RejectHandlerFailed, fmt.Sprintf("Error processing %s: %v", name.Local, err))
	}
	out.Summary = summary
	out.enter(StateHandlerSucceeded)

	out.Accepted = true
	out.enter(StateAccepted)
	return out
}

// serializeHeader renders the SecureX header for the log.
var serializeHeader = rawXML

func (r *Router) logSecureXHeader(envelope *etree.Element) {
	sx := soap.FindDescendant(soap.FindHeader(envelope), NSCommon, "Header")
	if sx == nil {
		return
	}
	raw, err := serializeHeader(sx)
	if err != nil {
		r.log.WithError(err).Warn("Unable to serialize SecureXHeader")
		return
	}
	r.log.WithField("securex_header", raw).Info("Received SecureXHeader")
}

func (r *Router) record(out Outcome) {
	r.metrics.ObserveInbound(out.Type.String(), out.Accepted)
	if out.Accepted {
		r.log.WithField("message_type", out.Type).Info("Message accepted")
		return
	}
	r.log.WithFields(logrus.Fields{
		"message_type": out.Type,
		"rejection":    out.Rejection,
	}).Error(out.Reason)
}
