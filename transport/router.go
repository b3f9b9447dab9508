package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/f3rmion/xmrsig/party"
)

// Router demultiplexes one Conn into per-session routes, so concurrent
// sessions sharing an endpoint each see only their own traffic. Messages
// for sessions that are not open are discarded: they belong to an attempt
// that already finished or was aborted.
type Router struct {
	conn   Conn
	logger *slog.Logger
	onDrop func(Message)

	mu     sync.Mutex
	routes map[string]*Route
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// OnDrop registers a callback invoked for every discarded message.
func OnDrop(fn func(Message)) RouterOption {
	return func(r *Router) { r.onDrop = fn }
}

// NewRouter wraps conn. Call Run to start dispatching.
func NewRouter(conn Conn, opts ...RouterOption) *Router {
	r := &Router{
		conn:   conn,
		logger: slog.New(slog.DiscardHandler),
		routes: make(map[string]*Route),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "router", "self", conn.Self())
	return r
}

// Open registers a route for session. The route receives only messages
// tagged with that session until Close is called.
func (r *Router) Open(session string) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.routes[session]; ok {
		return rt
	}
	rt := &Route{router: r, session: session, inbox: make(chan Message, 256)}
	r.routes[session] = rt
	return rt
}

// Run dispatches incoming messages until ctx is done.
func (r *Router) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-r.conn.Incoming():
			if !ok {
				return
			}
			r.dispatch(msg)
		}
	}
}

func (r *Router) dispatch(msg Message) {
	r.mu.Lock()
	rt, ok := r.routes[msg.Session]
	r.mu.Unlock()
	if !ok {
		r.drop(msg, "unknown session")
		return
	}
	select {
	case rt.inbox <- msg:
	default:
		r.drop(msg, "route full")
	}
}

func (r *Router) drop(msg Message, reason string) {
	r.logger.Debug("message discarded",
		"reason", reason, "session", msg.Session, "round", msg.Round, "from", msg.From)
	if r.onDrop != nil {
		r.onDrop(msg)
	}
}

func (r *Router) close(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.routes, session)
}

// Route is a session-scoped [Conn] served by a Router.
type Route struct {
	router  *Router
	session string
	inbox   chan Message
}

// Self implements Conn.
func (rt *Route) Self() party.ID { return rt.router.conn.Self() }

// Send implements Conn.
func (rt *Route) Send(ctx context.Context, msg Message) error {
	return rt.router.conn.Send(ctx, msg)
}

// Incoming implements Conn.
func (rt *Route) Incoming() <-chan Message { return rt.inbox }

// Close unregisters the route. Later messages for the session are dropped.
func (rt *Route) Close() { rt.router.close(rt.session) }
