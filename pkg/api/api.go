package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mercator-hq/warden/pkg/events"
	"mercator-hq/warden/pkg/fsindex"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/policy/engine"
	"mercator-hq/warden/pkg/policy/guard"
	"mercator-hq/warden/pkg/policy/preview"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// DefaultMaxBodyBytes caps intent request bodies.
const DefaultMaxBodyBytes = 64 << 10

// Core is the engine surface the API relays. *engine.Engine satisfies it.
type Core interface {
	Drives() []fsindex.NodeInfo
	Node(id uint64) (fsindex.NodeInfo, error)
	Children(id uint64) ([]fsindex.NodeInfo, error)
	Expand(ctx context.Context, id uint64) ([]fsindex.NodeInfo, error)
	Collapse(ctx context.Context, id uint64) (int, error)
	SearchChildren(parentID uint64, text string) ([]fsindex.NodeInfo, error)
	IndexStats() fsindex.Stats

	ApplyWithAssurance(ctx context.Context, intent policy.Intent, confirmed bool) (policy.ID, error)
	Remove(ctx context.Context, id policy.ID) error
	ListActive() []engine.PolicyView
	PoliciesForNode(nodeID uint64) []engine.PolicyView
	Policy(id policy.ID) (engine.PolicyView, error)
	Preview(intent policy.Intent) (preview.Result, error)
	DryRun(intent policy.Intent) (preview.Evaluation, error)
	ValidateSafety(intent policy.Intent) guard.Report
	PolicyHealth(id policy.ID) (engine.Health, error)
	Stats() engine.Stats
	EnforcementStats() engine.EnforcementStats
}

// Subscriber hands out event subscriptions. *events.Bus satisfies it.
type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l.With("component", "api")
		}
	}
}

// WithEvents enables GET /v1/events.
func WithEvents(sub Subscriber, buffer int) Option {
	return func(a *API) {
		a.events = sub
		if buffer > 0 {
			a.eventBuffer = buffer
		}
	}
}

// WithTracer wraps every route in a server span.
func WithTracer(t *tracing.Tracer) Option {
	return func(a *API) {
		a.tracer = t
	}
}

// WithAuth guards every /v1 route with mw. Health and metrics handlers
// mounted with WithHandler stay open.
func WithAuth(mw func(http.Handler) http.Handler) Option {
	return func(a *API) {
		a.auth = mw
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBody = n
		}
	}
}

// WithHandler mounts an extra GET handler, such as metrics or health checks.
func WithHandler(path string, h http.Handler) Option {
	return func(a *API) {
		if path != "" && h != nil {
			a.extra = append(a.extra, mount{path: path, handler: h})
		}
	}
}

type mount struct {
	path    string
	handler http.Handler
}

// API routes HTTP requests to a Core.
type API struct {
	core        Core
	events      Subscriber
	eventBuffer int
	tracer      *tracing.Tracer
	auth        func(http.Handler) http.Handler
	maxBody     int64
	extra       []mount
	logger      *slog.Logger
}

// New returns an API over core.
func New(core Core, opts ...Option) *API {
	a := &API{
		core:        core,
		eventBuffer: events.DefaultBufferSize,
		maxBody:     DefaultMaxBodyBytes,
		logger:      slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the router.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer(a.logger))
	r.Use(requestContext)
	if a.tracer != nil {
		r.Use(tracing.HTTPMiddleware(a.tracer))
	}
	r.Use(requestLogger(a.logger))

	for _, m := range a.extra {
		r.Method(http.MethodGet, m.path, m.handler)
	}

	r.Route("/v1", func(r chi.Router) {
		if a.auth != nil {
			r.Use(a.auth)
		}
		r.Use(limitBody(a.maxBody))

		r.Get("/drives", a.drives)
		r.Route("/nodes/{nodeID}", func(r chi.Router) {
			r.Get("/", a.node)
			r.Get("/children", a.children)
			r.Post("/expand", a.expand)
			r.Post("/collapse", a.collapse)
			r.Get("/search", a.search)
			r.Get("/policies", a.nodePolicies)
		})

		r.Get("/policies", a.listPolicies)
		r.Post("/policies", a.applyPolicy)
		r.Get("/policies/{policyID}", a.getPolicy)
		r.Delete("/policies/{policyID}", a.removePolicy)
		r.Get("/policies/{policyID}/health", a.policyHealth)

		r.Post("/preview", a.preview)
		r.Post("/dry-run", a.dryRun)
		r.Post("/safety", a.safety)
		r.Get("/stats", a.stats)

		if a.events != nil {
			r.Get("/events", a.stream)
		}
	})
	return r
}
