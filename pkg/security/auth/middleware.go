package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/warden/pkg/telemetry/logging"
)

// HeaderKey carries an API key when the Authorization header is not used.
// #nosec G101 - header name, not a credential
const HeaderKey = "X-Warden-Key"

// KindUnauthorized is the error kind reported for rejected requests.
const KindUnauthorized = "unauthorized"

// Source names a place a key may be read from.
type Source struct {
	// Header is the request header to read.
	Header string

	// Scheme, when set, is a required value prefix such as "Bearer".
	Scheme string
}

// DefaultSources reads "Authorization: Bearer <key>" and then X-Warden-Key.
var DefaultSources = []Source{
	{Header: "Authorization", Scheme: "Bearer"},
	{Header: HeaderKey},
}

// Middleware authenticates administration requests by API key.
type Middleware struct {
	store   KeyStore
	sources []Source
	logger  *slog.Logger
}

// NewMiddleware returns middleware validating against store. Nil sources
// selects DefaultSources.
func NewMiddleware(store KeyStore, sources []Source, logger *slog.Logger) *Middleware {
	if len(sources) == 0 {
		sources = DefaultSources
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		store:   store,
		sources: sources,
		logger:  logger.With("component", "auth"),
	}
}

// Handle rejects requests without a valid key. Accepted requests carry the
// key's administrator in their context, replacing any self-declared one.
func (m *Middleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := m.store.Validate(m.extract(r))
		if err != nil {
			m.logger.WarnContext(r.Context(), "request rejected",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			message := "invalid API key"
			if errors.Is(err, ErrMissingKey) {
				message = "missing API key"
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="warden"`)
			writeUnauthorized(w, message)
			return
		}

		ctx := logging.WithAdmin(r.Context(), key.Admin)
		ctx = context.WithValue(ctx, adminKey, key.Admin)
		m.logger.DebugContext(ctx, "request authenticated", "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) extract(r *http.Request) string {
	for _, s := range m.sources {
		value := strings.TrimSpace(r.Header.Get(s.Header))
		if value == "" {
			continue
		}
		if s.Scheme == "" {
			return value
		}
		prefix := s.Scheme + " "
		if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			return strings.TrimSpace(value[len(prefix):])
		}
	}
	return ""
}

type errorBody struct {
	Error struct {
		Message   string `json:"message"`
		Kind      string `json:"kind"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	var body errorBody
	body.Error.Message = message
	body.Error.Kind = KindUnauthorized

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(body)
}

type contextKey string

const adminKey contextKey = "authenticated_admin"

// AdminFrom returns the administrator authenticated for ctx. It reports
// false for requests that did not pass through the middleware.
func AdminFrom(ctx context.Context) (string, bool) {
	a, ok := ctx.Value(adminKey).(string)
	return a, ok
}
