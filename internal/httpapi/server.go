package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"subtrack-bot/internal/chat"
	"subtrack-bot/internal/convo"
	"subtrack-bot/internal/domain"
	"subtrack-bot/internal/metrics"
)

// Interpreter answers one input against a snapshot.
type Interpreter interface {
	Respond(ctx context.Context, text string, snap domain.Snapshot) convo.Reply
}

// SnapshotProvider loads and invalidates per-user snapshots.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, userID string) (domain.Snapshot, error)
	Invalidate(ctx context.Context, userID string) error
}

// SubscriptionStore is the write side used by the add-subscription form.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, userID string, draft domain.SubscriptionDraft) (*domain.Subscription, error)
	UpdateStatus(ctx context.Context, userID, id, status string) error
}

// Deps wires the server.
type Deps struct {
	Engine    Interpreter
	Sessions  *chat.Manager
	Snapshots SnapshotProvider
	Store     SubscriptionStore
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Health    func(ctx context.Context) error
	Logger    *slog.Logger
	// AllowedOrigins restricts websocket upgrades. Empty allows all.
	AllowedOrigins []string
}

type Server struct {
	deps    Deps
	logger  *slog.Logger
	origins map[string]bool
	now     func() time.Time
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	origins := make(map[string]bool, len(deps.AllowedOrigins))
	for _, o := range deps.AllowedOrigins {
		origins[o] = true
	}
	return &Server{
		deps:    deps,
		logger:  logger.With("component", "http"),
		origins: origins,
		now:     time.Now,
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/interpret", s.handleInterpret)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/messages", s.handleListMessages)
			r.Post("/messages", s.handleSubmit(false))
			r.Post("/quick-replies", s.handleSubmit(true))
			r.Delete("/", s.handleCloseSession)
			r.Get("/ws", s.handleWebsocket)
		})

		r.Route("/users/{userID}/subscriptions", func(r chi.Router) {
			r.Get("/", s.handleListSubscriptions)
			r.Post("/", s.handleCreateSubscription)
			r.Patch("/{subscriptionID}", s.handleUpdateStatus)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// snapshotFor degrades to an empty snapshot when the data source fails.
func (s *Server) snapshotFor(ctx context.Context, userID string) domain.Snapshot {
	if s.deps.Snapshots == nil || userID == "" {
		return domain.Snapshot{Now: s.now()}
	}
	snap, err := s.deps.Snapshots.Snapshot(ctx, userID)
	if err != nil {
		s.logger.Error("failed loading snapshot", "error", err, "user_id", userID)
		s.deps.Metrics.ObserveError("snapshot")
		return domain.Snapshot{Now: s.now()}
	}
	return snap
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

// statusFor maps chat errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrAwaitingResponse):
		return http.StatusConflict
	case errors.Is(err, chat.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, chat.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
