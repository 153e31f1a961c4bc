package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"subtrack-bot/internal/chat"
	"subtrack-bot/internal/convo"
	"subtrack-bot/internal/domain"
	"subtrack-bot/internal/nlu"
	"subtrack-bot/internal/repo"
)

const channelWeb = "web"

type interpretRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type interpretResponse struct {
	Message  domain.Message     `json:"message"`
	Intent   nlu.Intent         `json:"intent"`
	Entities nlu.Entities       `json:"entities"`
	Form     *convo.FormRequest `json:"form,omitempty"`
}

// handleInterpret runs one stateless turn.
// POST /v1/interpret
func (s *Server) handleInterpret(w http.ResponseWriter, r *http.Request) {
	var req interpretRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		jsonError(w, chat.ErrEmptyInput.Error(), http.StatusBadRequest)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.IncomingMessages.WithLabelValues("api").Inc()
	}

	snap := s.snapshotFor(r.Context(), req.UserID)
	reply := s.deps.Engine.Respond(r.Context(), text, snap)
	writeJSON(w, http.StatusOK, interpretResponse{
		Message:  reply.Message(uuid.NewString(), "", s.now()),
		Intent:   reply.Intent,
		Entities: reply.Entities,
		Form:     reply.Form,
	})
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type sessionResponse struct {
	ID     string     `json:"id"`
	UserID string     `json:"user_id"`
	State  chat.State `json:"state"`
}

// POST /v1/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	sess := s.deps.Sessions.Create(channelWeb, strings.TrimSpace(req.UserID))
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID(), UserID: sess.UserID(), State: sess.State()})
}

// GET /v1/sessions/{sessionID}/messages
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	msgs, err := s.deps.Sessions.Transcript(r.Context(), id)
	if err != nil {
		if !errors.Is(err, chat.ErrSessionNotFound) {
			s.logger.Error("failed loading transcript", "error", err, "session_id", id)
		}
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

type submitRequest struct {
	Text string `json:"text"`
}

// POST /v1/sessions/{sessionID}/messages
// POST /v1/sessions/{sessionID}/quick-replies
func (s *Server) handleSubmit(quickReply bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		sess, err := s.deps.Sessions.Get(id)
		if err != nil {
			jsonError(w, err.Error(), statusFor(err))
			return
		}
		var req submitRequest
		if err := decodeJSON(w, r, &req); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		var msg domain.Message
		if quickReply {
			msg, err = sess.SelectQuickReply(r.Context(), req.Text)
		} else {
			msg, err = sess.Submit(r.Context(), req.Text)
		}
		if err != nil {
			jsonError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"message": msg, "state": sess.State()})
	}
}

// DELETE /v1/sessions/{sessionID}
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/users/{userID}/subscriptions
func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if s.deps.Snapshots == nil {
		jsonError(w, "subscriptions unavailable", http.StatusServiceUnavailable)
		return
	}
	snap, err := s.deps.Snapshots.Snapshot(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed loading subscriptions", "error", err, "user_id", userID)
		jsonError(w, "failed to load subscriptions", http.StatusInternalServerError)
		return
	}
	subs := snap.Subscriptions
	if subs == nil {
		subs = []domain.Subscription{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": subs, "analytics": snap.Analytics})
}

type createSubscriptionRequest struct {
	ServiceName     string   `json:"service_name"`
	Amount          *float64 `json:"amount"`
	Currency        string   `json:"currency"`
	BillingCycle    string   `json:"billing_cycle"`
	Category        string   `json:"category"`
	NextBillingDate string   `json:"next_billing_date"`
	PaymentMethod   string   `json:"payment_method"`
}

func (req createSubscriptionRequest) draft() (domain.SubscriptionDraft, error) {
	d := domain.SubscriptionDraft{
		ServiceName:   strings.TrimSpace(req.ServiceName),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Category:      strings.TrimSpace(req.Category),
		PaymentMethod: req.PaymentMethod,
	}
	if req.Amount != nil && *req.Amount < 0 {
		return d, errors.New("amount must not be negative")
	}
	if req.BillingCycle != "" {
		cycle, ok := domain.ParseBillingCycle(req.BillingCycle)
		if !ok {
			return d, errors.New("billing_cycle must be monthly, yearly or weekly")
		}
		d.BillingCycle = cycle
	}
	if req.NextBillingDate != "" {
		next, err := parseDate(req.NextBillingDate)
		if err != nil {
			return d, errors.New("next_billing_date must be YYYY-MM-DD or RFC 3339")
		}
		d.NextBillingDate = &next
	}
	return d, nil
}

func parseDate(val string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", val); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, val)
}

// handleCreateSubscription is the add-subscription form submission.
// POST /v1/users/{userID}/subscriptions
func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req createSubscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	draft, err := req.draft()
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := s.deps.Store.CreateSubscription(r.Context(), userID, draft)
	if err != nil {
		if errors.Is(err, repo.ErrIncompleteDraft) {
			jsonError(w, "service_name, amount, billing_cycle, category and next_billing_date are required", http.StatusUnprocessableEntity)
			return
		}
		s.logger.Error("failed creating subscription", "error", err, "user_id", userID)
		s.deps.Metrics.ObserveError("create_subscription")
		jsonError(w, "failed to create subscription", http.StatusInternalServerError)
		return
	}
	s.invalidate(r, userID)
	writeJSON(w, http.StatusCreated, sub)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// PATCH /v1/users/{userID}/subscriptions/{subscriptionID}
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	id := chi.URLParam(r, "subscriptionID")
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := s.deps.Store.UpdateStatus(r.Context(), userID, id, strings.ToLower(strings.TrimSpace(req.Status)))
	switch {
	case errors.Is(err, repo.ErrInvalidStatus):
		jsonError(w, "status must be active, paused or cancelled", http.StatusBadRequest)
		return
	case errors.Is(err, repo.ErrNotFound):
		jsonError(w, "subscription not found", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("failed updating subscription", "error", err, "user_id", userID, "subscription_id", id)
		jsonError(w, "failed to update subscription", http.StatusInternalServerError)
		return
	}
	s.invalidate(r, userID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) invalidate(r *http.Request, userID string) {
	if s.deps.Snapshots == nil {
		return
	}
	if err := s.deps.Snapshots.Invalidate(r.Context(), userID); err != nil {
		s.logger.Warn("failed invalidating snapshot", "error", err, "user_id", userID)
	}
}
