package convo

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"subtrack-bot/internal/currency"
	"subtrack-bot/internal/domain"
	"subtrack-bot/internal/metrics"
	"subtrack-bot/internal/nlu"
)

// FormRequest asks the caller to open the add-subscription form.
// A zero Draft means a blank form.
type FormRequest struct {
	Draft     domain.SubscriptionDraft `json:"draft"`
	Prefilled bool                     `json:"prefilled"`
}

// Reply is the interpreter's answer to one input.
type Reply struct {
	Intent           nlu.Intent   `json:"intent"`
	Entities         nlu.Entities `json:"entities"`
	Text             string       `json:"text"`
	SuggestedReplies []string     `json:"suggested_replies,omitempty"`
	Form             *FormRequest `json:"form,omitempty"`
}

// Message converts the reply into an assistant transcript entry.
func (r Reply) Message(id, sessionID string, at time.Time) domain.Message {
	msg := domain.Message{
		ID:               id,
		SessionID:        sessionID,
		Author:           domain.AuthorAssistant,
		Text:             r.Text,
		CreatedAt:        at,
		SuggestedReplies: append([]string(nil), r.SuggestedReplies...),
	}
	if r.Form != nil && r.Form.Prefilled {
		draft := r.Form.Draft
		msg.Draft = &draft
	}
	return msg
}

// Engine turns free text plus a data snapshot into a reply.
type Engine struct {
	nlu     *nlu.Interpreter
	money   currency.Formatter
	display string
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a conversation engine. displayCurrency is used for totals and drafts
// when the snapshot does not name one.
func New(interpreter *nlu.Interpreter, money currency.Formatter, displayCurrency string, metrics *metrics.Metrics, logger *slog.Logger) *Engine {
	if interpreter == nil {
		interpreter = nlu.NewInterpreter(nil)
	}
	if money == nil {
		money = currency.NewFormatter(displayCurrency)
	}
	if displayCurrency == "" {
		displayCurrency = currency.DefaultCode
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		nlu:     interpreter,
		money:   money,
		display: displayCurrency,
		metrics: metrics,
		logger:  logger.With("component", "convo"),
		tracer:  otel.Tracer("subtrack/convo"),
	}
}

// Respond classifies text and generates the reply. It reads only from snap and
// performs no I/O, so identical inputs produce identical replies.
func (e *Engine) Respond(ctx context.Context, text string, snap domain.Snapshot) Reply {
	_, span := e.tracer.Start(ctx, "convo.respond")
	defer span.End()

	start := time.Now()
	if snap.Now.IsZero() {
		snap.Now = start
	}

	res := e.nlu.Interpret(text)
	reply := e.routeIntent(res, snap)
	reply.Intent = res.Intent
	reply.Entities = res.Entities

	span.SetAttributes(
		attribute.String("convo.intent", string(res.Intent)),
		attribute.Bool("convo.form", reply.Form != nil),
		attribute.Int("convo.subscriptions", len(snap.Subscriptions)),
	)
	if e.metrics != nil {
		e.metrics.Intents.WithLabelValues(string(res.Intent)).Inc()
		e.metrics.ReplyLatency.WithLabelValues(string(res.Intent)).Observe(time.Since(start).Seconds())
		if reply.Form != nil {
			e.metrics.FormRequests.WithLabelValues(strconv.FormatBool(reply.Form.Prefilled)).Inc()
		}
	}
	e.logger.Debug("intent handled", "intent", res.Intent, "service", res.Entities.ServiceName, "form", reply.Form != nil)
	return reply
}

func (e *Engine) routeIntent(res nlu.Result, snap domain.Snapshot) Reply {
	switch res.Intent {
	case nlu.IntentViewSubscriptions:
		return e.handleViewSubscriptions(snap)
	case nlu.IntentAddSubscription:
		return e.handleAdd(res.Entities)
	case nlu.IntentUpcomingPayments:
		return e.handleUpcomingPayments(snap)
	case nlu.IntentSpendingAnalytics:
		return e.handleSpendingAnalytics(res.Entities, snap)
	case nlu.IntentSavingsOpportunities:
		return e.handleSavings(snap)
	case nlu.IntentSubscriptionDetail:
		return e.handleDetail(res.Entities, snap)
	default:
		return helpReply()
	}
}

func (e *Engine) totalsCurrency(snap domain.Snapshot) string {
	if snap.Analytics.Currency != "" {
		return snap.Analytics.Currency
	}
	return e.display
}
