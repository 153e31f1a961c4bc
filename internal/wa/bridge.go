package wa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"subtrack-bot/internal/chat"
	"subtrack-bot/internal/currency"
	"subtrack-bot/internal/domain"
	"subtrack-bot/internal/metrics"
)

// Channel is the session channel name for WhatsApp conversations.
const Channel = "whatsapp"

const sendTimeout = 15 * time.Second

// Sender delivers plain text to a WhatsApp chat.
type Sender interface {
	SendText(ctx context.Context, to types.JID, text string) error
}

// SessionResolver returns the live session for a sender.
type SessionResolver interface {
	Resolve(channel, userID string) *chat.Session
}

type binding struct {
	sessionID   string
	unsubscribe func()
	replies     []string
}

// Bridge maps inbound WhatsApp messages onto chat sessions and sends assistant
// messages back as text.
type Bridge struct {
	sessions SessionResolver
	sender   Sender
	money    currency.Formatter
	metrics  *metrics.Metrics
	logger   *slog.Logger

	ctx context.Context

	mu       sync.Mutex
	bindings map[string]*binding
}

func NewBridge(ctx context.Context, sessions SessionResolver, sender Sender, money currency.Formatter, metrics *metrics.Metrics, logger *slog.Logger) *Bridge {
	if money == nil {
		money = currency.NewFormatter("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		sessions: sessions,
		sender:   sender,
		money:    money,
		metrics:  metrics,
		logger:   logger.With("component", "wa"),
		ctx:      ctx,
		bindings: make(map[string]*binding),
	}
}

// HandleMessage processes one inbound message event.
func (b *Bridge) HandleMessage(ctx context.Context, evt *events.Message) {
	if evt.Info.MessageSource.IsFromMe || evt.Info.MessageSource.IsGroup {
		return
	}
	to := evt.Info.Chat
	if to.IsEmpty() {
		to = evt.Info.Sender
	}

	msgType := detectMessageType(evt)
	text := extractText(evt)
	if text == "" {
		b.logger.Debug("ignoring non-text message", "type", msgType, "sender", evt.Info.Sender.String())
		b.send(ctx, to, "I can only read text messages for now. Try something like \"Show my subscriptions\".")
		return
	}

	userID := evt.Info.Sender.ToNonAD().String()
	sess := b.sessions.Resolve(Channel, userID)
	b.bind(sess, to)

	var err error
	if choice, ok := b.quickReplyFor(userID, text); ok {
		_, err = sess.SelectQuickReply(ctx, choice)
	} else {
		_, err = sess.Submit(ctx, text)
	}
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrAwaitingResponse):
		b.send(ctx, to, "One moment, I'm still answering your last message.")
	case errors.Is(err, chat.ErrRateLimited):
		b.send(ctx, to, "You're sending messages a bit too quickly. Please wait a minute and try again.")
	case errors.Is(err, chat.ErrEmptyInput):
	default:
		b.logger.Error("failed submitting message", "error", err, "session_id", sess.ID())
		b.metrics.ObserveError("wa")
	}
}

// bind subscribes to the sender's session once, replacing a stale binding.
func (b *Bridge) bind(sess *chat.Session, to types.JID) {
	userID := sess.UserID()
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.bindings[userID]; ok {
		if cur.sessionID == sess.ID() {
			return
		}
		cur.unsubscribe()
	}
	bnd := &binding{sessionID: sess.ID()}
	bnd.unsubscribe = sess.OnAppend(func(msg domain.Message) {
		if msg.Author != domain.AuthorAssistant {
			return
		}
		b.mu.Lock()
		bnd.replies = append([]string(nil), msg.SuggestedReplies...)
		b.mu.Unlock()

		ctx, cancel := context.WithTimeout(b.ctx, sendTimeout)
		defer cancel()
		b.send(ctx, to, Render(msg, b.money))
	})
	b.bindings[userID] = bnd
}

// quickReplyFor maps a numeric answer onto the last suggested replies.
func (b *Bridge) quickReplyFor(userID, text string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return "", false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bnd, ok := b.bindings[userID]
	if !ok || n < 1 || n > len(bnd.replies) {
		return "", false
	}
	return bnd.replies[n-1], true
}

func (b *Bridge) send(ctx context.Context, to types.JID, text string) {
	if err := b.sender.SendText(ctx, to, text); err != nil {
		b.logger.Warn("failed sending whatsapp message", "error", err, "to", to.String())
		b.metrics.ObserveError("wa")
	}
}

// Render formats an assistant message for a plain-text chat. A draft becomes a
// summary and suggested replies become numbered options.
func Render(msg domain.Message, money currency.Formatter) string {
	var sb strings.Builder
	sb.WriteString(msg.Text)

	if d := msg.Draft; d != nil && !d.IsEmpty() {
		sb.WriteString("\n\n📝 Draft subscription:")
		if d.ServiceName != "" {
			fmt.Fprintf(&sb, "\n• Service: %s", d.ServiceName)
		}
		if d.Amount != nil {
			unit := d.BillingCycle
			if unit == "" {
				unit = domain.CycleMonthly
			}
			fmt.Fprintf(&sb, "\n• Cost: %s/%s", money.Format(*d.Amount, d.Currency), unit.Unit())
		}
		if d.Category != "" {
			fmt.Fprintf(&sb, "\n• Category: %s", d.Category)
		}
		if d.NextBillingDate != nil {
			fmt.Fprintf(&sb, "\n• Next billing: %s", d.NextBillingDate.Format("Jan 2, 2006"))
		}
	}

	if len(msg.SuggestedReplies) > 0 {
		sb.WriteString("\n\nReply with a number:")
		for i, r := range msg.SuggestedReplies {
			fmt.Fprintf(&sb, "\n%d. %s", i+1, r)
		}
	}
	return sb.String()
}

func detectMessageType(evt *events.Message) string {
	msg := evt.Message
	switch {
	case msg.GetConversation() != "":
		return "text"
	case msg.GetExtendedTextMessage() != nil:
		return "extended_text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	default:
		return "unknown"
	}
}

func extractText(evt *events.Message) string {
	msg := evt.Message
	switch {
	case msg.GetConversation() != "":
		return strings.TrimSpace(msg.GetConversation())
	case msg.GetExtendedTextMessage() != nil:
		return strings.TrimSpace(msg.GetExtendedTextMessage().GetText())
	default:
		return ""
	}
}
