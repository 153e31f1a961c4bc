package wa

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"subtrack-bot/internal/chat"
	"subtrack-bot/internal/convo"
	"subtrack-bot/internal/currency"
	"subtrack-bot/internal/domain"
	"subtrack-bot/internal/logging"
)

type sentMessage struct {
	to   types.JID
	text string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recordingSender) SendText(_ context.Context, to types.JID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{to: to, text: text})
	return nil
}

func (r *recordingSender) last(t *testing.T) sentMessage {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

type emptySource struct{}

func (emptySource) Snapshot(context.Context, string) (domain.Snapshot, error) {
	return domain.Snapshot{Now: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)}, nil
}

var testSender = types.NewJID("15551234567", types.DefaultUserServer)

func textEvent(text string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: testSender, Sender: testSender},
		},
		Message: &waE2E.Message{Conversation: proto.String(text)},
	}
}

func newTestBridge(t *testing.T, delay time.Duration) (*Bridge, *recordingSender, *chat.Manager) {
	t.Helper()
	logger := logging.Discard()
	manager := chat.NewManager(convo.New(nil, nil, "USD", nil, logger), emptySource{}, chat.Options{
		ReplyDelay: delay,
		Logger:     logger,
	})
	t.Cleanup(manager.CloseAll)
	sender := &recordingSender{}
	return NewBridge(context.Background(), manager, sender, currency.NewFormatter("USD"), nil, logger), sender, manager
}

func TestBridgeRepliesWithNumberedOptions(t *testing.T) {
	bridge, sender, _ := newTestBridge(t, -1)

	bridge.HandleMessage(context.Background(), textEvent("hello there"))

	got := sender.last(t)
	assert.Equal(t, testSender, got.to)
	assert.Contains(t, got.text, "Reply with a number:")
	assert.Contains(t, got.text, "\n1. Show my subscriptions")
}

func TestBridgeNumericAnswerSelectsQuickReply(t *testing.T) {
	bridge, sender, manager := newTestBridge(t, -1)

	bridge.HandleMessage(context.Background(), textEvent("hello there"))
	bridge.HandleMessage(context.Background(), textEvent("1"))

	assert.Contains(t, sender.last(t).text, "You don't have any active subscriptions yet")
	sess := manager.Resolve(Channel, testSender.String())
	transcript := sess.Transcript()
	require.Len(t, transcript, 4)
	assert.Equal(t, "Show my subscriptions", transcript[2].Text)
}

func TestBridgeOutOfRangeNumberIsPlainText(t *testing.T) {
	bridge, _, manager := newTestBridge(t, -1)

	bridge.HandleMessage(context.Background(), textEvent("hello there"))
	bridge.HandleMessage(context.Background(), textEvent("42"))

	transcript := manager.Resolve(Channel, testSender.String()).Transcript()
	require.Len(t, transcript, 4)
	assert.Equal(t, "42", transcript[2].Text)
}

func TestBridgeAwaitingResponse(t *testing.T) {
	bridge, sender, _ := newTestBridge(t, time.Hour)

	bridge.HandleMessage(context.Background(), textEvent("hello"))
	bridge.HandleMessage(context.Background(), textEvent("hello again"))

	assert.Equal(t, "One moment, I'm still answering your last message.", sender.last(t).text)
}

func TestBridgeIgnoresOwnAndNonText(t *testing.T) {
	bridge, sender, manager := newTestBridge(t, -1)

	own := textEvent("hello")
	own.Info.MessageSource.IsFromMe = true
	bridge.HandleMessage(context.Background(), own)
	assert.Empty(t, sender.sent)
	assert.Zero(t, manager.Len())

	image := &events.Message{
		Info:    types.MessageInfo{MessageSource: types.MessageSource{Chat: testSender, Sender: testSender}},
		Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}},
	}
	assert.Equal(t, "image", detectMessageType(image))
	bridge.HandleMessage(context.Background(), image)
	assert.Contains(t, sender.last(t).text, "I can only read text messages")
	assert.Zero(t, manager.Len())
}

func TestBridgeRebindsAfterSessionClosed(t *testing.T) {
	bridge, sender, manager := newTestBridge(t, -1)

	bridge.HandleMessage(context.Background(), textEvent("hello"))
	manager.CloseAll()
	bridge.HandleMessage(context.Background(), textEvent("upcoming payments"))

	assert.Contains(t, sender.last(t).text, "No payments due in the next 30 days")
}

func TestRenderDraftSummary(t *testing.T) {
	amount := 15.99
	msg := domain.Message{
		Author: domain.AuthorAssistant,
		Text:   "Great!",
		Draft: &domain.SubscriptionDraft{
			ServiceName:  "Netflix",
			Amount:       &amount,
			Currency:     "USD",
			BillingCycle: domain.CycleMonthly,
		},
		SuggestedReplies: []string{"Show my subscriptions"},
	}

	got := Render(msg, currency.NewFormatter("USD"))
	assert.Equal(t, "Great!\n\n📝 Draft subscription:\n• Service: Netflix\n• Cost: $15.99/month\n\nReply with a number:\n1. Show my subscriptions", got)
	assert.Equal(t, "Plain", Render(domain.Message{Text: "Plain"}, currency.NewFormatter("USD")))
}

func TestExtractText(t *testing.T) {
	ext := &events.Message{Message: &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("  Add Spotify  ")},
	}}
	assert.Equal(t, "Add Spotify", extractText(ext))
	assert.Equal(t, "extended_text", detectMessageType(ext))
	assert.Equal(t, "", extractText(&events.Message{Message: &waE2E.Message{}}))
	assert.Equal(t, "unknown", detectMessageType(&events.Message{Message: &waE2E.Message{}}))
}
