package repo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"subtrack-bot/internal/domain"
)

var (
	ErrNotFound        = errors.New("repo: not found")
	ErrIncompleteDraft = errors.New("repo: incomplete subscription draft")
	ErrInvalidStatus   = errors.New("repo: invalid status")
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// MessageRecord is one logged chat message.
type MessageRecord struct {
	ID        string
	SessionID string
	Direction string
	Type      string
	Content   *string
	Metadata  []byte
	CreatedAt time.Time
}

// Store is implemented by the postgres and sqlite repositories.
type Store interface {
	ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error)
	GetSubscription(ctx context.Context, userID, id string) (*domain.Subscription, error)
	CreateSubscription(ctx context.Context, userID string, draft domain.SubscriptionDraft) (*domain.Subscription, error)
	UpdateStatus(ctx context.Context, userID, id, status string) error
	InsertMessage(ctx context.Context, rec MessageRecord) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error)
}

const dateLayout = "2006-01-02"

func newSubscription(id, userID string, draft domain.SubscriptionDraft) (*domain.Subscription, error) {
	if !draft.Complete() {
		return nil, ErrIncompleteDraft
	}
	code := strings.ToUpper(strings.TrimSpace(draft.Currency))
	if code == "" {
		code = "USD"
	}
	next := draft.NextBillingDate.UTC()
	return &domain.Subscription{
		ID:              id,
		UserID:          userID,
		Name:            strings.TrimSpace(draft.ServiceName),
		Amount:          *draft.Amount,
		Currency:        code,
		BillingCycle:    draft.BillingCycle,
		Category:        strings.TrimSpace(draft.Category),
		NextBillingDate: time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC),
		Status:          domain.StatusActive,
		PaymentMethod:   strings.TrimSpace(draft.PaymentMethod),
	}, nil
}

func validStatus(status string) bool {
	switch status {
	case domain.StatusActive, domain.StatusPaused, domain.StatusCancelled:
		return true
	default:
		return false
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}

type messageMetadata struct {
	SuggestedReplies []string                  `json:"suggested_replies,omitempty"`
	Draft            *domain.SubscriptionDraft `json:"draft,omitempty"`
}

// RecordFromMessage converts a transcript entry into a log row.
func RecordFromMessage(msg domain.Message) (MessageRecord, error) {
	meta, err := json.Marshal(messageMetadata{SuggestedReplies: msg.SuggestedReplies, Draft: msg.Draft})
	if err != nil {
		return MessageRecord{}, err
	}
	direction := DirectionOutgoing
	if msg.Author == domain.AuthorUser {
		direction = DirectionIncoming
	}
	text := msg.Text
	return MessageRecord{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Direction: direction,
		Type:      "text",
		Content:   &text,
		Metadata:  meta,
		CreatedAt: msg.CreatedAt,
	}, nil
}

// Message converts a log row back into a transcript entry.
func (r MessageRecord) Message() domain.Message {
	msg := domain.Message{
		ID:        r.ID,
		SessionID: r.SessionID,
		Author:    domain.AuthorAssistant,
		CreatedAt: r.CreatedAt,
	}
	if r.Direction == DirectionIncoming {
		msg.Author = domain.AuthorUser
	}
	if r.Content != nil {
		msg.Text = *r.Content
	}
	var meta messageMetadata
	if len(r.Metadata) > 0 && json.Unmarshal(r.Metadata, &meta) == nil {
		msg.SuggestedReplies = meta.SuggestedReplies
		msg.Draft = meta.Draft
	}
	return msg
}
