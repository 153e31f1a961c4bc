package domain

import "time"

// SubscriptionDraft collects entities toward creating a subscription.
// It lives only as long as the form it pre-fills.
type SubscriptionDraft struct {
	ServiceName     string       `json:"service_name,omitempty"`
	Amount          *float64     `json:"amount,omitempty"`
	Currency        string       `json:"currency,omitempty"`
	BillingCycle    BillingCycle `json:"billing_cycle,omitempty"`
	Category        string       `json:"category,omitempty"`
	NextBillingDate *time.Time   `json:"next_billing_date,omitempty"`
	PaymentMethod   string       `json:"payment_method,omitempty"`
}

// Complete reports whether the draft carries every field required to persist it.
func (d SubscriptionDraft) Complete() bool {
	return d.ServiceName != "" &&
		d.Amount != nil && *d.Amount >= 0 &&
		d.BillingCycle != "" &&
		d.Category != "" &&
		d.NextBillingDate != nil
}

// IsEmpty is true for a draft that opens a blank form.
func (d SubscriptionDraft) IsEmpty() bool {
	return d.ServiceName == "" && d.Amount == nil && d.BillingCycle == "" && d.Category == "" && d.NextBillingDate == nil
}

// Message is one entry in a session transcript.
type Message struct {
	ID               string             `json:"id"`
	SessionID        string             `json:"session_id"`
	Author           Author             `json:"author"`
	Text             string             `json:"text"`
	CreatedAt        time.Time          `json:"created_at"`
	SuggestedReplies []string           `json:"suggested_replies,omitempty"`
	Draft            *SubscriptionDraft `json:"draft,omitempty"`
}
