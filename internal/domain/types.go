package domain

import (
	"strings"
	"time"
)

// BillingCycle is how often a subscription charges.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
	CycleWeekly  BillingCycle = "weekly"
)

// weeksPerMonth converts weekly charges to a monthly-equivalent figure.
const weeksPerMonth = 4.33

// ParseBillingCycle accepts the canonical names plus a few common aliases.
func ParseBillingCycle(s string) (BillingCycle, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "month":
		return CycleMonthly, true
	case "yearly", "year", "annual", "annually":
		return CycleYearly, true
	case "weekly", "week":
		return CycleWeekly, true
	default:
		return "", false
	}
}

// Unit is the short label used after a price, e.g. "$9.99/month".
func (c BillingCycle) Unit() string {
	switch c {
	case CycleYearly:
		return "year"
	case CycleWeekly:
		return "week"
	default:
		return "month"
	}
}

// MonthlyEquivalent normalizes an amount billed on this cycle to a per-month figure.
func (c BillingCycle) MonthlyEquivalent(amount float64) float64 {
	switch c {
	case CycleYearly:
		return amount / 12
	case CycleWeekly:
		return amount * weeksPerMonth
	default:
		return amount
	}
}

// Period is the time window an analytics question asks about.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Status values used by the subscription store.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCancelled = "cancelled"
)

// CategoryOther is the catch-all category excluded from duplicate-category tips.
const CategoryOther = "Other"

// Subscription is a read-only view of one tracked subscription.
type Subscription struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	Name            string       `json:"name"`
	Amount          float64      `json:"amount"`
	Currency        string       `json:"currency"`
	BillingCycle    BillingCycle `json:"billing_cycle"`
	Category        string       `json:"category"`
	NextBillingDate time.Time    `json:"next_billing_date"`
	Status          string       `json:"status"`
	PaymentMethod   string       `json:"payment_method"`

	// Display* hold the cost converted into DisplayCurrency. They are set by the
	// snapshot provider and empty when no conversion is known.
	DisplayCurrency string  `json:"display_currency,omitempty"`
	DisplayAmount   float64 `json:"display_amount,omitempty"`
	DisplayMonthly  float64 `json:"display_monthly,omitempty"`
}

func (s Subscription) IsActive() bool {
	return strings.EqualFold(s.Status, StatusActive)
}

// MonthlyAmount returns the monthly-equivalent cost in the subscription's own currency.
func (s Subscription) MonthlyAmount() float64 {
	return s.BillingCycle.MonthlyEquivalent(s.Amount)
}

// CostIn returns the per-charge amount and the monthly equivalent in code.
// ok is false when the subscription bills in another currency and carries no
// conversion into code.
func (s Subscription) CostIn(code string) (amount, monthly float64, ok bool) {
	if s.Currency == "" || strings.EqualFold(s.Currency, code) {
		return s.Amount, s.MonthlyAmount(), true
	}
	if s.DisplayCurrency != "" && strings.EqualFold(s.DisplayCurrency, code) {
		return s.DisplayAmount, s.DisplayMonthly, true
	}
	return 0, 0, false
}

// Analytics summarizes spending in a single display currency.
type Analytics struct {
	TotalMonthly        float64 `json:"total_monthly"`
	TotalYearly         float64 `json:"total_yearly"`
	ActiveSubscriptions int     `json:"active_subscriptions"`
	Currency            string  `json:"currency"`
}

// Snapshot is the resident data a reply is generated from.
type Snapshot struct {
	Subscriptions []Subscription `json:"subscriptions"`
	Analytics     Analytics      `json:"analytics"`
	Now           time.Time      `json:"now"`
}

// Active returns the active subscriptions in their original order.
func (s Snapshot) Active() []Subscription {
	res := make([]Subscription, 0, len(s.Subscriptions))
	for _, sub := range s.Subscriptions {
		if sub.IsActive() {
			res = append(res, sub)
		}
	}
	return res
}
