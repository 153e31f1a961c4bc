package nlu

import "strings"

// Intent is the coarse action a message asks for.
type Intent string

const (
	IntentViewSubscriptions    Intent = "view_subscriptions"
	IntentAddSubscription      Intent = "add_subscription"
	IntentUpcomingPayments     Intent = "upcoming_payments"
	IntentSpendingAnalytics    Intent = "spending_analytics"
	IntentSavingsOpportunities Intent = "savings_opportunities"
	IntentSubscriptionDetail   Intent = "subscription_detail"
	IntentUnknown              Intent = "unknown"
)

// Rule maps a predicate over normalized text to an intent.
type Rule struct {
	Name   string
	Intent Intent
	Match  func(normalized string) bool
}

// Classifier evaluates its rules in order and returns the first hit.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds the default rule chain. Order is priority: earlier rules
// shadow later ones, e.g. "add netflix" is an add, not a detail lookup.
// A known service name counts as "service" for the add rule.
func NewClassifier(g *Gazetteer) *Classifier {
	if g == nil {
		g = DefaultGazetteer()
	}
	knownService := func(t string) bool {
		_, ok := g.Match(t)
		return ok
	}
	matchAdd := func(t string) bool {
		return (strings.Contains(t, "add") && (containsAny(t, "subscription", "service") || knownService(t))) ||
			strings.Contains(t, "new subscription") ||
			strings.Contains(t, "subscribe")
	}
	return &Classifier{rules: []Rule{
		{Name: "view", Intent: IntentViewSubscriptions, Match: matchView},
		{Name: "add", Intent: IntentAddSubscription, Match: matchAdd},
		{Name: "upcoming", Intent: IntentUpcomingPayments, Match: matchUpcoming},
		{Name: "analytics", Intent: IntentSpendingAnalytics, Match: matchAnalytics},
		{Name: "savings", Intent: IntentSavingsOpportunities, Match: matchSavings},
		{Name: "detail", Intent: IntentSubscriptionDetail, Match: func(t string) bool {
			return knownService(t) && !matchAdd(t)
		}},
	}}
}

// Rules returns the chain in evaluation order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

func (c *Classifier) Classify(text string) Intent {
	normalized := normalize(text)
	for _, r := range c.rules {
		if r.Match(normalized) {
			return r.Intent
		}
	}
	return IntentUnknown
}

func matchView(t string) bool {
	return (containsAny(t, "show", "view", "list") && strings.Contains(t, "subscription")) ||
		strings.Contains(t, "my subscriptions") ||
		t == "subscriptions"
}

func matchUpcoming(t string) bool {
	return (strings.Contains(t, "upcoming") && strings.Contains(t, "payment")) ||
		strings.Contains(t, "due") ||
		strings.Contains(t, "next payment") ||
		(strings.Contains(t, "when") && strings.Contains(t, "pay"))
}

func matchAnalytics(t string) bool {
	return containsAny(t, "analytics", "spending", "expense", "budget") ||
		(strings.Contains(t, "how much") && containsAny(t, "spend", "cost"))
}

func matchSavings(t string) bool {
	return containsAny(t, "save", "saving", "optimize", "reduce", "cheaper")
}

func containsAny(t string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}
