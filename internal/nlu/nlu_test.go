package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtrack-bot/internal/domain"
)

func TestExtractServiceNameForEveryKnownService(t *testing.T) {
	g := DefaultGazetteer()
	ex := NewExtractor(g)
	for _, name := range g.Names() {
		got := ex.Extract("add " + name)
		assert.Equal(t, Capitalize(name), got.ServiceName, "service %q", name)
	}
}

func TestExtractAmountAndCycle(t *testing.T) {
	ex := NewExtractor(nil)

	got := ex.Extract("$15.99 monthly")
	require.NotNil(t, got.Amount)
	assert.InDelta(t, 15.99, *got.Amount, 1e-9)
	assert.Equal(t, domain.CycleMonthly, got.BillingCycle)
	assert.Empty(t, got.ServiceName)
}

func TestExtract(t *testing.T) {
	ex := NewExtractor(nil)

	tests := []struct {
		name    string
		text    string
		service string
		amount  *float64
		cycle   domain.BillingCycle
		period  domain.Period
	}{
		{name: "full add", text: "Add Netflix for $15.99 monthly", service: "Netflix", amount: ptr(15.99), cycle: domain.CycleMonthly, period: domain.PeriodMonthly},
		{name: "no dollar sign", text: "spotify 9.99 per month", service: "Spotify", amount: ptr(9.99), cycle: domain.CycleMonthly, period: domain.PeriodMonthly},
		{name: "integer amount", text: "add hulu 8", service: "Hulu", amount: ptr(8)},
		{name: "first amount wins", text: "pay $12 then $30", amount: ptr(12)},
		{name: "annual", text: "Adobe costs 239.88 annually", service: "Adobe", amount: ptr(239.88), cycle: domain.CycleYearly},
		{name: "yearly period", text: "how much per year", cycle: domain.CycleYearly, period: domain.PeriodYearly},
		{name: "weekly", text: "gym is $10 weekly", amount: ptr(10), cycle: domain.CycleWeekly},
		{name: "month beats year", text: "monthly or yearly?", cycle: domain.CycleMonthly, period: domain.PeriodMonthly},
		{name: "mixed case and padding", text: "   DISNEY+ please  ", service: "Disney+"},
		{name: "nothing", text: "hello there"},
		{name: "empty", text: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ex.Extract(tt.text)
			assert.Equal(t, tt.service, got.ServiceName)
			if tt.amount == nil {
				assert.Nil(t, got.Amount)
			} else {
				require.NotNil(t, got.Amount)
				assert.InDelta(t, *tt.amount, *got.Amount, 1e-9)
			}
			assert.Equal(t, tt.cycle, got.BillingCycle)
			assert.Equal(t, tt.period, got.Period)
		})
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		text string
		want Intent
	}{
		{"Show my subscriptions", IntentViewSubscriptions},
		{"list subscription", IntentViewSubscriptions},
		{"what are my subscriptions", IntentViewSubscriptions},
		{"  Subscriptions ", IntentViewSubscriptions},
		{"Add Netflix for $15.99 monthly", IntentAddSubscription},
		{"add a service", IntentAddSubscription},
		{"Add subscription", IntentAddSubscription},
		{"I want a new subscription", IntentAddSubscription},
		{"subscribe me to something", IntentAddSubscription},
		{"upcoming payments", IntentUpcomingPayments},
		{"what's due soon", IntentUpcomingPayments},
		{"when do I pay next", IntentUpcomingPayments},
		{"my next payment", IntentUpcomingPayments},
		{"show analytics", IntentSpendingAnalytics},
		{"How much do I spend?", IntentSpendingAnalytics},
		{"what does it cost, how much", IntentSpendingAnalytics},
		{"monthly budget", IntentSpendingAnalytics},
		{"my expenses", IntentSpendingAnalytics},
		{"how can I save money", IntentSavingsOpportunities},
		{"optimize", IntentSavingsOpportunities},
		{"anything cheaper?", IntentSavingsOpportunities},
		{"Tell me about Netflix", IntentSubscriptionDetail},
		{"spotify", IntentSubscriptionDetail},
		{"xyzzy plugh", IntentUnknown},
		{"", IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text))
		})
	}
}

func TestClassifyPriorityResolvesOverlap(t *testing.T) {
	c := NewClassifier(nil)

	// Names a known service, but the add rule is evaluated first.
	assert.Equal(t, IntentAddSubscription, c.Classify("Add Netflix for $15.99 monthly"))
	// "spending" and "save" both match; analytics is higher priority.
	assert.Equal(t, IntentSpendingAnalytics, c.Classify("save on spending"))
	// "show" + "subscription" wins over "due".
	assert.Equal(t, IntentViewSubscriptions, c.Classify("show subscriptions due"))
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier(nil)
	inputs := []string{"Add Netflix for $15.99 monthly", "xyzzy plugh", "how much do I spend", "netflix"}
	for _, in := range inputs {
		first := c.Classify(in)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, c.Classify(in))
		}
	}
}

func TestRulesAreIndividuallyTestable(t *testing.T) {
	c := NewClassifier(nil)
	rules := c.Rules()
	require.Len(t, rules, 6)

	want := []Intent{
		IntentViewSubscriptions,
		IntentAddSubscription,
		IntentUpcomingPayments,
		IntentSpendingAnalytics,
		IntentSavingsOpportunities,
		IntentSubscriptionDetail,
	}
	for i, r := range rules {
		assert.Equal(t, want[i], r.Intent)
	}

	detail := rules[5]
	assert.True(t, detail.Match("netflix"))
	assert.False(t, detail.Match("add netflix"))
}

func TestGazetteerInjection(t *testing.T) {
	g := NewGazetteer("Acme Cloud", "  ", "acme cloud")
	assert.Equal(t, []string{"acme cloud"}, g.Names())

	g2 := g.With("Gym")
	assert.Equal(t, []string{"acme cloud", "gym"}, g2.Names())
	assert.Equal(t, []string{"acme cloud"}, g.Names(), "With must not mutate the receiver")

	in := NewInterpreter(g2)
	res := in.Interpret("add gym for $40 monthly")
	assert.Equal(t, IntentAddSubscription, res.Intent)
	assert.Equal(t, "Gym", res.Entities.ServiceName)

	assert.Equal(t, IntentSubscriptionDetail, in.Interpret("acme cloud").Intent)
	assert.Equal(t, IntentUnknown, in.Interpret("netflix").Intent, "default names are not present in a custom table")
}

func TestDefaultGazetteerHasNoShadowedEntries(t *testing.T) {
	names := DefaultGazetteer().Names()
	for i, a := range names {
		for j, b := range names {
			if i != j {
				assert.NotContains(t, b, a, "%q shadows %q", a, b)
			}
		}
	}
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Netflix", Capitalize("netflix"))
	assert.Equal(t, "Hbo max", Capitalize("hbo max"))
	assert.Equal(t, "", Capitalize(""))
}

func ptr(f float64) *float64 { return &f }
