package convo

import (
	"fmt"
	"strings"

	"subtrack-bot/internal/domain"
	"subtrack-bot/internal/nlu"
)

const (
	annualDiscountRate = 0.15
	potentialSaveRate  = 0.20
	annualTipMinimum   = 10.0
	maxSavingsTips     = 3
)

func (e *Engine) handleViewSubscriptions(snap domain.Snapshot) Reply {
	active := snap.Active()
	if len(active) == 0 {
		return Reply{
			Text: "You don't have any active subscriptions yet. Add your first one by telling me something like \"Add Netflix for $15.99 monthly\".",
			SuggestedReplies: []string{"Add subscription", "How to add?"},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are your active subscriptions (%d):\n\n", len(active))
	lines := make([]string, 0, len(active))
	for _, sub := range active {
		lines = append(lines, fmt.Sprintf("%s %s - %s/%s (Next: %s)",
			emojiFor(sub.Category), sub.Name, e.money.Format(sub.Amount, sub.Currency), sub.BillingCycle.Unit(), shortDate(sub.NextBillingDate)))
	}
	b.WriteString(strings.Join(lines, "\n"))
	fmt.Fprintf(&b, "\n\nTotal monthly cost: %s", e.money.Format(snap.Analytics.TotalMonthly, e.totalsCurrency(snap)))

	return Reply{
		Text:             b.String(),
		SuggestedReplies: []string{"Add subscription", "Show analytics", "Upcoming payments"},
	}
}

func (e *Engine) handleUpcomingPayments(snap domain.Snapshot) Reply {
	due := selectUpcoming(snap.Subscriptions, snap.Now)
	replies := []string{"Show my subscriptions", "Show analytics"}
	if len(due) == 0 {
		return Reply{
			Text:             "🎉 No payments due in the next 30 days. Enjoy the break!",
			SuggestedReplies: replies,
		}
	}

	var b strings.Builder
	b.WriteString("📅 Upcoming payments in the next 30 days:\n\n")
	code := e.totalsCurrency(snap)
	var total moneyTotal
	for _, item := range due {
		sub := item.sub
		if amount, _, ok := sub.CostIn(code); ok {
			total.add(code, amount)
		} else {
			total.add(sub.Currency, sub.Amount)
		}
		fmt.Fprintf(&b, "%s %s - %s (%s)\n", emojiFor(sub.Category), sub.Name, e.money.Format(sub.Amount, sub.Currency), dayLabel(item.days))
	}
	fmt.Fprintf(&b, "\nTotal due: %s", total.format(e.money))

	return Reply{Text: b.String(), SuggestedReplies: replies}
}

func (e *Engine) handleSpendingAnalytics(ent nlu.Entities, snap domain.Snapshot) Reply {
	if len(snap.Subscriptions) == 0 {
		return Reply{
			Text:             "There's nothing to analyze yet. Add a few subscriptions and I'll break down your spending.",
			SuggestedReplies: []string{"Add subscription"},
		}
	}

	code := e.totalsCurrency(snap)
	monthly := snap.Analytics.TotalMonthly
	yearly := monthly * 12
	monthlyLine := fmt.Sprintf("💰 Monthly spending: %s", e.money.Format(monthly, code))
	yearlyLine := fmt.Sprintf("📆 Yearly spending: %s", e.money.Format(yearly, code))

	var b strings.Builder
	b.WriteString("📊 Your spending overview:\n\n")
	if ent.Period == domain.PeriodYearly {
		b.WriteString(yearlyLine + "\n" + monthlyLine + "\n")
	} else {
		b.WriteString(monthlyLine + "\n" + yearlyLine + "\n")
	}
	fmt.Fprintf(&b, "✅ Active subscriptions: %d", snap.Analytics.ActiveSubscriptions)

	if top, total := topCategories(snap.Subscriptions, code, topCategoryLimit); len(top) > 0 {
		b.WriteString("\n\nTop categories:")
		for _, c := range top {
			fmt.Fprintf(&b, "\n%s %s: %s (%d%%)", emojiFor(c.name), c.name, e.money.Format(c.monthly, code), percentOf(c.monthly, total))
		}
	}

	return Reply{
		Text:             b.String(),
		SuggestedReplies: []string{"Upcoming payments", "Savings tips", "Show my subscriptions"},
	}
}

func (e *Engine) handleSavings(snap domain.Snapshot) Reply {
	if len(snap.Subscriptions) < 2 {
		return Reply{
			Text:             "I need at least two subscriptions to spot savings opportunities. Add a few more and ask me again!",
			SuggestedReplies: []string{"Add subscription"},
		}
	}

	active := snap.Active()
	tips := make([]string, 0, maxSavingsTips)

	var priciest *domain.Subscription
	for i := range active {
		sub := &active[i]
		if sub.BillingCycle != domain.CycleMonthly || sub.Amount < annualTipMinimum {
			continue
		}
		if priciest == nil || sub.Amount > priciest.Amount {
			priciest = sub
		}
	}
	if priciest != nil {
		saving := priciest.Amount * 12 * annualDiscountRate
		tips = append(tips, fmt.Sprintf("💡 Switch %s to an annual plan to save about %s/year.",
			priciest.Name, e.money.Format(saving, priciest.Currency)))
	}

	for _, group := range duplicateCategories(active) {
		if len(tips) >= maxSavingsTips {
			break
		}
		tips = append(tips, fmt.Sprintf("🔁 You have %d %s subscriptions (%s). Could you drop one?",
			len(group.names), group.category, strings.Join(group.names, ", ")))
	}

	var b strings.Builder
	if len(tips) == 0 {
		b.WriteString("Your subscriptions already look lean. No obvious overlaps found.")
	} else {
		b.WriteString("Here are some ways to save:\n\n")
		b.WriteString(strings.Join(tips, "\n"))
	}
	potential := snap.Analytics.TotalMonthly * potentialSaveRate
	fmt.Fprintf(&b, "\n\nEstimated potential savings: up to %s/month", e.money.Format(potential, e.totalsCurrency(snap)))

	return Reply{
		Text:             b.String(),
		SuggestedReplies: []string{"Show analytics", "Show my subscriptions"},
	}
}

type categoryGroup struct {
	category string
	names    []string
}

// duplicateCategories returns categories holding more than one subscription in
// first-appearance order. The catch-all category is skipped.
func duplicateCategories(subs []domain.Subscription) []categoryGroup {
	index := make(map[string]int)
	var groups []categoryGroup
	for _, sub := range subs {
		if sub.Category == "" || strings.EqualFold(sub.Category, domain.CategoryOther) {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(sub.Category))
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, categoryGroup{category: sub.Category})
		}
		groups[i].names = append(groups[i].names, sub.Name)
	}
	dups := groups[:0]
	for _, g := range groups {
		if len(g.names) > 1 {
			dups = append(dups, g)
		}
	}
	return dups
}

func (e *Engine) handleDetail(ent nlu.Entities, snap domain.Snapshot) Reply {
	name := ent.ServiceName
	needle := strings.ToLower(name)
	for _, sub := range snap.Active() {
		if needle == "" || !strings.Contains(strings.ToLower(sub.Name), needle) {
			continue
		}
		payment := sub.PaymentMethod
		if payment == "" {
			payment = "Not set"
		}
		category := sub.Category
		if category == "" {
			category = domain.CategoryOther
		}
		days := daysUntil(snap.Now, sub.NextBillingDate)

		var b strings.Builder
		fmt.Fprintf(&b, "%s %s\n\n", emojiFor(sub.Category), sub.Name)
		fmt.Fprintf(&b, "Cost: %s/%s\n", e.money.Format(sub.Amount, sub.Currency), sub.BillingCycle.Unit())
		fmt.Fprintf(&b, "Next billing: %s (%s)\n", shortDate(sub.NextBillingDate), dayLabel(days))
		fmt.Fprintf(&b, "Category: %s\n", category)
		fmt.Fprintf(&b, "Payment method: %s\n", payment)
		fmt.Fprintf(&b, "Status: %s", sub.Status)

		return Reply{
			Text:             b.String(),
			SuggestedReplies: []string{"Upcoming payments", "Savings tips", "Show my subscriptions"},
		}
	}

	return Reply{
		Text:             fmt.Sprintf("You don't have %s in your subscriptions yet. Would you like to add it?", name),
		SuggestedReplies: []string{"Add " + name, "Show my subscriptions"},
	}
}

func helpReply() Reply {
	return Reply{
		Text: "I can help you with:\n\n" +
			"📋 View subscriptions - \"Show my subscriptions\"\n" +
			"➕ Add a subscription - \"Add Netflix for $15.99 monthly\"\n" +
			"📅 Upcoming payments - \"What payments are due?\"\n" +
			"📊 Spending analytics - \"How much do I spend?\"\n" +
			"💡 Savings tips - \"How can I save money?\"",
		SuggestedReplies: []string{"Show my subscriptions", "Add subscription", "Upcoming payments", "Spending analytics", "Savings tips"},
	}
}
