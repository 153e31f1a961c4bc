package convo

import (
	"fmt"

	"subtrack-bot/internal/domain"
	"subtrack-bot/internal/nlu"
)

// handleAdd pre-fills the add form when name and amount were both given and
// otherwise requests a blank one. Missing slots are completed in the form, not
// in further dialog turns.
func (e *Engine) handleAdd(ent nlu.Entities) Reply {
	if ent.ServiceName == "" || ent.Amount == nil {
		return Reply{
			Text: "Let's add a new subscription! I've opened the form for you. I'll need:\n" +
				"• Service name\n" +
				"• Cost\n" +
				"• Next billing date\n" +
				"• Category\n\n" +
				"Tip: you can also say \"Add Spotify for $9.99 monthly\" and I'll fill in what I can.",
			Form: &FormRequest{},
		}
	}

	cycle := ent.BillingCycle
	if cycle == "" {
		cycle = domain.CycleMonthly
	}
	amount := *ent.Amount
	draft := domain.SubscriptionDraft{
		ServiceName:  ent.ServiceName,
		Amount:       &amount,
		Currency:     e.display,
		BillingCycle: cycle,
	}

	text := fmt.Sprintf("Great! Let's add %s for %s/%s. I've opened the form with those details - just add the next billing date and category.",
		ent.ServiceName, e.money.Format(amount, e.display), cycle.Unit())
	return Reply{
		Text:             text,
		SuggestedReplies: []string{"Show my subscriptions"},
		Form:             &FormRequest{Draft: draft, Prefilled: true},
	}
}
