package nlu

import (
	"regexp"
	"strconv"
	"strings"

	"subtrack-bot/internal/domain"
)

var amountRegex = regexp.MustCompile(`\$?(\d+(?:\.\d+)?)`)

// Entities holds the structured values pulled out of one input. All fields are optional.
type Entities struct {
	ServiceName  string              `json:"service_name,omitempty"`
	Amount       *float64            `json:"amount,omitempty"`
	BillingCycle domain.BillingCycle `json:"billing_cycle,omitempty"`
	Period       domain.Period       `json:"period,omitempty"`
}

// Extractor pulls entities from free text using the gazetteer and fixed patterns.
type Extractor struct {
	gazetteer *Gazetteer
}

func NewExtractor(g *Gazetteer) *Extractor {
	if g == nil {
		g = DefaultGazetteer()
	}
	return &Extractor{gazetteer: g}
}

// Extract never fails; unmatched entities are left empty.
func (e *Extractor) Extract(text string) Entities {
	normalized := normalize(text)

	var ent Entities
	if name, ok := e.gazetteer.Match(normalized); ok {
		ent.ServiceName = Capitalize(name)
	}
	if amount, ok := parseAmount(normalized); ok {
		ent.Amount = &amount
	}
	ent.BillingCycle = parseBillingCycle(normalized)
	ent.Period = parsePeriod(normalized)
	return ent
}

func parseAmount(text string) (float64, bool) {
	m := amountRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil || val < 0 {
		return 0, false
	}
	return val, true
}

func parseBillingCycle(text string) domain.BillingCycle {
	switch {
	case strings.Contains(text, "month"):
		return domain.CycleMonthly
	case strings.Contains(text, "year"), strings.Contains(text, "annual"):
		return domain.CycleYearly
	case strings.Contains(text, "week"):
		return domain.CycleWeekly
	default:
		return ""
	}
}

func parsePeriod(text string) domain.Period {
	switch {
	case strings.Contains(text, "month"):
		return domain.PeriodMonthly
	case strings.Contains(text, "year"):
		return domain.PeriodYearly
	default:
		return ""
	}
}
