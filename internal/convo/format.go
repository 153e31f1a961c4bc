package convo

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"subtrack-bot/internal/currency"
	"subtrack-bot/internal/domain"
)

const (
	upcomingWindowDays = 30
	upcomingLimit      = 5
	topCategoryLimit   = 3
)

var categoryEmoji = map[string]string{
	"streaming":     "🎬",
	"entertainment": "🎬",
	"music":         "🎵",
	"software":      "💻",
	"productivity":  "💻",
	"cloud":         "☁️",
	"storage":       "☁️",
	"gaming":        "🎮",
	"fitness":       "💪",
	"health":        "💪",
	"news":          "📰",
	"education":     "📚",
	"food":          "🍔",
	"utilities":     "💡",
}

func emojiFor(category string) string {
	if e, ok := categoryEmoji[strings.ToLower(strings.TrimSpace(category))]; ok {
		return e
	}
	return "📦"
}

func shortDate(t time.Time) string {
	return t.Format("Jan 2")
}

// daysUntil counts calendar days from now to t, negative when t is in the past.
func daysUntil(now, t time.Time) int {
	y1, m1, d1 := now.Date()
	y2, m2, d2 := t.In(now.Location()).Date()
	from := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	to := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

func dayLabel(days int) string {
	switch {
	case days < 0:
		if days == -1 {
			return "yesterday"
		}
		return fmt.Sprintf("%d days ago", -days)
	case days == 0:
		return "Today!"
	case days == 1:
		return "Tomorrow"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}

type dueItem struct {
	sub  domain.Subscription
	days int
}

// selectUpcoming keeps active subscriptions billing within the window, soonest first.
func selectUpcoming(subs []domain.Subscription, now time.Time) []dueItem {
	var res []dueItem
	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		days := daysUntil(now, sub.NextBillingDate)
		if days < 0 || days > upcomingWindowDays {
			continue
		}
		res = append(res, dueItem{sub: sub, days: days})
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].days < res[j].days
	})
	if len(res) > upcomingLimit {
		return res[:upcomingLimit]
	}
	return res
}

type categoryShare struct {
	name    string
	monthly float64
}

// topCategories sums monthly-equivalent cost per category in code, highest
// first, and returns the sum over every category as the share denominator.
// Subscriptions with no cost known in code are left out.
func topCategories(subs []domain.Subscription, code string, limit int) ([]categoryShare, float64) {
	index := make(map[string]int)
	var shares []categoryShare
	var total float64
	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		_, monthly, ok := sub.CostIn(code)
		if !ok {
			continue
		}
		name := sub.Category
		if name == "" {
			name = domain.CategoryOther
		}
		key := strings.ToLower(name)
		i, ok := index[key]
		if !ok {
			i = len(shares)
			index[key] = i
			shares = append(shares, categoryShare{name: name})
		}
		shares[i].monthly += monthly
		total += monthly
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].monthly > shares[j].monthly
	})
	if len(shares) > limit {
		return shares[:limit], total
	}
	return shares, total
}

// moneyTotal sums amounts per currency in first-seen order.
type moneyTotal struct {
	codes []string
	sums  map[string]float64
}

func (t *moneyTotal) add(code string, amount float64) {
	code = strings.ToUpper(code)
	if t.sums == nil {
		t.sums = make(map[string]float64)
	}
	if _, ok := t.sums[code]; !ok {
		t.codes = append(t.codes, code)
	}
	t.sums[code] += amount
}

// format renders "$10.00" or "$10.00 + €5.00" when currencies could not be merged.
func (t *moneyTotal) format(money currency.Formatter) string {
	parts := make([]string, 0, len(t.codes))
	for _, code := range t.codes {
		parts = append(parts, money.Format(t.sums[code], code))
	}
	return strings.Join(parts, " + ")
}

func percentOf(part, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(part/total*100 + 0.5)
}
