package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"subtrack-bot/internal/cache"
	"subtrack-bot/internal/domain"
)

// Lister loads a user's subscriptions.
type Lister interface {
	ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error)
}

// Converter converts between currencies.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// Provider assembles the snapshot a reply is generated from. Subscription lists
// are cached in redis and analytics are recomputed per call.
type Provider struct {
	lister    Lister
	converter Converter
	cache     *cache.Redis
	ttl       time.Duration
	display   string
	logger    *slog.Logger
	now       func() time.Time
}

type Config struct {
	DisplayCurrency string
	CacheTTL        time.Duration
}

func New(lister Lister, converter Converter, redis *cache.Redis, cfg Config, logger *slog.Logger) *Provider {
	display := strings.ToUpper(strings.TrimSpace(cfg.DisplayCurrency))
	if display == "" {
		display = "USD"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		lister:    lister,
		converter: converter,
		cache:     redis,
		ttl:       cfg.CacheTTL,
		display:   display,
		logger:    logger.With("component", "snapshot"),
		now:       time.Now,
	}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("subs:%s", userID)
}

// Snapshot returns the user's subscriptions plus analytics in the display currency.
func (p *Provider) Snapshot(ctx context.Context, userID string) (domain.Snapshot, error) {
	subs, err := p.subscriptions(ctx, userID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	subs = p.annotate(ctx, subs)
	return domain.Snapshot{
		Subscriptions: subs,
		Analytics:     ComputeAnalytics(subs, p.display, nil),
		Now:           p.now(),
	}, nil
}

// annotate returns a copy of subs with each foreign-currency cost converted into
// the display currency. A failed conversion leaves the subscription unannotated.
func (p *Provider) annotate(ctx context.Context, subs []domain.Subscription) []domain.Subscription {
	out := make([]domain.Subscription, len(subs))
	copy(out, subs)
	if p.converter == nil {
		return out
	}
	for i := range out {
		sub := &out[i]
		if _, _, ok := sub.CostIn(p.display); ok {
			continue
		}
		amount, err := p.converter.Convert(ctx, sub.Amount, sub.Currency, p.display)
		if err != nil {
			p.logger.Warn("currency conversion failed, using raw amount", "error", err, "from", sub.Currency, "to", p.display)
			continue
		}
		sub.DisplayCurrency = p.display
		sub.DisplayAmount = amount
		sub.DisplayMonthly = sub.BillingCycle.MonthlyEquivalent(amount)
	}
	return out
}

// Invalidate drops the cached list after the user's subscriptions change.
func (p *Provider) Invalidate(ctx context.Context, userID string) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Delete(ctx, cacheKey(userID))
}

func (p *Provider) subscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	key := cacheKey(userID)
	if p.cache != nil && p.ttl > 0 {
		var cached []domain.Subscription
		ok, err := p.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			p.logger.Warn("read subscriptions cache failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	subs, err := p.lister.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	if p.cache != nil && p.ttl > 0 {
		if err := p.cache.SetJSON(ctx, key, subs, p.ttl); err != nil {
			p.logger.Warn("set subscriptions cache failed", "error", err)
		}
	}
	return subs, nil
}

// ComputeAnalytics totals active subscriptions as monthly equivalents in display.
// Recorded display costs are used first, then convert. Without either the raw
// amount is counted. convert may be nil.
func ComputeAnalytics(subs []domain.Subscription, display string, convert func(amount float64, from string) float64) domain.Analytics {
	a := domain.Analytics{Currency: display}
	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		_, monthly, ok := sub.CostIn(display)
		if !ok {
			monthly = sub.MonthlyAmount()
			if convert != nil {
				monthly = convert(monthly, sub.Currency)
			}
		}
		a.TotalMonthly += monthly
		a.ActiveSubscriptions++
	}
	a.TotalYearly = a.TotalMonthly * 12
	return a
}
