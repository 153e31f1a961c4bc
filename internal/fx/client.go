package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"subtrack-bot/internal/cache"
	"subtrack-bot/internal/metrics"
)

const (
	defaultBaseURL  = "https://open.er-api.com/v6/latest"
	defaultCacheTTL = 6 * time.Hour
)

var (
	// ErrUnknownCurrency means the provider has no rate for the code.
	ErrUnknownCurrency = errors.New("fx: unknown currency")
	ErrUpstream        = errors.New("fx: upstream error")
)

// Config holds exchange-rate client settings.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Rates is a table of units of each currency per one unit of Base.
type Rates struct {
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Client fetches exchange rates from an open.er-api.com compatible endpoint.
type Client struct {
	logger   *slog.Logger
	baseURL  string
	http     *http.Client
	metrics  *metrics.Metrics
	cache    *cache.Redis
	cacheTTL time.Duration
}

// responseEnvelope mirrors the provider's response shape.
type responseEnvelope struct {
	Result     string             `json:"result"`
	ErrorType  string             `json:"error-type"`
	BaseCode   string             `json:"base_code"`
	LastUpdate int64              `json:"time_last_update_unix"`
	Rates      map[string]float64 `json:"rates"`
}

func New(cfg Config, logger *slog.Logger, metrics *metrics.Metrics, redis *cache.Redis) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		logger:   logger.With("component", "fx"),
		baseURL:  base,
		http:     &http.Client{Timeout: timeout},
		metrics:  metrics,
		cache:    redis,
		cacheTTL: ttl,
	}
}

// Rates returns the rate table for base (cached if redis configured).
func (c *Client) Rates(ctx context.Context, base string) (*Rates, error) {
	base = normalizeCode(base)
	if base == "" {
		return nil, ErrUnknownCurrency
	}
	cacheKey := fmt.Sprintf("fx:rates:%s", base)
	if c.cache != nil {
		var cached Rates
		ok, err := c.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			c.logger.Warn("read rates cache failed", "error", err)
		} else if ok {
			return &cached, nil
		}
	}

	var env responseEnvelope
	if err := c.do(ctx, "/"+base, &env); err != nil {
		return nil, err
	}
	if !strings.EqualFold(env.Result, "success") {
		if strings.Contains(env.ErrorType, "unsupported-code") {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCurrency, base)
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstream, env.ErrorType)
	}

	rates := &Rates{Base: base, Rates: make(map[string]float64, len(env.Rates))}
	for code, rate := range env.Rates {
		rates.Rates[normalizeCode(code)] = rate
	}
	rates.Rates[base] = 1
	if env.LastUpdate > 0 {
		rates.UpdatedAt = time.Unix(env.LastUpdate, 0).UTC()
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey, rates, c.cacheTTL); err != nil {
			c.logger.Warn("set rates cache failed", "error", err)
		}
	}
	return rates, nil
}

// Convert expresses amount in from as an amount in to.
func (c *Client) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	from, to = normalizeCode(from), normalizeCode(to)
	if from == to {
		return amount, nil
	}
	rates, err := c.Rates(ctx, from)
	if err != nil {
		return 0, err
	}
	return rates.Convert(amount, to)
}

// Convert applies the table to an amount in r.Base.
func (r *Rates) Convert(amount float64, to string) (float64, error) {
	to = normalizeCode(to)
	if to == r.Base {
		return amount, nil
	}
	rate, ok := r.Rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	return amount * rate, nil
}

func (c *Client) do(ctx context.Context, endpoint string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "subtrack-bot/fx-client")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.FXRequests.WithLabelValues("latest", "error").Inc()
		}
		return fmt.Errorf("fx request: %w", err)
	}
	defer res.Body.Close()

	statusLabel := fmt.Sprintf("%d", res.StatusCode)
	if c.metrics != nil {
		c.metrics.FXRequests.WithLabelValues("latest", statusLabel).Inc()
		c.metrics.FXLatency.WithLabelValues("latest", statusLabel).Observe(time.Since(start).Seconds())
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= 400 {
		return classifyHTTPError(res.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func classifyHTTPError(status int, body string) error {
	snippet := strings.TrimSpace(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	lower := strings.ToLower(snippet)
	if status == http.StatusNotFound || strings.Contains(lower, "unsupported-code") {
		return fmt.Errorf("%w: %s", ErrUnknownCurrency, snippet)
	}
	return fmt.Errorf("%w: status=%d body=%s", ErrUpstream, status, snippet)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
