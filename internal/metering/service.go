// Package metering admits, forwards and charges metered API calls.
//
// Every call runs the same pipeline: resolve the caller by API key, require
// a positive credit balance, require rate-limit headroom, call the upstream
// provider, and only then record a rate-limit hit and charge one credit.
// Failed calls are never charged.
package metering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fxgate/fxgate/internal/frankfurter"
	"github.com/fxgate/fxgate/internal/metrics"
	"github.com/fxgate/fxgate/internal/ratelimit"
	"github.com/fxgate/fxgate/internal/users"
)

var (
	ErrUnauthorized        = errors.New("invalid API key or user not found")
	ErrInsufficientCredits = errors.New("not enough credits")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrResourceNotFound    = errors.New("resource not found")
)

// Ledger is the subset of the user ledger the pipeline needs.
type Ledger interface {
	FindByAPIKey(ctx context.Context, apiKey string) (*users.User, error)
	DecrementCredits(ctx context.Context, username string) (int, error)
}

type Limiter interface {
	WindowStats(key ratelimit.Key) ratelimit.Stats
	Hit(key ratelimit.Key) ratelimit.Stats
}

// Provider is the upstream currency-data source.
type Provider interface {
	ListCurrencies(ctx context.Context) (map[string]string, error)
	LatestRates(ctx context.Context, base, target string) (*frankfurter.Rates, error)
	HistoricalRates(ctx context.Context, date, base, target string) (map[string]float64, error)
}

// UsageRecorder receives an event for every charged call.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, u Usage) error
}

type Service struct {
	ledger   Ledger
	limiter  Limiter
	provider Provider
	recorder UsageRecorder
	now      func() time.Time
}

type Option func(*Service)

func WithUsageRecorder(r UsageRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(ledger Ledger, limiter Limiter, provider Provider, opts ...Option) *Service {
	s := &Service{
		ledger:   ledger,
		limiter:  limiter,
		provider: provider,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListCurrencies returns the provider's supported currencies.
func (s *Service) ListCurrencies(ctx context.Context, apiKey string) (*CurrenciesResponse, ratelimit.Stats, error) {
	user, stats, err := s.admit(ctx, apiKey)
	if err != nil {
		return nil, stats, s.reject(EndpointCurrencies, err)
	}

	currencies, err := s.provider.ListCurrencies(ctx)
	if err != nil || len(currencies) == 0 {
		return nil, stats, s.upstreamFailure(EndpointCurrencies, user, err)
	}

	credits, stats, err := s.charge(ctx, user, EndpointCurrencies)
	if err != nil {
		return nil, stats, err
	}

	return &CurrenciesResponse{Currencies: currencies, Credits: credits}, stats, nil
}

// Authenticate resolves apiKey to an active user. A failure is counted
// against endpoint.
func (s *Service) Authenticate(ctx context.Context, endpoint, apiKey string) (*users.User, error) {
	user, err := s.identify(ctx, apiKey)
	if err != nil {
		return nil, s.reject(endpoint, err)
	}
	return user, nil
}

// Convert converts req.Amount from the base to the target currency at the
// latest rate.
func (s *Service) Convert(ctx context.Context, apiKey string, req ConversionRequest) (*ConversionResponse, ratelimit.Stats, error) {
	user, err := s.Authenticate(ctx, EndpointConversion, apiKey)
	if err != nil {
		return nil, ratelimit.Stats{}, err
	}
	return s.ConvertAs(ctx, user, req)
}

// ConvertAs runs Convert for a caller already returned by Authenticate.
func (s *Service) ConvertAs(ctx context.Context, user *users.User, req ConversionRequest) (*ConversionResponse, ratelimit.Stats, error) {
	stats, err := s.checkQuota(user)
	if err != nil {
		return nil, stats, s.reject(EndpointConversion, err)
	}

	latest, err := s.provider.LatestRates(ctx, req.BaseCurrency, req.TargetCurrency)
	if err != nil || latest == nil || len(latest.Rates) == 0 {
		return nil, stats, s.upstreamFailure(EndpointConversion, user, err)
	}
	rate, ok := latest.Rates[req.TargetCurrency]
	if !ok {
		return nil, stats, s.upstreamFailure(EndpointConversion, user,
			fmt.Errorf("no %s rate for base %s", req.TargetCurrency, req.BaseCurrency))
	}

	credits, stats, err := s.charge(ctx, user, EndpointConversion)
	if err != nil {
		return nil, stats, err
	}

	return &ConversionResponse{
		BaseCurrency:    req.BaseCurrency,
		TargetCurrency:  req.TargetCurrency,
		Amount:          req.Amount,
		Rate:            rate,
		ConvertedAmount: req.Amount * rate,
		Credits:         credits,
	}, stats, nil
}

// Historical returns the rates on date. Empty currencies fall back to
// USD and EUR. The date is passed to the provider as given.
func (s *Service) Historical(ctx context.Context, apiKey, date, base, target string) (*HistoricalResponse, ratelimit.Stats, error) {
	user, stats, err := s.admit(ctx, apiKey)
	if err != nil {
		return nil, stats, s.reject(EndpointHistorical, err)
	}

	if base == "" {
		base = DefaultBaseCurrency
	}
	if target == "" {
		target = DefaultTargetCurrency
	}

	rates, err := s.provider.HistoricalRates(ctx, date, base, target)
	if err != nil || len(rates) == 0 {
		return nil, stats, s.upstreamFailure(EndpointHistorical, user, err)
	}

	credits, stats, err := s.charge(ctx, user, EndpointHistorical)
	if err != nil {
		return nil, stats, err
	}

	return &HistoricalResponse{
		BaseCurrency: base,
		Date:         date,
		Rates:        rates,
		Credits:      credits,
	}, stats, nil
}

// admit runs the checks that precede the upstream call. It records nothing.
func (s *Service) admit(ctx context.Context, apiKey string) (*users.User, ratelimit.Stats, error) {
	user, err := s.identify(ctx, apiKey)
	if err != nil {
		return nil, ratelimit.Stats{}, err
	}
	stats, err := s.checkQuota(user)
	if err != nil {
		return nil, stats, err
	}
	return user, stats, nil
}

func (s *Service) identify(ctx context.Context, apiKey string) (*users.User, error) {
	if apiKey == "" {
		return nil, ErrUnauthorized
	}

	user, err := s.ledger.FindByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("resolving api key: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// checkQuota requires a positive balance and window headroom.
func (s *Service) checkQuota(user *users.User) (ratelimit.Stats, error) {
	if user.Credits < 1 {
		return ratelimit.Stats{}, ErrInsufficientCredits
	}

	stats := s.limiter.WindowStats(subscriptionKey(user))
	if stats.Remaining < 1 {
		return stats, ErrRateLimitExceeded
	}
	return stats, nil
}

// charge records the rate-limit hit and debits one credit. Both happen
// before the response is written.
func (s *Service) charge(ctx context.Context, user *users.User, endpoint string) (int, ratelimit.Stats, error) {
	stats := s.limiter.Hit(subscriptionKey(user))

	credits, err := s.ledger.DecrementCredits(ctx, user.Username)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			// Deleted while the upstream call was in flight.
			return 0, stats, s.reject(endpoint, ErrUnauthorized)
		}
		metrics.AdmissionTotal.WithLabelValues(endpoint, "error").Inc()
		return 0, stats, fmt.Errorf("debiting credit: %w", err)
	}

	metrics.CreditsDebitedTotal.Inc()
	metrics.AdmissionTotal.WithLabelValues(endpoint, "ok").Inc()

	if s.recorder != nil {
		u := Usage{
			UserID:           user.ID,
			Username:         user.Username,
			Endpoint:         endpoint,
			CreditsRemaining: credits,
			At:               s.now().UTC(),
		}
		if err := s.recorder.RecordUsage(ctx, u); err != nil {
			slog.Warn("recording usage", "error", err, "user_id", user.ID, "endpoint", endpoint)
		}
	}

	return credits, stats, nil
}

func (s *Service) reject(endpoint string, err error) error {
	metrics.AdmissionTotal.WithLabelValues(endpoint, outcome(err)).Inc()
	return err
}

func (s *Service) upstreamFailure(endpoint string, user *users.User, cause error) error {
	if cause == nil {
		slog.Info("upstream returned no data", "endpoint", endpoint, "user_id", user.ID)
		return s.reject(endpoint, ErrResourceNotFound)
	}
	slog.Warn("upstream call failed", "endpoint", endpoint, "user_id", user.ID, "error", cause)
	return s.reject(endpoint, fmt.Errorf("%w: %w", ErrResourceNotFound, cause))
}

func outcome(err error) string {
	var failed *frankfurter.RequestFailedError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, frankfurter.ErrUpstreamUnavailable), errors.As(err, &failed):
		return "upstream_error"
	case errors.Is(err, ErrResourceNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func subscriptionKey(user *users.User) ratelimit.Key {
	return ratelimit.Key{
		Resource: ResourceSubscriptions,
		Subject:  strconv.FormatInt(user.ID, 10),
	}
}
