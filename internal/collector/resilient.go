package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/bigthing/internal/core"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ResilienceConfig tunes retries, throttling and the circuit breaker.
type ResilienceConfig struct {
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
}

// DefaultResilienceConfig retries three times five seconds apart.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		MaxRetries:        3,
		RetryDelay:        5 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		BreakerFailures:   10,
		BreakerTimeout:    60 * time.Second,
	}
}

// Resilient wraps a Provider with rate limiting, retries and a circuit
// breaker shared by all symbols.
type Resilient struct {
	next    Provider
	cfg     ResilienceConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewResilient wraps next.
func NewResilient(next Provider, cfg ResilienceConfig, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 10
	}

	r := &Resilient{
		next:    next,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// a symbol without data is an answer, not an outage
			return err == nil || permanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("collector breaker state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return r
}

func (r *Resilient) Name() string { return r.next.Name() }

// State reports the breaker state.
func (r *Resilient) State() gobreaker.State { return r.breaker.State() }

func (r *Resilient) FetchSeries(ctx context.Context, symbol string, lookback int) (core.PriceSeries, error) {
	v, err := r.do(ctx, symbol, func() (interface{}, error) {
		return r.next.FetchSeries(ctx, symbol, lookback)
	})
	if err != nil {
		return core.PriceSeries{}, err
	}
	return v.(core.PriceSeries), nil
}

func (r *Resilient) FetchFundamentals(ctx context.Context, symbol string) (*core.Fundamental, error) {
	v, err := r.do(ctx, symbol, func() (interface{}, error) {
		return r.next.FetchFundamentals(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Fundamental), nil
}

func (r *Resilient) do(ctx context.Context, symbol string, fn func() (interface{}, error)) (interface{}, error) {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Debug("retrying fetch",
				zap.String("symbol", symbol),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			if err := sleep(ctx, r.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		v, err := r.breaker.Execute(fn)
		if err == nil {
			return v, nil
		}
		lastErr = err

		switch {
		case permanent(err):
			return nil, err
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, core.SymbolError(core.ErrCollectorFailed, "collector", symbol, err)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
	}
	return nil, core.SymbolError(core.ErrCollectorFailed, "collector", symbol,
		fmt.Errorf("%d attempts: %w", r.cfg.MaxRetries+1, lastErr))
}

// permanent errors are not retried.
func permanent(err error) bool {
	return errors.Is(err, core.ErrSymbolNotFound) ||
		errors.Is(err, core.ErrNoData) ||
		errors.Is(err, core.ErrMissingFundamentals)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
