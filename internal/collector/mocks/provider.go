// Package mocks provides an in-memory collector.Provider and synthetic
// price series for testing.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/bigthing/internal/core"
)

// Provider serves canned series and fundamentals.
type Provider struct {
	mu           sync.Mutex
	series       map[string]core.PriceSeries
	fundamentals map[string]*core.Fundamental
	failures     map[string]int
	calls        map[string]int
}

// New creates an empty Provider.
func New() *Provider {
	return &Provider{
		series:       make(map[string]core.PriceSeries),
		fundamentals: make(map[string]*core.Fundamental),
		failures:     make(map[string]int),
		calls:        make(map[string]int),
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "mock" }

// SetSeries registers a series under its symbol.
func (p *Provider) SetSeries(s core.PriceSeries) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.series[s.Symbol] = s
}

// SetFundamentals registers a snapshot under its symbol.
func (p *Provider) SetFundamentals(f *core.Fundamental) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fundamentals[f.Symbol] = f
}

// FailNext makes the next n series fetches for symbol fail.
func (p *Provider) FailNext(symbol string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[symbol] = n
}

// Calls returns how many times FetchSeries was called for symbol.
func (p *Provider) Calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

// FetchSeries returns the registered series truncated to lookback bars.
func (p *Provider) FetchSeries(ctx context.Context, symbol string, lookback int) (core.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return core.PriceSeries{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[symbol]++
	if p.failures[symbol] > 0 {
		p.failures[symbol]--
		return core.PriceSeries{}, fmt.Errorf("mock: injected failure for %s", symbol)
	}

	s, ok := p.series[symbol]
	if !ok {
		return core.PriceSeries{}, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("%s", symbol))
	}
	if lookback > 0 && s.Len() > lookback {
		s.Bars = s.Bars[s.Len()-lookback:]
	}
	return s, nil
}

// FetchFundamentals returns the registered snapshot, or ErrMissingFundamentals.
func (p *Provider) FetchFundamentals(ctx context.Context, symbol string) (*core.Fundamental, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.fundamentals[symbol]
	if !ok {
		return nil, core.WrapError(core.ErrMissingFundamentals, fmt.Errorf("%s", symbol))
	}
	cp := *f
	return &cp, nil
}

// Start is the date of the first synthetic bar.
var Start = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

// Series builds daily bars on consecutive weekdays from closes. Highs and
// lows sit one percent either side of the close and volume is constant.
func Series(symbol string, closes []float64) core.PriceSeries {
	bars := make([]core.OHLCV, len(closes))
	day := Start
	for i, c := range closes {
		bars[i] = core.OHLCV{
			Time:   day,
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1_000_000,
		}
		day = NextWeekday(day)
	}
	return core.PriceSeries{Symbol: symbol, Bars: bars}
}

// NextWeekday returns the following Monday to Friday date.
func NextWeekday(t time.Time) time.Time {
	t = t.AddDate(0, 0, 1)
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// Trend generates n closes moving by step per bar from start. With zigzag
// set, a five-bar wave (0, 1, 3, 1, 0) is added so swing highs are detectable.
func Trend(n int, start, step float64, zigzag bool) []float64 {
	wave := []float64{0, 1, 3, 1, 0}
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
		if zigzag {
			out[i] += wave[i%len(wave)]
		}
	}
	return out
}

// Flat generates n identical closes.
func Flat(n int, level float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = level
	}
	return out
}

// WithLastVolume returns a copy of s with the final bar's volume replaced.
func WithLastVolume(s core.PriceSeries, volume int64) core.PriceSeries {
	bars := make([]core.OHLCV, len(s.Bars))
	copy(bars, s.Bars)
	if len(bars) > 0 {
		bars[len(bars)-1].Volume = volume
	}
	return core.PriceSeries{Symbol: s.Symbol, Bars: bars}
}
