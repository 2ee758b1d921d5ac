package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/bigthing/internal/collector"
	"github.com/newthinker/bigthing/internal/core"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	chartPath      = "/v8/finance/chart"
	summaryPath    = "/v10/finance/quoteSummary"
	summaryModules = "assetProfile,financialData,defaultKeyStatistics,summaryDetail,calendarEvents"
)

// validSymbol matches symbols like AAPL, BRK-B, ^VIX, 0700.HK
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9\-]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo implements collector.Provider against the Yahoo Finance chart and
// quoteSummary endpoints.
type Yahoo struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
}

// New creates a new Yahoo collector
func New(cfg collector.Config) *Yahoo {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Yahoo{
		client:  &http.Client{Timeout: timeout},
		baseURL: base,
		now:     time.Now,
	}
}

// Factory adapts New to collector.Factory.
func Factory(cfg collector.Config) (collector.Provider, error) {
	return New(cfg), nil
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// FetchSeries fetches daily bars covering at least lookback sessions.
func (y *Yahoo) FetchSeries(ctx context.Context, symbol string, lookback int) (core.PriceSeries, error) {
	if err := validateSymbol(symbol); err != nil {
		return core.PriceSeries{}, err
	}

	end := y.now()
	// sessions to calendar days, plus holiday slack
	start := end.AddDate(0, 0, -(lookback*7/5 + 10))
	url := fmt.Sprintf("%s%s/%s?interval=1d&period1=%d&period2=%d",
		y.baseURL, chartPath, symbol, start.Unix(), end.Unix())

	body, err := y.get(ctx, url)
	if err != nil {
		return core.PriceSeries{}, fmt.Errorf("fetching history: %w", err)
	}

	if msg := gjson.GetBytes(body, "chart.error.description"); msg.Exists() && msg.String() != "" {
		return core.PriceSeries{}, fmt.Errorf("yahoo error: %s", msg.String())
	}

	r := gjson.GetBytes(body, "chart.result.0")
	if !r.Exists() {
		return core.PriceSeries{}, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol: %s", symbol))
	}

	timestamps := r.Get("timestamp").Array()
	q := r.Get("indicators.quote.0")
	opens, highs := q.Get("open").Array(), q.Get("high").Array()
	lows, closes := q.Get("low").Array(), q.Get("close").Array()
	volumes := q.Get("volume").Array()

	bars := make([]core.OHLCV, 0, len(timestamps))
	for i, ts := range timestamps {
		if i >= len(closes) || closes[i].Type == gjson.Null {
			continue // Skip missing data
		}
		bar := core.OHLCV{
			Time:  time.Unix(ts.Int(), 0).UTC(),
			Close: closes[i].Float(),
		}
		bar.Open = valueOr(opens, i, bar.Close)
		bar.High = valueOr(highs, i, bar.Close)
		bar.Low = valueOr(lows, i, bar.Close)
		if i < len(volumes) {
			bar.Volume = volumes[i].Int()
		}
		bars = append(bars, bar)
	}

	if lookback > 0 && len(bars) > lookback {
		bars = bars[len(bars)-lookback:]
	}
	return core.PriceSeries{Symbol: symbol, Bars: bars}, nil
}

// FetchFundamentals fetches the latest fundamental snapshot.
func (y *Yahoo) FetchFundamentals(ctx context.Context, symbol string) (*core.Fundamental, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s%s/%s?modules=%s", y.baseURL, summaryPath, symbol, summaryModules)

	body, err := y.get(ctx, url)
	if err != nil {
		return nil, core.WrapError(core.ErrMissingFundamentals, err)
	}

	r := gjson.GetBytes(body, "quoteSummary.result.0")
	if !r.Exists() {
		return nil, core.WrapError(core.ErrMissingFundamentals, fmt.Errorf("no summary for symbol: %s", symbol))
	}

	now := y.now()
	f := &core.Fundamental{
		Symbol:        symbol,
		Sector:        r.Get("assetProfile.sector").String(),
		Industry:      r.Get("assetProfile.industry").String(),
		MarketCap:     r.Get("summaryDetail.marketCap.raw").Float(),
		RevenueGrowth: raw(r, "financialData.revenueGrowth"),
		EPSGrowth:     raw(r, "financialData.earningsGrowth"),
		ProfitMargin:  raw(r, "financialData.profitMargins"),
		ForwardPE:     raw(r, "defaultKeyStatistics.forwardPE"),
		AsOf:          now.UTC(),
	}

	// earliest announced date that is not already behind us
	today := now.Truncate(24 * time.Hour)
	for _, d := range r.Get("calendarEvents.earnings.earningsDate").Array() {
		ts := d.Get("raw")
		if !ts.Exists() {
			continue
		}
		t := time.Unix(ts.Int(), 0).UTC()
		if t.Before(today) {
			continue
		}
		if f.NextEarnings == nil || t.Before(*f.NextEarnings) {
			f.NextEarnings = &t
		}
	}
	return f, nil
}

func (y *Yahoo) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; bigthing/1.0)")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func valueOr(vals []gjson.Result, i int, fallback float64) float64 {
	if i >= len(vals) || vals[i].Type == gjson.Null {
		return fallback
	}
	return vals[i].Float()
}

// raw reads a {"raw": x, "fmt": "..."} field. Empty objects mean missing.
func raw(r gjson.Result, path string) *float64 {
	v := r.Get(path + ".raw")
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	f := v.Float()
	return &f
}
