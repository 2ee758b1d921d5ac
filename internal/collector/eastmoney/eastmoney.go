// Package eastmoney reads daily A-share and Hong Kong bars from the
// Eastmoney kline endpoint.
package eastmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/bigthing/internal/collector"
	"github.com/newthinker/bigthing/internal/core"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://push2his.eastmoney.com"
	klinePath      = "/api/qt/stock/kline/get"
)

// Eastmoney implements collector.Provider for 600519.SH style symbols.
// It carries no fundamentals.
type Eastmoney struct {
	client  *http.Client
	baseURL string
}

// New creates a new Eastmoney collector
func New(cfg collector.Config) *Eastmoney {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Eastmoney{
		client:  &http.Client{Timeout: timeout},
		baseURL: base,
	}
}

// Factory adapts New to collector.Factory.
func Factory(cfg collector.Config) (collector.Provider, error) {
	return New(cfg), nil
}

func (e *Eastmoney) Name() string {
	return "eastmoney"
}

// secID converts 600519.SH to 1.600519.
// Shanghai = 1, Shenzhen and Beijing = 0, Hong Kong = 116
func secID(symbol string) (string, error) {
	code, exchange, ok := strings.Cut(strings.ToUpper(symbol), ".")
	if !ok || code == "" {
		return "", core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("missing exchange suffix: %s", symbol))
	}
	var market string
	switch exchange {
	case "SH":
		market = "1"
	case "SZ", "BJ":
		market = "0"
	case "HK":
		market = "116"
	default:
		return "", core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("unsupported exchange %s: %s", exchange, symbol))
	}
	return market + "." + code, nil
}

// FetchSeries fetches the last lookback forward-adjusted daily bars.
func (e *Eastmoney) FetchSeries(ctx context.Context, symbol string, lookback int) (core.PriceSeries, error) {
	id, err := secID(symbol)
	if err != nil {
		return core.PriceSeries{}, err
	}
	if lookback <= 0 {
		lookback = 260
	}

	url := fmt.Sprintf("%s%s?secid=%s&klt=101&fqt=1&end=20500101&lmt=%d&fields1=f1,f2,f3&fields2=f51,f52,f53,f54,f55,f56",
		e.baseURL, klinePath, id, lookback)

	body, err := e.get(ctx, url)
	if err != nil {
		return core.PriceSeries{}, fmt.Errorf("fetching history: %w", err)
	}

	klines := gjson.GetBytes(body, "data.klines")
	if !klines.Exists() || len(klines.Array()) == 0 {
		return core.PriceSeries{}, core.WrapError(core.ErrNoData, fmt.Errorf("no history for symbol: %s", symbol))
	}

	bars := make([]core.OHLCV, 0, len(klines.Array()))
	for _, line := range klines.Array() {
		bar, ok := parseKline(line.String())
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}
	return core.PriceSeries{Symbol: symbol, Bars: bars}, nil
}

// FetchFundamentals always reports missing fundamentals.
func (e *Eastmoney) FetchFundamentals(ctx context.Context, symbol string) (*core.Fundamental, error) {
	return nil, core.WrapError(core.ErrMissingFundamentals, fmt.Errorf("eastmoney: %s", symbol))
}

// parseKline reads "date,open,close,high,low,volume".
func parseKline(line string) (core.OHLCV, bool) {
	f := strings.Split(line, ",")
	if len(f) < 6 {
		return core.OHLCV{}, false
	}
	t, err := time.Parse("2006-01-02", f[0])
	if err != nil {
		return core.OHLCV{}, false
	}
	var vals [4]float64
	for i := range vals {
		v, err := strconv.ParseFloat(f[i+1], 64)
		if err != nil {
			return core.OHLCV{}, false
		}
		vals[i] = v
	}
	volume, _ := strconv.ParseInt(f[5], 10, 64)
	return core.OHLCV{
		Time:   t,
		Open:   vals[0],
		Close:  vals[1],
		High:   vals[2],
		Low:    vals[3],
		Volume: volume,
	}, true
}

func (e *Eastmoney) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; bigthing/1.0)")
	req.Header.Set("Referer", "https://quote.eastmoney.com/")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
