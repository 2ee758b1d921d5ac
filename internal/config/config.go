package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/newthinker/bigthing/internal/allocator"
	"github.com/newthinker/bigthing/internal/collector"
	"github.com/newthinker/bigthing/internal/core"
	"github.com/newthinker/bigthing/internal/engine"
	"github.com/newthinker/bigthing/internal/health"
	"github.com/newthinker/bigthing/internal/indicator"
	"github.com/newthinker/bigthing/internal/journal"
	"github.com/newthinker/bigthing/internal/notifier"
	"github.com/newthinker/bigthing/internal/regime"
	"github.com/newthinker/bigthing/internal/scanner"
	"github.com/newthinker/bigthing/internal/storage/archive"
	"github.com/spf13/viper"
)

type Config struct {
	Portfolio        PortfolioConfig           `mapstructure:"portfolio"`
	ExternalHoldings []core.ExternalHolding    `mapstructure:"external_holdings"`
	Universe         UniverseConfig            `mapstructure:"universe"`
	Regime           RegimeConfig              `mapstructure:"regime"`
	Health           HealthConfig              `mapstructure:"health"`
	Scanner          ScannerConfig             `mapstructure:"scanner"`
	Allocator        AllocatorConfig           `mapstructure:"allocator"`
	Data             DataConfig                `mapstructure:"data"`
	Notifiers        map[string]NotifierConfig `mapstructure:"notifiers"`
	Storage          StorageConfig             `mapstructure:"storage"`
	Journal          JournalConfig             `mapstructure:"journal"`
	Metrics          MetricsConfig             `mapstructure:"metrics"`
}

type PortfolioConfig struct {
	TotalValue      float64        `mapstructure:"total_value" validate:"gt=0"`
	Holdings        []core.Holding `mapstructure:"holdings"`
	MaxPositions    int            `mapstructure:"max_positions" default:"8" validate:"gte=1"`
	CashFloorPct    float64        `mapstructure:"cash_floor_pct" default:"10" validate:"gte=0,lt=100"`
	RiskPerTradePct float64        `mapstructure:"risk_per_trade_pct" default:"1" validate:"gt=0,lte=10"`
	// MaxSectorPct of zero disables the sector cap.
	MaxSectorPct float64 `mapstructure:"max_sector_pct" validate:"gte=0,lte=100"`
}

type UniverseConfig struct {
	Baskets []string `mapstructure:"baskets"`
	// Dir holds <basket>.txt constituent files.
	Dir     string              `mapstructure:"dir"`
	Static  map[string][]string `mapstructure:"static"`
	Exclude []string            `mapstructure:"exclude"`
}

type StructureConfig struct {
	Window      int     `mapstructure:"window" validate:"gte=0"`
	Span        int     `mapstructure:"span" default:"2" validate:"gte=1"`
	MinSwings   int     `mapstructure:"min_swings" default:"2" validate:"gte=2"`
	MinSwingPct float64 `mapstructure:"min_swing_pct" validate:"gte=0"`
}

func (s StructureConfig) params() indicator.StructureParams {
	return indicator.StructureParams{
		Window:      s.Window,
		Span:        s.Span,
		MinSwings:   s.MinSwings,
		MinSwingPct: s.MinSwingPct,
	}
}

type RegimeConfig struct {
	IndexSymbol         string          `mapstructure:"index_symbol" default:"SPY" validate:"required"`
	VolatilitySymbol    string          `mapstructure:"volatility_symbol" default:"^VIX" validate:"required"`
	YieldSymbol         string          `mapstructure:"yield_symbol" default:"^TNX" validate:"required"`
	LongWindow          int             `mapstructure:"long_window" default:"200" validate:"gt=0"`
	ShortWindow         int             `mapstructure:"short_window" default:"50" validate:"gt=0"`
	SlopeLookback       int             `mapstructure:"slope_lookback" default:"10" validate:"gt=0"`
	VolatilityThreshold float64         `mapstructure:"volatility_threshold" default:"25" validate:"gt=0"`
	YieldTrendWindow    int             `mapstructure:"yield_trend_window" default:"30" validate:"gt=0"`
	Structure           StructureConfig `mapstructure:"structure"`
}

// ToRegime converts to the classifier configuration.
func (c RegimeConfig) ToRegime() regime.Config {
	s := c.Structure.params()
	if s.Window == 0 {
		s.Window = indicator.DefaultStructure().Window
	}
	return regime.Config{
		IndexSymbol:         c.IndexSymbol,
		VolatilitySymbol:    c.VolatilitySymbol,
		YieldSymbol:         c.YieldSymbol,
		LongWindow:          c.LongWindow,
		ShortWindow:         c.ShortWindow,
		SlopeLookback:       c.SlopeLookback,
		VolatilityThreshold: c.VolatilityThreshold,
		YieldTrendWindow:    c.YieldTrendWindow,
		Structure:           s,
	}
}

type HealthConfig struct {
	LongWindow      int                 `mapstructure:"long_window" default:"200" validate:"gt=0"`
	ShortWindow     int                 `mapstructure:"short_window" default:"50" validate:"gt=0"`
	Structure       StructureConfig     `mapstructure:"structure"`
	RSLookback      int                 `mapstructure:"rs_lookback" default:"60" validate:"gt=0"`
	RSTable         []health.RSStep     `mapstructure:"rs_table"`
	MinProfitMargin float64             `mapstructure:"min_profit_margin" default:"0.05" validate:"gte=0"`
	DirectionWindow int                 `mapstructure:"direction_window" default:"20" validate:"gt=0"`
	ATRPeriod       int                 `mapstructure:"atr_period" default:"14" validate:"gt=0"`
	ATRMultiple     float64             `mapstructure:"atr_multiple" default:"2" validate:"gt=0"`
	FallbackStopPct float64             `mapstructure:"fallback_stop_pct" default:"0.08" validate:"gt=0,lt=1"`
	SectorAffinity  map[string][]string `mapstructure:"sector_affinity"`
}

// ToHealth converts to the scorer configuration.
func (c HealthConfig) ToHealth(concurrency int) health.Config {
	s := c.Structure.params()
	if s.Window == 0 {
		s.Window = 60
	}
	affinity := health.DefaultSectorAffinity()
	if len(c.SectorAffinity) > 0 {
		affinity = make(map[core.Regime][]string, len(c.SectorAffinity))
		for label, sectors := range c.SectorAffinity {
			affinity[core.Regime(strings.ToUpper(label))] = sectors
		}
	}
	return health.Config{
		LongWindow:      c.LongWindow,
		ShortWindow:     c.ShortWindow,
		Structure:       s,
		RSLookback:      c.RSLookback,
		RSTable:         c.RSTable,
		MinProfitMargin: c.MinProfitMargin,
		DirectionWindow: c.DirectionWindow,
		ATRPeriod:       c.ATRPeriod,
		ATRMultiple:     c.ATRMultiple,
		FallbackStopPct: c.FallbackStopPct,
		SectorAffinity:  affinity,
		Concurrency:     concurrency,
	}
}

type ScannerConfig struct {
	LongWindow           int                    `mapstructure:"long_window" default:"200" validate:"gt=0"`
	ShortWindow          int                    `mapstructure:"short_window" default:"50" validate:"gt=0"`
	SlopeLookback        int                    `mapstructure:"slope_lookback" default:"10" validate:"gt=0"`
	RSIPeriod            int                    `mapstructure:"rsi_period" default:"14" validate:"gt=0"`
	RSIMin               float64                `mapstructure:"rsi_min" default:"45" validate:"gte=0,lte=100"`
	RSIMax               float64                `mapstructure:"rsi_max" default:"65" validate:"gte=0,lte=100"`
	VolumeMultiple       float64                `mapstructure:"volume_multiple" default:"1.2" validate:"gt=0"`
	VolumeLookback       int                    `mapstructure:"volume_lookback" default:"30" validate:"gt=0"`
	EarningsBlackoutDays int                    `mapstructure:"earnings_blackout_days" default:"5" validate:"gte=0"`
	RSLookback           int                    `mapstructure:"rs_lookback" default:"60" validate:"gt=0"`
	TrendWindow          int                    `mapstructure:"trend_window" default:"50" validate:"gt=0"`
	ATRPeriod            int                    `mapstructure:"atr_period" default:"14" validate:"gt=0"`
	ATRMultiple          float64                `mapstructure:"atr_multiple" default:"2" validate:"gt=0"`
	FallbackStopPct      float64                `mapstructure:"fallback_stop_pct" default:"0.08" validate:"gt=0,lt=1"`
	EntryDiscount        float64                `mapstructure:"entry_discount" default:"0.02" validate:"gte=0,lt=1"`
	TargetHorizonDays    int                    `mapstructure:"target_horizon_days" default:"30" validate:"gt=0"`
	TopN                 int                    `mapstructure:"top_n" default:"10" validate:"gt=0"`
	Weights              *scanner.Weights       `mapstructure:"weights"`
	ScenarioBands        []scanner.ScenarioBand `mapstructure:"scenario_bands" validate:"dive"`
}

// ToScanner converts to the scanner configuration.
func (c ScannerConfig) ToScanner(concurrency int) scanner.Config {
	weights := scanner.DefaultWeights()
	if c.Weights != nil {
		weights = *c.Weights
	}
	bands := scanner.DefaultScenarioBands()
	if len(c.ScenarioBands) > 0 {
		bands = c.ScenarioBands
	}
	return scanner.Config{
		LongWindow:           c.LongWindow,
		ShortWindow:          c.ShortWindow,
		SlopeLookback:        c.SlopeLookback,
		RSIPeriod:            c.RSIPeriod,
		RSIMin:               c.RSIMin,
		RSIMax:               c.RSIMax,
		VolumeMultiple:       c.VolumeMultiple,
		VolumeLookback:       c.VolumeLookback,
		EarningsBlackoutDays: c.EarningsBlackoutDays,
		RSLookback:           c.RSLookback,
		TrendWindow:          c.TrendWindow,
		ATRPeriod:            c.ATRPeriod,
		ATRMultiple:          c.ATRMultiple,
		FallbackStopPct:      c.FallbackStopPct,
		EntryDiscount:        c.EntryDiscount,
		TargetHorizonDays:    c.TargetHorizonDays,
		TopN:                 c.TopN,
		Weights:              weights,
		ScenarioBands:        bands,
		Concurrency:          concurrency,
	}
}

type AllocatorConfig struct {
	RiskOffOverride float64 `mapstructure:"risk_off_override" default:"90" validate:"gte=0,lte=100"`
	TrimFraction    float64 `mapstructure:"trim_fraction" default:"0.25" validate:"gt=0,lte=1"`
	SectorWarnPct   float64 `mapstructure:"sector_warn_pct" default:"30" validate:"gte=0,lte=100"`
}

func (c AllocatorConfig) ToAllocator() allocator.Config {
	return allocator.Config{
		RiskOffOverride: c.RiskOffOverride,
		TrimFraction:    c.TrimFraction,
		SectorWarnPct:   c.SectorWarnPct,
	}
}

type DataConfig struct {
	Provider       string        `mapstructure:"provider" default:"yahoo" validate:"required"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout" default:"10s"`
	Lookback       int           `mapstructure:"lookback" default:"260" validate:"gte=200"`
	MinCoveragePct float64       `mapstructure:"min_coverage_pct" default:"80" validate:"gte=0,lte=100"`
	Concurrency    int           `mapstructure:"concurrency" default:"8" validate:"gte=1,lte=64"`
	Retry          RetryConfig   `mapstructure:"retry"`
	RateLimit      RateConfig    `mapstructure:"rate_limit"`
	Breaker        BreakerConfig `mapstructure:"breaker"`
	Cache          CacheConfig   `mapstructure:"cache"`
}

type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" default:"3" validate:"gte=0,lte=10"`
	Delay      time.Duration `mapstructure:"delay" default:"5s"`
}

type RateConfig struct {
	// RequestsPerSecond of zero disables limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" default:"5" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" default:"5" validate:"gte=0"`
}

type BreakerConfig struct {
	Failures uint32        `mapstructure:"failures" default:"10"`
	Timeout  time.Duration `mapstructure:"timeout" default:"60s"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr" default:"localhost:6379"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	Prefix   string        `mapstructure:"prefix" default:"bigthing:"`
	TTL      time.Duration `mapstructure:"ttl" default:"12h"`
}

// ToCollector returns the provider settings.
func (c DataConfig) ToCollector() collector.Config {
	return collector.Config{
		BaseURL: c.BaseURL,
		Timeout: c.Timeout,
		APIKey:  c.APIKey,
	}
}

// ToResilience returns the retry, rate and breaker settings.
func (c DataConfig) ToResilience() collector.ResilienceConfig {
	return collector.ResilienceConfig{
		MaxRetries:        c.Retry.MaxRetries,
		RetryDelay:        c.Retry.Delay,
		RequestsPerSecond: c.RateLimit.RequestsPerSecond,
		Burst:             c.RateLimit.Burst,
		BreakerFailures:   c.Breaker.Failures,
		BreakerTimeout:    c.Breaker.Timeout,
	}
}

func (c DataConfig) ToCache() collector.CacheConfig {
	return collector.CacheConfig{Prefix: c.Cache.Prefix, TTL: c.Cache.TTL}
}

// NotifierConfig enables a notifier; every other key is passed through
// to the notifier as a parameter.
type NotifierConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Params  map[string]any `mapstructure:",remain"`
}

// ToNotifier builds the notifier init config for name.
func (c NotifierConfig) ToNotifier(name string) notifier.Config {
	return notifier.Config{Type: name, Params: c.Params}
}

type StorageConfig struct {
	Type string `mapstructure:"type" default:"localfs" validate:"oneof=localfs s3 none"`
	// Path is the localfs archive root.
	Path          string           `mapstructure:"path" default:"./data/reports"`
	S3            archive.S3Config `mapstructure:"s3"`
	RetentionDays int              `mapstructure:"retention_days" validate:"gte=0"`
}

type JournalConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" default:"4" validate:"gte=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" default:"30m"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" default:"30s"`
}

func (c JournalConfig) ToJournal() journal.Config {
	return journal.Config{
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		QueryTimeout:    c.QueryTimeout,
	}
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// TextfilePath is the node-exporter textfile the run writes on exit.
	TextfilePath string `mapstructure:"textfile_path" default:"./data/bigthing.prom"`
}

// Load reads configuration from file. Keys absent from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("BIGTHING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("reading config: %w", err))
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return cfg, nil
}

// Defaults returns a config with every tagged default applied.
func Defaults() *Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &cfg
}

var validate = validator.New()

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
			}
			return core.WrapError(core.ErrConfigInvalid, errors.New(strings.Join(msgs, "; ")))
		}
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	for i, h := range c.Portfolio.Holdings {
		if strings.TrimSpace(h.Symbol) == "" {
			return invalid("holding %d has no symbol", i)
		}
		if h.Shares <= 0 {
			return invalid("holding %s: shares must be positive, got %d", h.Symbol, h.Shares)
		}
	}

	if c.Regime.ShortWindow >= c.Regime.LongWindow {
		return invalid("regime short_window %d must be below long_window %d", c.Regime.ShortWindow, c.Regime.LongWindow)
	}
	if c.Scanner.ShortWindow >= c.Scanner.LongWindow {
		return invalid("scanner short_window %d must be below long_window %d", c.Scanner.ShortWindow, c.Scanner.LongWindow)
	}
	if c.Scanner.RSIMin >= c.Scanner.RSIMax {
		return invalid("scanner rsi_min %.1f must be below rsi_max %.1f", c.Scanner.RSIMin, c.Scanner.RSIMax)
	}
	if w := c.Scanner.Weights; w != nil && !w.Valid() {
		return invalid("scanner weights must be non-negative and sum to 1, got %.4f", w.Sum())
	}
	for i, b := range c.Scanner.ScenarioBands {
		if sum := b.Bull + b.Base + b.Bear; math.Abs(sum-1) > 1e-9 {
			return invalid("scenario band %d probabilities sum to %.4f", i, sum)
		}
	}
	if c.Data.Lookback < c.Scanner.LongWindow || c.Data.Lookback < c.Regime.LongWindow {
		return invalid("data lookback %d is shorter than the long moving average", c.Data.Lookback)
	}
	for label := range c.Health.SectorAffinity {
		switch core.Regime(strings.ToUpper(label)) {
		case core.RegimeRiskOn, core.RegimeNeutral, core.RegimeRiskOff:
		default:
			return invalid("unknown regime %q in sector_affinity", label)
		}
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("s3 bucket required when storage type is s3"))
	}
	if c.Journal.Enabled && c.Journal.DSN == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("journal dsn required when journal is enabled"))
	}
	if len(c.Universe.Baskets) > 0 && c.Universe.Dir == "" && len(c.Universe.Static) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("universe baskets need a dir or static lists"))
	}

	return nil
}

func invalid(format string, args ...any) error {
	return core.WrapError(core.ErrConfigInvalid, fmt.Errorf(format, args...))
}

// PortfolioState returns the account state handed to the engine.
func (c *Config) PortfolioState() core.Portfolio {
	holdings := make([]core.Holding, len(c.Portfolio.Holdings))
	for i, h := range c.Portfolio.Holdings {
		h.Symbol = strings.ToUpper(strings.TrimSpace(h.Symbol))
		holdings[i] = h
	}
	return core.Portfolio{
		TotalValue:      c.Portfolio.TotalValue,
		Holdings:        holdings,
		MaxPositions:    c.Portfolio.MaxPositions,
		CashFloorPct:    c.Portfolio.CashFloorPct,
		RiskPerTradePct: c.Portfolio.RiskPerTradePct,
		MaxSectorPct:    c.Portfolio.MaxSectorPct,
	}
}

// Engine assembles the pipeline configuration.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Regime:           c.Regime.ToRegime(),
		Health:           c.Health.ToHealth(c.Data.Concurrency),
		Scanner:          c.Scanner.ToScanner(c.Data.Concurrency),
		Allocator:        c.Allocator.ToAllocator(),
		Baskets:          c.Universe.Baskets,
		Exclude:          c.Universe.Exclude,
		ExternalHoldings: c.ExternalHoldings,
		Lookback:         c.Data.Lookback,
		MinCoveragePct:   c.Data.MinCoveragePct,
		Concurrency:      c.Data.Concurrency,
	}
}
