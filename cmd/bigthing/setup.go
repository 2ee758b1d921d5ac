package main

import (
	"context"
	"fmt"

	"github.com/newthinker/bigthing/internal/collector"
	"github.com/newthinker/bigthing/internal/collector/eastmoney"
	"github.com/newthinker/bigthing/internal/collector/yahoo"
	"github.com/newthinker/bigthing/internal/config"
	"github.com/newthinker/bigthing/internal/notifier"
	"github.com/newthinker/bigthing/internal/notifier/email"
	"github.com/newthinker/bigthing/internal/notifier/telegram"
	"github.com/newthinker/bigthing/internal/notifier/webhook"
	"github.com/newthinker/bigthing/internal/storage/archive"
	"github.com/newthinker/bigthing/internal/universe"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// loadConfig reads --config, falling back to defaults.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func providers() *collector.Registry {
	r := collector.NewRegistry()
	r.Register("yahoo", yahoo.Factory)
	r.Register("eastmoney", eastmoney.Factory)
	return r
}

// buildProvider assembles provider -> resilience -> optional redis cache.
// The returned cleanup closes the cache connection.
func buildProvider(ctx context.Context, cfg *config.Config, log *zap.Logger) (collector.Provider, func(), error) {
	base, err := providers().Build(cfg.Data.Provider, cfg.Data.ToCollector())
	if err != nil {
		return nil, nil, err
	}
	var p collector.Provider = collector.NewResilient(base, cfg.Data.ToResilience(), log)

	if !cfg.Data.Cache.Enabled {
		return p, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Data.Cache.Addr,
		Password: cfg.Data.Cache.Password,
		DB:       cfg.Data.Cache.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, running without cache",
			zap.String("addr", cfg.Data.Cache.Addr), zap.Error(err))
		rdb.Close()
		return p, func() {}, nil
	}
	log.Debug("market data cache enabled", zap.String("addr", cfg.Data.Cache.Addr))
	return collector.NewCached(p, rdb, cfg.Data.ToCache(), log), func() { rdb.Close() }, nil
}

func buildUniverse(cfg *config.Config) universe.Provider {
	var chain universe.Chain
	if len(cfg.Universe.Static) > 0 {
		chain = append(chain, universe.Static(cfg.Universe.Static))
	}
	if cfg.Universe.Dir != "" {
		chain = append(chain, universe.File{Dir: cfg.Universe.Dir})
	}
	return chain
}

var notifierFactories = map[string]func() notifier.Notifier{
	"email":    func() notifier.Notifier { return email.New("", 0, "", "", "", nil) },
	"webhook":  func() notifier.Notifier { return webhook.New("", nil) },
	"telegram": func() notifier.Notifier { return telegram.New("", "") },
}

// buildNotifiers initialises every enabled notifier. A notifier that fails
// to initialise is skipped with a warning.
func buildNotifiers(cfg *config.Config, log *zap.Logger) *notifier.Registry {
	reg := notifier.NewRegistry()
	for name, nc := range cfg.Notifiers {
		if !nc.Enabled {
			continue
		}
		factory, ok := notifierFactories[name]
		if !ok {
			log.Warn("unknown notifier", zap.String("name", name))
			continue
		}
		n := factory()
		if err := n.Init(nc.ToNotifier(name)); err != nil {
			log.Warn("notifier disabled", zap.String("name", name), zap.Error(err))
			continue
		}
		if err := reg.Register(n); err != nil {
			log.Warn("notifier not registered", zap.String("name", name), zap.Error(err))
		}
	}
	return reg
}

// buildArchive returns nil when archiving is off.
func buildArchive(cfg *config.Config) (*archive.Archiver, error) {
	var store archive.Storage
	switch cfg.Storage.Type {
	case "none":
		return nil, nil
	case "s3":
		s, err := archive.NewS3(cfg.Storage.S3)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		s, err := archive.NewLocalFS(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		store = s
	}
	return archive.New(store), nil
}
