package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"hospops/internal/apiclient"
	"hospops/internal/cache"
	"hospops/internal/config"
	"hospops/internal/notify"
	"hospops/internal/orchestrator"
	"hospops/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app is what every API command shares: one client per backend, the
// repositories on top of them and the hub.
type app struct {
	cfg       *config.Config
	logger    *zerolog.Logger
	rdb       *redis.Client
	reception *apiclient.Client
	admin     *apiclient.Client
	repos     *repository.Set
	hub       *orchestrator.Hub
	telegram  *notify.Telegram
}

func newLogger(level string) *zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		logger = logger.Level(lvl)
	}
	return &logger
}

// newApp loads the config and builds the clients. With chat set, failures
// are also forwarded to the configured telegram chat.
func newApp(ctx context.Context, configPath string, chat bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Log.Level)

	a := &app{cfg: cfg, logger: logger}
	if cfg.Redis.Address != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	}

	a.reception = apiclient.New(cfg.Client("reception", cfg.ReceptionAPI), a.store("reception"), logger)
	a.admin = apiclient.New(cfg.Client("admin", cfg.AdminAPI), a.store("admin"), logger)
	a.repos = repository.NewSet(a.reception, a.admin)

	notifiers := notify.Multi{notify.NewLog(logger)}
	if chat && cfg.Telegram.BotToken != "" {
		if a.telegram, err = telegramNotifier(cfg, logger); err != nil {
			return nil, err
		}
		notifiers = append(notifiers, a.telegram)
	}
	a.hub = orchestrator.NewHub(ctx, a.repos, orchestrator.HubOptions{
		Notifier: notifiers,
		Logger:   logger,
		Debounce: cfg.Debounce(),
	})
	return a, nil
}

// store builds the cache of one API base. Each base gets its own redis
// namespace and its own in-process fallback.
func (a *app) store(name string) cache.Store {
	if a.rdb == nil {
		return cache.NewMemory()
	}
	return cache.NewFailover(cache.NewRedis(a.rdb, "hospops:"+name+":", a.logger), cache.NewMemory(), a.logger).
		WithRecheck(a.cfg.RedisRecheck())
}

func (a *app) Close() {
	a.hub.Close()
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
