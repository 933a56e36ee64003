package config

import (
	"context"
	"os"
	"time"

	"hospops/internal/apiclient"

	"github.com/rs/zerolog"
)

// Watch reloads path on change and calls onUpdate with the latest config.
// The initial load is the caller's; Watch only reports later changes. A file
// that fails to load is skipped until it changes again.
func Watch(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*Config)) error {
	if path == "" {
		path = DefaultPath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()
				cfg, err := Load(path)
				if err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("config reload failed")
					continue
				}
				logger.Info().Str("path", path).Msg("config reloaded")
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}

// ApplyTunables pushes the settings that may change at runtime into live
// clients: the read cache ttl and the mutation guard window.
func ApplyTunables(cfg *Config, clients ...*apiclient.Client) {
	for _, c := range clients {
		if c == nil {
			continue
		}
		c.SetCacheTTL(cfg.CacheTTL())
		c.Guard().SetWindow(cfg.GuardWindow())
	}
}
