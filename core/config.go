package core

import (
	"fmt"
	"strings"
	"time"
)

type WebhookConfig struct {
	ReplayWindowSeconds int  `koanf:"replay_window_seconds" mapstructure:"replay_window_seconds"`
	StrictEvents        bool `koanf:"strict_events" mapstructure:"strict_events"`
}

func (c WebhookConfig) ReplayWindow() time.Duration {
	return time.Duration(c.ReplayWindowSeconds) * time.Second
}

type TokenConfig struct {
	RefreshMarginSeconds   int `koanf:"refresh_margin_seconds" mapstructure:"refresh_margin_seconds"`
	OutboundTimeoutSeconds int `koanf:"outbound_timeout_seconds" mapstructure:"outbound_timeout_seconds"`
	LockTTLSeconds         int `koanf:"lock_ttl_seconds" mapstructure:"lock_ttl_seconds"`
}

func (c TokenConfig) RefreshMargin() time.Duration {
	return time.Duration(c.RefreshMarginSeconds) * time.Second
}

func (c TokenConfig) OutboundTimeout() time.Duration {
	return time.Duration(c.OutboundTimeoutSeconds) * time.Second
}

func (c TokenConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

type SyncConfig struct {
	InitialLookbackDays int `koanf:"initial_lookback_days" mapstructure:"initial_lookback_days"`
}

func (c SyncConfig) InitialLookback() time.Duration {
	return time.Duration(c.InitialLookbackDays) * 24 * time.Hour
}

type Config struct {
	ServiceName    string        `koanf:"service_name" mapstructure:"service_name"`
	EnabledVendors []string      `koanf:"enabled_vendors" mapstructure:"enabled_vendors"`
	Webhooks       WebhookConfig `koanf:"webhooks" mapstructure:"webhooks"`
	Tokens         TokenConfig   `koanf:"tokens" mapstructure:"tokens"`
	Sync           SyncConfig    `koanf:"sync" mapstructure:"sync"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "connectors",
		Webhooks: WebhookConfig{
			ReplayWindowSeconds: 300,
		},
		Tokens: TokenConfig{
			RefreshMarginSeconds:   60,
			OutboundTimeoutSeconds: 30,
			LockTTLSeconds:         30,
		},
		Sync: SyncConfig{
			InitialLookbackDays: 7,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Webhooks.ReplayWindowSeconds <= 0 {
		return fmt.Errorf("core: webhooks.replay_window_seconds must be positive")
	}
	if c.Tokens.RefreshMarginSeconds < 0 {
		return fmt.Errorf("core: tokens.refresh_margin_seconds must not be negative")
	}
	if c.Tokens.OutboundTimeoutSeconds <= 0 {
		return fmt.Errorf("core: tokens.outbound_timeout_seconds must be positive")
	}
	if c.Tokens.LockTTLSeconds <= 0 {
		return fmt.Errorf("core: tokens.lock_ttl_seconds must be positive")
	}
	if c.Sync.InitialLookbackDays <= 0 {
		return fmt.Errorf("core: sync.initial_lookback_days must be positive")
	}
	for _, vendor := range c.EnabledVendors {
		if err := NormalizeVendor(vendor).Validate(); err != nil {
			return fmt.Errorf("core: enabled_vendors contains %q: %w", vendor, err)
		}
	}
	return nil
}
