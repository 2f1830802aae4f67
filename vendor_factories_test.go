package connectors

import (
	"context"
	"testing"
	"time"

	"github.com/healthsync/go-connectors/core"
	"github.com/healthsync/go-connectors/ratelimit"
	"github.com/healthsync/go-connectors/vendors/garmin"
	"github.com/healthsync/go-connectors/vendors/whoop"
)

func garminTestConfig() core.VendorConfig {
	return core.VendorConfig{
		ClientID:      "garmin-client",
		ClientSecret:  "garmin-secret",
		WebhookSecret: "garmin-hook",
		BaseURL:       "https://apis.garmin.com",
		AuthURL:       "https://connect.garmin.com/oauth2Confirm",
		TokenURL:      "https://diauth.garmin.com/di-oauth2-service/oauth/token",
	}
}

func whoopTestConfig() core.VendorConfig {
	return core.VendorConfig{
		ClientID:      "whoop-client",
		ClientSecret:  "whoop-secret",
		WebhookSecret: "whoop-hook",
		BaseURL:       "https://api.prod.whoop.com",
		AuthURL:       "https://api.prod.whoop.com/oauth/oauth2/auth",
		TokenURL:      "https://api.prod.whoop.com/oauth/oauth2/token",
	}
}

func TestBuiltInConnectorFactories(t *testing.T) {
	cases := []struct {
		name   string
		vendor core.Vendor
		fn     func() (core.Connector, error)
	}{
		{
			name:   "garmin",
			vendor: core.VendorGarmin,
			fn: func() (core.Connector, error) {
				return GarminConnector(garminTestConfig(), garmin.Options{})
			},
		},
		{
			name:   "whoop",
			vendor: core.VendorWhoop,
			fn: func() (core.Connector, error) {
				return WhoopConnector(whoopTestConfig(), whoop.Options{})
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			connector, err := tc.fn()
			if err != nil {
				t.Fatalf("factory error: %v", err)
			}
			if connector.Vendor() != tc.vendor {
				t.Fatalf("expected %q, got %q", tc.vendor, connector.Vendor())
			}
			if len(connector.ResourceTypes()) == 0 {
				t.Fatalf("expected resource types for %q", tc.vendor)
			}
		})
	}
}

func TestDefaultRateLimit(t *testing.T) {
	cfg := DefaultRateLimit(core.VendorGarmin)
	if cfg.Vendor != core.VendorGarmin {
		t.Fatalf("expected vendor carried, got %q", cfg.Vendor)
	}
	if cfg.MaxRequests != DefaultRateLimitMaxRequests || cfg.TimeWindow != DefaultRateLimitWindow {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.MaxBurst != DefaultRateLimitMaxBurst {
		t.Fatalf("expected burst ceiling, got %d", cfg.MaxBurst)
	}
}

func TestRegisterVendors_WiresRegistryAndLimiter(t *testing.T) {
	limiter := ratelimit.NewTokenBucketLimiter()
	service, err := NewService(DefaultConfig(), WithRateLimitAdmitter(limiter))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	garminConnector, err := GarminConnector(garminTestConfig(), garmin.Options{})
	if err != nil {
		t.Fatalf("garmin connector: %v", err)
	}
	whoopConnector, err := WhoopConnector(whoopTestConfig(), whoop.Options{})
	if err != nil {
		t.Fatalf("whoop connector: %v", err)
	}

	err = RegisterVendors(service,
		VendorSetup{Connector: garminConnector},
		VendorSetup{
			Connector: whoopConnector,
			RateLimit: core.RateLimitConfig{MaxRequests: 10, TimeWindow: DefaultRateLimitWindow},
		},
	)
	if err != nil {
		t.Fatalf("register vendors: %v", err)
	}

	if _, ok := service.Registry().Get(core.VendorGarmin); !ok {
		t.Fatalf("expected garmin registered")
	}
	if _, ok := service.Registry().Get(core.VendorWhoop); !ok {
		t.Fatalf("expected whoop registered")
	}

	_, garminLimit, ok := limiter.Snapshot(core.VendorGarmin)
	if !ok {
		t.Fatalf("expected garmin limiter config")
	}
	if garminLimit.MaxRequests != DefaultRateLimitMaxRequests {
		t.Fatalf("expected default limit fallback, got %#v", garminLimit)
	}

	_, whoopLimit, ok := limiter.Snapshot(core.VendorWhoop)
	if !ok {
		t.Fatalf("expected whoop limiter config")
	}
	if whoopLimit.MaxRequests != 10 {
		t.Fatalf("expected explicit limit preserved, got %#v", whoopLimit)
	}
	if whoopLimit.Vendor != core.VendorWhoop {
		t.Fatalf("expected vendor filled from connector, got %q", whoopLimit.Vendor)
	}

	if err := limiter.CheckAndAdmit(context.Background(), core.VendorGarmin, "usr_1"); err != nil {
		t.Fatalf("expected admission under default limit: %v", err)
	}
}

func TestRegisterVendors_Validation(t *testing.T) {
	if err := RegisterVendors(nil); err == nil {
		t.Fatalf("expected nil service rejection")
	}

	service, err := NewService(DefaultConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := RegisterVendors(service, VendorSetup{}); err == nil {
		t.Fatalf("expected missing connector rejection")
	}
}

func TestVendorOptionsFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Webhooks.StrictEvents = true
	cfg.Webhooks.ReplayWindowSeconds = 120
	cfg.Tokens.OutboundTimeoutSeconds = 15

	garminOpts := GarminOptionsFromConfig(cfg)
	if !garminOpts.StrictEvents {
		t.Fatalf("expected strict events to carry over")
	}
	if garminOpts.Timeout != 15*time.Second {
		t.Fatalf("expected 15s timeout, got %v", garminOpts.Timeout)
	}

	whoopOpts := WhoopOptionsFromConfig(cfg)
	if !whoopOpts.StrictEvents {
		t.Fatalf("expected strict events to carry over")
	}
	if whoopOpts.ReplayWindow != 2*time.Minute {
		t.Fatalf("expected 2m replay window, got %v", whoopOpts.ReplayWindow)
	}
	if whoopOpts.Timeout != 15*time.Second {
		t.Fatalf("expected 15s timeout, got %v", whoopOpts.Timeout)
	}
}

func TestBuildVendorSetups(t *testing.T) {
	allConfigs := map[core.Vendor]core.VendorConfig{
		core.VendorGarmin: garminTestConfig(),
		core.VendorWhoop:  whoopTestConfig(),
	}

	t.Run("empty enabled list builds every configured vendor", func(t *testing.T) {
		setups, err := BuildVendorSetups(DefaultConfig(), allConfigs)
		if err != nil {
			t.Fatalf("build setups: %v", err)
		}
		if len(setups) != 2 {
			t.Fatalf("expected 2 setups, got %d", len(setups))
		}
		if setups[0].Connector.Vendor() != core.VendorGarmin {
			t.Fatalf("expected garmin first, got %s", setups[0].Connector.Vendor())
		}
		if setups[1].Connector.Vendor() != core.VendorWhoop {
			t.Fatalf("expected whoop second, got %s", setups[1].Connector.Vendor())
		}
	})

	t.Run("enabled list filters vendors", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EnabledVendors = []string{" Whoop "}
		setups, err := BuildVendorSetups(cfg, allConfigs)
		if err != nil {
			t.Fatalf("build setups: %v", err)
		}
		if len(setups) != 1 {
			t.Fatalf("expected 1 setup, got %d", len(setups))
		}
		if setups[0].Connector.Vendor() != core.VendorWhoop {
			t.Fatalf("expected whoop, got %s", setups[0].Connector.Vendor())
		}
	})

	t.Run("enabled vendor without config is rejected", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EnabledVendors = []string{"garmin"}
		if _, err := BuildVendorSetups(cfg, map[core.Vendor]core.VendorConfig{
			core.VendorWhoop: whoopTestConfig(),
		}); err == nil {
			t.Fatalf("expected missing vendor config rejection")
		}
	})

	t.Run("unknown enabled vendor is rejected", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EnabledVendors = []string{"fitbit"}
		if _, err := BuildVendorSetups(cfg, allConfigs); err == nil {
			t.Fatalf("expected unknown vendor rejection")
		}
	})
}
