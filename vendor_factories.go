package connectors

import (
	"fmt"
	"time"

	"github.com/healthsync/go-connectors/core"
	"github.com/healthsync/go-connectors/vendors/garmin"
	"github.com/healthsync/go-connectors/vendors/whoop"
)

// Default admission parameters applied when a vendor setup does not carry
// its own RateLimitConfig. Steady state of 100 calls per minute with a
// burst ceiling of 120 matches the strictest published vendor quota.
const (
	DefaultRateLimitMaxRequests = 100
	DefaultRateLimitWindow      = time.Minute
	DefaultRateLimitMaxBurst    = 120
)

func GarminConnector(cfg core.VendorConfig, opts garmin.Options) (core.Connector, error) {
	return garmin.New(cfg, opts)
}

func WhoopConnector(cfg core.VendorConfig, opts whoop.Options) (core.Connector, error) {
	return whoop.New(cfg, opts)
}

// GarminOptionsFromConfig derives connector options from the service
// configuration.
func GarminOptionsFromConfig(cfg core.Config) garmin.Options {
	return garmin.Options{
		Timeout:      cfg.Tokens.OutboundTimeout(),
		StrictEvents: cfg.Webhooks.StrictEvents,
	}
}

// WhoopOptionsFromConfig derives connector options from the service
// configuration, including the signature replay window.
func WhoopOptionsFromConfig(cfg core.Config) whoop.Options {
	return whoop.Options{
		Timeout:      cfg.Tokens.OutboundTimeout(),
		StrictEvents: cfg.Webhooks.StrictEvents,
		ReplayWindow: cfg.Webhooks.ReplayWindow(),
	}
}

// BuildVendorSetups constructs a connector for each enabled vendor using
// options derived from the service configuration. An empty EnabledVendors
// list enables every vendor that has a VendorConfig; a vendor named in
// EnabledVendors without a VendorConfig is an error.
func BuildVendorSetups(cfg core.Config, vendorConfigs map[core.Vendor]core.VendorConfig) ([]VendorSetup, error) {
	enabled := map[core.Vendor]bool{}
	for _, name := range cfg.EnabledVendors {
		vendor := core.NormalizeVendor(name)
		if err := vendor.Validate(); err != nil {
			return nil, err
		}
		enabled[vendor] = true
	}

	var setups []VendorSetup
	for _, vendor := range []core.Vendor{core.VendorGarmin, core.VendorWhoop} {
		vendorCfg, ok := vendorConfigs[vendor]
		if !ok {
			if enabled[vendor] {
				return nil, fmt.Errorf("connectors: vendor %s is enabled but has no vendor config", vendor)
			}
			continue
		}
		if len(enabled) > 0 && !enabled[vendor] {
			continue
		}

		var (
			connector core.Connector
			err       error
		)
		switch vendor {
		case core.VendorGarmin:
			connector, err = GarminConnector(vendorCfg, GarminOptionsFromConfig(cfg))
		case core.VendorWhoop:
			connector, err = WhoopConnector(vendorCfg, WhoopOptionsFromConfig(cfg))
		}
		if err != nil {
			return nil, err
		}
		setups = append(setups, VendorSetup{Connector: connector})
	}
	return setups, nil
}

// VendorSetup pairs a built connector with the admission parameters its
// outbound calls run under.
type VendorSetup struct {
	Connector core.Connector
	RateLimit core.RateLimitConfig
}

// DefaultRateLimit returns the stock admission parameters for a vendor.
func DefaultRateLimit(vendor core.Vendor) core.RateLimitConfig {
	return core.RateLimitConfig{
		Vendor:      vendor,
		MaxRequests: DefaultRateLimitMaxRequests,
		TimeWindow:  DefaultRateLimitWindow,
		MaxBurst:    DefaultRateLimitMaxBurst,
	}
}

// RegisterVendors registers each connector with the service registry and
// configures the service rate limiter for it. Setups without an explicit
// RateLimitConfig fall back to DefaultRateLimit.
func RegisterVendors(service *Service, setups ...VendorSetup) error {
	if service == nil {
		return fmt.Errorf("connectors: service is required")
	}
	deps := service.Dependencies()
	for _, setup := range setups {
		if setup.Connector == nil {
			return fmt.Errorf("connectors: vendor setup is missing a connector")
		}
		if err := deps.Registry.Register(setup.Connector); err != nil {
			return err
		}
		limit := setup.RateLimit
		if limit.MaxRequests == 0 && limit.TimeWindow == 0 {
			limit = DefaultRateLimit(setup.Connector.Vendor())
		}
		if limit.Vendor == "" {
			limit.Vendor = setup.Connector.Vendor()
		}
		if deps.RateLimiter != nil {
			if err := deps.RateLimiter.Configure(limit); err != nil {
				return err
			}
		}
	}
	return nil
}
