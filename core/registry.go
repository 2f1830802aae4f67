package core

import (
	"fmt"
	"sort"
	"sync"
)

type ConnectorRegistry struct {
	mu         sync.RWMutex
	connectors map[Vendor]Connector
}

func NewConnectorRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{connectors: make(map[Vendor]Connector)}
}

func (r *ConnectorRegistry) Register(connector Connector) error {
	if connector == nil {
		return fmt.Errorf("core: connector is nil")
	}
	vendor := NormalizeVendor(string(connector.Vendor()))
	if err := vendor.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.connectors[vendor]; exists {
		return fmt.Errorf("core: connector already registered: %s", vendor)
	}
	r.connectors[vendor] = connector
	return nil
}

func (r *ConnectorRegistry) Get(vendor Vendor) (Connector, bool) {
	normalized := NormalizeVendor(string(vendor))
	if normalized.Validate() != nil {
		return nil, false
	}
	r.mu.RLock()
	connector, ok := r.connectors[normalized]
	r.mu.RUnlock()
	return connector, ok
}

func (r *ConnectorRegistry) List() []Connector {
	r.mu.RLock()
	keys := make([]string, 0, len(r.connectors))
	for vendor := range r.connectors {
		keys = append(keys, string(vendor))
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	connectors := make([]Connector, 0, len(keys))
	r.mu.RLock()
	for _, key := range keys {
		connectors = append(connectors, r.connectors[Vendor(key)])
	}
	r.mu.RUnlock()
	return connectors
}

var _ Registry = (*ConnectorRegistry)(nil)
