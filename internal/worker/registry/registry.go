package registry

import (
	"fmt"
	"silo-snapshots/internal/worker/config"
	"silo-snapshots/internal/worker/model"

	"github.com/ethereum/go-ethereum/common"
)

// Registry resolves an integration id to its market configuration.
type Registry struct {
	markets map[string]model.Market
}

func New(cfgs []config.MarketConfig) (*Registry, error) {
	markets := make(map[string]model.Market, len(cfgs))
	for _, mc := range cfgs {
		if mc.IntegrationID == "" {
			return nil, fmt.Errorf("market config missing integration_id")
		}
		if !common.IsHexAddress(mc.SiloAddress) {
			return nil, fmt.Errorf("market %s: invalid silo_address %q", mc.IntegrationID, mc.SiloAddress)
		}
		if !common.IsHexAddress(mc.NonBorrowableAddr) {
			return nil, fmt.Errorf("market %s: invalid non_borrowable_address %q", mc.IntegrationID, mc.NonBorrowableAddr)
		}
		if _, exists := markets[mc.IntegrationID]; exists {
			return nil, fmt.Errorf("duplicate integration_id %s", mc.IntegrationID)
		}
		markets[mc.IntegrationID] = model.Market{
			IntegrationID:     mc.IntegrationID,
			SiloAddress:       common.HexToAddress(mc.SiloAddress),
			NonBorrowableAddr: common.HexToAddress(mc.NonBorrowableAddr),
			SharesDecimals:    mc.SharesDecimals,
			StartBlock:        mc.StartBlock,
		}
	}
	return &Registry{markets: markets}, nil
}

// Get returns the market registered under id.
func (r *Registry) Get(id string) (model.Market, error) {
	market, ok := r.markets[id]
	if !ok {
		return model.Market{}, fmt.Errorf("unknown integration id %s", id)
	}
	return market, nil
}

// All returns every registered market.
func (r *Registry) All() []model.Market {
	out := make([]model.Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	return out
}
