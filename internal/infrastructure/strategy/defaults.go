package strategy

import (
	"github.com/vetpms/backend/internal/domain/account"
)

// NewRegistryWithDefaults creates a registry holding the built-in allocation
// strategies, with oldest-first as the default.
func NewRegistryWithDefaults() (*StrategyRegistry, error) {
	r := NewStrategyRegistry()

	oldestFirst := account.NewOldestFirstStrategy()
	if err := r.RegisterAllocationStrategy(oldestFirst); err != nil {
		return nil, err
	}

	explicitOrder := account.NewExplicitOrderStrategy()
	if err := r.RegisterAllocationStrategy(explicitOrder); err != nil {
		return nil, err
	}

	if err := r.SetDefaultAllocation(oldestFirst.Name()); err != nil {
		return nil, err
	}

	return r, nil
}
