// Package strategy keeps the allocation strategies known to the service, so
// the default ordering can be chosen by name from configuration.
package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vetpms/backend/internal/domain/account"
	"github.com/vetpms/backend/internal/domain/shared"
	domainstrategy "github.com/vetpms/backend/internal/domain/shared/strategy"
)

// StrategyRegistry manages allocation strategy registrations
type StrategyRegistry struct {
	mu                   sync.RWMutex
	allocationStrategies map[string]account.AllocationStrategy
	defaultAllocation    string
}

// NewStrategyRegistry creates an empty registry
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		allocationStrategies: make(map[string]account.AllocationStrategy),
	}
}

// RegisterAllocationStrategy registers an allocation strategy under its name
func (r *StrategyRegistry) RegisterAllocationStrategy(s account.AllocationStrategy) error {
	if s == nil {
		return shared.NewDomainError(shared.CodeInvalidArgument, "Strategy cannot be nil")
	}
	if s.Kind() != domainstrategy.KindAllocation {
		return shared.NewDomainError(shared.CodeInvalidArgument,
			fmt.Sprintf("Strategy '%s' is a %s strategy, not an allocation strategy", s.Name(), s.Kind()))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.allocationStrategies[name]; exists {
		return shared.NewDomainError(shared.CodeInvalidArgument,
			fmt.Sprintf("Allocation strategy '%s' already registered", name))
	}
	r.allocationStrategies[name] = s
	return nil
}

// GetAllocationStrategy returns an allocation strategy by name, or the
// default if name is empty.
func (r *StrategyRegistry) GetAllocationStrategy(name string) (account.AllocationStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultAllocation
		if name == "" {
			return nil, shared.NewDomainError(shared.CodeNotFound, "No default allocation strategy set")
		}
	}

	s, exists := r.allocationStrategies[name]
	if !exists {
		return nil, shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("Allocation strategy '%s' not found", name))
	}
	return s, nil
}

// ListAllocationStrategies returns all registered names, sorted
func (r *StrategyRegistry) ListAllocationStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.allocationStrategies))
	for name := range r.allocationStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnregisterAllocationStrategy removes an allocation strategy
func (r *StrategyRegistry) UnregisterAllocationStrategy(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.allocationStrategies[name]; !exists {
		return shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("Allocation strategy '%s' not found", name))
	}
	delete(r.allocationStrategies, name)

	// Clear default if it was this strategy
	if r.defaultAllocation == name {
		r.defaultAllocation = ""
	}
	return nil
}

// SetDefaultAllocation makes a registered strategy the default
func (r *StrategyRegistry) SetDefaultAllocation(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.allocationStrategies[name]; !exists {
		return shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("Allocation strategy '%s' not found", name))
	}
	r.defaultAllocation = name
	return nil
}

// DefaultAllocation returns the name of the default strategy, empty if none
func (r *StrategyRegistry) DefaultAllocation() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultAllocation
}
