// Package strategy defines the Strategy interface for rule-based trading
// strategies and a Registry of parameterised strategy factories used by the
// backtest runner and the hyperparameter search.
package strategy

import (
	"fmt"
	"sort"

	"fxlab/internal/domain"
)

// Params holds strategy hyperparameters by name. All values are float64;
// integer-valued parameters (periods, lookbacks) are rounded by the
// strategy constructor.
type Params map[string]float64

// Get returns the named parameter, or def when it is absent.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// GetInt returns the named parameter rounded to an int, or def when absent.
func (p Params) GetInt(name string, def int) int {
	if v, ok := p[name]; ok {
		return int(v + 0.5)
	}
	return def
}

// Strategy is the interface all trading strategies implement.
type Strategy interface {
	// ID returns the unique identifier for this strategy.
	ID() string

	// GenerateSignals inspects a window of past bars, oldest first, and
	// returns zero or more trade signals anchored at the window's last bar.
	GenerateSignals(window []domain.Bar) ([]domain.Signal, error)
}

// Factory builds a strategy instance from a set of hyperparameters.
type Factory func(params Params) (Strategy, error)

// Registry holds named strategy factories for lookup and enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under the given strategy ID.
func (r *Registry) Register(id string, f Factory) {
	r.factories[id] = f
}

// New builds a strategy by ID with the given parameters.
func (r *Registry) New(id string, params Params) (Strategy, error) {
	f, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", id)
	}
	return f(params)
}

// List returns a sorted slice of all registered strategy IDs.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
