// Package strategy defines the order-generation contract that all trading
// strategies implement and provides a Registry for selecting strategies by
// name from configuration.
package strategy

import (
	"sort"

	"backtester/internal/domain"
	"backtester/internal/marketdata"
)

// Generator is the interface all strategies implement. The backtester calls
// Generate once per simulated step with the market history visible up to and
// including that step and a read-only snapshot of current holdings.
//
// A Generator must be a pure function of its inputs plus any internal state
// it owns (rolling indicators and the like); the backtester never inspects
// or resets that state between steps. Returning an empty slice means "no
// signal" and must not be reported as an error — errors are reserved for
// genuine misconfiguration.
type Generator interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Generate returns zero or more orders for the next tradable period.
	Generate(view *marketdata.View, snap domain.Snapshot) ([]domain.Order, error)
}

// Factory builds a Generator from configured parameters, validating them at
// construction time. Invalid parameters fail here, before any data is
// touched, with a *domain.ConfigError.
type Factory func(params map[string]float64) (Generator, error)

// Registry holds a named collection of strategy factories for lookup and
// enumeration. Each backtest run creates its own Generator instance so runs
// never share strategy state.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a strategy factory under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Create instantiates the named strategy with the given parameters. The
// second return value of the lookup is folded into the error: an unknown
// name is a configuration error like any other.
func (r *Registry) Create(name string, params map[string]float64) (Generator, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &domain.ConfigError{
			Field: "strategy",
			Err:   errUnknownStrategy(name),
		}
	}
	return f(params)
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type errUnknownStrategy string

func (e errUnknownStrategy) Error() string {
	return "unknown strategy " + string(e)
}
