package builtins

import (
	"backtester/internal/strategy"
)

// RegisterAll registers every builtin strategy factory with the registry.
// Parameter keys and defaults:
//
//	mean-reversion: window=100, qty=100
//	sma-cross:      short=10, long=50, qty=100
//	momentum:       window=20, threshold=0.05, qty=100
func RegisterAll(r *strategy.Registry) {
	r.Register("mean-reversion", func(params map[string]float64) (strategy.Generator, error) {
		return NewMeanReversion(
			intParam(params, "window", 100),
			floatParam(params, "qty", 100),
		)
	})

	r.Register("sma-cross", func(params map[string]float64) (strategy.Generator, error) {
		return NewSMACross(
			intParam(params, "short", 10),
			intParam(params, "long", 50),
			floatParam(params, "qty", 100),
		)
	})

	r.Register("momentum", func(params map[string]float64) (strategy.Generator, error) {
		return NewMomentum(
			intParam(params, "window", 20),
			floatParam(params, "threshold", 0.05),
			floatParam(params, "qty", 100),
		)
	})
}

func floatParam(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

func intParam(params map[string]float64, key string, def int) int {
	if v, ok := params[key]; ok {
		return int(v)
	}
	return def
}
