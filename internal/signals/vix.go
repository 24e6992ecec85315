package signals

import "context"

// VIXFunc adapts a function to the VIXSource interface.
type VIXFunc func(ctx context.Context) (float64, error)

func (f VIXFunc) VIX(ctx context.Context) (float64, error) { return f(ctx) }

// StaticVIX returns a fixed volatility reading, used when no live
// source is wired (the engine treats it like any cached value).
func StaticVIX(value float64) VIXSource {
	return VIXFunc(func(context.Context) (float64, error) {
		return value, nil
	})
}
