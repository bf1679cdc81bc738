package dispatch

import "context"

// ParamsInterceptor copies request parameters onto the value stack before
// the action runs. Single values are stored as strings, repeated ones as
// []string. Keys already on the stack are left alone.
type ParamsInterceptor struct {
	// Exclude lists parameter names never copied.
	Exclude []string
}

func (p ParamsInterceptor) Intercept(ctx context.Context, inv *Invocation) (string, error) {
	for name, values := range inv.Params {
		if len(values) == 0 || p.excluded(name) {
			continue
		}
		if _, exists := inv.Stack.Get(name); exists {
			continue
		}
		if len(values) == 1 {
			inv.Stack.Set(name, values[0])
		} else {
			inv.Stack.Set(name, append([]string(nil), values...))
		}
	}
	return inv.Invoke(ctx)
}

func (p ParamsInterceptor) excluded(name string) bool {
	for _, e := range p.Exclude {
		if e == name {
			return true
		}
	}
	return false
}
