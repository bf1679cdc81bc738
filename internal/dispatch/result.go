package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
)

// Result renders the outcome of an invocation.
type Result interface {
	Execute(ctx context.Context, inv *Invocation, code string) error
}

// ResultFunc adapts a function to Result.
type ResultFunc func(ctx context.Context, inv *Invocation, code string) error

func (f ResultFunc) Execute(ctx context.Context, inv *Invocation, code string) error {
	return f(ctx, inv, code)
}

// WildcardResult is the result key used when no result matches the code.
const WildcardResult = "*"

// JSONResult writes {"view": code, "data": {...}} where data holds the
// listed stack keys, or the whole top level of the stack when Keys is empty.
type JSONResult struct {
	Keys   []string
	Status int
}

func (r JSONResult) Execute(_ context.Context, inv *Invocation, code string) error {
	if inv.Response == nil {
		return nil
	}

	data := inv.Stack.Snapshot()
	if len(r.Keys) > 0 {
		data = make(map[string]any, len(r.Keys))
		for _, k := range r.Keys {
			if v, ok := inv.Stack.Get(k); ok {
				data[k] = v
			}
		}
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	inv.Response.Header().Set("Content-Type", "application/json")
	inv.Response.WriteHeader(status)
	return json.NewEncoder(inv.Response).Encode(map[string]any{
		"view": code,
		"data": data,
	})
}

// RedirectResult answers with a redirect to Location.
type RedirectResult struct {
	Location string
	Status   int
}

func (r RedirectResult) Execute(_ context.Context, inv *Invocation, _ string) error {
	if inv.Response == nil {
		return nil
	}
	status := r.Status
	if status == 0 {
		status = http.StatusFound
	}
	http.Redirect(inv.Response, inv.Request, r.Location, status)
	return nil
}
