package main

import (
	"context"
	"strconv"

	"github.com/rendis/flowbridge/internal/bridge"
	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/internal/interceptor"
	"github.com/rendis/flowbridge/pkg/schema"
)

// cartNamespace holds the actions the example checkout flow dispatches to.
// They also answer direct requests, syncing with the flow named by the
// session's resume token.
const cartNamespace = "/cart"

// addItemAction appends {name, price} from the request to the cart.
type addItemAction struct{}

func (addItemAction) InboundKeys() []string  { return []string{"cart"} }
func (addItemAction) OutboundKeys() []string { return []string{"cart"} }

func (addItemAction) Execute(_ context.Context, inv *dispatch.Invocation) (string, error) {
	name := inv.Parameter("item")
	if name == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "item is required")
	}
	price := 0.0
	if raw := inv.Parameter("price"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", schema.NewErrorf(schema.ErrCodeValidation, "price %q is not a number", raw)
		}
		price = p
	}

	cart, _ := inv.Stack.Find("cart").([]any)
	next := make([]any, 0, len(cart)+1)
	next = append(next, cart...)
	next = append(next, map[string]any{"name": name, "price": price})
	inv.Stack.Set("cart", next)
	return "success", nil
}

// computeTotal sums the cart prices into total.
func computeTotal(_ context.Context, inv *dispatch.Invocation) (string, error) {
	cart, _ := inv.Stack.Find("cart").([]any)
	total := 0.0
	for _, it := range cart {
		item, _ := it.(map[string]any)
		switch p := item["price"].(type) {
		case float64:
			total += p
		case int:
			total += float64(p)
		}
	}
	inv.Stack.Set("total", total)
	return "success", nil
}

func registerCartActions(d *dispatch.Dispatcher, scopes *bridge.ScopeBridge, scopeKeys []string) error {
	results := map[string]dispatch.Result{
		dispatch.WildcardResult: dispatch.JSONResult{Keys: []string{"cart", "total"}},
	}
	if err := d.Register(dispatch.ActionConfig{
		Namespace:    cartNamespace,
		Name:         "addItem",
		Factory:      func() dispatch.Action { return addItemAction{} },
		Interceptors: []dispatch.Interceptor{interceptor.NewDeclaredInterceptor(scopes)},
		Results:      results,
	}); err != nil {
		return err
	}
	return d.Register(dispatch.ActionConfig{
		Namespace:    cartNamespace,
		Name:         "computeTotal",
		Factory:      func() dispatch.Action { return dispatch.ActionFunc(computeTotal) },
		Interceptors: []dispatch.Interceptor{interceptor.NewKeysInterceptor(scopes, scopeKeys)},
		Results:      results,
	})
}
