package gateway

import "strings"

// Registry holds the configured gateways. New checkouts go to the primary one;
// existing rows are served by the gateway that created them.
type Registry struct {
	primary Gateway
	byName  map[string]Gateway
}

func NewRegistry(primary Gateway, others ...Gateway) *Registry {
	r := &Registry{primary: primary, byName: map[string]Gateway{primary.Name(): primary}}
	for _, g := range others {
		if g != nil {
			r.byName[g.Name()] = g
		}
	}
	return r
}

func (r *Registry) Primary() Gateway { return r.primary }

// Get returns the named gateway, falling back to the primary for rows written
// before the gateway column existed.
func (r *Registry) Get(name string) (Gateway, bool) {
	if name == "" {
		return r.primary, true
	}
	g, ok := r.byName[name]
	return g, ok
}

// Title is the provider name as shown to users.
func Title(provider string) string {
	switch provider {
	case ProviderRazorpay:
		return "Razorpay"
	case ProviderStripe:
		return "Stripe"
	}
	if provider == "" {
		return "Payment provider"
	}
	return strings.ToUpper(provider[:1]) + provider[1:]
}
