// Package provider holds the payment provider clients and the registry
// the payment orchestrator resolves them from.
package provider

import (
	"go.uber.org/zap"

	"github.com/resbook/service-booking/internal/domain/payment"
)

// Registry maps each provider to exactly one client.
type Registry struct {
	clients map[payment.Provider]payment.ProviderClient
}

// NewRegistry registers clients in order. When two clients claim the same
// provider the first one wins.
func NewRegistry(logger *zap.Logger, clients ...payment.ProviderClient) *Registry {
	r := &Registry{clients: make(map[payment.Provider]payment.ProviderClient, len(clients))}
	for _, c := range clients {
		if c == nil {
			continue
		}
		if _, exists := r.clients[c.Provider()]; exists {
			if logger != nil {
				logger.Warn("duplicate payment provider client ignored", zap.String("provider", c.Provider().String()))
			}
			continue
		}
		r.clients[c.Provider()] = c
	}
	return r
}

// Lookup returns the client registered for p.
func (r *Registry) Lookup(p payment.Provider) (payment.ProviderClient, bool) {
	c, ok := r.clients[p]
	return c, ok
}

// Providers lists the registered providers.
func (r *Registry) Providers() []payment.Provider {
	out := make([]payment.Provider, 0, len(r.clients))
	for p := range r.clients {
		out = append(out, p)
	}
	return out
}
