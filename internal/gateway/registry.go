package gateway

import (
	"time"

	"github.com/Domenick1991/skybooking/config"
	"github.com/Domenick1991/skybooking/internal/domain"
)

// Registry resolves the gateway for a payment method.
type Registry struct {
	gateways map[domain.PaymentMethod]Gateway
}

// NewRegistry builds one Provider per configured method. Unknown method keys are rejected.
func NewRegistry(cfg config.PaymentConfig, opts ...Option) (*Registry, error) {
	r := &Registry{gateways: make(map[domain.PaymentMethod]Gateway, len(cfg.Providers))}
	var base []Option
	if cfg.GatewayTimeoutSeconds > 0 {
		base = append(base, WithTimeout(time.Duration(cfg.GatewayTimeoutSeconds)*time.Second))
	}
	for key, pc := range cfg.Providers {
		method, err := domain.ParsePaymentMethod(key)
		if err != nil {
			return nil, err
		}
		r.gateways[method] = NewProvider(method, pc, append(base, opts...)...)
	}
	return r, nil
}

// NewStaticRegistry wraps already-built gateways.
func NewStaticRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[domain.PaymentMethod]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Method()] = g
	}
	return r
}

func (r *Registry) Get(method domain.PaymentMethod) (Gateway, error) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, domain.ErrUnsupportedMethod
	}
	return g, nil
}
