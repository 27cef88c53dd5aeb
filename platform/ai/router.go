package ai

import (
	"context"
	"errors"
	"fmt"

	"orcazap/platform/logger"
)

// ErrNoProviders is returned when the router has no providers configured.
var ErrNoProviders = errors.New("ai: no providers configured")

// Router tries a fixed, ordered list of providers and returns the first
// successful completion. Provider order is set at construction; there is no
// runtime discovery or reordering.
type Router struct {
	providers []Provider
	log       *logger.Logger
}

// NewRouter creates a Router over the given providers, tried in order.
func NewRouter(log *logger.Logger, providers ...Provider) *Router {
	return &Router{providers: providers, log: log}
}

// Name implements Provider.
func (r *Router) Name() string { return "router" }

// Complete tries each provider in order, returning the first success.
// All failures are joined into the returned error.
func (r *Router) Complete(ctx context.Context, prompt string) (string, error) {
	if len(r.providers) == 0 {
		return "", ErrNoProviders
	}

	var errs []error
	for _, provider := range r.providers {
		output, err := provider.Complete(ctx, prompt)
		if err == nil {
			return output, nil
		}
		if r.log != nil {
			r.log.Warn("ai_provider_failed", "provider", provider.Name(), "error", err.Error())
		}
		errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}

	return "", errors.Join(errs...)
}
