// Package network implements the Multi-Network Registry, the per-network
// read-only View, and the Operator mutation surface, grounded on the
// teacher's repository-pattern wiring in internal/repository (one struct per
// concern, constructed once and passed down) generalized from a single
// Fantom chain to an ordered list of protocol networks.
package network

import (
	"fmt"

	"indexer-agent/internal/errs"
)

// Pair couples a View with the Operator that mutates on-chain/local state
// for the same protocol network.
type Pair struct {
	Network *View
	Operator *Operator
}

// Registry holds one (View, Operator) pair per configured protocol network,
// keyed by CAIP-2 network identifier.
type Registry struct {
	pairs map[string]Pair
	order []string
}

// NewRegistry validates pairs and builds the registry. Fails with a
// ConfigError if pairs is empty, if any pair's view and operator disagree on
// network identifier, or if two pairs share an identifier.
func NewRegistry(pairs []Pair) (*Registry, error) {
	if len(pairs) == 0 {
		return nil, errs.New(errs.KindConfig, errs.CodeConfigInvalid, "network.NewRegistry", fmt.Errorf("at least one network must be configured"))
	}

	r := &Registry{pairs: make(map[string]Pair, len(pairs)), order: make([]string, 0, len(pairs))}
	for _, p := range pairs {
		id := p.Network.NetworkIdentifier()
		if p.Operator.NetworkIdentifier() != id {
			return nil, errs.New(errs.KindConfig, errs.CodeConfigInvalid, "network.NewRegistry",
				fmt.Errorf("network view identifier %q does not match operator identifier %q", id, p.Operator.NetworkIdentifier()))
		}
		if _, exists := r.pairs[id]; exists {
			return nil, errs.New(errs.KindConfig, errs.CodeConfigInvalid, "network.NewRegistry",
				fmt.Errorf("duplicate network identifier %q", id))
		}
		r.pairs[id] = p
		r.order = append(r.order, id)
	}

	return r, nil
}

// NetworkIdentifiers returns the configured network identifiers in
// registration order.
func (r *Registry) NetworkIdentifiers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Pair returns the (View, Operator) for a network identifier.
func (r *Registry) Pair(networkIdentifier string) (Pair, bool) {
	p, ok := r.pairs[networkIdentifier]
	return p, ok
}

// mapResult is the outcome of invoking f against a single pair.
type mapResult struct {
	id    string
	value interface{}
	err   error
}

// Map invokes f on every registered pair in parallel and collects the
// results keyed by network identifier. A single pair's failure does not
// fail the whole map: the failing key is simply absent from the result and
// the error is passed to onError for the caller to log.
func (r *Registry) Map(f func(Pair) (interface{}, error), onError func(networkIdentifier string, err error)) map[string]interface{} {
	results := make(chan mapResult, len(r.order))

	for _, id := range r.order {
		p := r.pairs[id]
		go func(id string, p Pair) {
			v, err := f(p)
			results <- mapResult{id: id, value: v, err: err}
		}(id, p)
	}

	out := make(map[string]interface{}, len(r.order))
	for range r.order {
		res := <-results
		if res.err != nil {
			if onError != nil {
				onError(res.id, res.err)
			}
			continue
		}
		out[res.id] = res.value
	}

	return out
}

// Zip inner-joins two network-keyed maps, dropping keys missing from either
// side.
func Zip(a, b map[string]interface{}) map[string][2]interface{} {
	out := make(map[string][2]interface{})
	for k, av := range a {
		if bv, ok := b[k]; ok {
			out[k] = [2]interface{}{av, bv}
		}
	}
	return out
}
