package network

import (
	"math/big"

	"indexer-agent/internal/logger"
	"indexer-agent/internal/store"
	"indexer-agent/internal/types"
)

// Operator is the per-network mutation surface for the indexing_rules and
// actions tables. It does not open or close allocations on chain; that is
// done by internal/reconciler (see the note at the end of this file).
type Operator struct {
	networkIdentifier string
	store             *store.Store
	log               logger.Logger

	defaultAllocationAmount *big.Int
}

// OperatorConfig names the dependencies an Operator is built from.
type OperatorConfig struct {
	NetworkIdentifier       string
	Store                   *store.Store
	DefaultAllocationAmount *big.Int
}

// NewOperator builds the per-network Operator.
func NewOperator(cfg OperatorConfig, log logger.Logger) *Operator {
	return &Operator{
		networkIdentifier:       cfg.NetworkIdentifier,
		store:                   cfg.Store,
		log:                     log,
		defaultAllocationAmount: cfg.DefaultAllocationAmount,
	}
}

// NetworkIdentifier returns the CAIP-2 identifier this operator acts for.
func (o *Operator) NetworkIdentifier() string { return o.networkIdentifier }

// EnsureGlobalIndexingRule inserts the default global rule for this network
// if none exists yet. Idempotent.
func (o *Operator) EnsureGlobalIndexingRule() error {
	return o.store.EnsureGlobalIndexingRule(o.networkIdentifier, o.defaultAllocationAmount)
}

// IndexingRules returns every rule row for this network; when merged is
// true, SUBGRAPH and DEPLOYMENT rules inherit unset fields from the global
// rule.
func (o *Operator) IndexingRules(merged bool) ([]types.IndexingRule, error) {
	return o.store.IndexingRules(o.networkIdentifier, merged)
}

// FetchActions returns queued operator-management actions for this network
// in the given status.
func (o *Operator) FetchActions(status store.ActionStatus) ([]store.Action, error) {
	return o.store.FetchActions(o.networkIdentifier, status)
}

// HasApprovedActions reports whether this network has any action awaiting
// execution in the APPROVED status, per the scheduler's "defer reconciler
// for this network" gate (spec §4.10 step 4).
func (o *Operator) HasApprovedActions() (bool, error) {
	actions, err := o.FetchActions(store.ActionApproved)
	if err != nil {
		return false, err
	}
	return len(actions) > 0, nil
}

// createAllocation, closeEligibleAllocations, and refreshExpiredAllocations
// are implemented in internal/reconciler rather than here: they need the
// contracts.Staking write surface and the ephemeral-key derivation in
// internal/keys, neither of which the Operator otherwise depends on. The
// Operator stays table-backed bookkeeping only (rules, actions); the
// reconciler composes it with contracts.Staking for the on-chain writes.
