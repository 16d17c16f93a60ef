// Package rules implements the Rule Evaluator: a pure function from
// (indexing rules, on-chain deployments) to one AllocationDecision per
// deployment, plus the subgraph->deployment rule rewrite that feeds it. No
// I/O; deterministic given its inputs, grounded on the teacher's
// validator.go pattern of small, pure, single-purpose check functions
// composed by a caller that owns all the I/O.
package rules

import (
	"math/big"

	"indexer-agent/internal/types"
)

// Deployment is the subset of on-chain deployment data the evaluator needs:
// enough to check thresholds and chain support, independent of how it was
// fetched.
type Deployment struct {
	ID              types.SubgraphDeploymentID
	Chain           string
	StakedTokens    *big.Int
	SignalAmount    *big.Int
	QueryFeesAmount *big.Int
	AllocationCount int
}

// Evaluate returns one AllocationDecision per deployment, matching rules by
// the precedence in spec §4.4: an exact DEPLOYMENT rule first (which, once
// rewriteRules has run, also covers SUBGRAPH rules rewritten to point at
// their latest deployment — rewrite only converts a SUBGRAPH rule when no
// native DEPLOYMENT rule already claims that deployment, so the two tiers
// never collide), then the global rule, else no match.
func Evaluate(allRules []types.IndexingRule, deployments []Deployment, supportedChains map[string]bool) []types.AllocationDecision {
	byDeployment, global := indexRules(allRules)

	decisions := make([]types.AllocationDecision, 0, len(deployments))
	for _, d := range deployments {
		decisions = append(decisions, evaluateOne(d, byDeployment, global, supportedChains))
	}
	return decisions
}

// indexRules partitions rules into exact-match DEPLOYMENT rules keyed by
// deployment id and the single global rule, if any. Callers must run
// rewriteRules first so SUBGRAPH rules already appear here as DEPLOYMENT
// rules.
func indexRules(allRules []types.IndexingRule) (byDeployment map[[32]byte]types.IndexingRule, global *types.IndexingRule) {
	byDeployment = make(map[[32]byte]types.IndexingRule)

	for _, r := range allRules {
		switch {
		case r.IsGlobal():
			g := r
			global = &g
		case r.IdentifierType == types.IdentifierTypeDeployment:
			id, err := types.NewDeploymentID(r.Identifier)
			if err != nil {
				continue
			}
			byDeployment[id.Bytes32()] = r
		}
	}
	return byDeployment, global
}

func evaluateOne(d Deployment, byDeployment map[[32]byte]types.IndexingRule, global *types.IndexingRule, supportedChains map[string]bool) types.AllocationDecision {
	key := d.ID.Bytes32()

	var rule types.IndexingRule
	var reason string
	matched := false

	if r, ok := byDeployment[key]; ok {
		rule, reason, matched = r, "matched deployment rule", true
	} else if global != nil {
		rule, reason, matched = *global, "matched global rule", true
	}

	if !matched {
		return types.AllocationDecision{
			Deployment: d.ID,
			ToAllocate: false,
			RuleMatch:  types.RuleMatch{Reason: "no matching rule"},
		}
	}

	decision := types.AllocationDecision{
		Deployment: d.ID,
		RuleMatch:  types.RuleMatch{Rule: &rule, Reason: reason},
	}

	switch rule.DecisionBasis {
	case types.DecisionBasisAlways:
		decision.ToAllocate = true
	case types.DecisionBasisNever:
		decision.ToAllocate = false
	case types.DecisionBasisOffchain:
		// Offchain deployments are routed to the Target Deployment Solver's
		// offchain set, not onto on-chain allocations (spec §4.5 point 3).
		decision.ToAllocate = false
	default:
		decision.ToAllocate = meetsThresholds(rule, d)
	}

	if decision.ToAllocate && rule.RequireSupported && !supportedChains[d.Chain] {
		decision.ToAllocate = false
		decision.RuleMatch.Reason = reason + " (forced false: unsupported chain " + d.Chain + ")"
	}

	return decision
}

// meetsThresholds evaluates the short-circuit OR of economic thresholds
// under DecisionBasisRules. A missing threshold (nil) is ignored.
func meetsThresholds(rule types.IndexingRule, d Deployment) bool {
	if rule.AllocationAmount == nil || rule.AllocationAmount.Sign() == 0 {
		return false
	}

	if rule.MinStake != nil && d.StakedTokens != nil && d.StakedTokens.Cmp(rule.MinStake) >= 0 {
		return true
	}

	if d.SignalAmount != nil {
		aboveMin := rule.MinSignal == nil || d.SignalAmount.Cmp(rule.MinSignal) >= 0
		belowMax := rule.MaxSignal == nil || d.SignalAmount.Cmp(rule.MaxSignal) <= 0
		if (rule.MinSignal != nil || rule.MaxSignal != nil) && aboveMin && belowMax {
			return true
		}
	}

	if rule.MinAverageQueryFees != nil && d.QueryFeesAmount != nil {
		count := d.AllocationCount
		if count < 1 {
			count = 1
		}
		average := new(big.Int).Div(d.QueryFeesAmount, big.NewInt(int64(count)))
		if average.Cmp(rule.MinAverageQueryFees) >= 0 {
			return true
		}
	}

	return false
}
