// Package reconciler implements the Target Deployment Solver, Deployment
// Reconciler, Allocation Reconciler, and the claim-rewards path: the
// components that turn AllocationDecisions into graph-node and on-chain
// mutations, grounded on the teacher's trx_flow.go periodic-reconciliation
// shape (compute a target, diff against current state, drive the
// difference) generalized from a single ticker to the network-scoped
// reconcile calls the Scheduler invokes per tick.
package reconciler

import "indexer-agent/internal/types"

// Target computes the union of deployments the graph node must sync,
// deduplicated by 32-byte deployment id, per spec §4.5:
//  1. every AllocationDecision.Deployment with ToAllocate=true, across all
//     networks;
//  2. each network's own network-subgraph deployment (always indexed);
//  3. every OFFCHAIN-basis rule's identifier, treated as a deployment id;
//  4. the CLI-supplied offchainSubgraphs list.
func Target(decisionsByNetwork map[string][]types.AllocationDecision, networkSubgraphDeployments map[string]types.SubgraphDeploymentID, offchainRules map[string][]types.IndexingRule, offchainSubgraphs []types.SubgraphDeploymentID) []types.SubgraphDeploymentID {
	seen := map[[32]byte]bool{}
	var out []types.SubgraphDeploymentID

	add := func(id types.SubgraphDeploymentID) {
		key := id.Bytes32()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, id)
	}

	for _, decisions := range decisionsByNetwork {
		for _, d := range decisions {
			if d.ToAllocate {
				add(d.Deployment)
			}
		}
	}

	for _, id := range networkSubgraphDeployments {
		add(id)
	}

	for _, rules := range offchainRules {
		for _, r := range rules {
			if r.DecisionBasis != types.DecisionBasisOffchain {
				continue
			}
			if id, err := types.NewDeploymentID(r.Identifier); err == nil {
				add(id)
			}
		}
	}

	for _, id := range offchainSubgraphs {
		add(id)
	}

	return out
}
