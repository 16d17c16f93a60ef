package rules

import (
	"time"

	"indexer-agent/internal/types"
)

// previousVersionBuffer is the grace window during deployment rollover:
// ~100 epochs at 15s/block (epochLength * 15 * 100), per spec §4.7.
func previousVersionBuffer(epochLength time.Duration) time.Duration {
	return epochLength * 15 * 100
}

// SubgraphLookup resolves a SUBGRAPH rule's identifier to the protocol-level
// subgraph it names; a miss means the subgraph no longer exists, and the
// rule is left untouched (it will simply match nothing).
type SubgraphLookup func(subgraphID string) (types.SubgraphID, bool)

// RewriteRules converts SUBGRAPH-typed rules to DEPLOYMENT-typed rules
// pointing at the subgraph's latest published version, per spec §4.7.
// During a deployment rollover it additionally emits a duplicate rule for
// the previous version's deployment, carrying the same economics, so
// traffic isn't dropped mid-migration. now is the reference time used to
// decide whether the latest version is still within the rollover grace
// window.
func RewriteRules(allRules []types.IndexingRule, lookup SubgraphLookup, epochLength time.Duration, now time.Time) []types.IndexingRule {
	buffer := previousVersionBuffer(epochLength)

	// existingDeployment tracks which deployment ids already have a native
	// DEPLOYMENT rule, so a rewrite never shadows one (spec §4.7: "If no
	// DEPLOYMENT rule exists yet for that version's deployment, convert the
	// rule").
	existingDeployment := map[[32]byte]bool{}
	for _, r := range allRules {
		if r.IdentifierType == types.IdentifierTypeDeployment {
			if id, err := types.NewDeploymentID(r.Identifier); err == nil {
				existingDeployment[id.Bytes32()] = true
			}
		}
	}

	out := make([]types.IndexingRule, 0, len(allRules))
	for _, r := range allRules {
		if r.IdentifierType != types.IdentifierTypeSubgraph {
			out = append(out, r)
			continue
		}

		subgraph, ok := lookup(r.Identifier)
		if !ok {
			// Rule for a nonexistent subgraph: left untouched, matches
			// nothing.
			out = append(out, r)
			continue
		}

		latest, ok := subgraph.LatestVersion()
		if !ok {
			out = append(out, r)
			continue
		}

		if !existingDeployment[latest.Deployment.Bytes32()] {
			rewritten := r
			rewritten.Identifier = latest.Deployment.Hex()
			rewritten.IdentifierType = types.IdentifierTypeDeployment
			out = append(out, rewritten)
			existingDeployment[latest.Deployment.Bytes32()] = true
		} else {
			// A native DEPLOYMENT rule already claims this deployment;
			// drop the now-redundant SUBGRAPH rule rather than shadow it.
		}

		if now.Sub(latest.CreatedAt) < buffer {
			if previous, ok := subgraph.PreviousVersion(); ok && !existingDeployment[previous.Deployment.Bytes32()] {
				duplicate := r
				duplicate.Identifier = previous.Deployment.Hex()
				duplicate.IdentifierType = types.IdentifierTypeDeployment
				out = append(out, duplicate)
				existingDeployment[previous.Deployment.Bytes32()] = true
			}
		}
	}

	return out
}
