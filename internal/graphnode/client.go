// Package graphnode models the graph node's admin JSON-RPC and status
// GraphQL surface as a typed Go interface. The wire-level transport is a
// boundary concern (spec §1); this package only defines the call shape the
// Deployment Reconciler, Allocation Reconciler, and POI Dispute Monitor are
// written against.
package graphnode

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"indexer-agent/internal/types"
)

// Client is the graph node surface the reconciliation engine depends on.
type Client interface {
	// CreateSubgraphName idempotently creates a subgraph name entry.
	CreateSubgraphName(ctx context.Context, name string) error

	// Deploy deploys a deployment under the given subgraph name.
	Deploy(ctx context.Context, name string, deployment types.SubgraphDeploymentID) error

	// Reassign moves a deployment to the given index node id. The sentinel
	// node id "removed" detaches it from active serving.
	Reassign(ctx context.Context, deployment types.SubgraphDeploymentID, nodeID string) error

	// IndexNodeDeployments lists index-node ids and the deployments
	// currently assigned to each, used for round-robin/least-loaded node
	// selection.
	IndexNodeDeployments(ctx context.Context) (map[string][]types.SubgraphDeploymentID, error)

	// LocalDeployments lists every deployment currently active on this
	// graph node (any node id other than "removed").
	LocalDeployments(ctx context.Context) ([]types.SubgraphDeploymentID, error)

	// ProofOfIndexing asks the graph node for the POI of a deployment at a
	// given block, for the given indexer address (the reference POI
	// computation may be requested on behalf of another indexer, per the
	// POI Dispute Monitor).
	ProofOfIndexing(ctx context.Context, deployment types.SubgraphDeploymentID, blockHash common.Hash, blockNumber uint64, indexer common.Address) (*[32]byte, error)
}

// RemovedNodeID is the sentinel index-node id the Deployment Reconciler
// reassigns deployments to when removing them from active serving.
const RemovedNodeID = "removed"

// NamePrefix names deployments as "indexer-agent/<last 10 chars of ipfsHash>".
func NamePrefix(deployment types.SubgraphDeploymentID) string {
	hash := deployment.IPFSHash()
	if len(hash) > 10 {
		hash = hash[len(hash)-10:]
	}
	return "indexer-agent/" + hash
}
