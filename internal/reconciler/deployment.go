package reconciler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"indexer-agent/internal/graphnode"
	"indexer-agent/internal/logger"
	"indexer-agent/internal/types"
)

// maxConcurrentGraphNodeOps bounds the Deployment Reconciler's fan-out, per
// spec §4.6/§5.
const maxConcurrentGraphNodeOps = 10

// DeploymentReconciler drives the graph node's active-deployment set toward
// a target set.
type DeploymentReconciler struct {
	graphNode graphnode.Client
	log       logger.Logger
}

// NewDeploymentReconciler builds a DeploymentReconciler against a single
// network's graph node client.
func NewDeploymentReconciler(graphNode graphnode.Client, log logger.Logger) *DeploymentReconciler {
	return &DeploymentReconciler{graphNode: graphNode, log: log}
}

// Reconcile computes active \ (target ∪ eligible) for removal and
// target \ active for addition, and drives the graph node toward the target
// set with up to maxConcurrentGraphNodeOps operations in flight. A single
// failed operation logs a warning and is left for the next tick; it does
// not halt the batch or fail the call.
func (r *DeploymentReconciler) Reconcile(ctx context.Context, active, target, eligible []types.SubgraphDeploymentID) error {
	activeSet := toSet(active)
	targetSet := toSet(target)
	eligibleSet := toSet(eligible)

	var toAdd, toRemove []types.SubgraphDeploymentID
	for _, d := range target {
		if !activeSet[d.Bytes32()] {
			toAdd = append(toAdd, d)
		}
	}
	for _, d := range active {
		key := d.Bytes32()
		if !targetSet[key] && !eligibleSet[key] {
			toRemove = append(toRemove, d)
		}
	}

	sem := semaphore.NewWeighted(maxConcurrentGraphNodeOps)
	var wg sync.WaitGroup

	for _, d := range toAdd {
		d := d
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			if err := r.ensure(ctx, d); err != nil {
				r.log.Warningf("failed to add deployment %s, will retry next tick: %s", d.IPFSHash(), err.Error())
			}
		}()
	}

	for _, d := range toRemove {
		d := d
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			if err := r.graphNode.Reassign(ctx, d, graphnode.RemovedNodeID); err != nil {
				r.log.Warningf("failed to remove deployment %s, will retry next tick: %s", d.IPFSHash(), err.Error())
			}
		}()
	}

	wg.Wait()
	return nil
}

// ensure creates the subgraph name (idempotent), deploys, and reassigns to
// a chosen index node.
func (r *DeploymentReconciler) ensure(ctx context.Context, d types.SubgraphDeploymentID) error {
	name := graphnode.NamePrefix(d)

	if err := r.graphNode.CreateSubgraphName(ctx, name); err != nil {
		return err
	}
	if err := r.graphNode.Deploy(ctx, name, d); err != nil {
		return err
	}

	node, err := r.chooseNode(ctx)
	if err != nil {
		return err
	}
	return r.graphNode.Reassign(ctx, d, node)
}

// chooseNode picks a configured index node with no current deployments (the
// first one the map iteration reaches; there is no round-robin cursor),
// falling back to the node with the fewest current deployments once all
// are in use.
func (r *DeploymentReconciler) chooseNode(ctx context.Context) (string, error) {
	assignments, err := r.graphNode.IndexNodeDeployments(ctx)
	if err != nil {
		return "", err
	}

	var best string
	bestCount := -1
	for node, deployments := range assignments {
		if node == graphnode.RemovedNodeID {
			continue
		}
		if len(deployments) == 0 {
			return node, nil
		}
		if bestCount == -1 || len(deployments) < bestCount {
			best, bestCount = node, len(deployments)
		}
	}

	return best, nil
}

func toSet(ids []types.SubgraphDeploymentID) map[[32]byte]bool {
	set := make(map[[32]byte]bool, len(ids))
	for _, id := range ids {
		set[id.Bytes32()] = true
	}
	return set
}
