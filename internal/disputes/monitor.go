// Package disputes implements the POI Dispute Monitor: on every tick it
// diffs newly closed allocations against already-processed disputes and
// computes a status for each by comparing against reference proofs of
// indexing fetched from the graph node, grounded on the same
// diff-against-persisted-state shape as the teacher's trx_flow.go periodic
// updater.
package disputes

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"indexer-agent/internal/contracts"
	"indexer-agent/internal/graphnode"
	"indexer-agent/internal/logger"
	"indexer-agent/internal/store"
	"indexer-agent/internal/types"
)

// Monitor computes and persists POI disputes for one network.
type Monitor struct {
	networkIdentifier string
	epochManager      contracts.EpochManager
	graphNode         graphnode.Client
	store             *store.Store
	log               logger.Logger

	poiDisputableEpochs int
}

// Config names the dependencies a Monitor is built from.
type Config struct {
	NetworkIdentifier   string
	EpochManager        contracts.EpochManager
	GraphNode           graphnode.Client
	Store               *store.Store
	POIDisputableEpochs int
}

// New builds a Monitor for a single network.
func New(cfg Config, log logger.Logger) *Monitor {
	return &Monitor{
		networkIdentifier:   cfg.NetworkIdentifier,
		epochManager:        cfg.EpochManager,
		graphNode:           cfg.GraphNode,
		store:               cfg.Store,
		log:                 log,
		poiDisputableEpochs: cfg.POIDisputableEpochs,
	}
}

// rewardsPool groups disputable allocations sharing a (deployment,
// closedAtEpoch) pair, which share a single reference POI computation.
type rewardsPool struct {
	deployment    types.SubgraphDeploymentID
	closedAtEpoch uint64
	allocations   []types.Allocation
}

// Run fetches disputable allocations (closed, nonzero POI, within
// poiDisputableEpochs of the current epoch), diffs against already-known
// disputes by allocation id, computes a status for each newly observed one,
// and persists all of them in a single transaction.
func (m *Monitor) Run(ctx context.Context, currentEpoch uint64, closedAllocations []types.Allocation) error {
	known, err := m.store.POIDisputes()
	if err != nil {
		return err
	}
	seen := make(map[common.Address]bool, len(known))
	for _, d := range known {
		seen[d.AllocationID] = true
	}

	var disputable []types.Allocation
	for _, a := range closedAllocations {
		if a.POI == types.ZeroPOI {
			continue
		}
		if currentEpoch > uint64(m.poiDisputableEpochs) && a.ClosedAtEpoch < currentEpoch-uint64(m.poiDisputableEpochs) {
			continue
		}
		if seen[a.ID] {
			continue
		}
		disputable = append(disputable, a)
	}

	if len(disputable) == 0 {
		return nil
	}

	pools := groupIntoPools(disputable)

	var newDisputes []types.POIDispute
	for _, pool := range pools {
		d, err := m.disputesForPool(ctx, pool)
		if err != nil {
			m.log.Warningf("failed to compute reference POI for deployment %s epoch %d: %s",
				pool.deployment.IPFSHash(), pool.closedAtEpoch, err.Error())
			continue
		}
		newDisputes = append(newDisputes, d...)
	}

	if len(newDisputes) == 0 {
		return nil
	}

	_, err = m.store.StorePOIDisputes(newDisputes)
	return err
}

func groupIntoPools(allocations []types.Allocation) []rewardsPool {
	byKey := map[[32 + 8]byte]*rewardsPool{}
	var order [][32 + 8]byte

	for _, a := range allocations {
		var key [32 + 8]byte
		b32 := a.SubgraphDeployment.Bytes32()
		copy(key[:32], b32[:])
		for i := 0; i < 8; i++ {
			key[32+i] = byte(a.ClosedAtEpoch >> (8 * (7 - i)))
		}

		p, ok := byKey[key]
		if !ok {
			p = &rewardsPool{deployment: a.SubgraphDeployment, closedAtEpoch: a.ClosedAtEpoch}
			byKey[key] = p
			order = append(order, key)
		}
		p.allocations = append(p.allocations, a)
	}

	pools := make([]rewardsPool, 0, len(order))
	for _, key := range order {
		pools = append(pools, *byKey[key])
	}
	return pools
}

// disputesForPool computes the reference POIs for one (deployment,
// closedAtEpoch) pool and classifies every allocation in it.
func (m *Monitor) disputesForPool(ctx context.Context, pool rewardsPool) ([]types.POIDispute, error) {
	closedBlockHash, closedBlockNumber, err := m.epochManager.EpochStartBlockHash(ctx, pool.closedAtEpoch)
	if err != nil {
		return nil, err
	}

	var previousBlockHash common.Hash
	var previousBlockNumber uint64
	var previousErr error
	if pool.closedAtEpoch > 0 {
		previousBlockHash, previousBlockNumber, previousErr = m.epochManager.EpochStartBlockHash(ctx, pool.closedAtEpoch-1)
	} else {
		previousErr = errNoPreviousEpoch
	}

	disputes := make([]types.POIDispute, 0, len(pool.allocations))
	for _, a := range pool.allocations {
		// Reference POIs are requested for the allocation's own indexer,
		// not this indexer - the monitor is checking whether that indexer's
		// submitted POI matches what the local graph node would have
		// computed for the same deployment/indexer/block.
		referencePOI, refErr := m.graphNode.ProofOfIndexing(ctx, pool.deployment, closedBlockHash, closedBlockNumber, a.Indexer)

		var previousReferencePOI *[32]byte
		var prevRefErr error = previousErr
		if previousErr == nil {
			previousReferencePOI, prevRefErr = m.graphNode.ProofOfIndexing(ctx, pool.deployment, previousBlockHash, previousBlockNumber, a.Indexer)
		}

		disputes = append(disputes, buildDispute(a, pool, closedBlockHash, closedBlockNumber, previousBlockHash, previousBlockNumber,
			referencePOI, refErr, previousReferencePOI, prevRefErr))
	}

	return disputes, nil
}

var errNoPreviousEpoch = errors.New("no epoch before the first epoch")

func buildDispute(a types.Allocation, pool rewardsPool, closedHash common.Hash, closedNumber uint64, previousHash common.Hash, previousNumber uint64,
	referencePOI *[32]byte, refErr error, previousReferencePOI *[32]byte, prevRefErr error) types.POIDispute {

	d := types.POIDispute{
		AllocationID:                 a.ID,
		SubgraphDeploymentID:         pool.deployment,
		AllocationIndexer:            a.Indexer,
		AllocationAmount:             a.AllocatedTokens,
		AllocationProof:              a.POI,
		ClosedEpoch:                  pool.closedAtEpoch,
		ClosedEpochStartBlockHash:    closedHash,
		ClosedEpochStartBlockNumber:  closedNumber,
		ClosedEpochReferenceProof:    referencePOI,
		PreviousEpochStartBlockHash:  previousHash,
		PreviousEpochStartBlockNumber: previousNumber,
		PreviousEpochReferenceProof:  previousReferencePOI,
	}

	switch {
	case referencePOI != nil && *referencePOI == a.POI:
		d.Status = types.DisputeStatusValid
	case previousReferencePOI != nil && *previousReferencePOI == a.POI:
		d.Status = types.DisputeStatusValid
	case refErr != nil || prevRefErr != nil || referencePOI == nil || previousReferencePOI == nil:
		d.Status = types.DisputeStatusReferenceUnavailable
	default:
		d.Status = types.DisputeStatusPotential
	}

	return d
}
