package reconciler

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"indexer-agent/internal/collector"
	"indexer-agent/internal/contracts"
	"indexer-agent/internal/errs"
	"indexer-agent/internal/graphnode"
	"indexer-agent/internal/keys"
	"indexer-agent/internal/logger"
	"indexer-agent/internal/types"
)

// AllocationReconciler consumes AllocationDecisions for a single network and
// drives the staking contract's allocation set toward them. It is the
// hardest component in the engine (spec §4.7): opening, refreshing, and
// closing allocations, subject to capacity limits, management mode, and
// L1->L2 migration.
type AllocationReconciler struct {
	networkIdentifier string
	staking           contracts.Staking
	epochManager      contracts.EpochManager
	graphNode         graphnode.Client
	collector         collector.Notifier
	log               logger.Logger

	indexer  common.Address
	mnemonic string
	gasPriceMax *big.Int
}

// Config names the dependencies an AllocationReconciler is built from.
type Config struct {
	NetworkIdentifier string
	Staking           contracts.Staking
	EpochManager      contracts.EpochManager
	GraphNode         graphnode.Client
	Collector         collector.Notifier
	Indexer           common.Address
	Mnemonic          string
	GasPriceMax       *big.Int
}

// New builds an AllocationReconciler for a single network.
func New(cfg Config, log logger.Logger) *AllocationReconciler {
	return &AllocationReconciler{
		networkIdentifier: cfg.NetworkIdentifier,
		staking:           cfg.Staking,
		epochManager:      cfg.EpochManager,
		graphNode:         cfg.GraphNode,
		collector:         cfg.Collector,
		log:               log,
		indexer:           cfg.Indexer,
		mnemonic:          cfg.Mnemonic,
		gasPriceMax:       cfg.GasPriceMax,
	}
}

// Options carries the per-network policy knobs the reconciler needs beyond
// the decision and allocation lists themselves.
type Options struct {
	Mode                      types.AllocationManagementMode
	Epoch                     uint64
	MaxAllocationEpochs       uint64
	NetworkSubgraphDeployment *types.SubgraphDeploymentID
	AllocateOnNetworkSubgraph bool
	AutoMigrationSupport      bool
	TransferredToL2           map[[32]byte]bool
	StartedTransferToL2       map[[32]byte]bool
}

// refetchActive is called immediately before acting, to close the race
// window between the cached eventual and on-chain truth (spec §4.7).
type refetchActive func(ctx context.Context) ([]types.Allocation, error)

// Reconcile drives one AllocationDecision per deployment toward its target
// state. In manual management mode it returns at once without reading or
// writing anything. The "pending APPROVED actions" gate is applied by the
// caller (the Scheduler), which skips this call entirely for a network with
// approved actions pending.
func (r *AllocationReconciler) Reconcile(ctx context.Context, decisions []types.AllocationDecision, opts Options, refetch refetchActive) error {
	if opts.Mode == types.AllocationManagementManual {
		return nil
	}

	active, err := refetch(ctx)
	if err != nil {
		return errs.New(errs.KindUpstreamUnavailable, errs.CodeUpstreamNetworkSubgraph, "allocation.Reconcile", err)
	}
	byDeployment := groupByDeployment(active)

	capacity, err := r.staking.GetIndexerCapacity(ctx, r.indexer)
	if err != nil {
		return errs.New(errs.KindContractRead, errs.CodeContractRead, "allocation.Reconcile", err)
	}
	remaining := new(big.Int).Set(capacity)

	for _, decision := range decisions {
		decision := decision
		if opts.NetworkSubgraphDeployment != nil && decision.Deployment.Equal(*opts.NetworkSubgraphDeployment) && !opts.AllocateOnNetworkSubgraph {
			decision.ToAllocate = false
		}

		key := decision.Deployment.Bytes32()
		if opts.AutoMigrationSupport && opts.TransferredToL2[key] {
			// Never allocate on L1 to a deployment already migrated to L2.
			decision.ToAllocate = false
		}

		deploymentAllocations := byDeployment[key]

		if opts.AutoMigrationSupport && opts.StartedTransferToL2[key] {
			r.closeAll(ctx, deploymentAllocations, opts.Epoch)
			continue
		}

		if !decision.ToAllocate {
			r.closeAll(ctx, deploymentAllocations, opts.Epoch)
			continue
		}

		if len(deploymentAllocations) == 0 {
			r.openFirst(ctx, decision, remaining)
			continue
		}

		r.refreshExpiring(ctx, decision, deploymentAllocations, opts, remaining)
	}

	return nil
}

func groupByDeployment(allocations []types.Allocation) map[[32]byte][]types.Allocation {
	out := map[[32]byte][]types.Allocation{}
	for _, a := range allocations {
		key := a.SubgraphDeployment.Bytes32()
		out[key] = append(out[key], a)
	}
	return out
}

// closeAll closes every active allocation in the list with a POI requested
// from the graph node, skipping any that the contract no longer reports as
// Active.
func (r *AllocationReconciler) closeAll(ctx context.Context, allocations []types.Allocation, currentEpoch uint64) {
	for _, a := range allocations {
		if !a.IsActive() {
			continue
		}
		r.closeOne(ctx, a, currentEpoch)
	}
}

func (r *AllocationReconciler) closeOne(ctx context.Context, a types.Allocation, currentEpoch uint64) {
	state, err := r.staking.GetAllocationState(ctx, a.ID)
	if err != nil {
		r.log.Warningf("could not read allocation state for %s, skipping close this tick: %s", a.ID.Hex(), err.Error())
		return
	}
	if state != types.AllocationStateActive {
		return
	}

	poi := r.requestPOI(ctx, a, currentEpoch)

	opts := contracts.TxOpts{From: r.indexer, GasPriceMax: r.gasPriceMax}
	if _, err := r.staking.CloseAllocation(ctx, opts, a.ID, poi); err != nil {
		r.log.Warningf("failed to close allocation %s, will retry next tick: %s", a.ID.Hex(), err.Error())
		return
	}

	r.collector.NotifyAllocationClosed(a, poi)
}

// requestPOI asks the graph node for the proof of indexing at currentEpoch's
// start block, defaulting to 32 zero bytes if the start block or the POI
// itself is unavailable (spec §4.7).
func (r *AllocationReconciler) requestPOI(ctx context.Context, a types.Allocation, currentEpoch uint64) [32]byte {
	blockHash, blockNumber, err := r.epochManager.EpochStartBlockHash(ctx, currentEpoch)
	if err != nil {
		r.log.Warningf("could not read epoch %d start block, closing %s with a zero POI: %s", currentEpoch, a.ID.Hex(), err.Error())
		return types.ZeroPOI
	}

	poi, err := r.graphNode.ProofOfIndexing(ctx, a.SubgraphDeployment, blockHash, blockNumber, r.indexer)
	if err != nil || poi == nil {
		return types.ZeroPOI
	}
	return *poi
}

// openFirst opens parallelAllocations new allocations for a deployment with
// no current active allocation, threading the growing list of newly-opened
// ids through each derivation so they're guaranteed unique (spec §4.8).
func (r *AllocationReconciler) openFirst(ctx context.Context, decision types.AllocationDecision, remaining *big.Int) {
	rule := decision.RuleMatch.Rule
	if rule == nil || rule.AllocationAmount == nil || rule.AllocationAmount.Sign() == 0 {
		return
	}

	parallel := rule.ParallelAllocations

	var opened []common.Address
	for i := 0; i < parallel; i++ {
		if remaining.Cmp(rule.AllocationAmount) < 0 {
			r.log.Warningf("skipping allocation open for %s: insufficient free capacity", decision.Deployment.IPFSHash())
			return
		}
		if r.open(ctx, decision.Deployment, rule.AllocationAmount, opened) {
			remaining.Sub(remaining, rule.AllocationAmount)
		}
	}
}

// open derives a collision-free allocation key, verifies the derived id is
// still Null on chain, and submits the open transaction with its proof of
// control.
func (r *AllocationReconciler) open(ctx context.Context, deployment types.SubgraphDeploymentID, tokens *big.Int, existingOpened []common.Address) bool {
	epoch, err := r.staking.CurrentEpoch(ctx)
	if err != nil {
		r.log.Warningf("could not read current epoch, skipping allocation open for %s: %s", deployment.IPFSHash(), err.Error())
		return false
	}

	const maxDerivationAttempts = 8
	for attempt := 0; attempt < maxDerivationAttempts; attempt++ {
		key, err := keys.Derive(r.mnemonic, epoch, deployment, existingOpened)
		if err != nil {
			r.log.Warningf("could not derive allocation key for %s: %s", deployment.IPFSHash(), err.Error())
			return false
		}

		state, err := r.staking.GetAllocationState(ctx, key.Address)
		if err != nil {
			r.log.Warningf("could not verify derived allocation id %s is unused: %s", key.Address.Hex(), err.Error())
			return false
		}
		if state != types.AllocationStateNull {
			existingOpened = append(existingOpened, key.Address)
			continue
		}

		proof, err := keys.ProofOfControl(key, r.indexer)
		if err != nil {
			r.log.Warningf("could not sign proof of control for %s: %s", deployment.IPFSHash(), err.Error())
			return false
		}

		opts := contracts.TxOpts{From: r.indexer, GasPriceMax: r.gasPriceMax}
		if _, err := r.staking.AllocateFrom(ctx, opts, r.indexer, deployment, tokens, key.Address, proof); err != nil {
			r.log.Warningf("failed to open allocation for %s, will retry next tick: %s", deployment.IPFSHash(), err.Error())
			return false
		}

		r.collector.NotifyAllocationOpened(types.Allocation{
			ID: key.Address, Indexer: r.indexer, SubgraphDeployment: deployment,
			AllocatedTokens: tokens, CreatedAtEpoch: epoch,
		})
		return true
	}

	r.log.Warningf("exhausted %d allocation id collisions for %s, skipping this tick", maxDerivationAttempts, deployment.IPFSHash())
	return false
}

// refreshExpiring identifies allocations whose desired lifetime has elapsed
// and closes (with optional reopen) each one.
func (r *AllocationReconciler) refreshExpiring(ctx context.Context, decision types.AllocationDecision, allocations []types.Allocation, opts Options, remaining *big.Int) {
	rule := decision.RuleMatch.Rule
	if rule == nil {
		return
	}

	desiredLifetime := uint64(1)
	if opts.MaxAllocationEpochs > 1 {
		desiredLifetime = opts.MaxAllocationEpochs - 1
	}
	if rule.AllocationLifetime != nil {
		desiredLifetime = *rule.AllocationLifetime
	}

	var opened []common.Address
	for _, a := range allocations {
		if !a.IsActive() {
			continue
		}
		opened = append(opened, a.ID)

		if opts.Epoch < a.CreatedAtEpoch+desiredLifetime {
			continue
		}

		if !r.needsClosing(ctx, a) {
			continue
		}

		r.closeOne(ctx, a, opts.Epoch)

		if rule.AutoRenewal && rule.AllocationAmount != nil && rule.AllocationAmount.Sign() != 0 {
			if remaining.Cmp(rule.AllocationAmount) < 0 {
				r.log.Warningf("skipping allocation renewal for %s: insufficient free capacity", decision.Deployment.IPFSHash())
				continue
			}
			if r.open(ctx, decision.Deployment, rule.AllocationAmount, opened) {
				remaining.Sub(remaining, rule.AllocationAmount)
			}
		}
	}
}

// needsClosing cross-checks a candidate expiring allocation against the
// on-chain record; a contract-read failure assumes it needs closing (spec
// §4.7).
func (r *AllocationReconciler) needsClosing(ctx context.Context, a types.Allocation) bool {
	onChain, err := r.staking.GetAllocation(ctx, a.ID)
	if err != nil {
		return true
	}
	return onChain.ClosedAtEpoch == 0
}
