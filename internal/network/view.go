package network

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"indexer-agent/internal/contracts"
	"indexer-agent/internal/errs"
	"indexer-agent/internal/eventual"
	"indexer-agent/internal/graphnode"
	"indexer-agent/internal/logger"
	"indexer-agent/internal/store"
	"indexer-agent/internal/subgraphclient"
	"indexer-agent/internal/types"
)

// Refresh intervals per accessor kind, fixed per spec §4.2.
const (
	epochInterval             = 600 * time.Second
	pauseInterval             = 60 * time.Second
	operatorInterval          = 60 * time.Second
	rulesInterval             = 20 * time.Second
	activeAllocationsInterval = 120 * time.Second
	closedAllocationsInterval = 120 * time.Second
	networkDeploymentsInterval = 240 * time.Second
	localDeploymentsInterval  = 60 * time.Second
	subgraphsInterval         = 240 * time.Second
	epochLengthInterval       = 600 * time.Second
)

// View is the per-network read-only projection over the network subgraph,
// the staking contract surface, and the graph node, memoized as eventuals
// with independent refresh intervals.
type View struct {
	networkIdentifier string
	log               logger.Logger

	networkClient *subgraphclient.Client
	epochClient   *subgraphclient.Client
	staking       contracts.Staking
	controller    contracts.Controller
	epochManager  contracts.EpochManager
	graphNode     graphnode.Client
	store         *store.Store

	indexer  common.Address
	operator common.Address

	epoch               *eventual.Eventual[uint64]
	maxAllocationEpochs  *eventual.Eventual[uint64]
	paused               *eventual.Eventual[bool]
	isOperator           *eventual.Eventual[bool]
	indexingRules        *eventual.Eventual[[]types.IndexingRule]
	activeAllocations    *eventual.Eventual[[]types.Allocation]
	closedAllocations    *eventual.Eventual[[]types.Allocation]
	claimableAllocations *eventual.Eventual[[]types.Allocation]
	networkDeployments   *eventual.Eventual[[]subgraphclient.NetworkDeployment]
	localDeployments     *eventual.Eventual[[]types.SubgraphDeploymentID]
	subgraphs            *eventual.Eventual[[]types.SubgraphID]
	epochLength          *eventual.Eventual[uint64]
}

// ViewConfig names the dependencies a View is built from.
type ViewConfig struct {
	NetworkIdentifier string
	NetworkClient     *subgraphclient.Client
	EpochClient       *subgraphclient.Client
	Staking           contracts.Staking
	Controller        contracts.Controller
	EpochManager      contracts.EpochManager
	GraphNode         graphnode.Client
	Store             *store.Store
	Indexer           common.Address
	Operator          common.Address
}

// NewView starts every eventual's background refresh loop and returns the
// View immediately; accessors block on first read until their eventual has
// produced a value.
func NewView(ctx context.Context, cfg ViewConfig, log logger.Logger) *View {
	v := &View{
		networkIdentifier: cfg.NetworkIdentifier,
		log:               log,
		networkClient:     cfg.NetworkClient,
		epochClient:       cfg.EpochClient,
		staking:           cfg.Staking,
		controller:        cfg.Controller,
		epochManager:      cfg.EpochManager,
		graphNode:         cfg.GraphNode,
		store:             cfg.Store,
		indexer:           cfg.Indexer,
		operator:          cfg.Operator,
	}

	v.epoch = eventual.Timer(ctx, epochInterval, log, func(ctx context.Context) (uint64, error) {
		return v.staking.CurrentEpoch(ctx)
	})
	v.maxAllocationEpochs = eventual.Timer(ctx, epochInterval, log, func(ctx context.Context) (uint64, error) {
		return v.staking.MaxAllocationEpochs(ctx)
	})
	v.paused = eventual.Timer(ctx, pauseInterval, log, v.fetchPaused)
	v.isOperator = eventual.Timer(ctx, operatorInterval, log, v.fetchIsOperator)
	v.indexingRules = eventual.Timer(ctx, rulesInterval, log, func(ctx context.Context) ([]types.IndexingRule, error) {
		return v.store.IndexingRules(v.networkIdentifier, true)
	})
	v.activeAllocations = eventual.Timer(ctx, activeAllocationsInterval, log, func(ctx context.Context) ([]types.Allocation, error) {
		return v.networkClient.Allocations(ctx, v.indexer, subgraphclient.AllocationStatusActive)
	})
	v.closedAllocations = eventual.Timer(ctx, closedAllocationsInterval, log, func(ctx context.Context) ([]types.Allocation, error) {
		return v.networkClient.Allocations(ctx, v.indexer, subgraphclient.AllocationStatusClosed)
	})
	v.claimableAllocations = eventual.Timer(ctx, closedAllocationsInterval, log, func(ctx context.Context) ([]types.Allocation, error) {
		return v.networkClient.Allocations(ctx, v.indexer, subgraphclient.AllocationStatusClosed)
	})
	v.networkDeployments = eventual.Timer(ctx, networkDeploymentsInterval, log, func(ctx context.Context) ([]subgraphclient.NetworkDeployment, error) {
		return v.networkClient.NetworkDeployments(ctx)
	})
	v.localDeployments = eventual.Timer(ctx, localDeploymentsInterval, log, func(ctx context.Context) ([]types.SubgraphDeploymentID, error) {
		return v.graphNode.LocalDeployments(ctx)
	})
	v.subgraphs = eventual.Timer(ctx, subgraphsInterval, log, func(ctx context.Context) ([]types.SubgraphID, error) {
		return v.networkClient.Subgraphs(ctx)
	})
	v.epochLength = eventual.Timer(ctx, epochLengthInterval, log, func(ctx context.Context) (uint64, error) {
		return v.epochManager.EpochLength(ctx)
	})

	return v
}

// NetworkIdentifier returns the CAIP-2 identifier this view serves.
func (v *View) NetworkIdentifier() string { return v.networkIdentifier }

// fetchPaused implements the pause monitor: a one-shot GraphQL field read,
// falling back to the on-chain controller.paused() call when the network
// subgraph has not yet produced a value.
func (v *View) fetchPaused(ctx context.Context) (bool, error) {
	if _, ok := v.paused.Latest(); !ok {
		return v.controller.Paused(ctx)
	}
	paused, err := v.networkClient.IsPaused(ctx)
	if err != nil {
		return false, errs.New(errs.KindUpstreamUnavailable, errs.CodeUpstreamNetworkSubgraph, "view.fetchPaused", err)
	}
	return paused, nil
}

// fetchIsOperator implements the operator-authorization monitor: the
// indexer==operator identity is always authorized without an RPC call.
func (v *View) fetchIsOperator(ctx context.Context) (bool, error) {
	if v.operator == v.indexer {
		return true, nil
	}
	ok, err := v.staking.IsOperator(ctx, v.operator, v.indexer)
	if err != nil {
		return false, errs.New(errs.KindContractRead, errs.CodeContractRead, "view.fetchIsOperator", err)
	}
	return ok, nil
}

// Epoch returns the current epoch number.
func (v *View) Epoch(ctx context.Context) (uint64, error) { return v.epoch.Value(ctx) }

// MaxAllocationEpochs returns the configured maximum allocation lifetime.
func (v *View) MaxAllocationEpochs(ctx context.Context) (uint64, error) {
	return v.maxAllocationEpochs.Value(ctx)
}

// Paused returns the network pause flag.
func (v *View) Paused(ctx context.Context) (bool, error) { return v.paused.Value(ctx) }

// IsOperator returns the operator-authorization flag.
func (v *View) IsOperator(ctx context.Context) (bool, error) { return v.isOperator.Value(ctx) }

// IndexingRules returns the merged indexing rules.
func (v *View) IndexingRules(ctx context.Context) ([]types.IndexingRule, error) {
	return v.indexingRules.Value(ctx)
}

// ActiveAllocations returns this indexer's active allocations, from the
// memoized eventual.
func (v *View) ActiveAllocations(ctx context.Context) ([]types.Allocation, error) {
	return v.activeAllocations.Value(ctx)
}

// RefetchActiveAllocations bypasses the memoized eventual and reads active
// allocations directly from the network subgraph, to close the race window
// between the cached value and on-chain truth immediately before the
// Allocation Reconciler acts on it (spec §4.7).
func (v *View) RefetchActiveAllocations(ctx context.Context) ([]types.Allocation, error) {
	return v.networkClient.Allocations(ctx, v.indexer, subgraphclient.AllocationStatusActive)
}

// RecentlyClosedAllocations returns this indexer's closed allocations.
func (v *View) RecentlyClosedAllocations(ctx context.Context) ([]types.Allocation, error) {
	return v.closedAllocations.Value(ctx)
}

// ClaimableAllocations returns allocations eligible for reward collection.
func (v *View) ClaimableAllocations(ctx context.Context) ([]types.Allocation, error) {
	return v.claimableAllocations.Value(ctx)
}

// NetworkDeployments returns every published subgraph deployment.
func (v *View) NetworkDeployments(ctx context.Context) ([]subgraphclient.NetworkDeployment, error) {
	return v.networkDeployments.Value(ctx)
}

// LocalDeployments returns every deployment currently active on the graph
// node.
func (v *View) LocalDeployments(ctx context.Context) ([]types.SubgraphDeploymentID, error) {
	return v.localDeployments.Value(ctx)
}

// Subgraphs returns every versioned subgraph published on the network
// subgraph, for resolving SUBGRAPH-typed indexing rules to deployments.
func (v *View) Subgraphs(ctx context.Context) ([]types.SubgraphID, error) {
	return v.subgraphs.Value(ctx)
}

// EpochLength returns the epoch manager's configured epoch length in
// blocks.
func (v *View) EpochLength(ctx context.Context) (uint64, error) {
	return v.epochLength.Value(ctx)
}

// Ready reports whether every eventual required for a reconciliation tick
// has produced at least one value.
func (v *View) Ready() bool {
	return v.epoch.Ready() && v.maxAllocationEpochs.Ready() && v.paused.Ready() && v.isOperator.Ready() &&
		v.indexingRules.Ready() && v.activeAllocations.Ready() && v.closedAllocations.Ready() &&
		v.networkDeployments.Ready() && v.localDeployments.Ready() && v.subgraphs.Ready() && v.epochLength.Ready()
}

// Sources exposes every eventual as an eventual.Source, for joining into a
// Scheduler's Pipe.
func (v *View) Sources() []eventual.Source {
	return []eventual.Source{
		v.epoch, v.maxAllocationEpochs, v.paused, v.isOperator, v.indexingRules,
		v.activeAllocations, v.closedAllocations, v.networkDeployments, v.localDeployments,
		v.subgraphs, v.epochLength,
	}
}

// GraphNode exposes the underlying graph node client for components
// (Deployment Reconciler, Allocation Reconciler, POI Dispute Monitor) that
// need direct access beyond the memoized accessors above.
func (v *View) GraphNode() graphnode.Client { return v.graphNode }

// Staking exposes the underlying staking contract surface.
func (v *View) Staking() contracts.Staking { return v.staking }

// EpochManager exposes the underlying epoch manager contract surface.
func (v *View) EpochManager() contracts.EpochManager { return v.epochManager }

// Indexer returns the indexer address this view observes allocations for.
func (v *View) Indexer() common.Address { return v.indexer }
