// Package scheduler implements the Reconciliation Scheduler: the top-level
// tick loop that gates, orders, and fans out one reconciliation pass per
// configured network, grounded on the teacher's trx_flow.go ticker-driven
// updater generalized from a single periodic task to the full multi-stage
// per-network pipeline described in spec §4.10.
package scheduler

import (
	"context"
	"math/big"
	"time"

	"indexer-agent/internal/disputes"
	"indexer-agent/internal/logger"
	"indexer-agent/internal/network"
	"indexer-agent/internal/reconciler"
	"indexer-agent/internal/rules"
	"indexer-agent/internal/subgraphclient"
	"indexer-agent/internal/types"
)

// DefaultInterval is the scheduler's default tick period (spec §4.10).
const DefaultInterval = 240 * time.Second

// NetworkUnit bundles everything the Scheduler needs to run one network's
// reconciliation pipeline per tick.
type NetworkUnit struct {
	NetworkIdentifier string
	View              *network.View
	Operator          *network.Operator
	DeploymentRecon   *reconciler.DeploymentReconciler
	AllocationRecon   *reconciler.AllocationReconciler
	RewardsClaimer    *reconciler.RewardsClaimer
	DisputeMonitor    *disputes.Monitor

	Mode                      types.AllocationManagementMode
	AllocateOnNetworkSubgraph bool
	AutoMigrationSupport      bool
	NetworkSubgraphDeployment types.SubgraphDeploymentID
	RebateBatchThreshold      *big.Int
	OffchainSubgraphs         []types.SubgraphDeploymentID
	SupportedChains           map[string]bool
}

// Scheduler runs the top-level reconciliation loop across every configured
// network.
type Scheduler struct {
	units    []NetworkUnit
	interval time.Duration
	log      logger.Logger

	running bool
}

// New builds a Scheduler over a fixed set of network units.
func New(units []NetworkUnit, interval time.Duration, log logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{units: units, interval: interval, log: log}
}

// Run drives ticks until ctx is cancelled. Ticks never overlap: if a tick is
// still in flight when the next would fire, the new one is skipped (spec
// §5's "at-most-one-in-flight per reconciliation instance").
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.tick(ctx)
	for {
		// Drop a tick that came due while the previous one was running.
		select {
		case <-t.C:
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.running {
		s.log.Warningf("skipping tick: previous tick still in flight")
		return
	}
	s.running = true
	defer func() { s.running = false }()

	// Networks run in parallel; on-chain transactions within a single
	// network are strictly serialized by tickNetwork's sequential body
	// (spec §5).
	done := make(chan struct{}, len(s.units))
	for _, unit := range s.units {
		unit := unit
		go func() {
			defer func() { done <- struct{}{} }()
			s.tickNetwork(ctx, unit)
		}()
	}
	for range s.units {
		<-done
	}
}

// tickNetwork runs one network's pipeline in this order: readiness, pause
// and operator gates → claim-rewards → dispute monitor → (stop here while
// APPROVED actions are pending) → rule rewrite and evaluation → deployment
// reconcile → allocation reconcile. Input refresh is implicit, via the
// View's own eventuals.
func (s *Scheduler) tickNetwork(ctx context.Context, u NetworkUnit) {
	log := s.log.With(logger.Fields{"network": u.NetworkIdentifier})

	if !u.View.Ready() {
		log.Infof("skipping tick: not all inputs have a value yet")
		return
	}

	paused, err := u.View.Paused(ctx)
	if err != nil {
		log.Warningf("could not read pause state: %s", err.Error())
		return
	}
	if paused {
		log.Infof("network is paused, skipping tick")
		return
	}

	isOperator, err := u.View.IsOperator(ctx)
	if err != nil {
		log.Warningf("could not read operator authorization: %s", err.Error())
		return
	}
	if !isOperator {
		log.Errorf("not authorized as operator for this indexer, skipping tick")
		return
	}

	approved, err := u.Operator.HasApprovedActions()
	if err != nil {
		log.Warningf("could not fetch pending actions: %s", err.Error())
	}

	claimable, err := u.View.ClaimableAllocations(ctx)
	if err != nil {
		log.Warningf("could not fetch claimable allocations: %s", err.Error())
	} else if err := u.RewardsClaimer.ClaimRewards(ctx, claimable, nil, u.RebateBatchThreshold); err != nil {
		log.Warningf("claim-rewards failed: %s", err.Error())
	}

	epoch, err := u.View.Epoch(ctx)
	if err != nil {
		log.Warningf("could not read current epoch, skipping dispute monitor and reconciliation: %s", err.Error())
		return
	}

	closed, err := u.View.RecentlyClosedAllocations(ctx)
	if err != nil {
		log.Warningf("could not fetch recently closed allocations: %s", err.Error())
	} else if err := u.DisputeMonitor.Run(ctx, epoch, closed); err != nil {
		log.Warningf("poi dispute monitor failed: %s", err.Error())
	}

	if approved {
		log.Infof("network has pending approved actions, skipping reconciliation this tick")
		return
	}

	indexingRules, err := u.Operator.IndexingRules(true)
	if err != nil {
		log.Warningf("could not fetch indexing rules, skipping reconciliation this tick: %s", err.Error())
		return
	}
	networkDeployments, err := u.View.NetworkDeployments(ctx)
	if err != nil {
		log.Warningf("could not fetch network deployments, skipping reconciliation this tick: %s", err.Error())
		return
	}
	subgraphs, err := u.View.Subgraphs(ctx)
	if err != nil {
		log.Warningf("could not fetch subgraphs, skipping reconciliation this tick: %s", err.Error())
		return
	}
	epochLengthBlocks, err := u.View.EpochLength(ctx)
	if err != nil {
		log.Warningf("could not read epoch length, skipping reconciliation this tick: %s", err.Error())
		return
	}

	indexingRules = rules.RewriteRules(indexingRules, subgraphLookup(subgraphs), time.Duration(epochLengthBlocks)*time.Second, time.Now())
	decisions := rules.Evaluate(indexingRules, toRuleDeployments(networkDeployments), u.SupportedChains)

	active, err := u.View.ActiveAllocations(ctx)
	if err != nil {
		log.Warningf("could not fetch active allocations: %s", err.Error())
		return
	}
	local, err := u.View.LocalDeployments(ctx)
	if err != nil {
		log.Warningf("could not fetch local deployments: %s", err.Error())
		return
	}

	target := reconciler.Target(
		map[string][]types.AllocationDecision{u.NetworkIdentifier: decisions},
		map[string]types.SubgraphDeploymentID{u.NetworkIdentifier: u.NetworkSubgraphDeployment},
		map[string][]types.IndexingRule{u.NetworkIdentifier: indexingRules},
		u.OffchainSubgraphs,
	)
	eligible := eligibleDeployments(active, closed)

	if err := u.DeploymentRecon.Reconcile(ctx, local, target, eligible); err != nil {
		log.Warningf("deployment reconciliation failed, skipping allocation reconciliation this tick: %s", err.Error())
		return
	}

	maxAllocationEpochs, err := u.View.MaxAllocationEpochs(ctx)
	if err != nil {
		log.Warningf("could not read max allocation epochs: %s", err.Error())
		return
	}

	opts := reconciler.Options{
		Mode:                      u.Mode,
		Epoch:                     epoch,
		MaxAllocationEpochs:       maxAllocationEpochs,
		NetworkSubgraphDeployment: &u.NetworkSubgraphDeployment,
		AllocateOnNetworkSubgraph: u.AllocateOnNetworkSubgraph,
		AutoMigrationSupport:      u.AutoMigrationSupport,
		TransferredToL2:           l2Flags(networkDeployments, func(d subgraphclient.NetworkDeployment) bool { return d.TransferredToL2 }),
		StartedTransferToL2:       l2Flags(networkDeployments, func(d subgraphclient.NetworkDeployment) bool { return d.StartedTransferToL2 }),
	}

	if err := u.AllocationRecon.Reconcile(ctx, decisions, opts, u.View.RefetchActiveAllocations); err != nil {
		log.Warningf("allocation reconciliation failed: %s", err.Error())
	}
}

// subgraphLookup indexes a subgraph list by id for rules.RewriteRules.
func subgraphLookup(subgraphs []types.SubgraphID) rules.SubgraphLookup {
	byID := make(map[string]types.SubgraphID, len(subgraphs))
	for _, s := range subgraphs {
		byID[s.ID] = s
	}
	return func(id string) (types.SubgraphID, bool) {
		s, ok := byID[id]
		return s, ok
	}
}

func toRuleDeployments(deployments []subgraphclient.NetworkDeployment) []rules.Deployment {
	out := make([]rules.Deployment, 0, len(deployments))
	for _, d := range deployments {
		out = append(out, rules.Deployment{
			ID:              d.DeploymentID,
			Chain:           d.Chain,
			StakedTokens:    d.StakedTokens,
			SignalAmount:    d.SignalAmount,
			QueryFeesAmount: d.QueryFeesAmount,
			AllocationCount: d.AllocationCount,
		})
	}
	return out
}

func l2Flags(deployments []subgraphclient.NetworkDeployment, pick func(subgraphclient.NetworkDeployment) bool) map[[32]byte]bool {
	flags := make(map[[32]byte]bool)
	for _, d := range deployments {
		if pick(d) {
			flags[d.DeploymentID.Bytes32()] = true
		}
	}
	return flags
}

func eligibleDeployments(active, closed []types.Allocation) []types.SubgraphDeploymentID {
	seen := map[[32]byte]bool{}
	var out []types.SubgraphDeploymentID
	addAll := func(allocations []types.Allocation) {
		for _, a := range allocations {
			key := a.SubgraphDeployment.Bytes32()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, a.SubgraphDeployment)
		}
	}
	addAll(active)
	addAll(closed)
	return out
}
