package disputes

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/onsi/gomega"

	"indexer-agent/internal/types"
)

var (
	disputeDeploymentA = types.MustNewDeploymentID("QmZtNN8NNf4jVmSh4CWYStbeQLvoQX9gmAU8AKx8c7pnwb")
	disputeDeploymentB = types.MustNewDeploymentID("QmRhH2KnBk7qfCRxHE1hMpUXYMTkYx9Eo7nJfoxBz6zWwa")
)

func TestGroupIntoPoolsGroupsByDeploymentAndClosedEpoch(t *testing.T) {
	g := NewWithT(t)

	allocations := []types.Allocation{
		{ID: common.HexToAddress("0x1"), SubgraphDeployment: disputeDeploymentA, ClosedAtEpoch: 10},
		{ID: common.HexToAddress("0x2"), SubgraphDeployment: disputeDeploymentA, ClosedAtEpoch: 10},
		{ID: common.HexToAddress("0x3"), SubgraphDeployment: disputeDeploymentA, ClosedAtEpoch: 11},
		{ID: common.HexToAddress("0x4"), SubgraphDeployment: disputeDeploymentB, ClosedAtEpoch: 10},
	}

	pools := groupIntoPools(allocations)

	g.Expect(pools).To(HaveLen(3))
	for _, p := range pools {
		if p.deployment.Equal(disputeDeploymentA) && p.closedAtEpoch == 10 {
			g.Expect(p.allocations).To(HaveLen(2))
		}
	}
}

func TestBuildDisputeValidWhenClosedEpochReferenceMatches(t *testing.T) {
	g := NewWithT(t)

	poi := [32]byte{1, 2, 3}
	a := types.Allocation{ID: common.HexToAddress("0x1"), POI: poi, AllocatedTokens: big.NewInt(1)}
	pool := rewardsPool{deployment: disputeDeploymentA, closedAtEpoch: 10}

	d := buildDispute(a, pool, common.Hash{}, 100, common.Hash{}, 99, &poi, nil, nil, nil)

	g.Expect(d.Status).To(Equal(types.DisputeStatusValid))
}

func TestBuildDisputeValidWhenPreviousEpochReferenceMatches(t *testing.T) {
	g := NewWithT(t)

	poi := [32]byte{1, 2, 3}
	mismatched := [32]byte{9, 9, 9}
	a := types.Allocation{ID: common.HexToAddress("0x1"), POI: poi}
	pool := rewardsPool{deployment: disputeDeploymentA, closedAtEpoch: 10}

	d := buildDispute(a, pool, common.Hash{}, 100, common.Hash{}, 99, &mismatched, nil, &poi, nil)

	g.Expect(d.Status).To(Equal(types.DisputeStatusValid))
}

func TestBuildDisputePotentialWhenNeitherReferenceMatches(t *testing.T) {
	g := NewWithT(t)

	poi := [32]byte{1, 2, 3}
	other := [32]byte{9, 9, 9}
	a := types.Allocation{ID: common.HexToAddress("0x1"), POI: poi}
	pool := rewardsPool{deployment: disputeDeploymentA, closedAtEpoch: 10}

	d := buildDispute(a, pool, common.Hash{}, 100, common.Hash{}, 99, &other, nil, &other, nil)

	g.Expect(d.Status).To(Equal(types.DisputeStatusPotential))
}

func TestBuildDisputeReferenceUnavailableWhenGraphNodeErrors(t *testing.T) {
	g := NewWithT(t)

	poi := [32]byte{1, 2, 3}
	a := types.Allocation{ID: common.HexToAddress("0x1"), POI: poi}
	pool := rewardsPool{deployment: disputeDeploymentA, closedAtEpoch: 10}

	d := buildDispute(a, pool, common.Hash{}, 100, common.Hash{}, 99, nil, errors.New("graph node unreachable"), nil, nil)

	g.Expect(d.Status).To(Equal(types.DisputeStatusReferenceUnavailable))
}

func TestBuildDisputeReferenceUnavailableAtFirstEpochHasNoPreviousReference(t *testing.T) {
	g := NewWithT(t)

	poi := [32]byte{1, 2, 3}
	other := [32]byte{9, 9, 9}
	a := types.Allocation{ID: common.HexToAddress("0x1"), POI: poi}
	pool := rewardsPool{deployment: disputeDeploymentA, closedAtEpoch: 0}

	d := buildDispute(a, pool, common.Hash{}, 0, common.Hash{}, 0, &other, nil, nil, errNoPreviousEpoch)

	g.Expect(d.Status).To(Equal(types.DisputeStatusReferenceUnavailable))
}
