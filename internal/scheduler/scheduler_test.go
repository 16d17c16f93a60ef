package scheduler

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/onsi/gomega"

	"indexer-agent/internal/subgraphclient"
	"indexer-agent/internal/types"
)

var (
	schedDeploymentA = types.MustNewDeploymentID("QmZtNN8NNf4jVmSh4CWYStbeQLvoQX9gmAU8AKx8c7pnwb")
	schedDeploymentB = types.MustNewDeploymentID("QmRhH2KnBk7qfCRxHE1hMpUXYMTkYx9Eo7nJfoxBz6zWwa")
)

func TestToRuleDeploymentsCopiesEconomicFields(t *testing.T) {
	g := NewWithT(t)

	deployments := []subgraphclient.NetworkDeployment{
		{
			DeploymentID:    schedDeploymentA,
			Chain:           "eip155:1",
			StakedTokens:    big.NewInt(100),
			SignalAmount:    big.NewInt(200),
			QueryFeesAmount: big.NewInt(300),
			AllocationCount: 2,
		},
	}

	out := toRuleDeployments(deployments)

	g.Expect(out).To(HaveLen(1))
	g.Expect(out[0].ID.Equal(schedDeploymentA)).To(BeTrue())
	g.Expect(out[0].Chain).To(Equal("eip155:1"))
	g.Expect(out[0].StakedTokens).To(Equal(big.NewInt(100)))
	g.Expect(out[0].SignalAmount).To(Equal(big.NewInt(200)))
	g.Expect(out[0].QueryFeesAmount).To(Equal(big.NewInt(300)))
	g.Expect(out[0].AllocationCount).To(Equal(2))
}

func TestL2FlagsSelectsOnlyMatchingDeployments(t *testing.T) {
	g := NewWithT(t)

	deployments := []subgraphclient.NetworkDeployment{
		{DeploymentID: schedDeploymentA, TransferredToL2: true},
		{DeploymentID: schedDeploymentB, StartedTransferToL2: true},
	}

	transferred := l2Flags(deployments, func(d subgraphclient.NetworkDeployment) bool { return d.TransferredToL2 })
	started := l2Flags(deployments, func(d subgraphclient.NetworkDeployment) bool { return d.StartedTransferToL2 })

	g.Expect(transferred).To(HaveLen(1))
	g.Expect(transferred[schedDeploymentA.Bytes32()]).To(BeTrue())
	g.Expect(transferred).NotTo(HaveKey(schedDeploymentB.Bytes32()))

	g.Expect(started).To(HaveLen(1))
	g.Expect(started[schedDeploymentB.Bytes32()]).To(BeTrue())
}

func TestEligibleDeploymentsDeduplicatesAcrossActiveAndClosed(t *testing.T) {
	g := NewWithT(t)

	active := []types.Allocation{
		{ID: common.HexToAddress("0x1"), SubgraphDeployment: schedDeploymentA},
	}
	closed := []types.Allocation{
		{ID: common.HexToAddress("0x2"), SubgraphDeployment: schedDeploymentA},
		{ID: common.HexToAddress("0x3"), SubgraphDeployment: schedDeploymentB},
	}

	out := eligibleDeployments(active, closed)

	g.Expect(out).To(HaveLen(2))
	ids := []string{out[0].Hex(), out[1].Hex()}
	g.Expect(ids).To(ConsistOf(schedDeploymentA.Hex(), schedDeploymentB.Hex()))
}

func TestEligibleDeploymentsEmptyWhenNoAllocations(t *testing.T) {
	g := NewWithT(t)

	out := eligibleDeployments(nil, nil)

	g.Expect(out).To(BeEmpty())
}
