package reconciler

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/onsi/gomega"

	"indexer-agent/internal/logger"
	"indexer-agent/internal/types"
)

func claimableAllocation(addr string) types.Allocation {
	return types.Allocation{ID: common.HexToAddress(addr)}
}

func TestClaimRewardsSkipsWhenThereIsNothingClaimable(t *testing.T) {
	g := NewWithT(t)
	staking := newFakeStaking(big.NewInt(0))
	claimer := NewRewardsClaimer(staking, common.HexToAddress("0x1"), nil, logger.New("error"))

	err := claimer.ClaimRewards(context.Background(), nil, nil, nil)

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(staking.rewardsClaimed).To(BeEmpty())
}

func TestClaimRewardsCollectsWhenNoThresholdConfigured(t *testing.T) {
	g := NewWithT(t)
	staking := newFakeStaking(big.NewInt(0))
	claimer := NewRewardsClaimer(staking, common.HexToAddress("0x1"), nil, logger.New("error"))

	claimable := []types.Allocation{claimableAllocation("0xa"), claimableAllocation("0xb")}
	err := claimer.ClaimRewards(context.Background(), claimable, nil, nil)

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(staking.rewardsClaimed).To(HaveLen(1))
	g.Expect(staking.rewardsClaimed[0]).To(ConsistOf(common.HexToAddress("0xa"), common.HexToAddress("0xb")))
}

func TestClaimRewardsSkipsWhenAggregateBelowBatchThreshold(t *testing.T) {
	g := NewWithT(t)
	staking := newFakeStaking(big.NewInt(0))
	claimer := NewRewardsClaimer(staking, common.HexToAddress("0x1"), nil, logger.New("error"))

	claimable := []types.Allocation{claimableAllocation("0xa")}
	err := claimer.ClaimRewards(context.Background(), claimable, big.NewInt(50), big.NewInt(100))

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(staking.rewardsClaimed).To(BeEmpty())
}

func TestClaimRewardsProceedsWhenAggregateMeetsBatchThreshold(t *testing.T) {
	g := NewWithT(t)
	staking := newFakeStaking(big.NewInt(0))
	claimer := NewRewardsClaimer(staking, common.HexToAddress("0x1"), nil, logger.New("error"))

	claimable := []types.Allocation{claimableAllocation("0xa")}
	err := claimer.ClaimRewards(context.Background(), claimable, big.NewInt(100), big.NewInt(100))

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(staking.rewardsClaimed).To(HaveLen(1))
}

func TestClaimRewardsIgnoresThresholdWhenNotPositive(t *testing.T) {
	g := NewWithT(t)
	staking := newFakeStaking(big.NewInt(0))
	claimer := NewRewardsClaimer(staking, common.HexToAddress("0x1"), nil, logger.New("error"))

	claimable := []types.Allocation{claimableAllocation("0xa")}
	err := claimer.ClaimRewards(context.Background(), claimable, nil, big.NewInt(0))

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(staking.rewardsClaimed).To(HaveLen(1))
}

func TestClaimRewardsPropagatesCollectRewardsError(t *testing.T) {
	g := NewWithT(t)
	staking := newFakeStaking(big.NewInt(0))
	staking.collectRewardsErr = errors.New("rpc unavailable")
	claimer := NewRewardsClaimer(staking, common.HexToAddress("0x1"), nil, logger.New("error"))

	claimable := []types.Allocation{claimableAllocation("0xa")}
	err := claimer.ClaimRewards(context.Background(), claimable, nil, nil)

	g.Expect(err).To(MatchError(ContainSubstring("rpc unavailable")))
}
