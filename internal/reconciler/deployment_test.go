package reconciler

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/onsi/gomega"

	"indexer-agent/internal/graphnode"
	"indexer-agent/internal/logger"
	"indexer-agent/internal/types"
)

// fakeGraphNode is an in-memory graphnode.Client for reconciler tests; it
// tracks names created, deployments deployed and their current node
// assignment.
type fakeGraphNode struct {
	mu          sync.Mutex
	names       map[string]bool
	deployed    map[[32]byte]string // deployment -> name
	assignments map[[32]byte]string // deployment -> node id
	nodeCounts  map[string]int
	poiRequests []poiRequest
}

type poiRequest struct {
	deployment  types.SubgraphDeploymentID
	blockHash   common.Hash
	blockNumber uint64
	indexer     common.Address
}

func newFakeGraphNode(nodes ...string) *fakeGraphNode {
	counts := make(map[string]int, len(nodes))
	for _, n := range nodes {
		counts[n] = 0
	}
	return &fakeGraphNode{
		names:       map[string]bool{},
		deployed:    map[[32]byte]string{},
		assignments: map[[32]byte]string{},
		nodeCounts:  counts,
	}
}

func (f *fakeGraphNode) CreateSubgraphName(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[name] = true
	return nil
}

func (f *fakeGraphNode) Deploy(ctx context.Context, name string, deployment types.SubgraphDeploymentID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployed[deployment.Bytes32()] = name
	return nil
}

func (f *fakeGraphNode) Reassign(ctx context.Context, deployment types.SubgraphDeploymentID, nodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.assignments[deployment.Bytes32()]; ok {
		f.nodeCounts[prev]--
	}
	f.assignments[deployment.Bytes32()] = nodeID
	f.nodeCounts[nodeID]++
	return nil
}

func (f *fakeGraphNode) IndexNodeDeployments(ctx context.Context) (map[string][]types.SubgraphDeploymentID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]types.SubgraphDeploymentID, len(f.nodeCounts))
	for node := range f.nodeCounts {
		out[node] = nil
	}
	for dep, node := range f.assignments {
		out[node] = append(out[node], types.NewDeploymentIDFromBytes32(dep))
	}
	return out, nil
}

func (f *fakeGraphNode) LocalDeployments(ctx context.Context) ([]types.SubgraphDeploymentID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.SubgraphDeploymentID
	for dep, node := range f.assignments {
		if node == graphnode.RemovedNodeID {
			continue
		}
		out = append(out, types.NewDeploymentIDFromBytes32(dep))
	}
	return out, nil
}

func (f *fakeGraphNode) ProofOfIndexing(ctx context.Context, deployment types.SubgraphDeploymentID, blockHash common.Hash, blockNumber uint64, indexer common.Address) (*[32]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poiRequests = append(f.poiRequests, poiRequest{deployment: deployment, blockHash: blockHash, blockNumber: blockNumber, indexer: indexer})
	poi := [32]byte{1}
	return &poi, nil
}

func TestDeploymentReconcilerAddsMissingTargetDeployments(t *testing.T) {
	g := NewWithT(t)

	fake := newFakeGraphNode("node-1")
	recon := NewDeploymentReconciler(fake, logger.New("panic"))

	err := recon.Reconcile(context.Background(), nil, []types.SubgraphDeploymentID{targetDeploymentA}, nil)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(fake.deployed).To(HaveKey(targetDeploymentA.Bytes32()))
	g.Expect(fake.assignments[targetDeploymentA.Bytes32()]).To(Equal("node-1"))
}

func TestDeploymentReconcilerRemovesDeploymentsNotInTargetOrEligible(t *testing.T) {
	g := NewWithT(t)

	fake := newFakeGraphNode("node-1")
	fake.assignments[targetDeploymentA.Bytes32()] = "node-1"

	recon := NewDeploymentReconciler(fake, logger.New("panic"))
	err := recon.Reconcile(context.Background(), []types.SubgraphDeploymentID{targetDeploymentA}, nil, nil)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(fake.assignments[targetDeploymentA.Bytes32()]).To(Equal(graphnode.RemovedNodeID))
}

func TestDeploymentReconcilerKeepsActiveDeploymentsThatAreEligibleEvenIfNotTargeted(t *testing.T) {
	g := NewWithT(t)

	fake := newFakeGraphNode("node-1")
	fake.assignments[targetDeploymentA.Bytes32()] = "node-1"

	recon := NewDeploymentReconciler(fake, logger.New("panic"))
	err := recon.Reconcile(context.Background(), []types.SubgraphDeploymentID{targetDeploymentA}, nil, []types.SubgraphDeploymentID{targetDeploymentA})
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(fake.assignments[targetDeploymentA.Bytes32()]).To(Equal("node-1"))
}

func TestDeploymentReconcilerChoosesLeastLoadedNode(t *testing.T) {
	g := NewWithT(t)

	fake := newFakeGraphNode("node-1", "node-2")
	fake.assignments[targetDeploymentB.Bytes32()] = "node-1"
	fake.nodeCounts["node-1"] = 1

	recon := NewDeploymentReconciler(fake, logger.New("panic"))
	err := recon.Reconcile(context.Background(), []types.SubgraphDeploymentID{targetDeploymentB}, []types.SubgraphDeploymentID{targetDeploymentB, targetDeploymentA}, nil)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(fake.assignments[targetDeploymentA.Bytes32()]).To(Equal("node-2"))
}
