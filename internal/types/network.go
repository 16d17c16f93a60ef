package types

import (
	"math/big"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// IndexerOptions configures the identity and economic knobs of the indexer
// operating a single protocol network.
type IndexerOptions struct {
	Address               common.Address
	Mnemonic              string
	GeoCoordinates        [2]float64
	AllocationManagement  AllocationManagementMode
	AllocateOnNetworkSubgraph bool
	AutoMigrationSupport  bool

	// POI dispute knobs
	POIDisputableEpochs int
	POIDisputeMonitoring bool

	// rebate-claim thresholds
	RebateClaimThreshold      *big.Int
	RebateClaimBatchThreshold *big.Int

	DefaultAllocationAmount *big.Int
}

// TransactionMonitoring configures the gas-bump and timeout envelope applied
// to every on-chain write for a network.
type TransactionMonitoring struct {
	GasPriceMax          *big.Int
	GasIncreaseTimeout    time.Duration
	GasIncreaseFactor     float64
	TxTimeout             time.Duration
	MaxTransactionAttempts int
}

// SubgraphEndpoints names the GraphQL endpoints a network's reconciler reads
// from.
type SubgraphEndpoints struct {
	NetworkSubgraphEndpoint   string
	NetworkSubgraphDeployment *SubgraphDeploymentID
	EpochSubgraphEndpoint     string
}

// ContractAddresses names the on-chain contracts a network's reconciler
// reads from and writes to.
type ContractAddresses struct {
	Staking         common.Address
	ServiceRegistry common.Address
	Controller      common.Address
	EpochManager    common.Address
}

// NetworkSpecification is the full per-network configuration the scheduler
// runs a reconciler instance against.
type NetworkSpecification struct {
	NetworkIdentifier string // CAIP-2, e.g. "eip155:1"
	GatewayURL        *url.URL
	ProviderURL       *url.URL

	Indexer               IndexerOptions
	TransactionMonitoring TransactionMonitoring
	Subgraphs             SubgraphEndpoints
	Contracts             ContractAddresses

	// OperatorPrivateKey signs on-chain staking transactions; never the same
	// key as Indexer.Mnemonic, which only derives ephemeral allocation keys.
	OperatorPrivateKey string

	GraphNodeQueryEndpoint  string
	GraphNodeStatusEndpoint string
	GraphNodeAdminEndpoint  string

	SupportedChains []string
}
