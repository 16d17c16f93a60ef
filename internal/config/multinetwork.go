package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"indexer-agent/internal/errs"
	"indexer-agent/internal/types"
)

// specFile is the on-disk YAML shape of one network-specification file,
// validated field-by-field against types.NetworkSpecification as it's
// decoded.
type specFile struct {
	NetworkIdentifier string `yaml:"networkIdentifier"`
	GatewayURL        string `yaml:"gatewayUrl"`
	ProviderURL       string `yaml:"providerUrl"`

	Indexer struct {
		Address                   string  `yaml:"address"`
		Mnemonic                  string  `yaml:"mnemonic"`
		GeoCoordinates            [2]float64 `yaml:"geoCoordinates"`
		AllocationManagement      string  `yaml:"allocationManagement"`
		AllocateOnNetworkSubgraph bool    `yaml:"allocateOnNetworkSubgraph"`
		AutoMigrationSupport      bool    `yaml:"autoMigrationSupport"`
		POIDisputableEpochs       int     `yaml:"poiDisputableEpochs"`
		POIDisputeMonitoring      bool    `yaml:"poiDisputeMonitoring"`
		RebateClaimThreshold      string  `yaml:"rebateClaimThreshold"`
		RebateClaimBatchThreshold string  `yaml:"rebateClaimBatchThreshold"`
		DefaultAllocationAmount   string  `yaml:"defaultAllocationAmount"`
	} `yaml:"indexer"`

	TransactionMonitoring struct {
		GasPriceMax            string        `yaml:"gasPriceMax"`
		GasIncreaseTimeout     time.Duration `yaml:"gasIncreaseTimeout"`
		GasIncreaseFactor      float64       `yaml:"gasIncreaseFactor"`
		TxTimeout              time.Duration `yaml:"txTimeout"`
		MaxTransactionAttempts int           `yaml:"maxTransactionAttempts"`
	} `yaml:"transactionMonitoring"`

	Subgraphs struct {
		NetworkSubgraphEndpoint   string `yaml:"networkSubgraphEndpoint"`
		NetworkSubgraphDeployment string `yaml:"networkSubgraphDeployment"`
		EpochSubgraphEndpoint     string `yaml:"epochSubgraphEndpoint"`
	} `yaml:"subgraphs"`

	Contracts struct {
		Staking         string `yaml:"staking"`
		ServiceRegistry string `yaml:"serviceRegistry"`
		Controller      string `yaml:"controller"`
		EpochManager    string `yaml:"epochManager"`
	} `yaml:"contracts"`

	OperatorPrivateKey string `yaml:"operatorPrivateKey"`

	GraphNode struct {
		QueryEndpoint  string `yaml:"queryEndpoint"`
		StatusEndpoint string `yaml:"statusEndpoint"`
		AdminEndpoint  string `yaml:"adminEndpoint"`
	} `yaml:"graphNode"`

	SupportedChains []string `yaml:"supportedChains"`
}

// LoadNetworkSpecifications reads every YAML file in dir, validates each
// against the NetworkSpecification schema, and returns them as an ordered
// list (lexical filename order) plus a ConfigError describing the first
// validation failure, if any.
func LoadNetworkSpecifications(dir string) ([]types.NetworkSpecification, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.New(errs.KindConfig, errs.CodeConfigInvalid, "config.LoadNetworkSpecifications", err)
	}

	var specs []types.NetworkSpecification
	seen := map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		spec, err := loadOne(path)
		if err != nil {
			return nil, errs.New(errs.KindConfig, errs.CodeConfigInvalid, "config.LoadNetworkSpecifications",
				fmt.Errorf("%s: %w", path, err))
		}
		if seen[spec.NetworkIdentifier] {
			return nil, errs.New(errs.KindConfig, errs.CodeConfigInvalid, "config.LoadNetworkSpecifications",
				fmt.Errorf("duplicate network identifier %q across specification files", spec.NetworkIdentifier))
		}
		seen[spec.NetworkIdentifier] = true
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, errs.New(errs.KindConfig, errs.CodeConfigInvalid, "config.LoadNetworkSpecifications",
			fmt.Errorf("no network specification files found in %s", dir))
	}

	return specs, nil
}

func loadOne(path string) (types.NetworkSpecification, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.NetworkSpecification{}, err
	}

	var f specFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return types.NetworkSpecification{}, err
	}

	if f.NetworkIdentifier == "" {
		return types.NetworkSpecification{}, fmt.Errorf("networkIdentifier is required")
	}
	if !common.IsHexAddress(f.Indexer.Address) {
		return types.NetworkSpecification{}, fmt.Errorf("indexer.address %q is not a valid address", f.Indexer.Address)
	}

	gatewayURL, err := url.Parse(f.GatewayURL)
	if err != nil {
		return types.NetworkSpecification{}, fmt.Errorf("invalid gatewayUrl: %w", err)
	}
	providerURL, err := url.Parse(f.ProviderURL)
	if err != nil {
		return types.NetworkSpecification{}, fmt.Errorf("invalid providerUrl: %w", err)
	}

	var deployment *types.SubgraphDeploymentID
	if f.Subgraphs.NetworkSubgraphDeployment != "" {
		id, err := types.NewDeploymentID(f.Subgraphs.NetworkSubgraphDeployment)
		if err != nil {
			return types.NetworkSpecification{}, fmt.Errorf("invalid subgraphs.networkSubgraphDeployment: %w", err)
		}
		deployment = &id
	}
	if f.Subgraphs.NetworkSubgraphEndpoint == "" && deployment == nil {
		return types.NetworkSpecification{}, fmt.Errorf("at least one of subgraphs.networkSubgraphEndpoint or subgraphs.networkSubgraphDeployment is required")
	}

	mode := types.AllocationManagementAuto
	if f.Indexer.AllocationManagement == string(types.AllocationManagementManual) {
		mode = types.AllocationManagementManual
	}

	spec := types.NetworkSpecification{
		NetworkIdentifier: ResolveNetworkAlias(f.NetworkIdentifier),
		GatewayURL:        gatewayURL,
		ProviderURL:       providerURL,
		Indexer: types.IndexerOptions{
			Address:                   common.HexToAddress(f.Indexer.Address),
			Mnemonic:                  f.Indexer.Mnemonic,
			GeoCoordinates:            f.Indexer.GeoCoordinates,
			AllocationManagement:      mode,
			AllocateOnNetworkSubgraph: f.Indexer.AllocateOnNetworkSubgraph,
			AutoMigrationSupport:      f.Indexer.AutoMigrationSupport,
			POIDisputableEpochs:       f.Indexer.POIDisputableEpochs,
			POIDisputeMonitoring:      f.Indexer.POIDisputeMonitoring,
			RebateClaimThreshold:      parseOptionalBigInt(f.Indexer.RebateClaimThreshold),
			RebateClaimBatchThreshold: parseOptionalBigInt(f.Indexer.RebateClaimBatchThreshold),
			DefaultAllocationAmount:   parseOptionalBigInt(f.Indexer.DefaultAllocationAmount),
		},
		TransactionMonitoring: types.TransactionMonitoring{
			GasPriceMax:            parseOptionalBigInt(f.TransactionMonitoring.GasPriceMax),
			GasIncreaseTimeout:     f.TransactionMonitoring.GasIncreaseTimeout,
			GasIncreaseFactor:      f.TransactionMonitoring.GasIncreaseFactor,
			TxTimeout:              f.TransactionMonitoring.TxTimeout,
			MaxTransactionAttempts: f.TransactionMonitoring.MaxTransactionAttempts,
		},
		Subgraphs: types.SubgraphEndpoints{
			NetworkSubgraphEndpoint:   f.Subgraphs.NetworkSubgraphEndpoint,
			NetworkSubgraphDeployment: deployment,
			EpochSubgraphEndpoint:     f.Subgraphs.EpochSubgraphEndpoint,
		},
		Contracts: types.ContractAddresses{
			Staking:         common.HexToAddress(f.Contracts.Staking),
			ServiceRegistry: common.HexToAddress(f.Contracts.ServiceRegistry),
			Controller:      common.HexToAddress(f.Contracts.Controller),
			EpochManager:    common.HexToAddress(f.Contracts.EpochManager),
		},
		OperatorPrivateKey:      f.OperatorPrivateKey,
		GraphNodeQueryEndpoint:  f.GraphNode.QueryEndpoint,
		GraphNodeStatusEndpoint: f.GraphNode.StatusEndpoint,
		GraphNodeAdminEndpoint:  f.GraphNode.AdminEndpoint,
		SupportedChains:         f.SupportedChains,
	}

	return spec, nil
}

func parseOptionalBigInt(s string) *big.Int {
	if s == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return v
}
