package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"indexer-agent/internal/errs"
	"indexer-agent/internal/types"
)

// FromViper builds a single-network NetworkSpecification from flags bound by
// BindStartFlags, enforcing the "exactly one of network-subgraph-endpoint /
// network-subgraph-deployment" constraint from spec §6.
func FromViper(v *viper.Viper) (types.NetworkSpecification, error) {
	const op = "config.FromViper"

	ethereum := v.GetString("ethereum")
	if ethereum == "" {
		return types.NetworkSpecification{}, missing(op, "ethereum")
	}
	providerURL, err := url.Parse(ethereum)
	if err != nil {
		return types.NetworkSpecification{}, errs.New(errs.KindConfig, errs.CodeConfigInvalid, op, fmt.Errorf("invalid --ethereum URL: %w", err))
	}

	indexerAddress := v.GetString("indexer-address")
	if !common.IsHexAddress(indexerAddress) {
		return types.NetworkSpecification{}, errs.New(errs.KindConfig, errs.CodeConfigInvalid, op, fmt.Errorf("--indexer-address %q is not a valid address", indexerAddress))
	}

	mnemonic := v.GetString("mnemonic")
	if mnemonic == "" {
		return types.NetworkSpecification{}, missing(op, "mnemonic")
	}

	endpoint := v.GetString("network-subgraph-endpoint")
	deploymentFlag := v.GetString("network-subgraph-deployment")
	if (endpoint == "") == (deploymentFlag == "") {
		return types.NetworkSpecification{}, errs.New(errs.KindConfig, errs.CodeConfigInvalid, op,
			fmt.Errorf("exactly one of --network-subgraph-endpoint or --network-subgraph-deployment is required"))
	}
	var deployment *types.SubgraphDeploymentID
	if deploymentFlag != "" {
		id, err := types.NewDeploymentID(deploymentFlag)
		if err != nil {
			return types.NetworkSpecification{}, errs.New(errs.KindConfig, errs.CodeConfigInvalid, op, fmt.Errorf("invalid --network-subgraph-deployment: %w", err))
		}
		deployment = &id
	}

	lat, lon, err := parseGeoCoordinates(v.GetString("indexer-geo-coordinates"))
	if err != nil {
		return types.NetworkSpecification{}, errs.New(errs.KindConfig, errs.CodeConfigInvalid, op, err)
	}

	mode := types.AllocationManagementAuto
	if v.GetString("deployment-management") == string(types.AllocationManagementManual) {
		mode = types.AllocationManagementManual
	}

	defaultAllocation, err := ParseGRT(v.GetString("default-allocation-amount"))
	if err != nil {
		return types.NetworkSpecification{}, errs.New(errs.KindConfig, errs.CodeConfigInvalid, op, fmt.Errorf("invalid --default-allocation-amount: %w", err))
	}

	publicURL, err := url.Parse(v.GetString("public-indexer-url"))
	if err != nil {
		return types.NetworkSpecification{}, errs.New(errs.KindConfig, errs.CodeConfigInvalid, op, fmt.Errorf("invalid --public-indexer-url: %w", err))
	}

	for _, flag := range []string{"indexer-operator-private-key", "staking-contract-address", "service-registry-contract-address", "controller-contract-address", "epoch-manager-contract-address", "graph-node-query-endpoint", "graph-node-status-endpoint", "graph-node-admin-endpoint"} {
		if v.GetString(flag) == "" {
			return types.NetworkSpecification{}, missing(op, flag)
		}
	}
	for _, addr := range []string{"staking-contract-address", "service-registry-contract-address", "controller-contract-address", "epoch-manager-contract-address"} {
		if !common.IsHexAddress(v.GetString(addr)) {
			return types.NetworkSpecification{}, errs.New(errs.KindConfig, errs.CodeConfigInvalid, op, fmt.Errorf("--%s %q is not a valid address", addr, v.GetString(addr)))
		}
	}

	return types.NetworkSpecification{
		NetworkIdentifier: ResolveNetworkAlias(v.GetString("network-identifier")),
		GatewayURL:        publicURL,
		ProviderURL:       providerURL,
		Indexer: types.IndexerOptions{
			Address:                   common.HexToAddress(indexerAddress),
			Mnemonic:                  mnemonic,
			GeoCoordinates:            [2]float64{lat, lon},
			AllocationManagement:      mode,
			AllocateOnNetworkSubgraph: false,
			AutoMigrationSupport:      true,
			POIDisputableEpochs:       1,
			POIDisputeMonitoring:      true,
			DefaultAllocationAmount:   defaultAllocation,
		},
		Subgraphs: types.SubgraphEndpoints{
			NetworkSubgraphEndpoint:   endpoint,
			NetworkSubgraphDeployment: deployment,
		},
		Contracts: types.ContractAddresses{
			Staking:         common.HexToAddress(v.GetString("staking-contract-address")),
			ServiceRegistry: common.HexToAddress(v.GetString("service-registry-contract-address")),
			Controller:      common.HexToAddress(v.GetString("controller-contract-address")),
			EpochManager:    common.HexToAddress(v.GetString("epoch-manager-contract-address")),
		},
		OperatorPrivateKey:      v.GetString("indexer-operator-private-key"),
		GraphNodeQueryEndpoint:  v.GetString("graph-node-query-endpoint"),
		GraphNodeStatusEndpoint: v.GetString("graph-node-status-endpoint"),
		GraphNodeAdminEndpoint:  v.GetString("graph-node-admin-endpoint"),
	}, nil
}

func missing(op, flag string) error {
	return errs.New(errs.KindConfig, errs.CodeConfigInvalid, op, fmt.Errorf("--%s is required", flag))
}

// parseGeoCoordinates parses the "lat lon" space-separated flag value spec §6
// describes.
func parseGeoCoordinates(raw string) (lat, lon float64, err error) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("--indexer-geo-coordinates must be \"lat lon\", got %q", raw)
	}
	lat, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude in --indexer-geo-coordinates: %w", err)
	}
	lon, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude in --indexer-geo-coordinates: %w", err)
	}
	return lat, lon, nil
}
