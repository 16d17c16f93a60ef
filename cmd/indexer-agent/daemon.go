package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"indexer-agent/internal/collector"
	"indexer-agent/internal/contracts"
	"indexer-agent/internal/disputes"
	"indexer-agent/internal/graphnode"
	"indexer-agent/internal/logger"
	"indexer-agent/internal/network"
	"indexer-agent/internal/reconciler"
	"indexer-agent/internal/scheduler"
	"indexer-agent/internal/store"
	"indexer-agent/internal/subgraphclient"
	"indexer-agent/internal/types"
)

// buildUnit wires every component described in spec §4 for a single
// network: the network view, the operator, the three reconcilers, the
// dispute monitor, and the on-chain/graph-node adapters they share.
func buildUnit(ctx context.Context, spec types.NetworkSpecification, st *store.Store, log logger.Logger) (scheduler.NetworkUnit, error) {
	netLog := log.With(logger.Fields{"protocolNetwork": spec.NetworkIdentifier})

	client, err := ethclient.DialContext(ctx, spec.ProviderURL.String())
	if err != nil {
		return scheduler.NetworkUnit{}, fmt.Errorf("dial ethereum provider for %s: %w", spec.NetworkIdentifier, err)
	}

	privKey, err := crypto.HexToECDSA(trimHex(spec.OperatorPrivateKey))
	if err != nil {
		return scheduler.NetworkUnit{}, fmt.Errorf("parse operator private key for %s: %w", spec.NetworkIdentifier, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return scheduler.NetworkUnit{}, fmt.Errorf("read chain id for %s: %w", spec.NetworkIdentifier, err)
	}
	signer := func(ctx context.Context) (*bind.TransactOpts, error) {
		opts, err := bind.NewKeyedTransactorWithChainID(privKey, chainID)
		if err != nil {
			return nil, err
		}
		opts.Context = ctx
		return opts, nil
	}
	onChain := contracts.NewOnChain(client, contracts.Addresses{
		Staking:         spec.Contracts.Staking,
		ServiceRegistry: spec.Contracts.ServiceRegistry,
		Controller:      spec.Contracts.Controller,
		EpochManager:    spec.Contracts.EpochManager,
	}, signer)

	graphNode := graphnode.NewRPCClient(spec.GraphNodeAdminEndpoint, spec.GraphNodeStatusEndpoint)

	networkClient := subgraphclient.New(spec.Subgraphs.NetworkSubgraphEndpoint)
	epochClient := networkClient
	if spec.Subgraphs.EpochSubgraphEndpoint != "" {
		epochClient = subgraphclient.New(spec.Subgraphs.EpochSubgraphEndpoint)
	}

	view := network.NewView(ctx, network.ViewConfig{
		NetworkIdentifier: spec.NetworkIdentifier,
		NetworkClient:     networkClient,
		EpochClient:       epochClient,
		Staking:           onChain,
		Controller:        onChain,
		EpochManager:      onChain,
		GraphNode:         graphNode,
		Store:             st,
		Indexer:           spec.Indexer.Address,
		Operator:          crypto.PubkeyToAddress(privKey.PublicKey),
	}, netLog)

	operator := network.NewOperator(network.OperatorConfig{
		NetworkIdentifier:       spec.NetworkIdentifier,
		Store:                   st,
		DefaultAllocationAmount: spec.Indexer.DefaultAllocationAmount,
	}, netLog)

	deploymentRecon := reconciler.NewDeploymentReconciler(graphNode, netLog)

	allocationRecon := reconciler.New(reconciler.Config{
		NetworkIdentifier: spec.NetworkIdentifier,
		Staking:           onChain,
		EpochManager:      onChain,
		GraphNode:         graphNode,
		Collector:         collector.NoopNotifier{},
		Indexer:           spec.Indexer.Address,
		Mnemonic:          spec.Indexer.Mnemonic,
		GasPriceMax:       spec.TransactionMonitoring.GasPriceMax,
	}, netLog)

	rewardsClaimer := reconciler.NewRewardsClaimer(onChain, spec.Indexer.Address, spec.TransactionMonitoring.GasPriceMax, netLog)

	disputeMonitor := disputes.New(disputes.Config{
		NetworkIdentifier:   spec.NetworkIdentifier,
		EpochManager:        onChain,
		GraphNode:           graphNode,
		Store:               st,
		POIDisputableEpochs: spec.Indexer.POIDisputableEpochs,
	}, netLog)

	supportedChains := make(map[string]bool, len(spec.SupportedChains))
	for _, c := range spec.SupportedChains {
		supportedChains[c] = true
	}

	var networkSubgraphDeployment types.SubgraphDeploymentID
	if spec.Subgraphs.NetworkSubgraphDeployment != nil {
		networkSubgraphDeployment = *spec.Subgraphs.NetworkSubgraphDeployment
	}

	return scheduler.NetworkUnit{
		NetworkIdentifier:         spec.NetworkIdentifier,
		View:                      view,
		Operator:                  operator,
		DeploymentRecon:           deploymentRecon,
		AllocationRecon:           allocationRecon,
		RewardsClaimer:            rewardsClaimer,
		DisputeMonitor:            disputeMonitor,
		Mode:                      spec.Indexer.AllocationManagement,
		AllocateOnNetworkSubgraph: spec.Indexer.AllocateOnNetworkSubgraph,
		AutoMigrationSupport:      spec.Indexer.AutoMigrationSupport,
		NetworkSubgraphDeployment: networkSubgraphDeployment,
		RebateBatchThreshold:      spec.Indexer.RebateClaimBatchThreshold,
		SupportedChains:           supportedChains,
	}, nil
}

func trimHex(s string) string {
	if len(s) >= 2 && s[0:2] == "0x" {
		return s[2:]
	}
	return s
}
