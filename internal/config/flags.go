// Package config implements the CLI surface (spec §6): flag/env binding via
// cobra/viper, single- and multi-network NetworkSpecification construction,
// and the tagged-URL network-identifier parsing multi-network mode uses to
// disambiguate per-network option values. Grounded on the teacher's own
// indirect cobra/viper dependency, wired here the way every cobra/viper CLI
// in the ecosystem binds flags: the command's flag set + viper.BindPFlag +
// AutomaticEnv with an env prefix.
package config

import (
	"math/big"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment-variable prefix every flag is also
// reachable under: INDEXER_AGENT_<FLAG_IN_SCREAMING_SNAKE_CASE>.
const EnvPrefix = "INDEXER_AGENT"

// MultinetworkModeEnvVar names the single- vs multi-network mode variable.
// Nothing in this repository reads it: the mode is chosen by naming the
// `start` or `start-multiple` subcommand.
const MultinetworkModeEnvVar = "INDEXER_AGENT_MULTINETWORK_MODE"

// Defaults for the `start` subcommand's optional flags (spec §6).
var (
	DefaultAllocationAmount = "0.01"
)

const (
	DefaultIndexerManagementPort = 8000
	DefaultMetricsPort           = 7300
	DefaultPollingInterval       = 120000 * time.Millisecond
	DefaultLogLevel              = "debug"
	DefaultRestakeRewards        = true
	DefaultInjectDai             = true
	DefaultGeoCoordinates        = "31.780715 -41.179504"
	DefaultDeploymentManagement  = "auto"
)

// BindStartFlags registers every `start` subcommand flag and binds it into
// v under both its flag name and its INDEXER_AGENT_ environment variable.
func BindStartFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("network-identifier", "mainnet", "CAIP-2 identifier or alias of the protocol network this instance serves")
	flags.String("ethereum", "", "Ethereum provider URL (required)")
	flags.String("mnemonic", "", "BIP-39 mnemonic for ephemeral allocation key derivation (required)")
	flags.String("indexer-operator-private-key", "", "Hex-encoded private key of the wallet that signs on-chain staking transactions (required)")
	flags.String("staking-contract-address", "", "Staking contract address (required)")
	flags.String("service-registry-contract-address", "", "Service registry contract address (required)")
	flags.String("controller-contract-address", "", "Controller contract address (required)")
	flags.String("epoch-manager-contract-address", "", "Epoch manager contract address (required)")
	flags.String("indexer-address", "", "Ethereum address of the indexer (required)")
	flags.String("graph-node-query-endpoint", "", "Graph node query endpoint (required)")
	flags.String("graph-node-status-endpoint", "", "Graph node status endpoint (required)")
	flags.String("graph-node-admin-endpoint", "", "Graph node admin JSON-RPC endpoint (required)")
	flags.String("public-indexer-url", "", "Public URL this indexer's query endpoint is reachable at (required)")
	flags.String("postgres-host", "", "PostgreSQL host (required)")
	flags.String("postgres-database", "", "PostgreSQL database (required)")
	flags.Int("postgres-port", 5432, "PostgreSQL port")
	flags.String("postgres-username", "", "PostgreSQL username")
	flags.String("postgres-password", "", "PostgreSQL password")
	flags.String("network-subgraph-endpoint", "", "Network subgraph GraphQL endpoint (mutually exclusive with --network-subgraph-deployment)")
	flags.String("network-subgraph-deployment", "", "Network subgraph deployment id, indexed locally (mutually exclusive with --network-subgraph-endpoint)")
	flags.String("epoch-subgraph-endpoint", "", "Epoch subgraph GraphQL endpoint")

	flags.String("default-allocation-amount", DefaultAllocationAmount, "Default GRT amount for new allocations")
	flags.Int("indexer-management-port", DefaultIndexerManagementPort, "Port for the indexer management API (boundary, not served by this package)")
	flags.Int("metrics-port", DefaultMetricsPort, "Port Prometheus metrics are exposed on (boundary, not served by this package)")
	flags.Duration("polling-interval", DefaultPollingInterval, "Reconciliation tick interval")
	flags.String("log-level", DefaultLogLevel, "Log level")
	flags.StringSlice("offchain-subgraphs", nil, "Deployment ids to index regardless of on-chain allocation decisions (accepted but not read: the scheduler's off-chain list stays empty)")
	flags.Bool("restake-rewards", DefaultRestakeRewards, "Restake collected rewards rather than withdrawing (accepted but not read by this package)")
	flags.Bool("inject-dai", DefaultInjectDai, "Inject DAI conversion rates into the cost model (boundary, not used by this package)")
	flags.String("indexer-geo-coordinates", DefaultGeoCoordinates, "Geo-coordinates advertised for this indexer, \"lat lon\"")
	flags.String("deployment-management", DefaultDeploymentManagement, "auto or manual")

	bindAll(flags, v)
}

// BindStartMultipleFlags registers the multi-network subcommand's flags: the
// specifications directory and default network, plus the PostgreSQL, port,
// polling and logging flags it shares with `start`.
func BindStartMultipleFlags(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("network-specifications-directory", "", "Directory of per-network NetworkSpecification YAML files (required)")
	flags.String("default-protocol-network", "", "CAIP-2 identifier of the network used when none is specified")
	flags.String("postgres-host", "", "PostgreSQL host (required)")
	flags.String("postgres-database", "", "PostgreSQL database (required)")
	flags.Int("postgres-port", 5432, "PostgreSQL port")
	flags.String("postgres-username", "", "PostgreSQL username")
	flags.String("postgres-password", "", "PostgreSQL password")
	flags.Int("indexer-management-port", DefaultIndexerManagementPort, "Port for the indexer management API")
	flags.Int("metrics-port", DefaultMetricsPort, "Port Prometheus metrics are exposed on")
	flags.Duration("polling-interval", DefaultPollingInterval, "Reconciliation tick interval")
	flags.String("log-level", DefaultLogLevel, "Log level")

	bindAll(flags, v)
}

func bindAll(flags *pflag.FlagSet, v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

// ParseGRT parses a decimal GRT amount (e.g. "0.01") into wei-denominated
// base units (18 decimals), matching the protocol's token precision.
func ParseGRT(s string) (*big.Int, error) {
	return parseDecimalFixedPoint(s, 18)
}

func parseDecimalFixedPoint(s string, decimals int) (*big.Int, error) {
	f, _, err := big.ParseFloat(s, 10, 256, big.ToNearestEven)
	if err != nil {
		return nil, err
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f.Mul(f, scale)
	out, _ := f.Int(nil)
	return out, nil
}
