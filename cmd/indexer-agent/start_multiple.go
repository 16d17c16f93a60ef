package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"indexer-agent/internal/config"
	"indexer-agent/internal/logger"
	"indexer-agent/internal/metrics"
	"indexer-agent/internal/network"
	"indexer-agent/internal/scheduler"
	"indexer-agent/internal/store"
	"indexer-agent/internal/types"
)

func newStartMultipleCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "start-multiple",
		Short: "Run the reconciler against every network named in a specifications directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStartMultiple(context.Background(), v)
		},
	}
	config.BindStartMultipleFlags(cmd.Flags(), v)
	return cmd
}

func runStartMultiple(ctx context.Context, v *viper.Viper) error {
	log := logger.New(v.GetString("log-level"))

	specs, err := config.LoadNetworkSpecifications(v.GetString("network-specifications-directory"))
	if err != nil {
		return err
	}

	if err := validateAgainstDefaultProtocolNetwork(specs, v.GetString("default-protocol-network")); err != nil {
		return err
	}

	st, err := store.Open(store.Config{
		Host:     v.GetString("postgres-host"),
		Port:     v.GetInt("postgres-port"),
		Database: v.GetString("postgres-database"),
		User:     v.GetString("postgres-username"),
		Password: v.GetString("postgres-password"),
	}, log)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signalContext(ctx)
	defer cancel()

	units := make([]scheduler.NetworkUnit, 0, len(specs))
	pairs := make([]network.Pair, 0, len(specs))
	for _, spec := range specs {
		unit, err := buildUnit(ctx, spec, st, log)
		if err != nil {
			return err
		}
		units = append(units, unit)
		pairs = append(pairs, network.Pair{Network: unit.View, Operator: unit.Operator})
	}

	registry, err := network.NewRegistry(pairs)
	if err != nil {
		return err
	}
	logActiveAllocationCounts(ctx, registry, log)

	metrics.Register(prometheus.DefaultRegisterer)
	serveMetrics(v.GetInt("metrics-port"), log)

	sched := scheduler.New(units, v.GetDuration("polling-interval"), log)
	sched.Run(ctx)

	log.Noticef("shutting down")
	return nil
}

// logActiveAllocationCounts reports a one-line startup summary per network,
// exercising the Registry's parallel per-key fan-out over the same View
// accessors the scheduler polls continuously.
func logActiveAllocationCounts(ctx context.Context, registry *network.Registry, log logger.Logger) {
	counts := registry.Map(func(pair network.Pair) (interface{}, error) {
		active, err := pair.Network.ActiveAllocations(ctx)
		if err != nil {
			return nil, err
		}
		return len(active), nil
	}, func(id string, err error) {
		log.Warningf("could not read startup allocation count for %s: %s", id, err.Error())
	})

	for _, id := range registry.NetworkIdentifiers() {
		if n, ok := counts[id]; ok {
			log.Infof("network %s: %d active allocations at startup", id, n)
		}
	}
}

func validateAgainstDefaultProtocolNetwork(specs []types.NetworkSpecification, defaultProtocolNetwork string) error {
	ids := make([]config.TaggedValue, 0, len(specs))
	for _, s := range specs {
		ids = append(ids, config.TaggedValue{NetworkIdentifier: s.NetworkIdentifier, Value: s.NetworkIdentifier})
	}
	return config.ValidateTaggedGroups(map[string][]config.TaggedValue{"network-specifications-directory": ids}, defaultProtocolNetwork)
}
